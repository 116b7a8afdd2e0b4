package http

import (
	"net/http"
	"strings"

	"tipid/internal/core"
	"tipid/internal/engine"
	"tipid/internal/session"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ResultResponse(s.svc.Dashboard.Load(r.Context(), sess, s.localNow())).Write(w)
}

type trendResponse struct {
	Granularity engine.Granularity  `json:"granularity"`
	Points      []engine.TrendPoint `json:"points"`
	Change      engine.TrendChange  `json:"change"`
}

// handleTrends serves one trend series; granularity defaults to weekly.
func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request, sess session.Session) {
	raw := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("granularity")))
	if raw == "" {
		raw = string(engine.Weekly)
	}
	g, ok := engine.ParseGranularity(raw)
	if !ok {
		BadRequestError("granularity must be daily, weekly or monthly").Write(w)
		return
	}

	res := s.svc.Expenses.List(r.Context(), sess.UserID)
	if !res.Success {
		ResultResponse(res).Write(w)
		return
	}

	points := engine.Trend(res.Data, g, s.localNow())
	Ok("Trend computed", trendResponse{
		Granularity: g,
		Points:      points,
		Change:      engine.CompareTrend(points),
	}).Write(w)
}

func (s *Server) handleComparePrice(w http.ResponseWriter, r *http.Request, sess session.Session) {
	item := sanitizeInput(r.URL.Query().Get("item"))
	ResultResponse(s.svc.Prices.Compare(r.Context(), sess, item, s.localNow())).Write(w)
}

func (s *Server) handleMarketPrices(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ResultResponse(s.svc.Prices.MarketPrices(r.Context())).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	Ok("Categories", core.Categories).Write(w)
}
