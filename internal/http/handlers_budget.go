package http

import (
	"net/http"

	"tipid/internal/services"
	"tipid/internal/session"
)

func budgetInput(p *RequestBodyParser) services.BudgetInput {
	return services.BudgetInput{
		Amount:    p.Get("amount"),
		Timeframe: p.Get("timeframe"),
		GoalID:    p.Get("goalId"),
	}
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ResultResponse(s.svc.Budgets.Active(r.Context(), sess.UserID)).Write(w)
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	ResultResponse(s.svc.Budgets.Create(r.Context(), sess.UserID, budgetInput(p))).Write(w)
}

func (s *Server) handleEditBudget(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	ResultResponse(s.svc.Budgets.EditActive(r.Context(), sess.UserID, budgetInput(p))).Write(w)
}

func goalInput(p *RequestBodyParser) services.GoalInput {
	return services.GoalInput{
		Name:    p.Get("name"),
		Target:  p.Get("targetAmount"),
		Current: p.Get("currentAmount"),
	}
}

// goalID is the "id" field of the body, or the owner's latest goal.
func (s *Server) goalID(r *http.Request, sess session.Session, p *RequestBodyParser) (string, *ResponseBuilder) {
	if id := p.Get("id"); id != "" {
		return id, nil
	}
	res := s.svc.Goals.Latest(r.Context(), sess.UserID)
	if !res.Success {
		return "", ResultResponse(res)
	}
	return res.Data.ID, nil
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ResultResponse(s.svc.Goals.GetOrCreateDefault(r.Context(), sess.UserID)).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	ResultResponse(s.svc.Goals.Create(r.Context(), sess.UserID, goalInput(p))).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	id, errResp := s.goalID(r, sess, p)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	ResultResponse(s.svc.Goals.Update(r.Context(), sess.UserID, id, goalInput(p))).Write(w)
}

func (s *Server) handleResetGoal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	id, errResp := s.goalID(r, sess, p)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	ResultResponse(s.svc.Goals.Reset(r.Context(), sess.UserID, id)).Write(w)
}

func (s *Server) handleAddToGoal(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	id, errResp := s.goalID(r, sess, p)
	if errResp != nil {
		errResp.Write(w)
		return
	}
	ResultResponse(s.svc.Goals.AddAmount(r.Context(), sess.UserID, id, p.Get("amount"))).Write(w)
}
