package http

import (
	"net/http"

	"tipid/internal/core"
	"tipid/internal/services"
	"tipid/internal/session"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request, sess session.Session) {
	q, err := ParseExpenseQuery(r.URL.Query(), s.opts.Location)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	var res services.Result[[]core.Expense]
	switch {
	case q.HasRange:
		res = s.svc.Expenses.ListRange(r.Context(), sess.UserID, q.From, q.To)
	case q.Category != "":
		res = s.svc.Expenses.ListByCategory(r.Context(), sess.UserID, q.Category)
	case q.Essential != nil:
		res = s.svc.Expenses.ListByEssential(r.Context(), sess.UserID, *q.Essential)
	default:
		res = s.svc.Expenses.List(r.Context(), sess.UserID)
	}
	ResultResponse(res).Write(w)
}

func expenseInput(p *RequestBodyParser) services.ExpenseInput {
	return services.ExpenseInput{
		Amount:      p.Get("amount"),
		Category:    p.Get("category"),
		Description: p.Get("description"),
		Date:        p.Get("date"),
		IsEssential: p.GetBool("isEssential"),
	}
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	ResultResponse(s.svc.Expenses.Create(r.Context(), sess.UserID, expenseInput(p))).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	res := s.svc.Expenses.Update(r.Context(), sess.UserID, r.PathValue("id"), expenseInput(p))
	ResultResponse(res).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request, sess session.Session) {
	ResultResponse(s.svc.Expenses.Delete(r.Context(), sess.UserID, r.PathValue("id"))).Write(w)
}
