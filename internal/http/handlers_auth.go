package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/services"
	"tipid/internal/session"
)

type sessionKey struct{}

// authedHandler is a handler that runs with a resolved session.
type authedHandler func(w http.ResponseWriter, r *http.Request, sess session.Session)

// authed resolves the session from the cookie, or a bearer token, and
// answers 401 when there is none.
func (s *Server) authed(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := s.sessionToken(r)
		if token == "" {
			UnauthorizedError("Please log in").Write(w)
			return
		}

		sess, err := s.svc.Auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, core.ErrUnauthorized) {
				InternalServerError("Failed to verify session").Write(w)
				return
			}
			NewResponse().
				Status(http.StatusUnauthorized).
				Cookie(s.clearCookie()).
				Body(envelope{Message: "Session expired, please log in again"}).
				Write(w)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID))
		next(w, r.WithContext(ctx), sess)
	}
}

func (s *Server) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(s.opts.SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

func (s *Server) sessionCookie(sess *session.Session) *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) clearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// parseBody parses the request body or writes a 400 and returns nil.
func parseBody(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Malformed request body", log.FieldError, err)
		BadRequestError("Invalid request format").Write(w)
		return nil
	}
	return p
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	res := s.svc.Auth.Register(r.Context(), services.RegisterInput{
		FullName:        p.Get("fullName"),
		Email:           p.Get("email"),
		Username:        p.Get("username"),
		Password:        p.GetRaw("password"),
		ConfirmPassword: p.GetRaw("confirmPassword"),
	})
	ResultResponse(res).Write(w)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := parseBody(w, r)
	if p == nil {
		return
	}
	res := s.svc.Auth.Login(r.Context(), p.GetRaw("username"), p.GetRaw("password"))
	if !res.Success {
		b := ResultResponse(res)
		if res.Message == "Invalid username or password!" {
			b.Status(http.StatusUnauthorized)
		}
		b.Write(w)
		return
	}
	NewResponse().Cookie(s.sessionCookie(res.Data)).Body(res).Write(w)
}

// handleLogout always clears the cookie, with or without a live session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	res := services.Result[struct{}]{Success: true, Message: "Logged out"}
	if token := s.sessionToken(r); token != "" {
		res = s.svc.Auth.Logout(r.Context(), token)
	}
	NewResponse().Cookie(s.clearCookie()).Body(res).Write(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sess session.Session) {
	Ok("Authenticated", sess).Write(w)
}

// SessionFromContext returns the session attached by authed.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session.Session)
	return sess, ok
}
