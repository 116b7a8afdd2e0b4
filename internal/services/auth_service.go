package services

import (
	"context"
	"errors"
	"strings"

	"tipid/internal/auth"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/session"
	"tipid/internal/store"
	"tipid/internal/validate"
)

type RegisterInput struct {
	FullName        string `json:"fullName"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type AuthService struct {
	users    store.UserStore
	sessions *session.Manager
	hasher   *auth.Hasher
	logger   *log.Logger
}

func NewAuthService(users store.UserStore, sessions *session.Manager, hasher *auth.Hasher, logger *log.Logger) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger.WithComponent(log.ComponentAuth),
	}
}

func (s *AuthService) Login(ctx context.Context, username, password string) Result[*session.Session] {
	if r := validate.LoginForm(username, password); !r.IsValid {
		return fail[*session.Session](r.Message)
	}

	// Usernames match exactly; " ann " is not "ann".
	u, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.InfoContext(ctx, "Login rejected", log.FieldUsername, username, log.FieldOperation, log.OpLogin)
		return fail[*session.Session]("Invalid username or password!")
	}
	if err != nil {
		logFailure(ctx, s.logger, "Login lookup failed", err, log.OpLogin, "")
		return fail[*session.Session]("An error occurred during login.")
	}

	if err := auth.Verify(u.Password, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			s.logger.InfoContext(ctx, "Login rejected", log.FieldUsername, username, log.FieldOperation, log.OpLogin)
			return fail[*session.Session]("Invalid username or password!")
		}
		logFailure(ctx, s.logger, "Credential check failed", err, log.OpLogin, u.ID)
		return fail[*session.Session]("An error occurred during login.")
	}

	sess, err := s.sessions.Create(ctx, u)
	if err != nil {
		logFailure(ctx, s.logger, "Session creation failed", err, log.OpLogin, u.ID)
		return fail[*session.Session]("An error occurred during login.")
	}

	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, u.ID, log.FieldUsername, u.Username)
	return ok("Login successful!", &sess)
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) Result[core.User] {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" ||
		strings.TrimSpace(in.Username) == "" || in.Password == "" || in.ConfirmPassword == "" {
		return fail[core.User]("Please fill in all fields!")
	}
	if r := validate.RegistrationForm(in.FullName, in.Email, in.Username, in.Password, in.ConfirmPassword); !r.IsValid {
		return fail[core.User](r.Message)
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	if msg, err := s.taken(ctx, username, email); err != nil {
		logFailure(ctx, s.logger, "Uniqueness check failed", err, log.OpRegister, "")
		return fail[core.User]("Registration failed: " + err.Error())
	} else if msg != "" {
		return fail[core.User](msg)
	}

	stored, err := s.hasher.Hash(in.Password)
	if err != nil {
		logFailure(ctx, s.logger, "Password hashing failed", err, log.OpRegister, "")
		return fail[core.User]("Registration failed: " + err.Error())
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username: username,
		Email:    email,
		FullName: strings.TrimSpace(in.FullName),
		Password: stored,
	})
	if errors.Is(err, core.ErrConflict) {
		// Lost a race with a concurrent registration.
		if msg, _ := s.taken(ctx, username, email); msg != "" {
			return fail[core.User](msg)
		}
	}
	if err != nil {
		logFailure(ctx, s.logger, "User insert failed", err, log.OpRegister, "")
		return fail[core.User]("Registration failed: " + err.Error())
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, u.ID, log.FieldUsername, u.Username)
	u.Password = ""
	return ok("Registration successful! Please login.", u)
}

// taken returns the user-facing message for a username or email that is
// already registered, or "" when both are free.
func (s *AuthService) taken(ctx context.Context, username, email string) (string, error) {
	if _, err := s.users.UserByUsername(ctx, username); err == nil {
		return "Username already exists!", nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return "", err
	}
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return "Email already exists!", nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return "", err
	}
	return "", nil
}

func (s *AuthService) Logout(ctx context.Context, token string) Result[struct{}] {
	if err := s.sessions.Destroy(ctx, token); err != nil {
		logFailure(ctx, s.logger, "Logout failed", err, log.OpLogout, "")
	}
	return ok("Logged out", struct{}{})
}

// Authenticate resolves a session token. It returns core.ErrUnauthorized
// when the caller must log in again.
func (s *AuthService) Authenticate(ctx context.Context, token string) (session.Session, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil && !errors.Is(err, core.ErrUnauthorized) {
		logFailure(ctx, s.logger, "Session lookup failed", err, log.OpRead, "")
	}
	return sess, err
}
