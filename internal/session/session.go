// Package session creates, resolves and destroys login sessions. Sessions
// are persisted through store.SessionStore and fronted by an LRU cache.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tipid/internal/auth"
	"tipid/internal/core"
	"tipid/internal/log"
	"tipid/internal/store"
)

// Session is the authenticated identity attached to a request.
type Session struct {
	Token        string    `json:"-"`
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	FullName     string    `json:"fullName"`
	Email        string    `json:"email"`
	ExpiresAt    time.Time `json:"expiresAt"`
	LastActivity time.Time `json:"-"`
}

func fromUser(token string, u core.User, expiresAt, lastActivity time.Time) Session {
	return Session{
		Token:        token,
		UserID:       u.ID,
		Username:     u.Username,
		FullName:     u.FullName,
		Email:        u.Email,
		ExpiresAt:    expiresAt,
		LastActivity: lastActivity,
	}
}

type Options struct {
	TTL       time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 24 * time.Hour
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 1000
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	return o
}

type Manager struct {
	store  store.SessionStore
	cache  *Cache
	ttl    time.Duration
	now    func() time.Time
	logger *log.Logger

	stopOnce    sync.Once
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

func NewManager(st store.SessionStore, opts Options, logger *log.Logger) *Manager {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		store:  st,
		cache:  NewCache(opts.CacheSize, opts.CacheTTL),
		ttl:    opts.TTL,
		now:    time.Now,
		logger: logger.WithComponent(log.ComponentSession),
	}
}

// SetClock replaces the time source for the manager and its cache.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
	m.cache.now = now
}

func (m *Manager) TTL() time.Duration { return m.ttl }

// Create starts a session for u.
func (m *Manager) Create(ctx context.Context, u core.User) (Session, error) {
	token, err := auth.NewToken()
	if err != nil {
		return Session{}, err
	}
	now := m.now()
	s := fromUser(token, u, now.Add(m.ttl), now)
	if err := m.store.CreateSession(ctx, store.Session{
		Token:        token,
		UserID:       u.ID,
		ExpiresAt:    s.ExpiresAt,
		LastActivity: now,
	}); err != nil {
		return Session{}, fmt.Errorf("persist session: %w", err)
	}
	m.cache.Set(s)
	return s, nil
}

// Resolve returns the live session for token, renewing it once half its
// lifetime has passed. Unknown or expired tokens yield core.ErrUnauthorized.
func (m *Manager) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, core.ErrUnauthorized
	}
	now := m.now()

	s, ok := m.cache.Get(token)
	if !ok {
		ss, u, err := m.store.LookupSession(ctx, token, now)
		if errors.Is(err, core.ErrNotFound) {
			return Session{}, core.ErrUnauthorized
		}
		if err != nil {
			return Session{}, fmt.Errorf("lookup session: %w", err)
		}
		s = fromUser(token, u, ss.ExpiresAt, ss.LastActivity)
	}
	if !s.ExpiresAt.After(now) {
		m.cache.Delete(token)
		return Session{}, core.ErrUnauthorized
	}

	if now.Sub(s.LastActivity) >= m.ttl/2 {
		expiresAt := now.Add(m.ttl)
		if err := m.store.RenewSession(ctx, token, now, expiresAt); err != nil {
			// The session is still valid; renewal is retried next request.
			m.logger.WarnContext(ctx, "Session renewal failed", log.FieldUserID, s.UserID, log.FieldError, err)
		} else {
			s.ExpiresAt = expiresAt
			s.LastActivity = now
		}
	}
	m.cache.Set(s)
	return s, nil
}

// Destroy ends the session. Unknown tokens are not an error.
func (m *Manager) Destroy(ctx context.Context, token string) error {
	m.cache.Delete(token)
	if err := m.store.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune drops expired sessions from the cache and the store.
func (m *Manager) Prune(ctx context.Context) (int64, error) {
	m.cache.CleanExpired()
	n, err := m.store.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return n, nil
}

// StartCleanup prunes on every interval until Stop is called.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.stopCleanup = make(chan struct{})
	m.cleanupDone = make(chan struct{})
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := m.Prune(context.Background())
			if err != nil {
				m.logger.Warn("Session cleanup failed", log.FieldError, err)
				continue
			}
			if n > 0 {
				m.logger.Debug("Expired sessions removed", "count", n)
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine
func (m *Manager) Stop() {
	if m.stopCleanup == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		<-m.cleanupDone
	})
}
