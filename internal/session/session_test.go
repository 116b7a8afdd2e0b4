package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tipid/internal/core"
	"tipid/internal/store/memory"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Manager, *memory.Store, *clock, core.User) {
	t.Helper()
	st := memory.New()
	u, err := st.CreateUser(context.Background(), core.User{Username: "ann", Email: "ann@x.com", FullName: "Ann Cruz", Password: "plain$secret1"})
	require.NoError(t, err)

	c := &clock{t: time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)}
	m := NewManager(st, Options{TTL: 4 * time.Hour, CacheSize: 2, CacheTTL: time.Minute}, nil)
	m.SetClock(c.now)
	return m, st, c, u
}

func TestCreateAndResolve(t *testing.T) {
	m, _, _, u := setup(t)
	ctx := context.Background()

	s, err := m.Create(ctx, u)
	require.NoError(t, err)
	assert.Len(t, s.Token, 64)
	assert.Equal(t, "Ann Cruz", s.FullName)

	got, err := m.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "ann", got.Username)
}

func TestResolveFallsBackToStore(t *testing.T) {
	m, _, c, u := setup(t)
	ctx := context.Background()

	s, err := m.Create(ctx, u)
	require.NoError(t, err)

	c.t = c.t.Add(2 * time.Minute) // past the cache TTL
	_, cached := m.cache.Get(s.Token)
	require.False(t, cached)

	got, err := m.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, "ann@x.com", got.Email)
}

func TestResolveRenewsAfterHalfTTL(t *testing.T) {
	m, st, c, u := setup(t)
	ctx := context.Background()

	s, err := m.Create(ctx, u)
	require.NoError(t, err)

	c.t = c.t.Add(3 * time.Hour)
	got, err := m.Resolve(ctx, s.Token)
	require.NoError(t, err)
	assert.Equal(t, c.t.Add(4*time.Hour), got.ExpiresAt)

	c.t = c.t.Add(2 * time.Hour) // past the original expiry
	_, _, err = st.LookupSession(ctx, s.Token, c.t)
	assert.NoError(t, err, "renewal reached the store")
}

func TestResolveRejectsUnknownAndExpired(t *testing.T) {
	m, _, c, u := setup(t)
	ctx := context.Background()

	_, err := m.Resolve(ctx, "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = m.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	s, err := m.Create(ctx, u)
	require.NoError(t, err)
	c.t = c.t.Add(5 * time.Hour)
	_, err = m.Resolve(ctx, s.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestDestroyEvicts(t *testing.T) {
	m, _, _, u := setup(t)
	ctx := context.Background()

	s, err := m.Create(ctx, u)
	require.NoError(t, err)
	require.NoError(t, m.Destroy(ctx, s.Token))

	_, err = m.Resolve(ctx, s.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	assert.NoError(t, m.Destroy(ctx, s.Token))
}

func TestPrune(t *testing.T) {
	m, _, c, u := setup(t)
	ctx := context.Background()

	_, err := m.Create(ctx, u)
	require.NoError(t, err)
	c.t = c.t.Add(5 * time.Hour)

	n, err := m.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, m.cache.Size())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, time.Hour)
	c.Set(Session{Token: "a"})
	c.Set(Session{Token: "b"})
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set(Session{Token: "c"})

	_, ok = c.Get("b")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Size())
}

func TestCacheHonoursSessionExpiry(t *testing.T) {
	now := time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	c := NewCache(10, time.Hour)
	c.now = func() time.Time { return now }

	c.Set(Session{Token: "a", ExpiresAt: now.Add(time.Minute)})
	now = now.Add(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok)
}
