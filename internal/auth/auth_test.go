package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/imrishuroy/go-storefront/internal/users"
)

// memUsers is an in-memory UserStore.
type memUsers struct {
	byID map[string]*users.User
	n    int
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*users.User{}} }

func (m *memUsers) Create(_ context.Context, u users.User) (*users.User, error) {
	for _, existing := range m.byID {
		if existing.Username == u.Username {
			return nil, users.ErrUsernameTaken
		}
	}
	m.n++
	u.ID = fmt.Sprintf("u-%d", m.n)
	if u.Role == "" {
		u.Role = users.RoleUser
	}
	m.byID[u.ID] = &u
	return &u, nil
}

func (m *memUsers) Get(_ context.Context, id string) (*users.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

func (m *memUsers) GetByUsername(_ context.Context, name string) (*users.User, error) {
	for _, u := range m.byID {
		if u.Username == name {
			return u, nil
		}
	}
	return nil, users.ErrNotFound
}

func newTestService() (*Service, *memUsers) {
	store := newMemUsers()
	log, _ := logtest.NewNullLogger()
	return NewService(store, NewTokens("test-secret", time.Hour), log, bcrypt.MinCost), store
}

func TestRegisterThenLogin(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()

	reg, err := s.Register(ctx, "alice", "Secret1", users.RoleUser)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.Token)
	assert.NotEqual(t, "Secret1", store.byID[reg.User.ID].PasswordHash)

	sess, err := s.Login(ctx, "alice", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, sess.User.ID)

	u, err := s.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestRegister_Taken(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	_, err := s.Register(ctx, "alice", "Secret1", users.RoleUser)
	require.NoError(t, err)

	_, err = s.Register(ctx, "alice", "Other22", users.RoleUser)

	assert.ErrorIs(t, err, users.ErrUsernameTaken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	_, err := s.Register(ctx, "alice", "Secret1", users.RoleUser)
	require.NoError(t, err)

	_, err = s.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(ctx, "mallory", "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	s, store := newTestService()
	ctx := context.Background()
	reg, err := s.Register(ctx, "alice", "Secret1", users.RoleUser)
	require.NoError(t, err)
	delete(store.byID, reg.User.ID)

	_, err = s.Authenticate(ctx, reg.Token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Expiry(t *testing.T) {
	tokens := NewTokens("k", time.Minute)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tokens.nowFunc = func() time.Time { return issued }
	tok, err := tokens.Issue(&users.User{ID: "u1"})
	require.NoError(t, err)

	id, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	tokens.nowFunc = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokens_RejectsForeignTokens(t *testing.T) {
	tokens := NewTokens("k", time.Hour)

	other, err := NewTokens("other-key", time.Hour).Issue(&users.User{ID: "u1"})
	require.NoError(t, err)
	_, err = tokens.Verify(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongAudience, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{"someone-else"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("k"))
	require.NoError(t, err)
	_, err = tokens.Verify(wrongAudience)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	l := NewRateLimiter(5, 15*time.Minute, 100)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		ok, _ := l.Allow("10.0.0.1")
		require.True(t, ok, "attempt %d", i+1)
	}
	ok, retry := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 15*time.Minute, retry)

	ok, _ = l.Allow("10.0.0.2")
	assert.True(t, ok, "other clients keep their own window")

	now = now.Add(15 * time.Minute)
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok, "window resets")
}

func TestRateLimiter_EvictsBeyondCapacity(t *testing.T) {
	l := NewRateLimiter(1, time.Hour, 2)

	for _, ip := range []string{"a", "b", "c"} {
		ok, _ := l.Allow(ip)
		require.True(t, ok)
	}

	assert.Equal(t, 2, l.windows.Len())
	ok, _ := l.Allow("a")
	assert.True(t, ok, "evicted key starts a new window")
}
