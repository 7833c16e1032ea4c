package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

type fakeUserStore struct {
	users map[string]*domain.User
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func newTestManager(t *testing.T) (*Manager, *domain.User) {
	t.Helper()
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	user := &domain.User{
		ID:             "user-1",
		OrganizationID: "org-1",
		Email:          "admin@lawsontax.com",
		PasswordHash:   hash,
		Name:           "Admin",
		Role:           domain.RoleAdmin,
	}
	store := &fakeUserStore{users: map[string]*domain.User{user.Email: user}}
	return NewManager(config.AuthConfig{CookieName: "lmt_session", SessionTTLHrs: 1}, store), user
}

func TestLogin(t *testing.T) {
	m, user := newTestManager(t)

	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "org-1", session.OrgID)
	assert.Equal(t, domain.RoleAdmin, session.Role)
	assert.NotEmpty(t, session.Token)
}

func TestLoginWrongPassword(t *testing.T) {
	m, user := newTestManager(t)

	_, err := m.Login(context.Background(), user.Email, "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownUser(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Login(context.Background(), "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSessionFromRequestBearer(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/leads", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)

	got := m.SessionFromRequest(r)
	require.NotNil(t, got)
	assert.Equal(t, session.UserID, got.UserID)
}

func TestSessionFromRequestCookie(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/api/leads", nil)
	r.AddCookie(&http.Cookie{Name: "lmt_session", Value: session.Token})

	got := m.SessionFromRequest(r)
	require.NotNil(t, got)
	assert.Equal(t, "org-1", got.OrgID)
}

func TestExpiredSessionRejected(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	m.sessionMu.Lock()
	m.sessions[session.Token].ExpiresAt = time.Now().Add(-time.Minute)
	m.sessionMu.Unlock()

	r := httptest.NewRequest("GET", "/api/leads", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	assert.Nil(t, m.SessionFromRequest(r))
}

func TestCleanupExpiredSessions(t *testing.T) {
	m, user := newTestManager(t)
	live, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)
	stale, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	m.sessionMu.Lock()
	m.sessions[stale.Token].ExpiresAt = time.Now().Add(-time.Minute)
	m.sessionMu.Unlock()

	before := runtime.NumGoroutine()
	for i := 0; i < 10; i++ {
		m.CleanupExpiredSessions()
	}

	m.sessionMu.RLock()
	_, liveOK := m.sessions[live.Token]
	_, staleOK := m.sessions[stale.Token]
	m.sessionMu.RUnlock()
	assert.True(t, liveOK)
	assert.False(t, staleOK)

	// The sweep runs on the caller's goroutine; ten calls must not leave
	// ten tickers behind.
	assert.Less(t, runtime.NumGoroutine(), before+10)
}

func TestRequireAuth(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	handler := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := SessionFromContext(r.Context())
		require.NotNil(t, s)
		w.WriteHeader(http.StatusOK)
	}))

	// Without a token
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/leads", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// With a token
	rec = httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/leads", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	adminOnly := m.RequireAuth(RequireRole(domain.RoleAdmin)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest("DELETE", "/api/clients/1", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	adminOnly.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Downgrade role and retry
	m.sessionMu.Lock()
	m.sessions[session.Token].Role = domain.RoleStaff
	m.sessionMu.Unlock()

	rec = httptest.NewRecorder()
	r = httptest.NewRequest("DELETE", "/api/clients/1", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	adminOnly.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogout(t *testing.T) {
	m, user := newTestManager(t)
	session, err := m.Login(context.Background(), user.Email, "s3cret")
	require.NoError(t, err)

	m.Logout(session.Token)

	r := httptest.NewRequest("GET", "/api/leads", nil)
	r.Header.Set("Authorization", "Bearer "+session.Token)
	assert.Nil(t, m.SessionFromRequest(r))
}
