// Package auth implements email/password authentication and opaque
// session tokens for the API.
//
// Sessions are held in memory with an expiry sweep. A session carries the
// user's organization, which is the ONLY source of tenant scope for
// handlers: callers can never supply an organization id directly.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// Sentinel errors returned by Login.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// UserStore is the minimal user lookup the manager needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Session represents an authenticated user session.
type Session struct {
	Token     string      `json:"-"`
	UserID    string      `json:"user_id"`
	OrgID     string      `json:"organization_id"`
	Email     string      `json:"email"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Manager issues and validates sessions.
type Manager struct {
	cfg       config.AuthConfig
	users     UserStore
	sessions  map[string]*Session
	sessionMu sync.RWMutex
}

// NewManager creates a session manager backed by the given user store.
func NewManager(cfg config.AuthConfig, users UserStore) *Manager {
	return &Manager{
		cfg:      cfg,
		users:    users,
		sessions: make(map[string]*Session),
	}
}

// HashPassword returns a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Login verifies credentials and creates a session.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		// Burn a comparison anyway so response time doesn't reveal
		// whether the account exists.
		bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGyiOIbZm0rlcaXK4a5S9cQyOMdS3C9e"), []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := &Session{
		Token:     token,
		UserID:    user.ID,
		OrgID:     user.OrganizationID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(m.cfg.SessionTTL()),
	}

	m.sessionMu.Lock()
	m.sessions[token] = session
	m.sessionMu.Unlock()

	logger.Info("user logged in", "email", user.Email, "org", user.OrganizationID)
	return session, nil
}

// CreateSession registers a session for an already-verified user (signup).
func (m *Manager) CreateSession(user *domain.User) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	session := &Session{
		Token:     token,
		UserID:    user.ID,
		OrgID:     user.OrganizationID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(m.cfg.SessionTTL()),
	}
	m.sessionMu.Lock()
	m.sessions[token] = session
	m.sessionMu.Unlock()
	return session, nil
}

// Logout invalidates the session token, if present.
func (m *Manager) Logout(token string) {
	m.sessionMu.Lock()
	delete(m.sessions, token)
	m.sessionMu.Unlock()
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// SetSessionCookie writes the session cookie on the response.
func (m *Manager) SetSessionCookie(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    s.Token,
		Path:     "/",
		MaxAge:   int(m.cfg.SessionTTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   m.cfg.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// tokenFromRequest extracts the session token from the Authorization
// header (Bearer) or the session cookie.
func (m *Manager) tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(m.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// SessionFromRequest returns the session for the current request, or nil.
func (m *Manager) SessionFromRequest(r *http.Request) *Session {
	token := m.tokenFromRequest(r)
	if token == "" {
		return nil
	}

	m.sessionMu.RLock()
	session, exists := m.sessions[token]
	m.sessionMu.RUnlock()

	if !exists {
		return nil
	}
	if time.Now().After(session.ExpiresAt) {
		m.sessionMu.Lock()
		delete(m.sessions, token)
		m.sessionMu.Unlock()
		return nil
	}
	return session
}

type sessionContextKey struct{}

// WithSession returns a context carrying the session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext returns the session stored by RequireAuth, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionContextKey{}).(*Session); ok {
		return s
	}
	return nil
}

// RequireAuth is middleware that rejects unauthenticated requests with a
// 401 and injects the session into the request context otherwise.
func (m *Manager) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := m.SessionFromRequest(r)
		if session == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

// RequireRole wraps RequireAuth-protected routes with a role check.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := SessionFromContext(r.Context())
			if session == nil || !allowed[session.Role] {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"insufficient role"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CleanupExpiredSessions removes expired sessions. Single-shot: the
// caller owns the schedule.
func (m *Manager) CleanupExpiredSessions() {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	now := time.Now()
	for token, session := range m.sessions {
		if now.After(session.ExpiresAt) {
			delete(m.sessions, token)
		}
	}
}
