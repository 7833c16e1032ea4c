package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// HandleLogin verifies credentials and issues a session.
//
//	POST /api/auth/login
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}

	session, err := h.auth.Login(r.Context(), in.Email, in.Password)
	if err == auth.ErrInvalidCredentials {
		httputil.Unauthorized(w, "invalid email or password")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	h.auth.SetSessionCookie(w, session)
	httputil.OK(w, map[string]interface{}{
		"token":   session.Token,
		"session": session,
	})
}

// HandleLogout invalidates the current session.
//
//	POST /api/auth/logout
func (h *Handlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(h.auth.CookieName()); err == nil {
		h.auth.Logout(c.Value)
	}
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, "Bearer ") {
		h.auth.Logout(strings.TrimPrefix(v, "Bearer "))
	}
	h.auth.ClearSessionCookie(w)
	httputil.NoContent(w)
}

// HandleMe returns the authenticated session.
//
//	GET /api/auth/me
func (h *Handlers) HandleMe(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, auth.SessionFromContext(r.Context()))
}

// HandleSignup creates a new organization with its first admin user and
// logs them in.
//
//	POST /api/auth/signup
func (h *Handlers) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OrganizationName string `json:"organizationName"`
		Name             string `json:"name"`
		Email            string `json:"email"`
		Password         string `json:"password"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.OrganizationName == "" || in.Email == "" || in.Name == "" {
		httputil.BadRequest(w, "organizationName, name, and email are required")
		return
	}
	if len(in.Password) < 8 {
		httputil.BadRequest(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	org := &domain.Organization{
		Name: in.OrganizationName,
		Slug: slugify(in.OrganizationName),
	}
	user := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		Role:         domain.RoleAdmin,
	}
	if err := h.accounts.CreateOrganizationWithAdmin(r.Context(), org, user); err != nil {
		switch err {
		case postgres.ErrDuplicateUser:
			httputil.Conflict(w, "a user with this email already exists")
		case postgres.ErrDuplicateSlug:
			httputil.Conflict(w, "an organization with this name already exists")
		default:
			httputil.InternalError(w, err)
		}
		return
	}

	session, err := h.auth.CreateSession(user)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	h.auth.SetSessionCookie(w, session)
	httputil.Created(w, map[string]interface{}{
		"token":        session.Token,
		"session":      session,
		"organization": org,
	})
}

func slugify(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}
