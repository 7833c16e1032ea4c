package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
)

// HandleCreateClient onboards a client directly, without a lead.
//
//	POST /api/clients
func (h *Handlers) HandleCreateClient(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in struct {
		FirstName string            `json:"firstName"`
		LastName  string            `json:"lastName"`
		Email     string            `json:"email"`
		Phone     string            `json:"phone"`
		Type      domain.ClientType `json:"type"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		httputil.BadRequest(w, "firstName, lastName, and email are required")
		return
	}
	if in.Type == "" {
		in.Type = domain.ClientIndividual
	}
	if in.Type != domain.ClientIndividual && in.Type != domain.ClientBusiness {
		httputil.BadRequest(w, "type must be individual or business")
		return
	}

	c := &domain.Client{
		ID:             uuid.New().String(),
		OrganizationID: session.OrgID,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:          in.Phone,
		Type:           in.Type,
		Status:         domain.ClientActive,
	}
	if err := h.clients.Create(r.Context(), c); err != nil {
		if errors.Is(err, postgres.ErrDuplicateClient) {
			httputil.Conflict(w, "a client with this email already exists")
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

// HandleListClients lists clients with pagination and search.
//
//	GET /api/clients?status=&search=&limit=&offset=
func (h *Handlers) HandleListClients(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	limit, offset := pageParams(r)

	clients, total, err := h.clients.List(r.Context(), session.OrgID, postgres.ClientFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if clients == nil {
		clients = []domain.Client{}
	}
	httputil.OK(w, listEnvelope{Data: clients, Total: total, Limit: limit, Offset: offset})
}

// HandleGetClient returns a single client.
//
//	GET /api/clients/{id}
func (h *Handlers) HandleGetClient(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	c, err := h.clients.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrClientNotFound) {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleUpdateClient applies partial updates to a client.
//
//	PUT /api/clients/{id}
func (h *Handlers) HandleUpdateClient(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var in struct {
		FirstName *string              `json:"firstName"`
		LastName  *string              `json:"lastName"`
		Email     *string              `json:"email"`
		Phone     *string              `json:"phone"`
		Type      *domain.ClientType   `json:"type"`
		Status    *domain.ClientStatus `json:"status"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}

	err := h.clients.Update(r.Context(), session.OrgID, id, postgres.ClientUpdateFields{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Email:     in.Email,
		Phone:     in.Phone,
		Type:      in.Type,
		Status:    in.Status,
	})
	if errors.Is(err, postgres.ErrClientNotFound) {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	c, err := h.clients.Get(r.Context(), session.OrgID, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleDeleteClient removes a client.
//
//	DELETE /api/clients/{id}
func (h *Handlers) HandleDeleteClient(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	err := h.clients.Delete(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrClientNotFound) {
		httputil.NotFound(w, "client not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
