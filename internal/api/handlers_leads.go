package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
	"github.com/lawsonmobiletax/crm-server/internal/service/lead"
)

// HandleCreateLead captures a new lead and scores it.
//
//	POST /api/leads
func (h *Handlers) HandleCreateLead(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in lead.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	l, err := h.leads.Create(r.Context(), session.OrgID, in)
	switch {
	case errors.Is(err, lead.ErrValidation):
		httputil.BadRequest(w, "firstName, lastName, and email are required")
	case errors.Is(err, lead.ErrDuplicateEmail):
		httputil.Conflict(w, "a lead with this email already exists")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.Created(w, l)
	}
}

// HandleListLeads lists leads with pagination and filters.
//
//	GET /api/leads?status=&search=&limit=&offset=
func (h *Handlers) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	limit, offset := pageParams(r)

	f := lead.ListFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: offset,
	}
	leads, total, err := h.leads.List(r.Context(), session.OrgID, f)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if leads == nil {
		leads = []domain.Lead{}
	}
	httputil.OK(w, listEnvelope{Data: leads, Total: total, Limit: limit, Offset: offset})
}

// HandleGetLead returns a single lead.
//
//	GET /api/leads/{id}
func (h *Handlers) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	l, err := h.leads.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, lead.ErrNotFound) {
		httputil.NotFound(w, "lead not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, l)
}

// HandleUpdateLead applies partial updates to a lead.
//
//	PUT /api/leads/{id}
func (h *Handlers) HandleUpdateLead(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in struct {
		Status         *domain.LeadStatus `json:"status"`
		Stage          *string            `json:"stage"`
		AssignedTo     *string            `json:"assignedTo"`
		EstimatedValue *float64           `json:"estimatedValue"`
		Phone          *string            `json:"phone"`
		Company        *string            `json:"company"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}

	l, err := h.leads.Update(r.Context(), session.OrgID, chi.URLParam(r, "id"), lead.UpdateFields{
		Status:         in.Status,
		Stage:          in.Stage,
		AssignedTo:     in.AssignedTo,
		EstimatedValue: in.EstimatedValue,
		Phone:          in.Phone,
		Company:        in.Company,
	})
	if errors.Is(err, lead.ErrNotFound) {
		httputil.NotFound(w, "lead not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, l)
}

// HandleConvertLead converts a lead into a client.
//
//	POST /api/leads/{id}/convert
func (h *Handlers) HandleConvertLead(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	c, err := h.leads.Convert(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, lead.ErrNotFound):
		httputil.NotFound(w, "lead not found")
	case errors.Is(err, lead.ErrAlreadyClosed):
		httputil.Conflict(w, "lead is already won or lost")
	case errors.Is(err, postgres.ErrDuplicateClient):
		httputil.Conflict(w, "a client with this email already exists")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.Created(w, c)
	}
}
