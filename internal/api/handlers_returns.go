package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/repository/postgres"
)

// HandleCreateReturn opens a new tax return for a client.
//
//	POST /api/tax-returns
func (h *Handlers) HandleCreateReturn(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in struct {
		ClientID   string `json:"clientId"`
		TaxYear    int    `json:"taxYear"`
		ReturnType string `json:"returnType"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	if in.ClientID == "" || in.TaxYear == 0 {
		httputil.BadRequest(w, "clientId and taxYear are required")
		return
	}
	if in.TaxYear < 2000 || in.TaxYear > time.Now().Year()+1 {
		httputil.BadRequest(w, "taxYear out of range")
		return
	}
	if in.ReturnType == "" {
		in.ReturnType = "1040"
	}

	// The client must exist in the caller's organization.
	if _, err := h.clients.Get(r.Context(), session.OrgID, in.ClientID); err != nil {
		if errors.Is(err, postgres.ErrClientNotFound) {
			httputil.NotFound(w, "client not found")
			return
		}
		httputil.InternalError(w, err)
		return
	}

	t := &domain.TaxReturn{
		ID:             uuid.New().String(),
		OrganizationID: session.OrgID,
		ClientID:       in.ClientID,
		TaxYear:        in.TaxYear,
		ReturnType:     in.ReturnType,
		Status:         domain.ReturnDraft,
	}
	if err := h.returns.Create(r.Context(), t); err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, t)
}

// HandleListReturns lists tax returns with filters.
//
//	GET /api/tax-returns?clientId=&status=&taxYear=&limit=&offset=
func (h *Handlers) HandleListReturns(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	limit, offset := pageParams(r)

	year := 0
	if v := r.URL.Query().Get("taxYear"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			year = n
		}
	}

	returns, total, err := h.returns.List(r.Context(), session.OrgID, postgres.ReturnFilter{
		ClientID: r.URL.Query().Get("clientId"),
		Status:   r.URL.Query().Get("status"),
		TaxYear:  year,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if returns == nil {
		returns = []domain.TaxReturn{}
	}
	httputil.OK(w, listEnvelope{Data: returns, Total: total, Limit: limit, Offset: offset})
}

// HandleGetReturn returns a single tax return.
//
//	GET /api/tax-returns/{id}
func (h *Handlers) HandleGetReturn(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	t, err := h.returns.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrReturnNotFound) {
		httputil.NotFound(w, "tax return not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// HandleUpdateReturn applies updates to a tax return. Status changes are
// validated against the filing workflow: forward-only, except a reviewer
// sending work back from under_review to in_progress.
//
//	PUT /api/tax-returns/{id}
func (h *Handlers) HandleUpdateReturn(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var in struct {
		Status       *domain.ReturnStatus `json:"status"`
		ReturnType   *string              `json:"returnType"`
		RefundAmount *float64             `json:"refundAmount"`
		BalanceDue   *float64             `json:"balanceDue"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}

	if in.Status != nil {
		current, err := h.returns.Get(r.Context(), session.OrgID, id)
		if errors.Is(err, postgres.ErrReturnNotFound) {
			httputil.NotFound(w, "tax return not found")
			return
		}
		if err != nil {
			httputil.InternalError(w, err)
			return
		}
		if !current.Status.CanTransitionTo(*in.Status) {
			httputil.BadRequest(w,
				fmt.Sprintf("cannot move return from %s to %s", current.Status, *in.Status))
			return
		}
	}

	err := h.returns.Update(r.Context(), session.OrgID, id, postgres.ReturnUpdateFields{
		Status:       in.Status,
		ReturnType:   in.ReturnType,
		RefundAmount: in.RefundAmount,
		BalanceDue:   in.BalanceDue,
	})
	if errors.Is(err, postgres.ErrReturnNotFound) {
		httputil.NotFound(w, "tax return not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}

	t, err := h.returns.Get(r.Context(), session.OrgID, id)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, t)
}

// HandleDeleteReturn removes a tax return.
//
//	DELETE /api/tax-returns/{id}
func (h *Handlers) HandleDeleteReturn(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	err := h.returns.Delete(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, postgres.ErrReturnNotFound) {
		httputil.NotFound(w, "tax return not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}
