package api

import (
	"errors"
	"net/http"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/service/payment"
)

// HandleCreatePaymentSession opens a checkout session. The route is
// public so the marketing site can sell flat-fee services: with a valid
// session the payment belongs to the caller's organization; without one
// only the public service descriptions are accepted and the payment is
// attributed to the platform organization.
//
//	POST /api/payments/create-session
func (h *Handlers) HandleCreatePaymentSession(w http.ResponseWriter, r *http.Request) {
	var in payment.CreateSessionInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	if session := h.auth.SessionFromRequest(r); session != nil {
		res, err := h.payments.CreateSession(r.Context(), session.OrgID, in)
		h.writeSessionResult(w, res, err)
		return
	}

	if !payment.AnonymousAllowed(in.Description) {
		httputil.Unauthorized(w, "this service requires an account")
		return
	}
	if h.anonOrgID == "" {
		httputil.Error(w, http.StatusServiceUnavailable, "public checkout is not available")
		return
	}
	// Anonymous payments never reference tenant records.
	in.ClientID = ""
	in.TaxReturnID = ""

	res, err := h.payments.CreateSession(r.Context(), h.anonOrgID, in)
	h.writeSessionResult(w, res, err)
}

func (h *Handlers) writeSessionResult(w http.ResponseWriter, res *payment.SessionResult, err error) {
	switch {
	case errors.Is(err, payment.ErrInvalidAmount):
		httputil.BadRequest(w, "amount must be greater than zero")
	case errors.Is(err, payment.ErrMissingDesc):
		httputil.BadRequest(w, "description is required")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.Created(w, res)
	}
}

// HandleVerifyPaymentSession reports whether a checkout session settled.
// Public: the success page calls this before any login.
//
//	GET /api/payments/verify-session?session_id=...
func (h *Handlers) HandleVerifyPaymentSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		httputil.BadRequest(w, "session_id is required")
		return
	}

	res, err := h.payments.VerifySession(r.Context(), sessionID)
	switch {
	case errors.Is(err, payment.ErrSessionNotFound), errors.Is(err, payment.ErrNotFound):
		httputil.NotFound(w, "checkout session not found")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}

// HandleListPayments lists the organization's payments.
//
//	GET /api/payments?limit=&offset=
func (h *Handlers) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())
	limit, offset := pageParams(r)

	payments, total, err := h.payments.List(r.Context(), session.OrgID, limit, offset)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	httputil.OK(w, listEnvelope{Data: payments, Total: total, Limit: limit, Offset: offset})
}
