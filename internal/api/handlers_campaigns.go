package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/lawsonmobiletax/crm-server/internal/auth"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/httputil"
	"github.com/lawsonmobiletax/crm-server/internal/service/campaign"
)

// HandleCreateCampaign authors a new draft campaign.
//
//	POST /api/campaigns
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in campaign.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}

	c, err := h.campaigns.Create(r.Context(), session.OrgID, in)
	if errors.Is(err, campaign.ErrValidation) {
		httputil.BadRequest(w, err.Error())
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, c)
}

// HandleListCampaigns lists campaigns with derived engagement rates.
//
//	GET /api/campaigns
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	cs, err := h.campaigns.List(r.Context(), session.OrgID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": cs})
}

// HandleGetCampaign returns a single campaign with derived rates.
//
//	GET /api/campaigns/{id}
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	c, err := h.campaigns.Get(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, c)
}

// HandleUpdateCampaign edits a draft campaign.
//
//	PUT /api/campaigns/{id}
func (h *Handlers) HandleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	var in struct {
		Name        *string `json:"name"`
		Subject     *string `json:"subject"`
		FromName    *string `json:"fromName"`
		FromEmail   *string `json:"fromEmail"`
		HTMLContent *string `json:"htmlContent"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}

	c, err := h.campaigns.Update(r.Context(), session.OrgID, chi.URLParam(r, "id"), campaign.UpdateFields{
		Name:        in.Name,
		Subject:     in.Subject,
		FromName:    in.FromName,
		FromEmail:   in.FromEmail,
		HTMLContent: in.HTMLContent,
	})
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrValidation):
		httputil.BadRequest(w, err.Error())
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, c)
	}
}

// HandleDeleteCampaign removes a campaign.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	err := h.campaigns.Delete(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	if errors.Is(err, campaign.ErrNotFound) {
		httputil.NotFound(w, "campaign not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.NoContent(w)
}

// HandleSendCampaign dispatches a campaign to the organization's
// audience.
//
//	POST /api/campaigns/{id}/send
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	session := auth.SessionFromContext(r.Context())

	res, err := h.campaigns.Send(r.Context(), session.OrgID, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, campaign.ErrNotFound):
		httputil.NotFound(w, "campaign not found")
	case errors.Is(err, campaign.ErrAlreadySent):
		httputil.Conflict(w, "campaign has already been sent")
	case errors.Is(err, campaign.ErrNoRecipients):
		httputil.Error(w, http.StatusUnprocessableEntity, "no contactable recipients")
	case err != nil:
		httputil.InternalError(w, err)
	default:
		httputil.OK(w, res)
	}
}

// trackingPixel is a 1x1 transparent GIF.
var trackingPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// HandleTrackOpen records an email open and always serves the pixel,
// even for unknown tokens.
//
//	GET /t/open/{recipientID}
func (h *Handlers) HandleTrackOpen(w http.ResponseWriter, r *http.Request) {
	_ = h.campaigns.RecordOpen(r.Context(), chi.URLParam(r, "recipientID"))

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(trackingPixel)
}

// HandleTrackClick records a click and redirects to the wrapped target.
// Only absolute http(s) targets are followed.
//
//	GET /t/click/{recipientID}?url=...
func (h *Handlers) HandleTrackClick(w http.ResponseWriter, r *http.Request) {
	_ = h.campaigns.RecordClick(r.Context(), chi.URLParam(r, "recipientID"))

	target := r.URL.Query().Get("url")
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		httputil.BadRequest(w, "invalid redirect target")
		return
	}
	http.Redirect(w, r, u.String(), http.StatusFound)
}
