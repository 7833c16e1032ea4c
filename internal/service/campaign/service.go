package campaign

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// sendWorkers bounds concurrent deliveries per campaign so a large list
// cannot exhaust the provider's rate limit.
const sendWorkers = 8

// EmailSender delivers a single rendered campaign email.
type EmailSender interface {
	SendCampaign(ctx context.Context, fromName, fromEmail, to, subject, htmlBody string) error
}

// Audience is one contactable person in the organization.
type Audience struct {
	Email     string
	FirstName string
	LastName  string
}

// AudienceLister resolves the organization's recipient list. The postgres
// implementation unions lead and client emails, deduplicated.
type AudienceLister interface {
	Audience(ctx context.Context, orgID string) ([]Audience, error)
}

// Service implements campaign authoring, sending, and engagement tracking.
type Service struct {
	repo     Repository
	audience AudienceLister
	sender   EmailSender
	engine   *liquid.Engine

	// trackingBaseURL is the externally reachable origin for the open
	// pixel and click redirect routes, e.g. "https://crm.example.com".
	trackingBaseURL string
}

// NewService creates a campaign service.
func NewService(repo Repository, audience AudienceLister, sender EmailSender, trackingBaseURL string) *Service {
	return &Service{
		repo:            repo,
		audience:        audience,
		sender:          sender,
		engine:          liquid.NewEngine(),
		trackingBaseURL: strings.TrimRight(trackingBaseURL, "/"),
	}
}

// CreateInput holds the fields for authoring a campaign.
type CreateInput struct {
	Name        string `json:"name"`
	Subject     string `json:"subject"`
	FromName    string `json:"fromName"`
	FromEmail   string `json:"fromEmail"`
	HTMLContent string `json:"htmlContent"`
}

// Create validates the template and persists the campaign as a draft.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.Campaign, error) {
	if in.Name == "" || in.Subject == "" || in.FromEmail == "" || in.HTMLContent == "" {
		return nil, ErrValidation
	}
	if _, err := s.engine.ParseTemplate([]byte(in.HTMLContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c := &domain.Campaign{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Name:           in.Name,
		Subject:        in.Subject,
		FromName:       in.FromName,
		FromEmail:      strings.ToLower(strings.TrimSpace(in.FromEmail)),
		HTMLContent:    in.HTMLContent,
		Status:         domain.CampaignDraft,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a single campaign with derived rates filled in.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	c.ComputeRates()
	return c, nil
}

// List returns the organization's campaigns with derived rates filled in.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.Campaign, error) {
	cs, err := s.repo.List(ctx, orgID)
	if err != nil {
		return nil, err
	}
	for i := range cs {
		cs[i].ComputeRates()
	}
	return cs, nil
}

// Update edits a draft campaign. Changing the template re-validates it.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.Campaign, error) {
	if u.HTMLContent != nil {
		if _, err := s.engine.ParseTemplate([]byte(*u.HTMLContent)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID, id)
}

// Delete removes a campaign and its recipient rows.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	return s.repo.Delete(ctx, orgID, id)
}

// SendResult summarizes a completed send.
type SendResult struct {
	CampaignID string `json:"campaignId"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
}

// Send renders the campaign for every recipient in the organization's
// audience and delivers through the email sender. Each delivery gets a
// recipient row whose id doubles as the open/click tracking token.
// Per-recipient failures are logged and counted; they do not abort the
// send.
func (s *Service) Send(ctx context.Context, orgID, id string) (*SendResult, error) {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CampaignDraft {
		return nil, ErrAlreadySent
	}

	audience, err := s.audience.Audience(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if len(audience) == 0 {
		return nil, ErrNoRecipients
	}

	tmpl, err := s.engine.ParseTemplate([]byte(c.HTMLContent))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := s.repo.SetStatus(ctx, orgID, id, domain.CampaignSending); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	recipients := make([]domain.CampaignRecipient, len(audience))
	for i, a := range audience {
		recipients[i] = domain.CampaignRecipient{
			ID:         uuid.New().String(),
			CampaignID: c.ID,
			Email:      strings.ToLower(a.Email),
			SentAt:     &now,
		}
	}
	if err := s.repo.AddRecipients(ctx, c.ID, recipients); err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		sent   int
		failed int
	)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < sendWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				err := s.deliver(ctx, c, tmpl, audience[i], recipients[i].ID)
				mu.Lock()
				if err != nil {
					failed++
					logger.Error("campaign delivery failed",
						"campaign_id", c.ID, "email", audience[i].Email, "error", err.Error())
				} else {
					sent++
				}
				mu.Unlock()
			}
		}()
	}
	for i := range audience {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := s.repo.SetStatus(ctx, orgID, id, domain.CampaignSent); err != nil {
		return nil, err
	}
	logger.Info("campaign sent", "campaign_id", c.ID, "sent", sent, "failed", failed)
	return &SendResult{CampaignID: c.ID, Sent: sent, Failed: failed}, nil
}

func (s *Service) deliver(ctx context.Context, c *domain.Campaign, tmpl *liquid.Template, a Audience, recipientID string) error {
	bindings := map[string]interface{}{
		"first_name": a.FirstName,
		"last_name":  a.LastName,
		"email":      a.Email,
	}
	html, err := tmpl.Render(bindings)
	if err != nil {
		return err
	}
	body := s.instrumentHTML(string(html), recipientID)
	return s.sender.SendCampaign(ctx, c.FromName, c.FromEmail, a.Email, c.Subject, body)
}

// instrumentHTML rewrites anchor hrefs through the click redirect and
// appends the open-tracking pixel.
func (s *Service) instrumentHTML(html, recipientID string) string {
	if s.trackingBaseURL != "" {
		html = rewriteLinks(html, s.trackingBaseURL, recipientID)
		html += fmt.Sprintf(`<img src="%s/t/open/%s" width="1" height="1" alt="" />`,
			s.trackingBaseURL, recipientID)
	}
	return html
}

func rewriteLinks(html, baseURL, recipientID string) string {
	const marker = `href="`
	var b strings.Builder
	for {
		i := strings.Index(html, marker)
		if i < 0 {
			b.WriteString(html)
			return b.String()
		}
		b.WriteString(html[:i+len(marker)])
		rest := html[i+len(marker):]
		j := strings.IndexByte(rest, '"')
		if j < 0 {
			b.WriteString(rest)
			return b.String()
		}
		target := rest[:j]
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			b.WriteString(fmt.Sprintf("%s/t/click/%s?url=%s", baseURL, recipientID, url.QueryEscape(target)))
		} else {
			b.WriteString(target)
		}
		html = rest[j:]
	}
}

// RecordOpen stamps the open timestamp for a tracking token. Unknown
// tokens are reported but callers typically ignore the error so the
// pixel always renders.
func (s *Service) RecordOpen(ctx context.Context, recipientID string) error {
	return s.repo.MarkOpened(ctx, recipientID)
}

// RecordClick stamps the click (and implied open) timestamps for a
// tracking token.
func (s *Service) RecordClick(ctx context.Context, recipientID string) error {
	return s.repo.MarkClicked(ctx, recipientID)
}
