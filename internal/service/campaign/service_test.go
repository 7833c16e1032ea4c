package campaign

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

type memRepo struct {
	mu         sync.Mutex
	campaigns  map[string]*domain.Campaign
	recipients map[string]*domain.CampaignRecipient
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns:  make(map[string]*domain.Campaign),
		recipients: make(map[string]*domain.CampaignRecipient),
	}
}

func (m *memRepo) Create(_ context.Context, c *domain.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, orgID, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, ErrNotFound
	}
	cp := *c
	for _, r := range m.recipients {
		if r.CampaignID != id {
			continue
		}
		cp.RecipientCount++
		if r.OpenedAt != nil {
			cp.OpenCount++
		}
		if r.ClickedAt != nil {
			cp.ClickCount++
		}
	}
	return &cp, nil
}

func (m *memRepo) List(ctx context.Context, orgID string) ([]domain.Campaign, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.campaigns))
	for id, c := range m.campaigns {
		if c.OrganizationID == orgID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()
	out := make([]domain.Campaign, 0, len(ids))
	for _, id := range ids {
		c, err := m.Get(ctx, orgID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func (m *memRepo) Update(_ context.Context, orgID, id string, u UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.FromName != nil {
		c.FromName = *u.FromName
	}
	if u.FromEmail != nil {
		c.FromEmail = *u.FromEmail
	}
	if u.HTMLContent != nil {
		c.HTMLContent = *u.HTMLContent
	}
	return nil
}

func (m *memRepo) Delete(_ context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) SetStatus(_ context.Context, orgID, id string, status domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) AddRecipients(_ context.Context, campaignID string, recipients []domain.CampaignRecipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range recipients {
		cp := recipients[i]
		m.recipients[cp.ID] = &cp
	}
	return nil
}

func (m *memRepo) Recipients(_ context.Context, campaignID string) ([]domain.CampaignRecipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CampaignRecipient
	for _, r := range m.recipients {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) MarkOpened(_ context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[recipientID]
	if !ok {
		return ErrRecipientNotFound
	}
	if r.OpenedAt == nil {
		now := time.Now().UTC()
		r.OpenedAt = &now
	}
	return nil
}

func (m *memRepo) MarkClicked(_ context.Context, recipientID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[recipientID]
	if !ok {
		return ErrRecipientNotFound
	}
	now := time.Now().UTC()
	if r.OpenedAt == nil {
		r.OpenedAt = &now
	}
	if r.ClickedAt == nil {
		r.ClickedAt = &now
	}
	return nil
}

type staticAudience []Audience

func (a staticAudience) Audience(context.Context, string) ([]Audience, error) {
	return a, nil
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []sentEmail
	failTo string
}

type sentEmail struct {
	to      string
	subject string
	body    string
}

func (r *recordingSender) SendCampaign(_ context.Context, _, _, to, subject, htmlBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if to == r.failTo {
		return errors.New("smtp 554")
	}
	r.sent = append(r.sent, sentEmail{to: to, subject: subject, body: htmlBody})
	return nil
}

const testBaseURL = "https://crm.example.com"

func newTestService(repo *memRepo, audience AudienceLister, sender EmailSender) *Service {
	return NewService(repo, audience, sender, testBaseURL)
}

func TestCreateValidatesTemplate(t *testing.T) {
	svc := newTestService(newMemRepo(), staticAudience{}, &recordingSender{})

	_, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "Q1", Subject: "Hi", FromEmail: "tax@example.com",
		HTMLContent: "{% if %}broken",
	})
	assert.ErrorIs(t, err, ErrValidation)

	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "Q1", Subject: "Hi", FromEmail: "Tax@Example.com ",
		HTMLContent: "<p>Hello {{ first_name }}</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, "tax@example.com", c.FromEmail)
}

func TestCreateRequiresFields(t *testing.T) {
	svc := newTestService(newMemRepo(), staticAudience{}, &recordingSender{})
	_, err := svc.Create(context.Background(), "org-1", CreateInput{Name: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSendPersonalizesAndTracks(t *testing.T) {
	repo := newMemRepo()
	sender := &recordingSender{}
	audience := staticAudience{
		{Email: "ana@example.com", FirstName: "Ana", LastName: "Diaz"},
		{Email: "bob@example.com", FirstName: "Bob", LastName: "Lee"},
	}
	svc := newTestService(repo, audience, sender)

	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "Season opener", Subject: "Tax season", FromEmail: "tax@example.com",
		HTMLContent: `<p>Hi {{ first_name }}</p><a href="https://lawsonmobiletax.com/book">Book</a>`,
	})
	require.NoError(t, err)

	res, err := svc.Send(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)

	got, err := svc.Get(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignSent, got.Status)
	assert.Equal(t, 2, got.RecipientCount)

	require.Len(t, sender.sent, 2)
	byTo := map[string]sentEmail{}
	for _, e := range sender.sent {
		byTo[e.to] = e
	}
	ana := byTo["ana@example.com"]
	assert.Contains(t, ana.body, "Hi Ana")
	assert.Contains(t, ana.body, testBaseURL+"/t/open/")
	assert.Contains(t, ana.body, testBaseURL+"/t/click/")
	assert.Contains(t, ana.body, "url=https%3A%2F%2Flawsonmobiletax.com%2Fbook")
	assert.NotContains(t, ana.body, `href="https://lawsonmobiletax.com/book"`)
}

func TestSendCountsFailures(t *testing.T) {
	repo := newMemRepo()
	sender := &recordingSender{failTo: "bad@example.com"}
	audience := staticAudience{
		{Email: "ok@example.com", FirstName: "Ok"},
		{Email: "bad@example.com", FirstName: "Bad"},
	}
	svc := newTestService(repo, audience, sender)

	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "n", Subject: "s", FromEmail: "f@example.com", HTMLContent: "<p>hi</p>",
	})
	require.NoError(t, err)

	res, err := svc.Send(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
}

func TestSendRejectsResend(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, staticAudience{{Email: "a@example.com"}}, &recordingSender{})

	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "n", Subject: "s", FromEmail: "f@example.com", HTMLContent: "<p>hi</p>",
	})
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "org-1", c.ID)
	assert.ErrorIs(t, err, ErrAlreadySent)
}

func TestSendEmptyAudience(t *testing.T) {
	svc := newTestService(newMemRepo(), staticAudience{}, &recordingSender{})
	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "n", Subject: "s", FromEmail: "f@example.com", HTMLContent: "<p>hi</p>",
	})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "org-1", c.ID)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestDerivedRates(t *testing.T) {
	repo := newMemRepo()
	audience := staticAudience{
		{Email: "a@example.com"}, {Email: "b@example.com"},
		{Email: "c@example.com"}, {Email: "d@example.com"},
	}
	svc := newTestService(repo, audience, &recordingSender{})

	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "n", Subject: "s", FromEmail: "f@example.com", HTMLContent: "<p>hi</p>",
	})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "org-1", c.ID)
	require.NoError(t, err)

	recips, err := repo.Recipients(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, recips, 4)

	// Two opens, one of them a click. A click implies an open.
	require.NoError(t, svc.RecordOpen(context.Background(), recips[0].ID))
	require.NoError(t, svc.RecordClick(context.Background(), recips[1].ID))

	got, err := svc.Get(context.Background(), "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.OpenCount)
	assert.Equal(t, 1, got.ClickCount)
	assert.InDelta(t, 50.0, got.OpenRate, 0.001)
	assert.InDelta(t, 25.0, got.ClickRate, 0.001)
}

func TestTrackingUnknownToken(t *testing.T) {
	svc := newTestService(newMemRepo(), staticAudience{}, &recordingSender{})
	assert.ErrorIs(t, svc.RecordOpen(context.Background(), "nope"), ErrRecipientNotFound)
	assert.ErrorIs(t, svc.RecordClick(context.Background(), "nope"), ErrRecipientNotFound)
}

func TestCrossOrgIsolation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo, staticAudience{}, &recordingSender{})
	c, err := svc.Create(context.Background(), "org-1", CreateInput{
		Name: "n", Subject: "s", FromEmail: "f@example.com", HTMLContent: "<p>hi</p>",
	})
	require.NoError(t, err)
	_, err = svc.Get(context.Background(), "org-2", c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "org-2", c.ID), ErrNotFound)
}

func TestRewriteLinksLeavesRelativeAndAnchors(t *testing.T) {
	out := rewriteLinks(`<a href="#top">x</a><a href="/local">y</a><a href="https://x.com/a">z</a>`,
		testBaseURL, "rid-1")
	assert.Contains(t, out, `href="#top"`)
	assert.Contains(t, out, `href="/local"`)
	assert.True(t, strings.Contains(out, testBaseURL+"/t/click/rid-1?url=https%3A%2F%2Fx.com%2Fa"))
}
