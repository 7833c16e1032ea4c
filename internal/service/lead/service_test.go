package lead_test

import (
	"context"
	"sync"
	"testing"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/service/lead"
)

// memRepo is an in-memory lead repository for unit testing.
type memRepo struct {
	mu    sync.Mutex
	leads map[string]*domain.Lead // keyed by id
}

func newMemRepo() *memRepo {
	return &memRepo{leads: make(map[string]*domain.Lead)}
}

func (m *memRepo) Get(_ context.Context, orgID, id string) (*domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, lead.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, orgID string, f lead.ListFilter) ([]domain.Lead, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lead
	for _, l := range m.leads {
		if l.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		out = append(out, *l)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, l *domain.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.leads {
		if existing.OrganizationID == l.OrganizationID && existing.Email == l.Email {
			return lead.ErrDuplicateEmail
		}
	}
	cp := *l
	m.leads[cp.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, orgID, id string, u lead.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return lead.ErrNotFound
	}
	if u.Status != nil {
		l.Status = *u.Status
	}
	if u.Stage != nil {
		l.Stage = *u.Stage
	}
	if u.AssignedTo != nil {
		l.AssignedTo = u.AssignedTo
	}
	return nil
}

func (m *memRepo) ConvertToClient(_ context.Context, orgID, id string) (*domain.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, lead.ErrNotFound
	}
	l.Status = domain.LeadWon
	return &domain.Client{
		ID:             "client-" + id,
		OrganizationID: orgID,
		FirstName:      l.FirstName,
		LastName:       l.LastName,
		Email:          l.Email,
		Type:           domain.ClientIndividual,
		Status:         domain.ClientActive,
		ConvertedFrom:  &id,
	}, nil
}

// recordingNotifier captures welcome dispatches.
type recordingNotifier struct {
	mu    sync.Mutex
	leads []string
}

func (n *recordingNotifier) WelcomeLead(l *domain.Lead) {
	n.mu.Lock()
	n.leads = append(n.leads, l.ID)
	n.mu.Unlock()
}

const testOrg = "org-1"

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		input lead.CreateInput
		want  int
	}{
		{"base only", lead.CreateInput{FirstName: "A", LastName: "B", Email: "a@b.com"}, 20},
		{"phone", lead.CreateInput{Email: "a@b.com", Phone: "555-0100"}, 35},
		{"phone and company", lead.CreateInput{Email: "a@b.com", Phone: "555-0100", Company: "Acme"}, 50},
		{"business interest", lead.CreateInput{Email: "a@b.com", ServiceInterest: "Business Tax Filing"}, 40},
		{"referral", lead.CreateInput{Email: "a@b.com", Source: "referral"}, 30},
		{"referral case-insensitive", lead.CreateInput{Email: "a@b.com", Source: "Referral"}, 30},
		{"all bonuses", lead.CreateInput{
			Email: "a@b.com", Phone: "555-0100", Company: "Acme",
			ServiceInterest: "business services", Source: "referral",
		}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lead.Score(tt.input); got != tt.want {
				t.Fatalf("Score() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestScoreMonotone(t *testing.T) {
	base := lead.CreateInput{FirstName: "A", LastName: "B", Email: "a@b.com"}
	prev := lead.Score(base)

	withPhone := base
	withPhone.Phone = "555-0100"
	if s := lead.Score(withPhone); s < prev {
		t.Fatalf("adding phone lowered score: %d < %d", s, prev)
	} else {
		prev = s
	}

	withCompany := withPhone
	withCompany.Company = "Acme"
	if s := lead.Score(withCompany); s < prev {
		t.Fatalf("adding company lowered score: %d < %d", s, prev)
	} else {
		prev = s
	}

	withInterest := withCompany
	withInterest.ServiceInterest = "business"
	if s := lead.Score(withInterest); s < prev {
		t.Fatalf("adding interest lowered score: %d < %d", s, prev)
	} else {
		prev = s
	}

	withReferral := withInterest
	withReferral.Source = "referral"
	s := lead.Score(withReferral)
	if s < prev {
		t.Fatalf("adding referral lowered score: %d < %d", s, prev)
	}
	if s > 100 {
		t.Fatalf("score exceeds cap: %d", s)
	}
}

func TestCreate(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := lead.NewService(newMemRepo(), notifier)

	l, err := svc.Create(context.Background(), testOrg, lead.CreateInput{
		FirstName: "A", LastName: "B", Email: "a@b.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Probability != 20 {
		t.Fatalf("expected probability 20, got %d", l.Probability)
	}
	if l.Status != domain.LeadNew {
		t.Fatalf("expected NEW, got %s", l.Status)
	}
	if len(notifier.leads) != 1 {
		t.Fatalf("expected 1 welcome dispatch, got %d", len(notifier.leads))
	}
}

func TestCreateValidation(t *testing.T) {
	svc := lead.NewService(newMemRepo(), nil)

	cases := []lead.CreateInput{
		{LastName: "B", Email: "a@b.com"},
		{FirstName: "A", Email: "a@b.com"},
		{FirstName: "A", LastName: "B"},
	}
	for _, in := range cases {
		if _, err := svc.Create(context.Background(), testOrg, in); err != lead.ErrValidation {
			t.Fatalf("expected ErrValidation for %+v, got %v", in, err)
		}
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	svc := lead.NewService(newMemRepo(), nil)

	in := lead.CreateInput{FirstName: "A", LastName: "B", Email: "dup@b.com"}
	if _, err := svc.Create(context.Background(), testOrg, in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), testOrg, in); err != lead.ErrDuplicateEmail {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestEmailNormalized(t *testing.T) {
	svc := lead.NewService(newMemRepo(), nil)

	l, err := svc.Create(context.Background(), testOrg, lead.CreateInput{
		FirstName: "A", LastName: "B", Email: "  MiXeD@B.Com ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Email != "mixed@b.com" {
		t.Fatalf("expected normalized email, got %q", l.Email)
	}
}

func TestConvert(t *testing.T) {
	repo := newMemRepo()
	svc := lead.NewService(repo, nil)

	l, _ := svc.Create(context.Background(), testOrg, lead.CreateInput{
		FirstName: "A", LastName: "B", Email: "a@b.com",
	})

	c, err := svc.Convert(context.Background(), testOrg, l.ID)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if c.ConvertedFrom == nil || *c.ConvertedFrom != l.ID {
		t.Fatal("client not linked to originating lead")
	}

	got, _ := svc.Get(context.Background(), testOrg, l.ID)
	if got.Status != domain.LeadWon {
		t.Fatalf("expected WON after convert, got %s", got.Status)
	}

	// A closed lead cannot be converted again
	if _, err := svc.Convert(context.Background(), testOrg, l.ID); err != lead.ErrAlreadyClosed {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}
}

func TestCrossOrgIsolation(t *testing.T) {
	repo := newMemRepo()
	svc := lead.NewService(repo, nil)

	l, _ := svc.Create(context.Background(), testOrg, lead.CreateInput{
		FirstName: "A", LastName: "B", Email: "a@b.com",
	})

	if _, err := svc.Get(context.Background(), "org-other", l.ID); err != lead.ErrNotFound {
		t.Fatalf("expected ErrNotFound across orgs, got %v", err)
	}
}
