package lead

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
)

// Scoring constants for the intake probability heuristic.
const (
	scoreBase             = 20
	scorePhoneBonus       = 15
	scoreCompanyBonus     = 15
	scoreBusinessBonus    = 20
	scoreReferralBonus    = 10
	scoreCap              = 100
	referralSource        = "referral"
	businessInterestToken = "business"
)

// Notifier dispatches best-effort welcome messages. Implementations must
// not block; delivery failures are observed through the notifier's own
// outcome log and never surface here.
type Notifier interface {
	WelcomeLead(l *domain.Lead)
}

// Service implements lead intake and lifecycle logic.
type Service struct {
	repo     Repository
	notifier Notifier
}

// NewService creates a lead service. notifier may be nil (no welcome
// messages are sent).
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// CreateInput holds the fields for lead intake.
type CreateInput struct {
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	Company         string  `json:"company"`
	Source          string  `json:"source"`
	ServiceInterest string  `json:"serviceInterest"`
	EstimatedValue  float64 `json:"estimatedValue"`
}

// Score computes the opening probability for a lead: a base value plus
// fixed bonuses for signals that historically correlate with conversion,
// capped at 100.
func Score(in CreateInput) int {
	score := scoreBase
	if in.Phone != "" {
		score += scorePhoneBonus
	}
	if in.Company != "" {
		score += scoreCompanyBonus
	}
	if strings.Contains(strings.ToLower(in.ServiceInterest), businessInterestToken) {
		score += scoreBusinessBonus
	}
	if strings.EqualFold(in.Source, referralSource) {
		score += scoreReferralBonus
	}
	if score > scoreCap {
		score = scoreCap
	}
	return score
}

// Create validates input, scores the lead, persists it, and dispatches a
// welcome notification. The notification is fire-and-forget: its outcome
// is recorded by the notifier, not returned to the caller.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.Lead, error) {
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return nil, ErrValidation
	}

	l := &domain.Lead{
		ID:              uuid.New().String(),
		OrganizationID:  orgID,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:           in.Phone,
		Company:         in.Company,
		Source:          in.Source,
		ServiceInterest: in.ServiceInterest,
		EstimatedValue:  in.EstimatedValue,
		Probability:     Score(in),
		Status:          domain.LeadNew,
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	logger.Info("lead created", "lead_id", l.ID, "email", l.Email, "probability", l.Probability)

	if s.notifier != nil {
		s.notifier.WelcomeLead(l)
	}
	return l, nil
}

// Get returns a single lead.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Lead, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns leads matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Lead, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// Update applies status/stage/assignment changes.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.Lead, error) {
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, orgID, id)
}

// Convert turns a lead into a client and marks the lead WON.
func (s *Service) Convert(ctx context.Context, orgID, id string) (*domain.Client, error) {
	l, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if l.IsClosed() {
		return nil, ErrAlreadyClosed
	}
	return s.repo.ConvertToClient(ctx, orgID, id)
}
