package payment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/pkg/logger"
	"github.com/lawsonmobiletax/crm-server/internal/stripe"
)

// Mock settlement fee: flat percentage plus fixed cents, mirroring the
// provider's published card rate so mock totals match live ones.
const (
	mockFeeRate  = 0.029
	mockFeeFixed = 0.30
)

// anonymousExactDesc and anonymousDescToken gate unauthenticated payment
// creation: only the fixed evaluation product and service payments may be
// paid without a session.
const (
	anonymousExactDesc = "Expert Tax Evaluation"
	anonymousDescToken = "Tax Service"
)

// CheckoutProvider is the live-provider contract, satisfied by
// *stripe.Client.
type CheckoutProvider interface {
	CreateCheckoutSession(ctx context.Context, p stripe.CreateSessionParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*stripe.CheckoutSession, error)
}

// Service implements payment session creation and verification.
type Service struct {
	repo     Repository
	provider CheckoutProvider // nil in mock mode
	cfg      config.PaymentConfig
}

// NewService creates a payment service. provider must be non-nil when
// cfg.Mode is live, and is ignored in mock mode.
func NewService(repo Repository, provider CheckoutProvider, cfg config.PaymentConfig) *Service {
	return &Service{repo: repo, provider: provider, cfg: cfg}
}

// Mode returns the strategy the service was constructed with.
func (s *Service) Mode() config.PaymentMode { return s.cfg.Mode }

// MockFee returns the simulated processing fee for an amount, rounded to
// cents.
func MockFee(amount float64) float64 {
	return math.Round((amount*mockFeeRate+mockFeeFixed)*100) / 100
}

// AnonymousAllowed reports whether a payment with this description may be
// created without an authenticated session.
func AnonymousAllowed(description string) bool {
	return description == anonymousExactDesc || strings.Contains(description, anonymousDescToken)
}

// CreateSessionInput holds the fields for creating a checkout session.
type CreateSessionInput struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	ClientID    string  `json:"clientId"`
	TaxReturnID string  `json:"taxReturnId"`
}

// SessionResult is returned to the caller for redirecting to checkout.
type SessionResult struct {
	SessionID string          `json:"sessionId"`
	URL       string          `json:"url"`
	Payment   *domain.Payment `json:"payment"`
}

// CreateSession creates a checkout session. In mock mode the payment is
// settled immediately with a deterministic fee; in live mode a hosted
// Stripe session is created and a pending row is persisted for later
// reconciliation.
func (s *Service) CreateSession(ctx context.Context, orgID string, in CreateSessionInput) (*SessionResult, error) {
	if in.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if in.Description == "" {
		return nil, ErrMissingDesc
	}

	p := &domain.Payment{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Amount:         in.Amount,
		Currency:       s.cfg.Currency,
		Description:    in.Description,
	}
	if in.ClientID != "" {
		p.ClientID = &in.ClientID
	}
	if in.TaxReturnID != "" {
		p.TaxReturnID = &in.TaxReturnID
	}

	if s.cfg.Mode == config.PaymentModeMock {
		return s.createMockSession(ctx, p)
	}
	return s.createLiveSession(ctx, p, in)
}

func (s *Service) createMockSession(ctx context.Context, p *domain.Payment) (*SessionResult, error) {
	now := time.Now()
	p.Fee = MockFee(p.Amount)
	p.NetAmount = math.Round((p.Amount-p.Fee)*100) / 100
	p.Status = domain.PaymentCompleted
	p.ProviderSessionID = "mock_" + uuid.New().String()
	p.Mock = true
	p.CompletedAt = &now

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist mock payment: %w", err)
	}

	logger.Info("mock payment settled",
		"session_id", p.ProviderSessionID, "amount", p.Amount, "net", p.NetAmount)

	return &SessionResult{
		SessionID: p.ProviderSessionID,
		URL:       s.cfg.SuccessURL + "?session_id=" + p.ProviderSessionID,
		Payment:   p,
	}, nil
}

func (s *Service) createLiveSession(ctx context.Context, p *domain.Payment, in CreateSessionInput) (*SessionResult, error) {
	metadata := map[string]string{
		"organization_id": p.OrganizationID,
		"payment_id":      p.ID,
	}
	if p.ClientID != nil {
		metadata["client_id"] = *p.ClientID
	}
	if p.TaxReturnID != nil {
		metadata["tax_return_id"] = *p.TaxReturnID
	}

	session, err := s.provider.CreateCheckoutSession(ctx, stripe.CreateSessionParams{
		AmountCents: int64(math.Round(p.Amount * 100)),
		Currency:    s.cfg.Currency,
		Description: in.Description,
		SuccessURL:  s.cfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.cfg.CancelURL,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	p.Status = domain.PaymentPending
	p.ProviderSessionID = session.ID
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}

	logger.Info("checkout session created", "session_id", session.ID, "amount", p.Amount)

	return &SessionResult{SessionID: session.ID, URL: session.URL, Payment: p}, nil
}

// VerifyResult reports the settlement state of a checkout session.
type VerifyResult struct {
	SessionID string          `json:"sessionId"`
	Completed bool            `json:"completed"`
	Payment   *domain.Payment `json:"payment,omitempty"`
}

// VerifySession checks the provider for the session's payment status.
// Mock mode always reports success — this is the documented demo shortcut.
// Live mode distinguishes an unknown session (ErrSessionNotFound) from one
// that simply hasn't been paid yet (Completed=false).
func (s *Service) VerifySession(ctx context.Context, sessionID string) (*VerifyResult, error) {
	if s.cfg.Mode == config.PaymentModeMock {
		res := &VerifyResult{SessionID: sessionID, Completed: true}
		if p, err := s.repo.GetBySessionID(ctx, sessionID); err == nil {
			res.Payment = p
		}
		return res, nil
	}

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if stripe.IsResourceMissing(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("fetch checkout session: %w", err)
	}

	if session.PaymentStatus != "paid" {
		return &VerifyResult{SessionID: sessionID, Completed: false}, nil
	}

	if err := s.repo.MarkCompleted(ctx, sessionID); err != nil && err != ErrNotFound {
		return nil, fmt.Errorf("mark payment completed: %w", err)
	}

	res := &VerifyResult{SessionID: sessionID, Completed: true}
	if p, err := s.repo.GetBySessionID(ctx, sessionID); err == nil {
		res.Payment = p
	}
	return res, nil
}

// List returns payments for an organization.
func (s *Service) List(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error) {
	return s.repo.List(ctx, orgID, limit, offset)
}
