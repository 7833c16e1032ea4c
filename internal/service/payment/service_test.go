package payment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawsonmobiletax/crm-server/internal/config"
	"github.com/lawsonmobiletax/crm-server/internal/domain"
	"github.com/lawsonmobiletax/crm-server/internal/service/payment"
	"github.com/lawsonmobiletax/crm-server/internal/stripe"
)

// memRepo is an in-memory payment repository for unit testing.
type memRepo struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment // keyed by provider session id
}

func newMemRepo() *memRepo {
	return &memRepo{payments: make(map[string]*domain.Payment)}
}

func (m *memRepo) Create(_ context.Context, p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[cp.ProviderSessionID] = &cp
	return nil
}

func (m *memRepo) GetBySessionID(_ context.Context, sessionID string) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[sessionID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) MarkCompleted(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[sessionID]
	if !ok {
		return payment.ErrNotFound
	}
	if p.Status != domain.PaymentCompleted {
		now := time.Now()
		p.Status = domain.PaymentCompleted
		p.CompletedAt = &now
	}
	return nil
}

func (m *memRepo) List(_ context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payment
	for _, p := range m.payments {
		if p.OrganizationID == orgID {
			out = append(out, *p)
		}
	}
	return out, len(out), nil
}

// fakeProvider is a scripted CheckoutProvider.
type fakeProvider struct {
	created  []stripe.CreateSessionParams
	sessions map[string]*stripe.CheckoutSession
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, p stripe.CreateSessionParams) (*stripe.CheckoutSession, error) {
	f.created = append(f.created, p)
	s := &stripe.CheckoutSession{
		ID:            "cs_test_1",
		URL:           "https://checkout.stripe.com/c/pay/cs_test_1",
		PaymentStatus: "unpaid",
		AmountTotal:   p.AmountCents,
		Currency:      p.Currency,
	}
	if f.sessions == nil {
		f.sessions = make(map[string]*stripe.CheckoutSession)
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeProvider) GetCheckoutSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, &stripe.APIError{StatusCode: 404, Code: "resource_missing", Message: "No such checkout.session"}
	}
	return s, nil
}

func mockCfg() config.PaymentConfig {
	return config.PaymentConfig{
		Mode:       config.PaymentModeMock,
		Currency:   "usd",
		SuccessURL: "http://localhost:8080/payment/success",
		CancelURL:  "http://localhost:8080/payment/cancel",
	}
}

func liveCfg() config.PaymentConfig {
	cfg := mockCfg()
	cfg.Mode = config.PaymentModeLive
	cfg.SecretKey = "sk_test_123"
	return cfg
}

const testOrg = "org-1"

func TestMockFee(t *testing.T) {
	assert.Equal(t, 3.20, payment.MockFee(100))       // 2.90 + 0.30
	assert.Equal(t, 0.59, payment.MockFee(10))        // 0.29 + 0.30
	assert.Equal(t, 14.80, payment.MockFee(500))      // 14.50 + 0.30
	assert.Equal(t, 0.33, payment.MockFee(1))         // 0.029 + 0.30 → 0.33
}

func TestMockSessionSettlesImmediately(t *testing.T) {
	svc := payment.NewService(newMemRepo(), nil, mockCfg())

	res, err := svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 100, Description: "Expert Tax Evaluation",
	})
	require.NoError(t, err)

	p := res.Payment
	assert.Equal(t, domain.PaymentCompleted, p.Status)
	assert.True(t, p.Mock)
	assert.Equal(t, 3.20, p.Fee)
	assert.Equal(t, 96.80, p.NetAmount)
	assert.Contains(t, res.SessionID, "mock_")
	assert.Contains(t, res.URL, "session_id=mock_")
	require.NotNil(t, p.CompletedAt)
}

func TestMockVerifyAlwaysSucceeds(t *testing.T) {
	svc := payment.NewService(newMemRepo(), nil, mockCfg())

	// Even an identifier that was never issued reports success.
	res, err := svc.VerifySession(context.Background(), "mock_never_issued")
	require.NoError(t, err)
	assert.True(t, res.Completed)
}

func TestCreateSessionValidation(t *testing.T) {
	svc := payment.NewService(newMemRepo(), nil, mockCfg())

	_, err := svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 0, Description: "x",
	})
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: -5, Description: "x",
	})
	assert.ErrorIs(t, err, payment.ErrInvalidAmount)

	_, err = svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 50,
	})
	assert.ErrorIs(t, err, payment.ErrMissingDesc)
}

func TestLiveSessionCreatesPendingRow(t *testing.T) {
	repo := newMemRepo()
	provider := &fakeProvider{}
	svc := payment.NewService(repo, provider, liveCfg())

	res, err := svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 129.99, Description: "Tax Return Preparation", ClientID: "client-7",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, domain.PaymentPending, res.Payment.Status)
	assert.False(t, res.Payment.Mock)

	// Amount converted to integer minor units
	require.Len(t, provider.created, 1)
	assert.Equal(t, int64(12999), provider.created[0].AmountCents)
	assert.Equal(t, "org-1", provider.created[0].Metadata["organization_id"])
	assert.Equal(t, "client-7", provider.created[0].Metadata["client_id"])

	stored, err := repo.GetBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, stored.Status)
}

func TestLiveVerifyUnpaid(t *testing.T) {
	repo := newMemRepo()
	provider := &fakeProvider{}
	svc := payment.NewService(repo, provider, liveCfg())

	res, err := svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 50, Description: "Tax Service - Amendment",
	})
	require.NoError(t, err)

	verify, err := svc.VerifySession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.False(t, verify.Completed)

	stored, _ := repo.GetBySessionID(context.Background(), res.SessionID)
	assert.Equal(t, domain.PaymentPending, stored.Status)
}

func TestLiveVerifyPaidMarksCompleted(t *testing.T) {
	repo := newMemRepo()
	provider := &fakeProvider{}
	svc := payment.NewService(repo, provider, liveCfg())

	res, err := svc.CreateSession(context.Background(), testOrg, payment.CreateSessionInput{
		Amount: 50, Description: "Tax Service - Amendment",
	})
	require.NoError(t, err)

	provider.sessions[res.SessionID].PaymentStatus = "paid"

	verify, err := svc.VerifySession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, verify.Completed)
	require.NotNil(t, verify.Payment)
	assert.Equal(t, domain.PaymentCompleted, verify.Payment.Status)

	// Verifying again is idempotent
	verify2, err := svc.VerifySession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.True(t, verify2.Completed)
}

func TestLiveVerifyUnknownSession(t *testing.T) {
	svc := payment.NewService(newMemRepo(), &fakeProvider{}, liveCfg())

	_, err := svc.VerifySession(context.Background(), "cs_unknown")
	assert.ErrorIs(t, err, payment.ErrSessionNotFound)
}

func TestAnonymousAllowed(t *testing.T) {
	assert.True(t, payment.AnonymousAllowed("Expert Tax Evaluation"))
	assert.True(t, payment.AnonymousAllowed("Tax Service - Individual Filing"))
	assert.True(t, payment.AnonymousAllowed("Premium Tax Service"))
	assert.False(t, payment.AnonymousAllowed("Consulting Retainer"))
	assert.False(t, payment.AnonymousAllowed("expert tax evaluation")) // exact match is case-sensitive
	assert.False(t, payment.AnonymousAllowed(""))
}
