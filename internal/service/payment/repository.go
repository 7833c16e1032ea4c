package payment

import (
	"context"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// Repository defines the data access contract for payments.
type Repository interface {
	// Create inserts a new payment row.
	Create(ctx context.Context, p *domain.Payment) error

	// GetBySessionID returns the payment keyed by the provider session id.
	// Returns ErrNotFound when absent.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Payment, error)

	// MarkCompleted transitions a payment to completed. Idempotent: a
	// payment that is already completed is left untouched.
	MarkCompleted(ctx context.Context, sessionID string) error

	// List returns payments for an organization, newest first.
	List(ctx context.Context, orgID string, limit, offset int) ([]domain.Payment, int, error)
}
