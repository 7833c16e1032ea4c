package lead

import (
	"context"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// Repository defines the data access contract for leads.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single lead. Returns ErrNotFound if it doesn't exist
	// in the given organization.
	Get(ctx context.Context, orgID, id string) (*domain.Lead, error)

	// List returns leads matching the filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, f ListFilter) ([]domain.Lead, int, error)

	// Create inserts a new lead. Returns ErrDuplicateEmail when the
	// organization already has a lead with the same email.
	Create(ctx context.Context, l *domain.Lead) error

	// Update applies the non-nil fields. Returns ErrNotFound when no row
	// matched.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// ConvertToClient creates a client from the lead and marks the lead
	// WON, atomically. Returns the created client.
	ConvertToClient(ctx context.Context, orgID, id string) (*domain.Client, error)
}

// ListFilter controls pagination and filtering for lead lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a lead update.
// Nil fields are not applied.
type UpdateFields struct {
	Status         *domain.LeadStatus
	Stage          *string
	AssignedTo     *string
	EstimatedValue *float64
	Phone          *string
	Company        *string
}
