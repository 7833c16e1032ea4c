package campaign

import (
	"context"

	"github.com/lawsonmobiletax/crm-server/internal/domain"
)

// Repository abstracts campaign persistence. Implementations must scope
// every query by organization and return the package sentinel errors.
type Repository interface {
	Create(ctx context.Context, c *domain.Campaign) error
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)
	List(ctx context.Context, orgID string) ([]domain.Campaign, error)
	Update(ctx context.Context, orgID, id string, u UpdateFields) error
	Delete(ctx context.Context, orgID, id string) error

	// SetStatus transitions the campaign's lifecycle state.
	SetStatus(ctx context.Context, orgID, id string, status domain.CampaignStatus) error

	// AddRecipients records one row per delivery attempt.
	AddRecipients(ctx context.Context, campaignID string, recipients []domain.CampaignRecipient) error

	// Recipients returns all recipient rows for a campaign.
	Recipients(ctx context.Context, campaignID string) ([]domain.CampaignRecipient, error)

	// MarkOpened stamps opened_at for a recipient if not already set.
	// It returns ErrRecipientNotFound for unknown tokens.
	MarkOpened(ctx context.Context, recipientID string) error

	// MarkClicked stamps clicked_at (and opened_at, since a click implies
	// an open) for a recipient if not already set.
	MarkClicked(ctx context.Context, recipientID string) error
}

// UpdateFields carries the mutable campaign attributes. Nil means
// "leave unchanged".
type UpdateFields struct {
	Name        *string
	Subject     *string
	FromName    *string
	FromEmail   *string
	HTMLContent *string
}
