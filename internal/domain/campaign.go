package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
)

// Campaign is a marketing message sent to a set of recipients.
// Open and click rates are derived from recipient timestamps at read time,
// never stored.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organization_id" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	Subject        string         `json:"subject" db:"subject"`
	FromName       string         `json:"fromName" db:"from_name"`
	FromEmail      string         `json:"fromEmail" db:"from_email"`
	HTMLContent    string         `json:"htmlContent" db:"html_content"`
	Status         CampaignStatus `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`

	// Derived stats, populated by queries.
	RecipientCount int     `json:"recipientCount" db:"recipient_count"`
	OpenCount      int     `json:"openCount" db:"open_count"`
	ClickCount     int     `json:"clickCount" db:"click_count"`
	OpenRate       float64 `json:"openRate" db:"-"`
	ClickRate      float64 `json:"clickRate" db:"-"`
}

// ComputeRates fills OpenRate and ClickRate from the recipient counters.
func (c *Campaign) ComputeRates() {
	if c.RecipientCount > 0 {
		c.OpenRate = float64(c.OpenCount) / float64(c.RecipientCount) * 100
		c.ClickRate = float64(c.ClickCount) / float64(c.RecipientCount) * 100
	}
}

// CampaignRecipient records a single delivery plus engagement timestamps.
type CampaignRecipient struct {
	ID         string     `json:"id" db:"id"`
	CampaignID string     `json:"campaignId" db:"campaign_id"`
	Email      string     `json:"email" db:"email"`
	SentAt     *time.Time `json:"sentAt,omitempty" db:"sent_at"`
	OpenedAt   *time.Time `json:"openedAt,omitempty" db:"opened_at"`
	ClickedAt  *time.Time `json:"clickedAt,omitempty" db:"clicked_at"`
}
