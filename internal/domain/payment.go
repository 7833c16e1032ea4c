package domain

import "time"

// PaymentStatus enumerates payment settlement states.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is a monetary transaction, optionally linked to a client and a
// tax return. ProviderSessionID is the Stripe checkout session id, or a
// "mock_" prefixed identifier when running without provider credentials.
type Payment struct {
	ID                string        `json:"id" db:"id"`
	OrganizationID    string        `json:"organization_id" db:"organization_id"`
	ClientID          *string       `json:"clientId,omitempty" db:"client_id"`
	TaxReturnID       *string       `json:"taxReturnId,omitempty" db:"tax_return_id"`
	Amount            float64       `json:"amount" db:"amount"`
	Fee               float64       `json:"fee" db:"fee"`
	NetAmount         float64       `json:"netAmount" db:"net_amount"`
	Currency          string        `json:"currency" db:"currency"`
	Description       string        `json:"description" db:"description"`
	Status            PaymentStatus `json:"status" db:"status"`
	ProviderSessionID string        `json:"providerSessionId" db:"provider_session_id"`
	Mock              bool          `json:"mock" db:"mock"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	CompletedAt       *time.Time    `json:"completedAt,omitempty" db:"completed_at"`
}
