package domain

import "time"

// ClientType distinguishes individual filers from business clients.
type ClientType string

const (
	ClientIndividual ClientType = "individual"
	ClientBusiness   ClientType = "business"
)

// ClientStatus enumerates client account states.
type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientInactive ClientStatus = "inactive"
)

// Client is a converted or directly onboarded customer record.
// ConvertedFrom links back to the originating lead, if any.
type Client struct {
	ID             string       `json:"id" db:"id"`
	OrganizationID string       `json:"organization_id" db:"organization_id"`
	FirstName      string       `json:"firstName" db:"first_name"`
	LastName       string       `json:"lastName" db:"last_name"`
	Email          string       `json:"email" db:"email"`
	Phone          string       `json:"phone,omitempty" db:"phone"`
	Type           ClientType   `json:"type" db:"client_type"`
	Status         ClientStatus `json:"status" db:"status"`
	ConvertedFrom  *string      `json:"convertedFrom,omitempty" db:"converted_from"`
	CreatedAt      time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time    `json:"updatedAt" db:"updated_at"`
}
