package domain

import "time"

// LeadStatus enumerates the lifecycle states of a lead.
type LeadStatus string

const (
	LeadNew       LeadStatus = "NEW"
	LeadContacted LeadStatus = "CONTACTED"
	LeadQualified LeadStatus = "QUALIFIED"
	LeadProposal  LeadStatus = "PROPOSAL"
	LeadWon       LeadStatus = "WON"
	LeadLost      LeadStatus = "LOST"
)

// Lead represents a prospective client captured before conversion.
// Probability is a 0-100 heuristic score computed at intake.
type Lead struct {
	ID              string     `json:"id" db:"id"`
	OrganizationID  string     `json:"organization_id" db:"organization_id"`
	FirstName       string     `json:"firstName" db:"first_name"`
	LastName        string     `json:"lastName" db:"last_name"`
	Email           string     `json:"email" db:"email"`
	Phone           string     `json:"phone,omitempty" db:"phone"`
	Company         string     `json:"company,omitempty" db:"company"`
	Source          string     `json:"source,omitempty" db:"source"`
	ServiceInterest string     `json:"serviceInterest,omitempty" db:"service_interest"`
	EstimatedValue  float64    `json:"estimatedValue,omitempty" db:"estimated_value"`
	Probability     int        `json:"probability" db:"probability"`
	Status          LeadStatus `json:"status" db:"status"`
	Stage           string     `json:"stage,omitempty" db:"stage"`
	AssignedTo      *string    `json:"assignedTo,omitempty" db:"assigned_to"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsClosed returns true once a lead has been won or lost.
func (l *Lead) IsClosed() bool {
	return l.Status == LeadWon || l.Status == LeadLost
}
