package domain

import "time"

// Role enumerates user roles within an organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// Organization is the tenant boundary. All leads, clients, returns,
// payments, campaigns, and documents belong to exactly one organization.
type Organization struct {
	ID        string            `json:"id" db:"id"`
	Name      string            `json:"name" db:"name"`
	Slug      string            `json:"slug" db:"slug"`
	Branding  map[string]string `json:"branding,omitempty" db:"branding"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// User is a member of an organization. PasswordHash is a bcrypt hash and
// is never serialized.
type User struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Email          string    `json:"email" db:"email"`
	PasswordHash   string    `json:"-" db:"password_hash"`
	Name           string    `json:"name" db:"name"`
	Role           Role      `json:"role" db:"role"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
