package campaign

import "errors"

var (
	// ErrNotFound is returned when a campaign does not exist in the
	// caller's organization.
	ErrNotFound = errors.New("campaign not found")

	// ErrValidation is returned when campaign input fails validation.
	ErrValidation = errors.New("campaign validation failed")

	// ErrAlreadySent is returned when a send is requested for a campaign
	// that has already been dispatched.
	ErrAlreadySent = errors.New("campaign already sent")

	// ErrNoRecipients is returned when a send is requested but the
	// organization has no contactable recipients.
	ErrNoRecipients = errors.New("campaign has no recipients")

	// ErrRecipientNotFound is returned by tracking lookups for unknown
	// recipient tokens.
	ErrRecipientNotFound = errors.New("campaign recipient not found")
)
