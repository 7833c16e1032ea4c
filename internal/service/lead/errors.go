package lead

import "errors"

// Sentinel errors for the lead service layer.
var (
	ErrNotFound       = errors.New("lead not found")
	ErrDuplicateEmail = errors.New("a lead with this email already exists")
	ErrValidation     = errors.New("missing required fields")
	ErrAlreadyClosed  = errors.New("lead is already won or lost")
)
