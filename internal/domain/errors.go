package domain

import "errors"

// Sentinel errors shared by repositories and handlers.
var (
	ErrNotFound  = errors.New("domain: not found")
	ErrConflict  = errors.New("domain: conflict")
	ErrForbidden = errors.New("domain: forbidden")
)
