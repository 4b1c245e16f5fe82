package services

import "errors"

var (
	// ErrNotFound indicates the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates a capability or ownership check failed.
	ErrForbidden = errors.New("forbidden")
	// ErrSignupDisabled indicates auto-signup is off and the identity is unknown.
	ErrSignupDisabled = errors.New("signup disabled")
	// ErrInvariantViolation indicates the mutation would leave the directory
	// without a single active admin.
	ErrInvariantViolation = errors.New("at least one active admin must remain")
	// ErrIdentity indicates the external identity assertion failed verification.
	ErrIdentity = errors.New("identity verification failed")
	// ErrUnknownTag indicates a tag outside the configured catalog.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrUnknownPlaylistName indicates a playlist name outside the configured catalog.
	ErrUnknownPlaylistName = errors.New("unknown playlist name")
	// ErrUnsupportedMedia indicates the uploaded content is not an allowed media type.
	ErrUnsupportedMedia = errors.New("unsupported media type")
	// ErrInvalidRole indicates a role value outside the known enum.
	ErrInvalidRole = errors.New("invalid role")
)
