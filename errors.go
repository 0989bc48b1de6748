package ldapcp

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownClaimType is returned when Validate or Augment receives
	// a claim whose type has no matching configuration.
	ErrUnknownClaimType = errors.New("unknown claim type")

	// ErrNoDirectoryConfigured is returned when zero usable directory
	// connections exist for the requested operation, so callers can
	// distinguish "not configured" from "not found".
	ErrNoDirectoryConfigured = errors.New("no directory connection configured")

	// ErrAmbiguousValidation is returned when Validate matched more
	// than one directory entry for a single claim.
	ErrAmbiguousValidation = errors.New("validation matched more than one entity")
)

// UnknownClaimTypeError wraps ErrUnknownClaimType with the offending
// claim type.
func UnknownClaimTypeError(claimType string) error {
	return fmt.Errorf("%w: %q", ErrUnknownClaimType, claimType)
}
