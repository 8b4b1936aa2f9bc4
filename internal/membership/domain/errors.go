package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied = errors.New("access_denied")
	ErrNotFound     = errors.New("not_found")
	ErrValidation   = errors.New("validation_error")
	ErrStorage      = errors.New("storage_error")
)

var (
	ErrInvalidMember       = fmt.Errorf("%w: invalid member id", ErrValidation)
	ErrInvalidOrganization = fmt.Errorf("%w: invalid organization id", ErrValidation)
	ErrMissingTarget       = fmt.Errorf("%w: member or organization_id is required", ErrValidation)
	ErrSysadminMyList      = fmt.Errorf("%w: as a sysadmin, you already have access to all organizations", ErrValidation)
	ErrUnauthenticated     = fmt.Errorf("%w: authentication required", ErrAccessDenied)
)

// StorageError wraps a failed commit so callers can match ErrStorage while
// keeping the driver error in the chain.
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}
