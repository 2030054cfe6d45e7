package services

import (
	"errors"
	"fmt"

	"committeehub/internal/storage"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrAccessDenied           = errors.New("authentication required")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrNotFound               = errors.New("not found")
	ErrDuplicateOwner         = errors.New("committee already has an owner")
	ErrOwnerRequired          = errors.New("committee must keep exactly one owner")
	ErrSpecialMotionsDisabled = errors.New("special motions are disabled for this committee")
	ErrNotEligible            = errors.New("not eligible")
	ErrConflict               = errors.New("conflict")
	ErrRateLimited            = errors.New("too many requests")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func deniedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

// notFound translates store misses and lost write races into service errors
// and passes any other failure through untouched.
func notFound(err error, what string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, storage.ErrVersionConflict):
		return fmt.Errorf("%w: %s changed concurrently, try again", ErrConflict, what)
	}
	return err
}
