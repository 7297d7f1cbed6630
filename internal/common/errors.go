// Package common defines the sentinel error kinds shared by all server
// layers of escrowd. Callers should use errors.Is to match these values.
//
// Services wrap a kind with detail, e.g.
//
//	fmt.Errorf("%w: milestone status is %s, expected %s", common.ErrValidation, got, want)
//
// so the API layer can map the kind to a status code while the message stays
// operator-actionable.
package common

import "errors"

var (
	// ErrNotFound means a referenced entity is absent.
	ErrNotFound = errors.New("not found")

	// ErrForbidden means the caller lacks the required relationship to the
	// entity (e.g. is not this contract's payer).
	ErrForbidden = errors.New("forbidden")

	// ErrValidation means a state-machine precondition was violated, an
	// amount is malformed or out of range, or a mandatory note is missing.
	ErrValidation = errors.New("validation error")

	// ErrConflict means a unique value (transaction reference) already exists.
	ErrConflict = errors.New("conflict")

	// ErrorInternal is the generic service-level failure surfaced to callers
	// when the underlying cause must not leak.
	ErrorInternal = errors.New("internal error")

	// ErrInvalidToken is returned by the API auth layer for missing or
	// malformed bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// IsBusiness reports whether err wraps one of the four business kinds that
// are shown to callers verbatim.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict)
}
