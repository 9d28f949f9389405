package roster

import "errors"

// Operation errors. Handlers map these to status codes; anything else that
// surfaces from an operation is an unexpected storage failure.
var (
	ErrNotFound          = errors.New("not found")
	ErrAmbiguousIdentity = errors.New("multiple students share this name, phone number required")
	ErrAlreadyCheckedIn  = errors.New("already checked in for this date")
	ErrConflict          = errors.New("phone number already registered")
	ErrInvalidArgument   = errors.New("invalid argument")
)
