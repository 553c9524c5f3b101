package vitals

import "errors"

var (
	// ErrNoData means the collaborator had nothing for the requested range.
	ErrNoData = errors.New("no data for range")
	// ErrIncomplete means some vitals were missing from the bundle.
	ErrIncomplete = errors.New("vitals bundle incomplete")
	// ErrInvalidRange means the range end is not after its start.
	ErrInvalidRange = errors.New("invalid vitals range")
	// ErrUnauthorized means the collaborator rejected the API key.
	ErrUnauthorized = errors.New("vitals api rejected credentials")
)
