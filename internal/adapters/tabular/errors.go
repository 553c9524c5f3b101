package tabular

import "errors"

var (
	// ErrMissingColumns means a required header is absent.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrEmptyTable means the input has no header row.
	ErrEmptyTable = errors.New("table is empty")
)
