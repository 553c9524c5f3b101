package cursor

import "errors"

var (
	ErrNoSamples      = errors.New("no heart-rate samples for range")
	ErrCursorNotFound = errors.New("cursor not found")
)
