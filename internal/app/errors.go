package service

import "errors"

var (
	// ErrNotStarted is returned by operations that need a started service.
	ErrNotStarted = errors.New("service not started")
	// ErrSubjectNotFound is returned when a subject has no estimate or result.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrRunInProgress is returned when a batch is requested while another runs.
	ErrRunInProgress = errors.New("a batch run is already in progress")
)
