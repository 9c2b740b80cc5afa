package jobs

import "errors"

var (
	// ErrNotFound covers both unknown jobs and jobs owned by another account;
	// callers cannot tell the two apart.
	ErrNotFound = errors.New("job not found")
	// ErrNotClaimable is returned when the queued->running claim finds the
	// job already claimed, canceled, or finished.
	ErrNotClaimable = errors.New("job not claimable")
	// ErrInvalidTransition is returned when an update would leave a terminal
	// state.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidInput      = errors.New("invalid input")
)
