package checkpoint

import "errors"

var (
	// ErrNotFound is returned when the addressed checkpoint or thread has
	// no records.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrNonMonotonicStep is returned when a put would break the strictly
	// increasing step order of a thread.
	ErrNonMonotonicStep = errors.New("checkpoint step must be strictly increasing within a thread")

	// ErrEmptyThreadID is returned for configs without a thread.
	ErrEmptyThreadID = errors.New("thread id cannot be empty")
)
