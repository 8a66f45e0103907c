package hypergraph

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrNodeNotFound         = errors.New("node not found")
	ErrHyperedgeNotFound    = errors.New("hyperedge not found")
	ErrVersionConflict      = errors.New("version conflict")
	ErrOperationNotPermitted = errors.New("operation not permitted")
	ErrInvalidUUID          = errors.New("invalid uuid")
	ErrInternal             = errors.New("internal error")
)

// ValidationError reports a violated invariant on input data.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// DatabaseError wraps backend infrastructure failures.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error in %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

func dbErr(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

func nodeNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

func edgeNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", ErrHyperedgeNotFound, id)
}

func versionConflict(kind string, id uuid.UUID, expected, stored int64) error {
	return fmt.Errorf("%w: %s %s expected version %d, stored %d", ErrVersionConflict, kind, id, expected, stored)
}
