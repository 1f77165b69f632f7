package session

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a session id is unknown to the repository.
var ErrNotFound = errors.New("session: not found")

// ConfigurationError indicates an invalid session configuration. It fails
// fast and is never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "session: invalid configuration: " + e.Reason
}

// InvalidStateError indicates an illegal state-machine transition attempt.
type InvalidStateError struct {
	SessionID uuid.UUID
	From      Status
	Op        string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session %s: cannot %s from status %s", e.SessionID, e.Op, e.From)
}

// DataStoreError wraps a persistence failure so callers can separate
// infrastructure faults from domain rejections with errors.As.
type DataStoreError struct {
	Op  string
	Err error
}

func (e *DataStoreError) Error() string {
	return fmt.Sprintf("datastore: %s: %v", e.Op, e.Err)
}

func (e *DataStoreError) Unwrap() error { return e.Err }

// ConcurrentOperationError indicates an overlapping turn submission on a
// single session. The first in-flight submission must complete before the
// next is accepted.
type ConcurrentOperationError struct {
	SessionID uuid.UUID
}

func (e *ConcurrentOperationError) Error() string {
	return fmt.Sprintf("session %s: a turn submission is already in flight", e.SessionID)
}
