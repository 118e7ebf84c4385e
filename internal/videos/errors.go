package videos

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFile is returned when an upload carries no usable file.
	ErrNoFile = errors.New("no video file received")
	// ErrNotFound is returned when no video row has the requested id.
	ErrNotFound = errors.New("video not found")
	// ErrDuplicateKey is wrapped by a PersistenceError when another row already owns the storage key.
	ErrDuplicateKey = errors.New("storage key already recorded")
)

// PersistenceError reports a failed relational store operation, including a missing session.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }
