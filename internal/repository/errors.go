package repository

import (
	"fmt"

	"github.com/gdg-garage/shuttle-planner/internal/capacity"
)

var ErrInvalidInput = capacity.ErrInvalidInput

// FetchError means a read of shuttles or registrations failed. The view
// model is empty while it is set.
type FetchError struct {
	Collection string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Collection, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WriteError means an insert, update or delete was rejected by the store.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s registration: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
