package workflow

import (
	"errors"
	"fmt"

	"github.com/gdg-garage/shuttle-planner/internal/capacity"
)

var (
	ErrInvalidInput        = capacity.ErrInvalidInput
	ErrShuttleFull         = errors.New("shuttle is full")
	ErrUnknownShuttle      = errors.New("unknown shuttle")
	ErrUnknownRegistration = errors.New("unknown registration")
	ErrSubmitInProgress    = errors.New("a submission is already in progress")
)

// CapacityError rejects a booking that would overfill the shuttle. It is
// advisory: the user may retry with fewer guests or another shuttle.
type CapacityError struct {
	PartySize int
	Capacity  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("Registering %d passenger(s) would exceed the shuttle capacity of %d. Please select fewer guests or a different shuttle.",
		e.PartySize, e.Capacity)
}

// StateError is an intent that the current state does not accept.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}
