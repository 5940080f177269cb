// Package workflow drives one client's registration session: pick a shuttle,
// fill the form, submit; or edit and delete an existing registration. Every
// write is guarded by the capacity policy against the repository's current
// snapshot. The guard is advisory: two sessions can pass it at the same time
// and both writes will land.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/capacity"
	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/notifier"
)

type State string

const (
	Browsing      State = "browsing"
	FormOpen      State = "form_open"
	Submitting    State = "submitting"
	Confirmed     State = "confirmed"
	EditOpen      State = "edit_open"
	DeleteConfirm State = "delete_confirm"
)

// Registrations is what a session needs from the repository.
type Registrations interface {
	Shuttle(id string) (models.Shuttle, bool)
	ShuttleFor(registrationID string) (models.Shuttle, models.Registration, bool)
	AddRegistration(ctx context.Context, shuttleID, name string, guests int) (models.Registration, error)
	UpdateRegistration(ctx context.Context, registrationID, name string, guests int) error
	RemoveRegistration(ctx context.Context, registrationID string) error
}

type Config struct {
	Capacity          int
	MaxGuests         int
	ConfirmationDelay time.Duration
	SessionTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:          capacity.DefaultCapacity,
		MaxGuests:         5,
		ConfirmationDelay: 2500 * time.Millisecond,
		SessionTTL:        30 * time.Minute,
	}
}

// Confirmation is shown while a session is Confirmed.
type Confirmation struct {
	ShuttleID   string `json:"shuttle_id"`
	ShuttleTime string `json:"shuttle_time"`
	Name        string `json:"name"`
	Guests      int    `json:"guests"`
}

// View is a point-in-time copy of a session.
type View struct {
	ID             string        `json:"id"`
	State          State         `json:"state"`
	ShuttleID      string        `json:"shuttle_id,omitempty"`
	RegistrationID string        `json:"registration_id,omitempty"`
	Confirmation   *Confirmation `json:"confirmation,omitempty"`
	Message        string        `json:"message,omitempty"`
}

type Session struct {
	id       string
	cfg      Config
	policy   capacity.Policy
	regs     Registrations
	notifier notifier.Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu           sync.Mutex
	state        State
	busy         bool
	shuttleID    string
	target       models.Registration
	confirmedAt  time.Time
	confirmation *Confirmation
	message      string
}

func newSession(id string, cfg Config, regs Registrations, n notifier.Notifier, logger *slog.Logger, now func() time.Time) *Session {
	return &Session{
		id:       id,
		cfg:      cfg,
		policy:   capacity.NewPolicy(cfg.Capacity),
		regs:     regs,
		notifier: n,
		logger:   logger.With("session_id", id),
		now:      now,
		state:    Browsing,
	}
}

func (s *Session) ID() string { return s.id }

// View settles an elapsed confirmation back to Browsing first.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settle()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	v := View{
		ID:        s.id,
		State:     s.state,
		ShuttleID: s.shuttleID,
		Message:   s.message,
	}
	if s.state == EditOpen || s.state == DeleteConfirm {
		v.RegistrationID = s.target.ID
	}
	if s.state == Confirmed && s.confirmation != nil {
		c := *s.confirmation
		v.Confirmation = &c
	}
	return v
}

func (s *Session) settle() {
	if s.state == Confirmed && !s.now().Before(s.confirmedAt.Add(s.cfg.ConfirmationDelay)) {
		s.reset()
	}
}

func (s *Session) reset() {
	s.state = Browsing
	s.shuttleID = ""
	s.target = models.Registration{}
	s.confirmation = nil
}

func (s *Session) require(op string, want State) error {
	s.settle()
	if s.busy {
		return ErrSubmitInProgress
	}
	if s.state != want {
		return &StateError{Op: op, State: s.state}
	}
	return nil
}

// SelectShuttle opens the form for a shuttle that still has room.
func (s *Session) SelectShuttle(shuttleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require("select a shuttle", Browsing); err != nil {
		return err
	}
	sh, ok := s.regs.Shuttle(shuttleID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownShuttle, shuttleID)
	}
	if s.policy.IsFull(sh) {
		s.message = fmt.Sprintf("The %s shuttle is full.", sh.Time)
		return fmt.Errorf("%w: %s", ErrShuttleFull, shuttleID)
	}
	s.state = FormOpen
	s.shuttleID = shuttleID
	s.message = ""
	return nil
}

// Cancel backs out of the form or a modal. It cannot interrupt a write.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settle()
	if s.busy {
		return ErrSubmitInProgress
	}
	s.reset()
	s.message = ""
	return nil
}

func (s *Session) validateForm(name string, guests int) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if guests < 0 || guests > s.cfg.MaxGuests {
		return "", fmt.Errorf("%w: guests must be between 0 and %d", ErrInvalidInput, s.cfg.MaxGuests)
	}
	return name, nil
}

// Submit books the selected shuttle. Guard failures leave the form open and
// never reach the store.
func (s *Session) Submit(ctx context.Context, name string, guests int) error {
	s.mu.Lock()
	if err := s.require("submit", FormOpen); err != nil {
		s.mu.Unlock()
		return err
	}
	name, err := s.validateForm(name, guests)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sh, ok := s.regs.Shuttle(s.shuttleID)
	if !ok {
		shuttleID := s.shuttleID
		s.reset()
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownShuttle, shuttleID)
	}
	party, err := capacity.PartySize(guests)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	fits, err := s.policy.WouldFit(sh, party, "")
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !fits {
		cerr := &CapacityError{PartySize: party, Capacity: s.policy.Capacity}
		s.message = cerr.Error()
		s.mu.Unlock()
		return cerr
	}
	s.state = Submitting
	s.busy = true
	s.mu.Unlock()

	reg, err := s.regs.AddRegistration(ctx, sh.ID, name, guests)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.state = FormOpen
		s.message = "Registration failed. Please try again."
		s.mu.Unlock()
		s.logger.Warn("submit failed", "shuttle_id", sh.ID, "error", err)
		return err
	}
	s.state = Confirmed
	s.confirmedAt = s.now()
	s.confirmation = &Confirmation{ShuttleID: sh.ID, ShuttleTime: sh.Time, Name: name, Guests: guests}
	s.message = ""
	s.mu.Unlock()

	s.notify(notifier.ActionAdded, sh, reg)
	return nil
}

// OpenEdit opens the edit modal for a registration in the current view.
func (s *Session) OpenEdit(registrationID string) error {
	return s.openModal("edit a registration", EditOpen, registrationID)
}

// OpenDelete opens the delete confirmation for a registration in the current view.
func (s *Session) OpenDelete(registrationID string) error {
	return s.openModal("delete a registration", DeleteConfirm, registrationID)
}

func (s *Session) openModal(op string, next State, registrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(op, Browsing); err != nil {
		return err
	}
	sh, reg, ok := s.regs.ShuttleFor(registrationID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRegistration, registrationID)
	}
	s.state = next
	s.shuttleID = sh.ID
	s.target = reg
	s.message = ""
	return nil
}

// SaveEdit rewrites the registration being edited. The capacity guard
// leaves the registration's own current party out of the occupancy.
func (s *Session) SaveEdit(ctx context.Context, name string, guests int) error {
	s.mu.Lock()
	if err := s.require("save an edit", EditOpen); err != nil {
		s.mu.Unlock()
		return err
	}
	name, err := s.validateForm(name, guests)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	registrationID := s.target.ID
	sh, _, ok := s.regs.ShuttleFor(registrationID)
	if !ok {
		s.reset()
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownRegistration, registrationID)
	}
	party, err := capacity.PartySize(guests)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	fits, err := s.policy.WouldFit(sh, party, registrationID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if !fits {
		cerr := &CapacityError{PartySize: party, Capacity: s.policy.Capacity}
		s.message = cerr.Error()
		s.mu.Unlock()
		return cerr
	}
	s.busy = true
	s.mu.Unlock()

	err = s.regs.UpdateRegistration(ctx, registrationID, name, guests)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.message = "Update failed. Please try again."
		s.mu.Unlock()
		s.logger.Warn("edit failed", "registration_id", registrationID, "error", err)
		return err
	}
	s.reset()
	s.message = ""
	s.mu.Unlock()

	s.notify(notifier.ActionUpdated, sh, models.Registration{
		ID:        registrationID,
		ShuttleID: sh.ID,
		Name:      name,
		Guests:    guests,
	})
	return nil
}

// ConfirmDelete removes the registration. Anyone may delete any registration.
func (s *Session) ConfirmDelete(ctx context.Context) error {
	s.mu.Lock()
	if err := s.require("confirm a deletion", DeleteConfirm); err != nil {
		s.mu.Unlock()
		return err
	}
	target := s.target
	shuttleID := s.shuttleID
	s.busy = true
	s.mu.Unlock()

	err := s.regs.RemoveRegistration(ctx, target.ID)

	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.message = "Deletion failed. Please try again."
		s.mu.Unlock()
		s.logger.Warn("delete failed", "registration_id", target.ID, "error", err)
		return err
	}
	s.reset()
	s.message = ""
	s.mu.Unlock()

	sh, ok := s.regs.Shuttle(shuttleID)
	if !ok {
		sh = models.Shuttle{ID: shuttleID}
	}
	s.notify(notifier.ActionRemoved, sh, target)
	return nil
}

func (s *Session) notify(action notifier.Action, sh models.Shuttle, reg models.Registration) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyRegistration(action, sh, reg); err != nil {
		s.logger.Warn("failed to send notification", "action", action, "error", err)
	}
}
