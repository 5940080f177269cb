// Package repository keeps the denormalized shuttle view model: the shuttle
// catalog joined with its registrations, mirrored from the store and rebuilt
// on every change notification.
//
// Writes never touch the view model directly. They go to the store and the
// view catches up on the next reload, whether that is triggered by a
// subscription or called by hand.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/store"
)

// ErrRegistrationNotFound is wrapped in a WriteError when an update matched
// no row, typically because another client deleted it first.
var ErrRegistrationNotFound = errors.New("registration not found")

type Option func(*Repository)

// WithClock replaces time.Now for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

type Repository struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time

	// started numbers reloads as they begin; applied is the newest one whose
	// result is in the view. An older reload finishing late is dropped.
	started atomic.Uint64

	mu       sync.RWMutex
	applied  uint64
	loaded   bool
	shuttles []models.Shuttle
	all      []models.Registration
	fetchErr error
	writeErr error
}

func New(s store.Store, logger *slog.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		store:  s,
		logger: logger.With("component", "repository"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadAll refetches both collections and rebuilds the view model. On
// failure the view is emptied and Err reports a *FetchError.
func (r *Repository) LoadAll(ctx context.Context) error {
	seq := r.started.Add(1)
	shuttles, all, err := r.fetch(ctx)

	if err != nil && ctx.Err() != nil {
		// Abandoned by the caller; keep whatever view we had.
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq < r.applied {
		r.logger.Debug("discarding stale reload", "seq", seq, "applied", r.applied)
		return err
	}
	r.applied = seq

	if err != nil {
		r.logger.Error("reload failed", "error", err)
		r.shuttles = nil
		r.all = nil
		r.loaded = false
		r.fetchErr = err
		return err
	}

	r.shuttles = shuttles
	r.all = all
	r.loaded = true
	r.fetchErr = nil
	r.logger.Debug("view model rebuilt", "seq", seq, "shuttles", len(shuttles), "registrations", len(all))
	return nil
}

func (r *Repository) fetch(ctx context.Context) ([]models.Shuttle, []models.Registration, error) {
	catalog, err := r.store.ListShuttles(ctx)
	if err != nil {
		return nil, nil, &FetchError{Collection: store.TableShuttles, Err: err}
	}
	regs, err := r.store.ListRegistrations(ctx)
	if err != nil {
		return nil, nil, &FetchError{Collection: store.TableRegistrations, Err: err}
	}

	shuttles := make([]models.Shuttle, len(catalog))
	index := make(map[string]int, len(catalog))
	for i, sh := range catalog {
		sh.Registrations = []models.Registration{}
		shuttles[i] = sh
		index[sh.ID] = i
	}
	for _, reg := range regs {
		i, ok := index[reg.ShuttleID]
		if !ok {
			r.logger.Warn("registration references unknown shuttle", "registration_id", reg.ID, "shuttle_id", reg.ShuttleID)
			continue
		}
		shuttles[i].Registrations = append(shuttles[i].Registrations, reg)
	}
	slices.SortStableFunc(shuttles, func(a, b models.Shuttle) int {
		switch {
		case models.TimeBefore(a.Time, b.Time):
			return -1
		case models.TimeBefore(b.Time, a.Time):
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return shuttles, regs, nil
}

// AddRegistration inserts a registration for shuttleID. The view model is
// not touched.
func (r *Repository) AddRegistration(ctx context.Context, shuttleID, name string, guests int) (models.Registration, error) {
	if err := validate(name, guests); err != nil {
		return models.Registration{}, err
	}
	reg := models.Registration{
		ShuttleID: shuttleID,
		Name:      name,
		Guests:    guests,
		Timestamp: r.now().UTC(),
	}
	if err := r.store.InsertRegistration(ctx, &reg); err != nil {
		return models.Registration{}, r.recordWrite("add", err)
	}
	r.recordWrite("add", nil)
	r.logger.Info("registration added", "registration_id", reg.ID, "shuttle_id", shuttleID, "party_size", reg.PartySize())
	return reg, nil
}

// UpdateRegistration rewrites name and guests and refreshes the timestamp.
func (r *Repository) UpdateRegistration(ctx context.Context, registrationID, name string, guests int) error {
	if err := validate(name, guests); err != nil {
		return err
	}
	n, err := r.store.UpdateRegistration(ctx, registrationID, name, guests, r.now().UTC())
	if err != nil {
		return r.recordWrite("update", err)
	}
	if n == 0 {
		return r.recordWrite("update", fmt.Errorf("%w: %s", ErrRegistrationNotFound, registrationID))
	}
	r.recordWrite("update", nil)
	r.logger.Info("registration updated", "registration_id", registrationID, "guests", guests)
	return nil
}

// RemoveRegistration deletes by id. Registration ids are unique across
// shuttles, and an unknown id is a no-op.
func (r *Repository) RemoveRegistration(ctx context.Context, registrationID string) error {
	n, err := r.store.DeleteRegistration(ctx, registrationID)
	if err != nil {
		return r.recordWrite("remove", err)
	}
	r.recordWrite("remove", nil)
	if n == 0 {
		r.logger.Debug("remove matched no registration", "registration_id", registrationID)
		return nil
	}
	r.logger.Info("registration removed", "registration_id", registrationID)
	return nil
}

func (r *Repository) recordWrite(op string, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.writeErr = nil
		return nil
	}
	werr := &WriteError{Op: op, Err: err}
	r.writeErr = werr
	r.logger.Error("write failed", "op", op, "error", err)
	return werr
}

func validate(name string, guests int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if guests < 0 {
		return fmt.Errorf("%w: guests must not be negative", ErrInvalidInput)
	}
	return nil
}

// Subscribe reloads the view on every change to the registrations
// collection and then calls onChange. The returned function ends the
// subscription and waits for an in-flight reload to finish; it is safe to
// call more than once but must not be called from onChange.
func (r *Repository) Subscribe(ctx context.Context, onChange func()) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	changes, err := r.store.Subscribe(subCtx, store.TableRegistrations)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe to %s: %w", store.TableRegistrations, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range changes {
			r.logger.Debug("change received", "event", c.Event, "table", c.Table)
			if err := r.LoadAll(subCtx); err != nil {
				if subCtx.Err() != nil {
					return
				}
				r.logger.Warn("reload after change failed", "error", err)
			}
			if onChange != nil {
				onChange()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// Shuttles returns a copy of the view model, sorted by departure time.
func (r *Repository) Shuttles() []models.Shuttle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Shuttle, len(r.shuttles))
	for i, sh := range r.shuttles {
		sh.Registrations = slices.Clone(sh.Registrations)
		out[i] = sh
	}
	return out
}

func (r *Repository) Shuttle(id string) (models.Shuttle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sh := range r.shuttles {
		if sh.ID == id {
			sh.Registrations = slices.Clone(sh.Registrations)
			return sh, true
		}
	}
	return models.Shuttle{}, false
}

// ShuttleFor finds the shuttle holding registrationID.
func (r *Repository) ShuttleFor(registrationID string) (models.Shuttle, models.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sh := range r.shuttles {
		for _, reg := range sh.Registrations {
			if reg.ID == registrationID {
				sh.Registrations = slices.Clone(sh.Registrations)
				return sh, reg, true
			}
		}
	}
	return models.Shuttle{}, models.Registration{}, false
}

// Err reports the last fetch failure, or failing that the last write
// failure. A successful reload clears the former, a successful write the
// latter.
func (r *Repository) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.fetchErr != nil {
		return r.fetchErr
	}
	return r.writeErr
}

// Loaded is true once a reload has succeeded and no later one has failed.
func (r *Repository) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}
