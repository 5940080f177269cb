package workflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/gdg-garage/shuttle-planner/internal/capacity"
	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/notifier"
	"github.com/gdg-garage/shuttle-planner/internal/repository"
	"github.com/gdg-garage/shuttle-planner/internal/store/gormstore"
)

// memRegistrations applies writes to its view immediately, as if every
// write were followed by a reload.
type memRegistrations struct {
	mu       sync.Mutex
	shuttles map[string]*models.Shuttle
	nextID   int
	writeErr error
	block    chan struct{}
}

func newMemRegistrations(shuttleIDs ...string) *memRegistrations {
	m := &memRegistrations{shuttles: map[string]*models.Shuttle{}}
	for _, id := range shuttleIDs {
		m.shuttles[id] = &models.Shuttle{ID: id, Time: "5:10 PM", Type: models.ShuttleArrival, Registrations: []models.Registration{}}
	}
	return m
}

func (m *memRegistrations) seed(shuttleID string, partySizes ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range partySizes {
		m.nextID++
		sh := m.shuttles[shuttleID]
		sh.Registrations = append(sh.Registrations, models.Registration{
			ID:        fmt.Sprintf("seed-%d", m.nextID),
			ShuttleID: shuttleID,
			Name:      "Seeded",
			Guests:    p - 1,
		})
	}
}

func (m *memRegistrations) Shuttle(id string) (models.Shuttle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sh, ok := m.shuttles[id]
	if !ok {
		return models.Shuttle{}, false
	}
	out := *sh
	out.Registrations = append([]models.Registration(nil), sh.Registrations...)
	return out, true
}

func (m *memRegistrations) ShuttleFor(registrationID string) (models.Shuttle, models.Registration, bool) {
	m.mu.Lock()
	var shuttleID string
	var found models.Registration
	for id, sh := range m.shuttles {
		for _, reg := range sh.Registrations {
			if reg.ID == registrationID {
				shuttleID, found = id, reg
			}
		}
	}
	m.mu.Unlock()
	if shuttleID == "" {
		return models.Shuttle{}, models.Registration{}, false
	}
	sh, _ := m.Shuttle(shuttleID)
	return sh, found, true
}

func (m *memRegistrations) AddRegistration(ctx context.Context, shuttleID, name string, guests int) (models.Registration, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return models.Registration{}, m.writeErr
	}
	m.nextID++
	reg := models.Registration{ID: fmt.Sprintf("reg-%d", m.nextID), ShuttleID: shuttleID, Name: name, Guests: guests}
	sh := m.shuttles[shuttleID]
	sh.Registrations = append(sh.Registrations, reg)
	return reg, nil
}

func (m *memRegistrations) UpdateRegistration(ctx context.Context, registrationID, name string, guests int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, sh := range m.shuttles {
		for i := range sh.Registrations {
			if sh.Registrations[i].ID == registrationID {
				sh.Registrations[i].Name = name
				sh.Registrations[i].Guests = guests
				return nil
			}
		}
	}
	return repository.ErrRegistrationNotFound
}

func (m *memRegistrations) RemoveRegistration(ctx context.Context, registrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	for _, sh := range m.shuttles {
		for i := range sh.Registrations {
			if sh.Registrations[i].ID == registrationID {
				sh.Registrations = append(sh.Registrations[:i], sh.Registrations[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	actions []notifier.Action
	err     error
}

func (n *recordingNotifier) NotifyRegistration(action notifier.Action, _ models.Shuttle, _ models.Registration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.actions = append(n.actions, action)
	return n.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 17, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSession(regs Registrations, opts ...ManagerOption) *Session {
	opts = append([]ManagerOption{WithClock(newFakeClock().Now)}, opts...)
	return NewManager(regs, DefaultConfig(), opts...).Create()
}

func TestSubmit_HappyPath(t *testing.T) {
	regs := newMemRegistrations("s1")
	clock := newFakeClock()
	rec := &recordingNotifier{}
	s := NewManager(regs, DefaultConfig(), WithClock(clock.Now), WithNotifier(rec)).Create()
	ctx := context.Background()

	require.NoError(t, s.SelectShuttle("s1"))
	assert.Equal(t, FormOpen, s.View().State)

	require.NoError(t, s.Submit(ctx, "  Jane  ", 2))
	v := s.View()
	assert.Equal(t, Confirmed, v.State)
	require.NotNil(t, v.Confirmation)
	assert.Equal(t, "Jane", v.Confirmation.Name)
	assert.Equal(t, "5:10 PM", v.Confirmation.ShuttleTime)

	sh, _ := regs.Shuttle("s1")
	assert.Equal(t, 3, capacity.Occupancy(sh))
	assert.Equal(t, []notifier.Action{notifier.ActionAdded}, rec.actions)

	clock.Advance(2 * time.Second)
	assert.Equal(t, Confirmed, s.View().State)
	clock.Advance(500 * time.Millisecond)
	v = s.View()
	assert.Equal(t, Browsing, v.State)
	assert.Nil(t, v.Confirmation)
}

func TestSelectShuttle(t *testing.T) {
	t.Run("Unknown", func(t *testing.T) {
		s := newTestSession(newMemRegistrations("s1"))
		err := s.SelectShuttle("nope")
		assert.ErrorIs(t, err, ErrUnknownShuttle)
		assert.Equal(t, Browsing, s.View().State)
	})

	t.Run("Full", func(t *testing.T) {
		regs := newMemRegistrations("s1")
		regs.seed("s1", 6, 6, 6)
		s := newTestSession(regs)
		err := s.SelectShuttle("s1")
		assert.ErrorIs(t, err, ErrShuttleFull)
		v := s.View()
		assert.Equal(t, Browsing, v.State)
		assert.Contains(t, v.Message, "full")
	})

	t.Run("NotFromForm", func(t *testing.T) {
		s := newTestSession(newMemRegistrations("s1", "s2"))
		require.NoError(t, s.SelectShuttle("s1"))
		var stateErr *StateError
		require.ErrorAs(t, s.SelectShuttle("s2"), &stateErr)
		assert.Equal(t, FormOpen, stateErr.State)
	})
}

func TestSubmit_CapacityScenarioA(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 6, 6, 4) // 16 of 18
	s := newTestSession(regs)
	ctx := context.Background()

	require.NoError(t, s.SelectShuttle("s1"))

	err := s.Submit(ctx, "Jane", 2)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, 3, capErr.PartySize)
	assert.Equal(t, "Registering 3 passenger(s) would exceed the shuttle capacity of 18. Please select fewer guests or a different shuttle.", err.Error())

	v := s.View()
	assert.Equal(t, FormOpen, v.State, "form stays open after a capacity rejection")
	assert.Equal(t, err.Error(), v.Message)

	require.NoError(t, s.Submit(ctx, "Jane", 1))
	sh, _ := regs.Shuttle("s1")
	assert.Equal(t, 18, capacity.Occupancy(sh))
}

func TestSubmit_Validation(t *testing.T) {
	regs := newMemRegistrations("s1")
	s := newTestSession(regs)
	ctx := context.Background()
	require.NoError(t, s.SelectShuttle("s1"))

	assert.ErrorIs(t, s.Submit(ctx, "   ", 0), ErrInvalidInput)
	assert.ErrorIs(t, s.Submit(ctx, "Jane", -1), ErrInvalidInput)
	assert.ErrorIs(t, s.Submit(ctx, "Jane", 6), ErrInvalidInput)
	assert.Equal(t, FormOpen, s.View().State)

	sh, _ := regs.Shuttle("s1")
	assert.Empty(t, sh.Registrations)
}

func TestSubmit_RejectsOverflowingGuestCount(t *testing.T) {
	regs := newMemRegistrations("s1")
	cfg := DefaultConfig()
	cfg.MaxGuests = math.MaxInt
	s := NewManager(regs, cfg, WithClock(newFakeClock().Now)).Create()
	ctx := context.Background()

	require.NoError(t, s.SelectShuttle("s1"))
	assert.ErrorIs(t, s.Submit(ctx, "Jane", math.MaxInt), ErrInvalidInput)

	var capErr *CapacityError
	require.ErrorAs(t, s.Submit(ctx, "Jane", math.MaxInt-1), &capErr)
	assert.Equal(t, FormOpen, s.View().State)

	sh, _ := regs.Shuttle("s1")
	assert.Empty(t, sh.Registrations)
}

func TestSubmit_WriteFailureRevertsToForm(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.writeErr = errors.New("connection reset")
	rec := &recordingNotifier{}
	s := newTestSession(regs, WithNotifier(rec))

	require.NoError(t, s.SelectShuttle("s1"))
	err := s.Submit(context.Background(), "Jane", 0)
	require.Error(t, err)

	v := s.View()
	assert.Equal(t, FormOpen, v.State)
	assert.NotEmpty(t, v.Message)
	assert.Empty(t, rec.actions)
}

func TestSubmit_RejectsSecondSubmitInFlight(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.block = make(chan struct{})
	s := newTestSession(regs)
	ctx := context.Background()
	require.NoError(t, s.SelectShuttle("s1"))

	done := make(chan error, 1)
	go func() { done <- s.Submit(ctx, "Jane", 0) }()

	require.Eventually(t, func() bool { return s.View().State == Submitting }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Submit(ctx, "Jane", 0), ErrSubmitInProgress)
	assert.ErrorIs(t, s.Cancel(), ErrSubmitInProgress)

	close(regs.block)
	require.NoError(t, <-done)
	assert.Equal(t, Confirmed, s.View().State)

	sh, _ := regs.Shuttle("s1")
	assert.Len(t, sh.Registrations, 1)
}

func TestSubmit_NotifierFailureIsIgnored(t *testing.T) {
	regs := newMemRegistrations("s1")
	s := newTestSession(regs, WithNotifier(&recordingNotifier{err: errors.New("discord down")}))

	require.NoError(t, s.SelectShuttle("s1"))
	require.NoError(t, s.Submit(context.Background(), "Jane", 0))
	assert.Equal(t, Confirmed, s.View().State)
}

func TestCancel(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 1)
	s := newTestSession(regs)

	require.NoError(t, s.Cancel(), "cancel while browsing is a no-op")

	require.NoError(t, s.SelectShuttle("s1"))
	require.NoError(t, s.Cancel())
	v := s.View()
	assert.Equal(t, Browsing, v.State)
	assert.Empty(t, v.ShuttleID)

	require.NoError(t, s.OpenEdit("seed-1"))
	require.NoError(t, s.Cancel())
	assert.Equal(t, Browsing, s.View().State)

	require.NoError(t, s.OpenDelete("seed-1"))
	require.NoError(t, s.Cancel())
	assert.Equal(t, Browsing, s.View().State)

	sh, _ := regs.Shuttle("s1")
	assert.Len(t, sh.Registrations, 1, "cancel never writes")
}

func TestCancel_DismissesConfirmation(t *testing.T) {
	regs := newMemRegistrations("s1")
	s := newTestSession(regs)
	require.NoError(t, s.SelectShuttle("s1"))
	require.NoError(t, s.Submit(context.Background(), "Jane", 0))
	require.Equal(t, Confirmed, s.View().State)

	var stateErr *StateError
	assert.ErrorAs(t, s.SelectShuttle("s1"), &stateErr, "selection waits for the confirmation")

	require.NoError(t, s.Cancel())
	assert.Equal(t, Browsing, s.View().State)
}

func TestSaveEdit_CapacityScenarioB(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 3, 6, 6) // seed-1 is 3, total 15
	rec := &recordingNotifier{}
	s := newTestSession(regs, WithNotifier(rec))
	ctx := context.Background()

	require.NoError(t, s.OpenEdit("seed-1"))
	v := s.View()
	assert.Equal(t, EditOpen, v.State)
	assert.Equal(t, "seed-1", v.RegistrationID)
	assert.Equal(t, "s1", v.ShuttleID)

	// 12 others + 6 = 18 fits; 12 + 7 would not, but 7 exceeds max guests anyway.
	require.NoError(t, s.SaveEdit(ctx, "Jane Edited", 5))
	assert.Equal(t, Browsing, s.View().State)

	sh, reg, ok := regs.ShuttleFor("seed-1")
	require.True(t, ok)
	assert.Equal(t, "Jane Edited", reg.Name)
	assert.Equal(t, 18, capacity.Occupancy(sh))
	assert.Equal(t, []notifier.Action{notifier.ActionUpdated}, rec.actions)
}

func TestSaveEdit_RejectsOverCapacity(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 1, 6, 6, 4) // 17
	s := newTestSession(regs)
	ctx := context.Background()

	require.NoError(t, s.OpenEdit("seed-1"))
	err := s.SaveEdit(ctx, "Jane", 2)
	var capErr *CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, EditOpen, s.View().State)

	require.NoError(t, s.SaveEdit(ctx, "Jane", 1))
	sh, _ := regs.Shuttle("s1")
	assert.Equal(t, 18, capacity.Occupancy(sh))
}

func TestSaveEdit_RegistrationVanished(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 2)
	s := newTestSession(regs)
	ctx := context.Background()

	require.NoError(t, s.OpenEdit("seed-1"))
	require.NoError(t, regs.RemoveRegistration(ctx, "seed-1"))

	assert.ErrorIs(t, s.SaveEdit(ctx, "Jane", 0), ErrUnknownRegistration)
	assert.Equal(t, Browsing, s.View().State)
}

func TestSaveEdit_WriteFailureKeepsModal(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 2)
	s := newTestSession(regs)

	require.NoError(t, s.OpenEdit("seed-1"))
	regs.writeErr = errors.New("timeout")
	require.Error(t, s.SaveEdit(context.Background(), "Jane", 0))

	v := s.View()
	assert.Equal(t, EditOpen, v.State)
	assert.Equal(t, "seed-1", v.RegistrationID)
}

func TestOpenEdit_UnknownRegistration(t *testing.T) {
	s := newTestSession(newMemRegistrations("s1"))
	assert.ErrorIs(t, s.OpenEdit("missing"), ErrUnknownRegistration)
	assert.ErrorIs(t, s.OpenDelete("missing"), ErrUnknownRegistration)
	assert.Equal(t, Browsing, s.View().State)
}

func TestConfirmDelete(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 3, 2)
	rec := &recordingNotifier{}
	s := newTestSession(regs, WithNotifier(rec))
	ctx := context.Background()

	require.NoError(t, s.OpenDelete("seed-1"))
	assert.Equal(t, DeleteConfirm, s.View().State)
	require.NoError(t, s.ConfirmDelete(ctx))
	assert.Equal(t, Browsing, s.View().State)

	sh, _ := regs.Shuttle("s1")
	assert.Equal(t, 2, capacity.Occupancy(sh))
	assert.Equal(t, []notifier.Action{notifier.ActionRemoved}, rec.actions)
}

func TestConfirmDelete_AlreadyGoneIsNoop(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 3, 2)
	s := newTestSession(regs)
	ctx := context.Background()

	require.NoError(t, s.OpenDelete("seed-1"))
	require.NoError(t, regs.RemoveRegistration(ctx, "seed-1"))
	require.NoError(t, s.ConfirmDelete(ctx))

	sh, _ := regs.Shuttle("s1")
	assert.Equal(t, 2, capacity.Occupancy(sh))
}

func TestConfirmDelete_WriteFailureKeepsModal(t *testing.T) {
	regs := newMemRegistrations("s1")
	regs.seed("s1", 3)
	s := newTestSession(regs)

	require.NoError(t, s.OpenDelete("seed-1"))
	regs.writeErr = errors.New("timeout")
	require.Error(t, s.ConfirmDelete(context.Background()))
	assert.Equal(t, DeleteConfirm, s.View().State)
}

func TestWrongStateIntents(t *testing.T) {
	s := newTestSession(newMemRegistrations("s1"))
	ctx := context.Background()

	var stateErr *StateError
	assert.ErrorAs(t, s.Submit(ctx, "Jane", 0), &stateErr)
	assert.ErrorAs(t, s.SaveEdit(ctx, "Jane", 0), &stateErr)
	assert.ErrorAs(t, s.ConfirmDelete(ctx), &stateErr)
	assert.Equal(t, Browsing, stateErr.State)
}

func newSharedStoreRepos(t *testing.T) (*repository.Repository, *repository.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	gs := gormstore.New(db, nil)
	require.NoError(t, gs.Migrate())
	t.Cleanup(func() { gs.Close() })

	ctx := context.Background()
	for _, sh := range models.DefaultCatalog() {
		require.NoError(t, gs.UpsertShuttle(ctx, sh))
	}
	for i, guests := range []int{5, 5, 4} { // 6 + 6 + 5 = 17
		require.NoError(t, gs.InsertRegistration(ctx, &models.Registration{
			ShuttleID: "arrival-shuttle-1",
			Name:      fmt.Sprintf("Existing %d", i),
			Guests:    guests,
		}))
	}
	return repository.New(gs, nil), repository.New(gs, nil)
}

// Both clients see 17/18 and each adds a solo party. The guard runs against
// each client's own snapshot, so both writes land and the shuttle ends at 19.
func TestConcurrentClientsCanOverbook(t *testing.T) {
	repoA, repoB := newSharedStoreRepos(t)
	ctx := context.Background()
	require.NoError(t, repoA.LoadAll(ctx))
	require.NoError(t, repoB.LoadAll(ctx))

	a := newTestSession(repoA)
	b := newTestSession(repoB)
	require.NoError(t, a.SelectShuttle("arrival-shuttle-1"))
	require.NoError(t, b.SelectShuttle("arrival-shuttle-1"))

	require.NoError(t, a.Submit(ctx, "Client A", 0))
	require.NoError(t, b.Submit(ctx, "Client B", 0))

	require.NoError(t, repoA.LoadAll(ctx))
	sh, ok := repoA.Shuttle("arrival-shuttle-1")
	require.True(t, ok)
	assert.Equal(t, 19, capacity.Occupancy(sh))
	assert.True(t, capacity.NewPolicy(capacity.DefaultCapacity).IsFull(sh))
	assert.Equal(t, 0, capacity.NewPolicy(capacity.DefaultCapacity).Remaining(sh))
}
