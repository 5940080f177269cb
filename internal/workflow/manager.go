package workflow

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/gdg-garage/shuttle-planner/internal/notifier"
)

const cleanupInterval = 5 * time.Minute

type ManagerOption func(*Manager)

func WithNotifier(n notifier.Notifier) ManagerOption {
	return func(m *Manager) { m.notifier = n }
}

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithClock drives confirmation timing; tests pass a fake.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// Manager keeps one Session per client. Sessions expire after SessionTTL
// without access.
type Manager struct {
	cfg      Config
	regs     Registrations
	notifier notifier.Notifier
	logger   *slog.Logger
	now      func() time.Time
	cache    *gocache.Cache
}

func NewManager(regs Registrations, cfg Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:    cfg,
		regs:   regs,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cfg.SessionTTL <= 0 {
		m.cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	m.cache = gocache.New(m.cfg.SessionTTL, cleanupInterval)
	return m
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	s := newSession(id, m.cfg, m.regs, m.notifier, m.logger, m.now)
	m.cache.Set(id, s, gocache.DefaultExpiration)
	return s
}

// Get returns the session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	value, found := m.cache.Get(id)
	if !found {
		return nil, false
	}
	s, ok := value.(*Session)
	if !ok {
		m.logger.Error("wrong type in session cache", "session_id", id)
		return nil, false
	}
	m.cache.Set(id, s, gocache.DefaultExpiration)
	return s, true
}

func (m *Manager) Delete(id string) {
	m.cache.Delete(id)
}

func (m *Manager) Count() int {
	return m.cache.ItemCount()
}
