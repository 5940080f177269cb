// Package pgstore implements store.Store on PostgreSQL using pgx directly.
// Change notifications come from a trigger that calls pg_notify; one pooled
// connection LISTENs and forwards them to subscribers.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/store"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listenRetryDelay = 2 * time.Second

type Store struct {
	db     *pgxpool.Pool
	feed   *store.Feed
	logger *slog.Logger

	listenOnce sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

var _ store.Store = (*Store)(nil)

func New(db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		db:     db,
		feed:   store.NewFeed(),
		logger: logger.With("component", "pgstore"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Migrate creates the tables and change triggers.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) ListShuttles(ctx context.Context) ([]models.Shuttle, error) {
	rows, err := s.db.Query(ctx, `SELECT id, time, type FROM shuttles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list shuttles: %w", err)
	}
	defer rows.Close()

	var shuttles []models.Shuttle
	for rows.Next() {
		var sh models.Shuttle
		var typ string
		if err := rows.Scan(&sh.ID, &sh.Time, &typ); err != nil {
			return nil, fmt.Errorf("scan shuttle: %w", err)
		}
		sh.Type = models.ShuttleType(typ)
		shuttles = append(shuttles, sh)
	}
	return shuttles, rows.Err()
}

func (s *Store) UpsertShuttle(ctx context.Context, shuttle models.Shuttle) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO shuttles (id, time, type) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET time = EXCLUDED.time, type = EXCLUDED.type`,
		shuttle.ID, shuttle.Time, string(shuttle.Type),
	)
	if err != nil {
		return fmt.Errorf("upsert shuttle %s: %w", shuttle.ID, err)
	}
	return nil
}

func (s *Store) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, shuttle_id, name, guests, timestamp
		 FROM registrations
		 ORDER BY timestamp ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.ShuttleID, &reg.Name, &reg.Guests, &reg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (s *Store) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Timestamp.IsZero() {
		reg.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO registrations (id, shuttle_id, name, guests, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		reg.ID, reg.ShuttleID, reg.Name, reg.Guests, reg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func (s *Store) UpdateRegistration(ctx context.Context, id, name string, guests int, ts time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE registrations SET name = $2, guests = $3, timestamp = $4 WHERE id = $1`,
		id, name, guests, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("update registration %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete registration %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) ListSongRequests(ctx context.Context) ([]models.SongRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, created_at, song_name, artist, requested_by, play_time
		 FROM dj_requests
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list song requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.SongRequest
	for rows.Next() {
		var req models.SongRequest
		if err := rows.Scan(&req.ID, &req.CreatedAt, &req.SongName, &req.Artist, &req.RequestedBy, &req.PlayTime); err != nil {
			return nil, fmt.Errorf("scan song request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func (s *Store) InsertSongRequest(ctx context.Context, req *models.SongRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO dj_requests (id, created_at, song_name, artist, requested_by, play_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		req.ID, req.CreatedAt, req.SongName, req.Artist, req.RequestedBy, req.PlayTime,
	)
	if err != nil {
		return fmt.Errorf("insert song request: %w", err)
	}
	return nil
}

// Subscribe starts the shared listener on first use.
func (s *Store) Subscribe(ctx context.Context, table string) (<-chan store.Change, error) {
	if s.ctx.Err() != nil {
		return nil, store.ErrClosed
	}
	s.listenOnce.Do(func() {
		s.wg.Add(1)
		go s.listen()
	})
	return s.feed.Subscribe(ctx, table), nil
}

// Close stops the listener and ends all subscriptions. The pool belongs to
// the caller.
func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	s.feed.Close()
	return nil
}

func (s *Store) listen() {
	defer s.wg.Done()
	for {
		err := s.listenSession()
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("change listener stopped, retrying", "error", err, "delay", listenRetryDelay)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(listenRetryDelay):
		}
	}
}

// listenSession holds one connection in LISTEN until it fails or the store closes.
func (s *Store) listenSession() error {
	conn, err := s.db.Acquire(s.ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(s.ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer func() {
		// The connection goes back to the pool; drop the subscription first.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.Exec(ctx, "UNLISTEN *")
	}()
	s.logger.Info("listening for changes", "channel", NotifyChannel)
	s.listening()

	for {
		n, err := conn.Conn().WaitForNotification(s.ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		change, err := decodeChange(n.Payload)
		if err != nil {
			s.logger.Warn("dropping malformed notification", "payload", n.Payload, "error", err)
			continue
		}
		s.feed.Publish(change)
	}
}

// watchedTables are the collections with a notify trigger.
var watchedTables = []string{store.TableShuttles, store.TableRegistrations, store.TableSongRequests}

// listening runs each time LISTEN is (re)established. Notifications sent
// while no connection was listening are gone, so every collection is
// reported as updated and subscribers refetch.
func (s *Store) listening() {
	for _, table := range watchedTables {
		s.feed.Publish(store.Change{Event: store.EventUpdate, Schema: store.DefaultSchema, Table: table})
	}
}

func decodeChange(payload string) (store.Change, error) {
	var c store.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return store.Change{}, fmt.Errorf("decode change: %w", err)
	}
	switch c.Event {
	case store.EventInsert, store.EventUpdate, store.EventDelete:
	default:
		return store.Change{}, fmt.Errorf("decode change: unknown event %q", c.Event)
	}
	if c.Table == "" {
		return store.Change{}, errors.New("decode change: missing table")
	}
	if c.Schema == "" {
		c.Schema = store.DefaultSchema
	}
	return c, nil
}
