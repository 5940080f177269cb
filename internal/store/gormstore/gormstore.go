// Package gormstore implements store.Store on gorm. Change notifications are
// published in-process after each successful write, so every client sharing
// the Store sees them.
package gormstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db     *gorm.DB
	feed   *store.Feed
	logger *slog.Logger
	closed atomic.Bool
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:     db,
		feed:   store.NewFeed(),
		logger: logger.With("component", "gormstore"),
	}
}

// Migrate creates the three collections.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.Shuttle{}, &models.Registration{}, &models.SongRequest{})
}

func (s *Store) ListShuttles(ctx context.Context) ([]models.Shuttle, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var shuttles []models.Shuttle
	if err := s.db.WithContext(ctx).Order("id asc").Find(&shuttles).Error; err != nil {
		return nil, fmt.Errorf("list shuttles: %w", err)
	}
	return shuttles, nil
}

func (s *Store) UpsertShuttle(ctx context.Context, shuttle models.Shuttle) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	row := models.Shuttle{ID: shuttle.ID, Time: shuttle.Time, Type: shuttle.Type}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"time", "type"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert shuttle %s: %w", shuttle.ID, err)
	}
	s.publish(store.EventUpdate, store.TableShuttles)
	return nil
}

func (s *Store) ListRegistrations(ctx context.Context) ([]models.Registration, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var regs []models.Registration
	if err := s.db.WithContext(ctx).Order("timestamp asc, id asc").Find(&regs).Error; err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	return regs, nil
}

func (s *Store) InsertRegistration(ctx context.Context, reg *models.Registration) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.Timestamp.IsZero() {
		reg.Timestamp = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(reg).Error; err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	s.publish(store.EventInsert, store.TableRegistrations)
	return nil
}

func (s *Store) UpdateRegistration(ctx context.Context, id, name string, guests int, ts time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, store.ErrClosed
	}
	res := s.db.WithContext(ctx).Model(&models.Registration{}).Where("id = ?", id).Updates(map[string]any{
		"name":      name,
		"guests":    guests,
		"timestamp": ts,
	})
	if res.Error != nil {
		return 0, fmt.Errorf("update registration %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(store.EventUpdate, store.TableRegistrations)
	}
	return res.RowsAffected, nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) (int64, error) {
	if s.closed.Load() {
		return 0, store.ErrClosed
	}
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Registration{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete registration %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.publish(store.EventDelete, store.TableRegistrations)
	}
	return res.RowsAffected, nil
}

func (s *Store) ListSongRequests(ctx context.Context) ([]models.SongRequest, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	var reqs []models.SongRequest
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("list song requests: %w", err)
	}
	return reqs, nil
}

func (s *Store) InsertSongRequest(ctx context.Context, req *models.SongRequest) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("insert song request: %w", err)
	}
	s.publish(store.EventInsert, store.TableSongRequests)
	return nil
}

func (s *Store) Subscribe(ctx context.Context, table string) (<-chan store.Change, error) {
	if s.closed.Load() {
		return nil, store.ErrClosed
	}
	return s.feed.Subscribe(ctx, table), nil
}

// Close ends all subscriptions. The underlying *gorm.DB belongs to the caller.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.feed.Close()
	return nil
}

func (s *Store) publish(event store.EventType, table string) {
	s.logger.Debug("change published", "event", event, "table", table)
	s.feed.Publish(store.Change{Event: event, Schema: store.DefaultSchema, Table: table})
}
