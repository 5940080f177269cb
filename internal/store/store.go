// Package store is the client side of the hosted relational store: typed
// query/insert/update/delete over the shuttles, registrations and dj_requests
// collections, plus a change-notification subscription per collection.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/models"
)

const (
	TableShuttles      = "shuttles"
	TableRegistrations = "registrations"
	TableSongRequests  = "dj_requests"

	// DefaultSchema is reported on every change notification.
	DefaultSchema = "public"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("store is closed")

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
	// EventAll is only meaningful as a subscription filter.
	EventAll EventType = "*"
)

// Change is a row-level change notification. It carries no row data;
// subscribers refetch what they need.
type Change struct {
	Event  EventType `json:"event"`
	Schema string    `json:"schema"`
	Table  string    `json:"table"`
}

type Store interface {
	ListShuttles(ctx context.Context) ([]models.Shuttle, error)
	UpsertShuttle(ctx context.Context, shuttle models.Shuttle) error

	ListRegistrations(ctx context.Context) ([]models.Registration, error)
	// InsertRegistration assigns ID and Timestamp when they are zero.
	InsertRegistration(ctx context.Context, reg *models.Registration) error
	UpdateRegistration(ctx context.Context, id, name string, guests int, ts time.Time) (int64, error)
	// DeleteRegistration reports zero rows for an unknown id without error.
	DeleteRegistration(ctx context.Context, id string) (int64, error)

	// ListSongRequests returns newest first.
	ListSongRequests(ctx context.Context) ([]models.SongRequest, error)
	InsertSongRequest(ctx context.Context, req *models.SongRequest) error

	// Subscribe delivers changes on table until ctx is done, then closes the
	// channel.
	Subscribe(ctx context.Context, table string) (<-chan Change, error)

	Close() error
}
