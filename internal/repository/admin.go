package repository

import (
	"slices"
	"time"

	"github.com/gdg-garage/shuttle-planner/internal/models"
)

const (
	UnknownShuttleTime = "Unknown Shuttle"
	UnknownShuttleType = "Unknown"
)

// AdminRow is one registration with its shuttle's time and type.
type AdminRow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Guests      int       `json:"guests"`
	PartySize   int       `json:"party_size"`
	Timestamp   time.Time `json:"timestamp"`
	ShuttleID   string    `json:"shuttle_id"`
	ShuttleTime string    `json:"shuttle_time"`
	ShuttleType string    `json:"shuttle_type"`
}

// AdminListing lists every registration, including ones whose shuttle is
// missing from the catalog, ordered by shuttle time and newest first within
// a shuttle.
func (r *Repository) AdminListing() []AdminRow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := make(map[string]models.Shuttle, len(r.shuttles))
	for _, sh := range r.shuttles {
		byID[sh.ID] = sh
	}

	rows := make([]AdminRow, 0, len(r.all))
	for _, reg := range r.all {
		row := AdminRow{
			ID:          reg.ID,
			Name:        reg.Name,
			Guests:      reg.Guests,
			PartySize:   reg.PartySize(),
			Timestamp:   reg.Timestamp,
			ShuttleID:   reg.ShuttleID,
			ShuttleTime: UnknownShuttleTime,
			ShuttleType: UnknownShuttleType,
		}
		if sh, ok := byID[reg.ShuttleID]; ok {
			row.ShuttleTime = sh.Time
			row.ShuttleType = string(sh.Type)
		}
		rows = append(rows, row)
	}

	slices.SortStableFunc(rows, func(a, b AdminRow) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	slices.SortStableFunc(rows, func(a, b AdminRow) int {
		switch {
		case models.TimeBefore(a.ShuttleTime, b.ShuttleTime):
			return -1
		case models.TimeBefore(b.ShuttleTime, a.ShuttleTime):
			return 1
		}
		return 0
	})
	return rows
}
