// Package songs collects DJ song requests. It shares the store with the
// shuttle data but has no capacity rules of its own.
package songs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/store"
)

var ErrSongNameRequired = errors.New("song name is required")

type Service struct {
	store  store.Store
	logger *slog.Logger
}

func NewService(s store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger.With("component", "songs")}
}

// List returns requests newest first.
func (s *Service) List(ctx context.Context) ([]models.SongRequest, error) {
	reqs, err := s.store.ListSongRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list song requests: %w", err)
	}
	if reqs == nil {
		reqs = []models.SongRequest{}
	}
	return reqs, nil
}

// Submit stores a request. Blank optional fields are stored as NULL.
func (s *Service) Submit(ctx context.Context, songName, artist, requestedBy, playTime string) (models.SongRequest, error) {
	songName = strings.TrimSpace(songName)
	if songName == "" {
		return models.SongRequest{}, ErrSongNameRequired
	}
	req := models.SongRequest{
		SongName:    songName,
		Artist:      optional(artist),
		RequestedBy: optional(requestedBy),
		PlayTime:    optional(playTime),
	}
	if err := s.store.InsertSongRequest(ctx, &req); err != nil {
		s.logger.Error("failed to store song request", "error", err)
		return models.SongRequest{}, fmt.Errorf("submit song request: %w", err)
	}
	s.logger.Info("song requested", "song", req.SongName)
	return req, nil
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
