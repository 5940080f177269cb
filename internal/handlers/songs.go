package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/songs"
)

type SongHandler struct {
	songs *songs.Service
}

func NewSongHandler(svc *songs.Service) *SongHandler {
	return &SongHandler{songs: svc}
}

type SongRequestInput struct {
	Body struct {
		SongName    string `json:"song_name" doc:"Song title"`
		Artist      string `json:"artist,omitempty"`
		RequestedBy string `json:"requested_by,omitempty"`
		PlayTime    string `json:"play_time,omitempty" doc:"When the song should be played"`
	}
}

type SongRequestOutput struct {
	Body models.SongRequest
}

type SongListOutput struct {
	Body struct {
		Requests []models.SongRequest `json:"requests"`
	}
}

func (h *SongHandler) HandleList(ctx context.Context, input *struct{}) (*SongListOutput, error) {
	reqs, err := h.songs.List(ctx)
	if err != nil {
		return nil, huma.Error502BadGateway("Failed to load song requests", err)
	}
	res := &SongListOutput{}
	res.Body.Requests = reqs
	return res, nil
}

func (h *SongHandler) HandleSubmit(ctx context.Context, input *SongRequestInput) (*SongRequestOutput, error) {
	req, err := h.songs.Submit(ctx, input.Body.SongName, input.Body.Artist, input.Body.RequestedBy, input.Body.PlayTime)
	if errors.Is(err, songs.ErrSongNameRequired) {
		return nil, huma.Error400BadRequest(err.Error())
	}
	if err != nil {
		return nil, huma.Error502BadGateway("Failed to submit song request", err)
	}
	return &SongRequestOutput{Body: req}, nil
}
