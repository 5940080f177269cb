package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gdg-garage/shuttle-planner/internal/capacity"
	"github.com/gdg-garage/shuttle-planner/internal/models"
	"github.com/gdg-garage/shuttle-planner/internal/repository"
)

type ShuttleHandler struct {
	repo   *repository.Repository
	policy capacity.Policy
}

func NewShuttleHandler(repo *repository.Repository, policy capacity.Policy) *ShuttleHandler {
	return &ShuttleHandler{repo: repo, policy: policy}
}

type RegistrationView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Guests    int       `json:"guests"`
	PartySize int       `json:"party_size"`
	Timestamp time.Time `json:"timestamp"`
}

type ShuttleView struct {
	ID            string             `json:"id"`
	Time          string             `json:"time"`
	Type          models.ShuttleType `json:"type"`
	Occupancy     int                `json:"occupancy"`
	Remaining     int                `json:"remaining"`
	Capacity      int                `json:"capacity"`
	Full          bool               `json:"full"`
	Level         capacity.Level     `json:"level"`
	Registrations []RegistrationView `json:"registrations"`
}

type ShuttlesOutput struct {
	Body struct {
		Shuttles []ShuttleView `json:"shuttles"`
		Loaded   bool          `json:"loaded"`
		Error    string        `json:"error,omitempty" doc:"Set while the last load or write failed"`
	}
}

func (h *ShuttleHandler) HandleList(ctx context.Context, input *struct{}) (*ShuttlesOutput, error) {
	res := &ShuttlesOutput{}
	res.Body.Shuttles = []ShuttleView{}
	for _, sh := range h.repo.Shuttles() {
		res.Body.Shuttles = append(res.Body.Shuttles, h.view(sh))
	}
	res.Body.Loaded = h.repo.Loaded()
	if err := h.repo.Err(); err != nil {
		res.Body.Error = err.Error()
	}
	return res, nil
}

func (h *ShuttleHandler) view(sh models.Shuttle) ShuttleView {
	v := ShuttleView{
		ID:            sh.ID,
		Time:          sh.Time,
		Type:          sh.Type,
		Occupancy:     capacity.Occupancy(sh),
		Remaining:     h.policy.Remaining(sh),
		Capacity:      h.policy.Capacity,
		Full:          h.policy.IsFull(sh),
		Level:         h.policy.Level(sh),
		Registrations: make([]RegistrationView, 0, len(sh.Registrations)),
	}
	for _, reg := range sh.Registrations {
		v.Registrations = append(v.Registrations, RegistrationView{
			ID:        reg.ID,
			Name:      reg.Name,
			Guests:    reg.Guests,
			PartySize: reg.PartySize(),
			Timestamp: reg.Timestamp,
		})
	}
	return v
}

type AdminRegistrationsOutput struct {
	Body struct {
		Registrations []repository.AdminRow `json:"registrations"`
		Total         int                   `json:"total" doc:"Passengers across all registrations"`
	}
}

// HandleAdminList fails while the view is empty because of a fetch error, so
// an outage never reads as "no registrations".
func (h *ShuttleHandler) HandleAdminList(ctx context.Context, input *struct{}) (*AdminRegistrationsOutput, error) {
	var fetchErr *repository.FetchError
	if err := h.repo.Err(); errors.As(err, &fetchErr) {
		return nil, huma.Error502BadGateway("Failed to load registrations", err)
	}
	res := &AdminRegistrationsOutput{}
	res.Body.Registrations = h.repo.AdminListing()
	if res.Body.Registrations == nil {
		res.Body.Registrations = []repository.AdminRow{}
	}
	for _, row := range res.Body.Registrations {
		res.Body.Total += row.PartySize
	}
	return res, nil
}
