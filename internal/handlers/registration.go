package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gdg-garage/shuttle-planner/internal/workflow"
)

// SessionHandler exposes one registration workflow per client session.
type SessionHandler struct {
	sessions *workflow.Manager
}

func NewSessionHandler(sessions *workflow.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type SessionInput struct {
	ID string `path:"id" doc:"Session ID"`
}

type SelectShuttleInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		ShuttleID string `json:"shuttle_id" doc:"Shuttle to register for"`
	}
}

type RegistrationFormInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		Name   string `json:"name" doc:"Registrant name"`
		Guests int    `json:"guests" doc:"Additional passengers besides the registrant"`
	}
}

type RegistrationTargetInput struct {
	ID   string `path:"id" doc:"Session ID"`
	Body struct {
		RegistrationID string `json:"registration_id" doc:"Registration to edit or delete"`
	}
}

type SessionOutput struct {
	Body workflow.View
}

func (h *SessionHandler) session(id string) (*workflow.Session, error) {
	s, ok := h.sessions.Get(id)
	if !ok {
		return nil, huma.Error404NotFound("Session not found")
	}
	return s, nil
}

func respond(s *workflow.Session, err error) (*SessionOutput, error) {
	if err != nil {
		return nil, workflowError(err)
	}
	return &SessionOutput{Body: s.View()}, nil
}

func (h *SessionHandler) HandleCreate(ctx context.Context, input *struct{}) (*SessionOutput, error) {
	return respond(h.sessions.Create(), nil)
}

func (h *SessionHandler) HandleGet(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, nil)
}

func (h *SessionHandler) HandleSelect(ctx context.Context, input *SelectShuttleInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.SelectShuttle(input.Body.ShuttleID))
}

func (h *SessionHandler) HandleSubmit(ctx context.Context, input *RegistrationFormInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.Submit(ctx, input.Body.Name, input.Body.Guests))
}

func (h *SessionHandler) HandleCancel(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.Cancel())
}

func (h *SessionHandler) HandleOpenEdit(ctx context.Context, input *RegistrationTargetInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.OpenEdit(input.Body.RegistrationID))
}

func (h *SessionHandler) HandleSaveEdit(ctx context.Context, input *RegistrationFormInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.SaveEdit(ctx, input.Body.Name, input.Body.Guests))
}

func (h *SessionHandler) HandleOpenDelete(ctx context.Context, input *RegistrationTargetInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.OpenDelete(input.Body.RegistrationID))
}

func (h *SessionHandler) HandleConfirmDelete(ctx context.Context, input *SessionInput) (*SessionOutput, error) {
	s, err := h.session(input.ID)
	if err != nil {
		return nil, err
	}
	return respond(s, s.ConfirmDelete(ctx))
}
