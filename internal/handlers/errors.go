package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gdg-garage/shuttle-planner/internal/repository"
	"github.com/gdg-garage/shuttle-planner/internal/workflow"
)

// workflowError maps session and repository errors to HTTP statuses.
func workflowError(err error) error {
	var capErr *workflow.CapacityError
	var stateErr *workflow.StateError
	var writeErr *repository.WriteError

	switch {
	case errors.As(err, &capErr):
		return huma.Error409Conflict(capErr.Error())
	case errors.As(err, &stateErr),
		errors.Is(err, workflow.ErrShuttleFull),
		errors.Is(err, workflow.ErrSubmitInProgress):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, workflow.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, workflow.ErrUnknownShuttle),
		errors.Is(err, workflow.ErrUnknownRegistration),
		errors.Is(err, repository.ErrRegistrationNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.As(err, &writeErr):
		return huma.Error502BadGateway("Store rejected the change", err)
	}
	return huma.Error500InternalServerError("Unexpected error", err)
}
