package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT APPLICATION COMMAND
// Creates the student's application on first submit and updates it afterwards.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitApplicationCommand contains the student's form.
type SubmitApplicationCommand struct {
	Caller  application.Caller
	Profile application.Profile

	// SaveAsDraft keeps the application in draft instead of submitting it.
	SaveAsDraft bool
}

// Validate validates the command.
func (c SubmitApplicationCommand) Validate() error {
	if c.Caller == nil {
		return shared.NewDomainError("application", "Submit", shared.ErrUnauthorized, "caller is required")
	}
	if _, ok := c.Caller.(application.StudentCaller); !ok {
		return shared.NewDomainError("application", "Submit", shared.ErrForbidden, "only students can submit applications")
	}
	return nil
}

// SubmitApplicationResult contains the stored application.
type SubmitApplicationResult struct {
	Application    *application.Application
	Created        bool
	PreviousStatus application.Status
}

// SubmitApplicationHandler handles SubmitApplicationCommand.
type SubmitApplicationHandler struct {
	deps  Deps
	newID func() string
}

// NewSubmitApplicationHandler creates a new SubmitApplicationHandler.
func NewSubmitApplicationHandler(deps Deps) *SubmitApplicationHandler {
	return &SubmitApplicationHandler{
		deps:  deps.withDefaults(),
		newID: uuid.NewString,
	}
}

// Handle executes the submit command.
func (h *SubmitApplicationHandler) Handle(ctx context.Context, cmd SubmitApplicationCommand) (*SubmitApplicationResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	app, err := h.deps.Repo.GetByOwner(ctx, cmd.Caller.UserID())
	switch {
	case shared.IsNotFound(err):
		return h.create(ctx, cmd)
	case err != nil:
		return nil, fmt.Errorf("submit_application: load: %w", err)
	}

	expected := app.Version
	previous, err := h.deps.Machine.Submit(cmd.Caller, app, cmd.Profile, cmd.SaveAsDraft)
	if err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "submit_application", app, expected); err != nil {
		return nil, err
	}

	h.deps.Logger.Info("application updated",
		logger.ApplicationID(app.ID),
		logger.OwnerID(app.OwnerID.String()),
		logger.Status(string(app.Status)),
		logger.String("previous_status", string(previous)),
	)
	h.deps.publish(shared.NewApplicationSubmittedEvent(app.ID, app.OwnerID.String(), string(app.Status), string(previous)))

	return &SubmitApplicationResult{
		Application:    app.WithoutInternalNotes(),
		PreviousStatus: previous,
	}, nil
}

func (h *SubmitApplicationHandler) create(ctx context.Context, cmd SubmitApplicationCommand) (*SubmitApplicationResult, error) {
	app, err := h.deps.Machine.Create(cmd.Caller, h.newID(), cmd.Profile, cmd.SaveAsDraft)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Repo.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("submit_application: create: %w", err)
	}

	h.deps.Logger.Info("application created",
		logger.ApplicationID(app.ID),
		logger.OwnerID(app.OwnerID.String()),
		logger.Status(string(app.Status)),
	)
	h.deps.publish(shared.NewApplicationSubmittedEvent(app.ID, app.OwnerID.String(), string(app.Status), ""))

	return &SubmitApplicationResult{
		Application: app.WithoutInternalNotes(),
		Created:     true,
	}, nil
}
