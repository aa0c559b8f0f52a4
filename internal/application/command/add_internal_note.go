package command

import (
	"context"

	"github.com/google/uuid"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// AddInternalNoteCommand appends a staff-only note.
type AddInternalNoteCommand struct {
	Caller        application.Caller
	ApplicationID string
	Note          string
}

// AddInternalNoteResult contains the appended note and the updated application.
type AddInternalNoteResult struct {
	Note        application.InternalNote
	Application *application.Application
}

// AddInternalNoteHandler handles AddInternalNoteCommand.
type AddInternalNoteHandler struct {
	deps  Deps
	newID func() string
}

// NewAddInternalNoteHandler creates a new AddInternalNoteHandler.
func NewAddInternalNoteHandler(deps Deps) *AddInternalNoteHandler {
	return &AddInternalNoteHandler{deps: deps.withDefaults(), newID: uuid.NewString}
}

// Handle executes the command.
func (h *AddInternalNoteHandler) Handle(ctx context.Context, cmd AddInternalNoteCommand) (*AddInternalNoteResult, error) {
	app, err := h.deps.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	expected := app.Version
	note, err := h.deps.Machine.AddInternalNote(cmd.Caller, app, h.newID(), cmd.Note)
	if err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "add_internal_note", app, expected); err != nil {
		return nil, err
	}

	h.deps.Logger.Info("internal note added",
		logger.ApplicationID(app.ID),
		logger.AgentID(note.Author.String()),
		logger.String("note_id", note.ID),
	)
	h.deps.publish(shared.NewInternalNoteAddedEvent(app.ID, note.Author.String(), note.ID))

	return &AddInternalNoteResult{Note: note, Application: app}, nil
}
