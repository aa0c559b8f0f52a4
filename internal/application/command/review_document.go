package command

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ReviewDocumentCommand records a decision on one document slot.
type ReviewDocumentCommand struct {
	Caller        application.Caller
	ApplicationID string

	// DocName is the slot key, e.g. "transcript". Unknown keys are rejected by the state machine.
	DocName string

	// Status is "approved" or "rejected_for_revision".
	Status   application.DocumentStatus
	Feedback string
}

// ReviewDocumentHandler handles ReviewDocumentCommand.
type ReviewDocumentHandler struct {
	deps Deps
}

// NewReviewDocumentHandler creates a new ReviewDocumentHandler.
func NewReviewDocumentHandler(deps Deps) *ReviewDocumentHandler {
	return &ReviewDocumentHandler{deps: deps.withDefaults()}
}

// Handle executes the document review.
func (h *ReviewDocumentHandler) Handle(ctx context.Context, cmd ReviewDocumentCommand) (*application.Application, error) {
	app, err := h.deps.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	key := application.DocumentKey(cmd.DocName)
	expected := app.Version
	if err := h.deps.Machine.ReviewDocument(cmd.Caller, app, key, cmd.Status, cmd.Feedback); err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "review_document", app, expected); err != nil {
		return nil, err
	}

	reviewer := application.ReviewerID(cmd.Caller)
	doc, _ := app.Documents.Get(key)
	h.deps.Logger.Info("document reviewed",
		logger.ApplicationID(app.ID),
		logger.DocumentKey(key.String()),
		logger.Status(string(doc.Status)),
		logger.AgentID(reviewer.String()),
	)
	h.deps.publish(shared.NewDocumentReviewedEvent(
		app.ID, app.OwnerID.String(), reviewer.String(), key.String(), string(doc.Status), doc.Feedback,
	))

	return app, nil
}
