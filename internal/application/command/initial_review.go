package command

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// INITIAL REVIEW COMMAND
// The first agent to review a submitted application becomes its owner agent.
// ══════════════════════════════════════════════════════════════════════════════

// InitialReviewCommand contains the reviewer's decision.
type InitialReviewCommand struct {
	Caller        application.Caller
	ApplicationID string

	// Decision is "accepted" or "rejected".
	Decision application.Decision
	Feedback string
}

// InitialReviewHandler handles InitialReviewCommand.
type InitialReviewHandler struct {
	deps Deps
}

// NewInitialReviewHandler creates a new InitialReviewHandler.
func NewInitialReviewHandler(deps Deps) *InitialReviewHandler {
	return &InitialReviewHandler{deps: deps.withDefaults()}
}

// Handle executes the initial review.
func (h *InitialReviewHandler) Handle(ctx context.Context, cmd InitialReviewCommand) (*application.Application, error) {
	app, err := h.deps.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	expected := app.Version
	if err := h.deps.Machine.InitialReview(cmd.Caller, app, cmd.Decision, cmd.Feedback); err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "initial_review", app, expected); err != nil {
		return nil, err
	}

	h.deps.Logger.Info("initial review recorded",
		logger.ApplicationID(app.ID),
		logger.AgentID(app.AssignedAgent.String()),
		logger.Status(string(app.Status)),
	)
	h.deps.publish(shared.NewInitialReviewEvent(
		app.ID, app.OwnerID.String(), app.AssignedAgent.String(), string(app.Status), app.RejectionFeedback,
	))

	return app, nil
}
