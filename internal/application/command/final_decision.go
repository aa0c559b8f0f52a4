package command

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// FinalDecisionCommand approves or rejects an accepted application.
type FinalDecisionCommand struct {
	Caller        application.Caller
	ApplicationID string

	// Decision is "approved" or "rejected".
	Decision application.Decision
	Feedback string
}

// FinalDecisionHandler handles FinalDecisionCommand.
type FinalDecisionHandler struct {
	deps Deps
}

// NewFinalDecisionHandler creates a new FinalDecisionHandler.
func NewFinalDecisionHandler(deps Deps) *FinalDecisionHandler {
	return &FinalDecisionHandler{deps: deps.withDefaults()}
}

// Handle executes the final decision.
func (h *FinalDecisionHandler) Handle(ctx context.Context, cmd FinalDecisionCommand) (*application.Application, error) {
	app, err := h.deps.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	expected := app.Version
	if err := h.deps.Machine.FinalDecision(cmd.Caller, app, cmd.Decision, cmd.Feedback); err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "final_decision", app, expected); err != nil {
		return nil, err
	}

	reviewer := application.ReviewerID(cmd.Caller)
	h.deps.Logger.Info("final decision recorded",
		logger.ApplicationID(app.ID),
		logger.AgentID(reviewer.String()),
		logger.Status(string(app.Status)),
	)
	h.deps.publish(shared.NewFinalDecisionEvent(
		app.ID, app.OwnerID.String(), reviewer.String(), string(app.Status), app.RejectionFeedback,
	))

	return app, nil
}
