package command

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ReassignAgentCommand hands an application over to another agent.
type ReassignAgentCommand struct {
	Caller        application.Caller
	ApplicationID string
	AgentID       shared.AgentID
}

// ReassignAgentHandler handles ReassignAgentCommand.
type ReassignAgentHandler struct {
	deps Deps
}

// NewReassignAgentHandler creates a new ReassignAgentHandler.
func NewReassignAgentHandler(deps Deps) *ReassignAgentHandler {
	return &ReassignAgentHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *ReassignAgentHandler) Handle(ctx context.Context, cmd ReassignAgentCommand) (*application.Application, error) {
	app, err := h.deps.load(ctx, cmd.ApplicationID)
	if err != nil {
		return nil, err
	}

	expected := app.Version
	previous, err := h.deps.Machine.ReassignAgent(cmd.Caller, app, cmd.AgentID)
	if err != nil {
		return nil, err
	}
	if err := h.deps.save(ctx, "reassign_agent", app, expected); err != nil {
		return nil, err
	}

	h.deps.Logger.Info("agent reassigned",
		logger.ApplicationID(app.ID),
		logger.String("previous_agent", previous.String()),
		logger.AgentID(app.AssignedAgent.String()),
	)
	h.deps.publish(shared.NewAgentReassignedEvent(
		app.ID, cmd.Caller.UserID().String(), previous.String(), app.AssignedAgent.String(),
	))

	return app, nil
}
