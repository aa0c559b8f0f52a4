// Package command contains write operations (CQRS - Commands) of the review workflow.
//
// Every handler follows the same sequence: load the application, remember its
// version, apply the transition through application.StateMachine, save with a
// conditional update, then publish a domain event. A failed guard returns
// before anything is written; a lost version race returns a Conflict error.
package command

import (
	"context"
	"fmt"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// Deps are the collaborators shared by all command handlers.
type Deps struct {
	Repo    application.Repository
	Machine *application.StateMachine

	// Events is optional; nil disables publishing.
	Events shared.EventPublisher
	Logger *logger.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = logger.Default()
	}
	if d.Machine == nil {
		d.Machine = application.NewStateMachine(application.DefaultWorkflowConfig())
	}
	return d
}

// load fetches the application by its public id. Malformed ids are NotFound.
func (d Deps) load(ctx context.Context, rawID string) (*application.Application, error) {
	id, err := shared.NewApplicationID(rawID)
	if err != nil {
		return nil, err
	}
	return d.Repo.GetByID(ctx, id)
}

// save persists app with the optimistic version check.
func (d Deps) save(ctx context.Context, op string, app *application.Application, expectedVersion int64) error {
	if err := d.Repo.Update(ctx, app, expectedVersion); err != nil {
		if shared.IsConflict(err) {
			d.Logger.Warn("lost concurrent update",
				logger.Operation(op),
				logger.ApplicationID(app.ID),
				logger.Int64("expected_version", expectedVersion),
			)
		}
		return fmt.Errorf("%s: save: %w", op, err)
	}
	return nil
}

// publish sends the event after commit. Failures are logged only: the
// transition has already been stored.
func (d Deps) publish(event shared.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(event); err != nil {
		d.Logger.Error("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.ApplicationID(event.AggregateID()),
			logger.Err(err),
		)
	}
}

// viewFor returns the representation of app the caller is allowed to see.
func viewFor(caller application.Caller, app *application.Application) *application.Application {
	if application.CanViewInternalNotes(caller) {
		return app
	}
	return app.WithoutInternalNotes()
}
