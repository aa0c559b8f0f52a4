// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"strings"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET APPLICATION QUERY
// Студент видит только свою заявку и без внутренних заметок.
// Агент и администратор получают любую заявку по ID.
// ══════════════════════════════════════════════════════════════════════════════

// GetApplicationQuery содержит параметры запроса заявки.
type GetApplicationQuery struct {
	Caller application.Caller

	// ApplicationID - обязателен для агента и администратора.
	// Для студента, если задан, должен совпадать с его заявкой.
	ApplicationID string
}

// Validate проверяет корректность параметров запроса.
func (q GetApplicationQuery) Validate() error {
	if q.Caller == nil {
		return shared.NewDomainError("application", "Get", shared.ErrUnauthorized, "caller is required")
	}
	if _, ok := q.Caller.(application.StudentCaller); !ok && strings.TrimSpace(q.ApplicationID) == "" {
		return shared.NewDomainError("application", "Get", shared.ErrValidation, "application id is required")
	}
	return nil
}

// GetApplicationHandler обрабатывает GetApplicationQuery.
type GetApplicationHandler struct {
	repo application.Repository
}

// NewGetApplicationHandler создаёт обработчик.
func NewGetApplicationHandler(repo application.Repository) *GetApplicationHandler {
	return &GetApplicationHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetApplicationHandler) Handle(ctx context.Context, q GetApplicationQuery) (*application.Application, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	if student, ok := q.Caller.(application.StudentCaller); ok {
		app, err := h.repo.GetByOwner(ctx, student.User)
		if err != nil {
			return nil, err
		}
		// Чужой ID не раскрывает, существует ли такая заявка.
		if id := strings.TrimSpace(q.ApplicationID); id != "" && !strings.EqualFold(id, app.ID) {
			return nil, shared.ErrApplicationNotFound
		}
		return app.WithoutInternalNotes(), nil
	}

	id, err := shared.NewApplicationID(q.ApplicationID)
	if err != nil {
		return nil, err
	}
	return h.repo.GetByID(ctx, id)
}
