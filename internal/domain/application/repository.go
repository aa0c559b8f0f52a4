package application

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище заявок. Кэширующего слоя нет: каждый вызов читает
// хранилище записей.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Write Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет новую заявку.
	// Возвращает ErrApplicationExists (Conflict), если у студента уже есть заявка.
	Create(ctx context.Context, app *Application) error

	// Update сохраняет заявку, только если её версия в хранилище равна
	// expectedVersion. При успехе app.Version становится expectedVersion+1.
	// Возвращает ErrApplicationNotFound, если заявки нет, и
	// ErrStaleApplication (Conflict), если её успели изменить.
	Update(ctx context.Context, app *Application, expectedVersion int64) error

	// ─────────────────────────────────────────────────────────────────────────
	// Read Operations
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID возвращает заявку по ID.
	// Возвращает ErrApplicationNotFound, если заявка не найдена.
	GetByID(ctx context.Context, id shared.ApplicationID) (*Application, error)

	// GetByOwner возвращает заявку студента.
	// Возвращает ErrApplicationNotFound, если студент ещё ничего не отправлял.
	GetByOwner(ctx context.Context, owner shared.UserID) (*Application, error)

	// List возвращает страницу заявок, отсортированных по UpdatedAt (новые первыми),
	// и общее количество подходящих под фильтр.
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]*Application, int, error)
}

// ListFilter - фильтр списка заявок. Пустые поля не ограничивают выборку.
type ListFilter struct {
	Status        Status
	AssignedAgent shared.AgentID
}

// WithStatus устанавливает фильтр по статусу.
func (f ListFilter) WithStatus(s Status) ListFilter {
	f.Status = s
	return f
}

// WithAssignedAgent устанавливает фильтр по назначенному агенту.
func (f ListFilter) WithAssignedAgent(agent shared.AgentID) ListFilter {
	f.AssignedAgent = agent
	return f
}

// Matches проверяет, подходит ли заявка под фильтр.
func (f ListFilter) Matches(app *Application) bool {
	if f.Status != "" && app.Status != f.Status {
		return false
	}
	if !f.AssignedAgent.IsEmpty() && app.AssignedAgent != f.AssignedAgent {
		return false
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// FileStore принимает загруженные файлы и возвращает непрозрачную ссылку на них.
type FileStore interface {
	// Save сохраняет файл и возвращает ссылку на него.
	Save(ctx context.Context, owner shared.UserID, key DocumentKey, file Upload) (string, error)

	// Delete удаляет файл по ссылке. Отсутствующий файл ошибкой не считается.
	Delete(ctx context.Context, location string) error
}
