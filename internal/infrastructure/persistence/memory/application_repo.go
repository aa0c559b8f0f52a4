// Package memory provides an in-memory application store. It is safe for
// concurrent use and is intended for tests and local development without PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ApplicationRepository implements application.Repository on top of a map.
// Records are cloned on the way in and out so callers never share state with the store.
type ApplicationRepository struct {
	mu      sync.RWMutex
	byID    map[string]*application.Application
	byOwner map[shared.UserID]string
}

var _ application.Repository = (*ApplicationRepository)(nil)

// NewApplicationRepository creates an empty store.
func NewApplicationRepository() *ApplicationRepository {
	return &ApplicationRepository{
		byID:    make(map[string]*application.Application),
		byOwner: make(map[shared.UserID]string),
	}
}

// Create inserts a new application. Owner uniqueness mirrors the unique index in PostgreSQL.
func (r *ApplicationRepository) Create(_ context.Context, app *application.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byOwner[app.OwnerID]; exists {
		return shared.ErrApplicationExists
	}
	if _, exists := r.byID[app.ID]; exists {
		return shared.ErrApplicationExists
	}

	app.Version = 1
	r.byID[app.ID] = app.Clone()
	r.byOwner[app.OwnerID] = app.ID
	return nil
}

// Update stores app only if the stored version still equals expectedVersion.
func (r *ApplicationRepository) Update(_ context.Context, app *application.Application, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[app.ID]
	if !ok {
		return shared.ErrApplicationNotFound
	}
	if current.Version != expectedVersion {
		return shared.ErrStaleApplication
	}

	app.Version = expectedVersion + 1
	stored := app.Clone()
	// Owner is immutable after creation.
	stored.OwnerID = current.OwnerID
	r.byID[app.ID] = stored
	return nil
}

// GetByID returns the application with the given id.
func (r *ApplicationRepository) GetByID(_ context.Context, id shared.ApplicationID) (*application.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	app, ok := r.byID[id.String()]
	if !ok {
		return nil, shared.ErrApplicationNotFound
	}
	return app.Clone(), nil
}

// GetByOwner returns the application owned by the given student.
func (r *ApplicationRepository) GetByOwner(_ context.Context, owner shared.UserID) (*application.Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOwner[owner]
	if !ok {
		return nil, shared.ErrApplicationNotFound
	}
	return r.byID[id].Clone(), nil
}

// List returns one page of matching applications, most recently updated first.
func (r *ApplicationRepository) List(_ context.Context, filter application.ListFilter, page shared.Pagination) ([]*application.Application, int, error) {
	r.mu.RLock()
	matched := make([]*application.Application, 0, len(r.byID))
	for _, app := range r.byID {
		if filter.Matches(app) {
			matched = append(matched, app.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})

	total := len(matched)
	start := page.Offset()
	if start < 0 || start >= total {
		return []*application.Application{}, total, nil
	}
	end := start + page.Limit()
	if end > total || end < start {
		end = total
	}
	return matched[start:end], total, nil
}

// Len returns the number of stored applications.
func (r *ApplicationRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
