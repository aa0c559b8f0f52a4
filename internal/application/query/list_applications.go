package query

import (
	"context"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST APPLICATIONS QUERY
// Постраничный список заявок для агентов и администраторов.
// Сортировка: сначала недавно изменённые.
// ══════════════════════════════════════════════════════════════════════════════

// ListApplicationsQuery содержит параметры списка.
type ListApplicationsQuery struct {
	Caller application.Caller

	// Status - фильтр по статусу (пустой = все).
	Status string

	// AgentID - фильтр по назначенному агенту. Игнорируется в ScopedToAgent.
	AgentID string

	// Page и PageSize - параметры страницы. Нули заменяются значениями по умолчанию.
	Page     int
	PageSize int

	// ScopedToAgent - только заявки, назначенные самому вызывающему.
	ScopedToAgent bool
}

// Validate проверяет корректность параметров запроса.
func (q ListApplicationsQuery) Validate() error {
	if q.Caller == nil {
		return shared.NewDomainError("application", "List", shared.ErrUnauthorized, "caller is required")
	}
	if !application.CanInitialReview(q.Caller) {
		return shared.NewDomainError("application", "List", shared.ErrForbidden, "only agents and admins can list applications")
	}
	if q.Status != "" && !application.Status(q.Status).IsValid() {
		return shared.NewDomainError("application", "List", shared.ErrValidation, "unknown status filter "+q.Status)
	}
	if q.Page < 0 || q.PageSize < 0 {
		return shared.NewDomainError("application", "List", shared.ErrValidation, "page and limit must be positive")
	}
	if q.Page > shared.MaxPage {
		return shared.NewDomainError("application", "List", shared.ErrValidation, "page is out of range")
	}
	return nil
}

// Filter собирает фильтр хранилища.
func (q ListApplicationsQuery) Filter() application.ListFilter {
	filter := application.ListFilter{}.WithStatus(application.Status(q.Status))
	if q.ScopedToAgent {
		return filter.WithAssignedAgent(application.ReviewerID(q.Caller))
	}
	return filter.WithAssignedAgent(shared.AgentID(q.AgentID))
}

// ListApplicationsResult - страница заявок и её метаданные.
type ListApplicationsResult struct {
	Applications []*application.Application `json:"applications"`
	PageInfo     shared.PageInfo             `json:"pageInfo"`
}

// ListApplicationsHandler обрабатывает ListApplicationsQuery.
type ListApplicationsHandler struct {
	repo application.Repository
}

// NewListApplicationsHandler создаёт обработчик.
func NewListApplicationsHandler(repo application.Repository) *ListApplicationsHandler {
	return &ListApplicationsHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *ListApplicationsHandler) Handle(ctx context.Context, q ListApplicationsQuery) (*ListApplicationsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	page := shared.NewPagination(q.Page, q.PageSize)
	apps, total, err := h.repo.List(ctx, q.Filter(), page)
	if err != nil {
		return nil, err
	}
	if apps == nil {
		apps = []*application.Application{}
	}

	return &ListApplicationsResult{
		Applications: apps,
		PageInfo:     shared.NewPageInfo(page, total),
	}, nil
}
