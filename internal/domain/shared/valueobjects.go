// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"math"
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ApplicationID represents a unique application identifier (UUID format).
type ApplicationID string

// IsValid checks if the application ID is a valid UUID.
func (a ApplicationID) IsValid() bool {
	return uuidRegex.MatchString(string(a))
}

// String returns the string representation.
func (a ApplicationID) String() string {
	return string(a)
}

// NewApplicationID creates a new ApplicationID with validation.
// Malformed identifiers cannot reference a stored application, so they are reported as NotFound.
func NewApplicationID(id string) (ApplicationID, error) {
	aid := ApplicationID(strings.ToLower(strings.TrimSpace(id)))
	if !aid.IsValid() {
		return "", NewDomainError("shared", "NewApplicationID", ErrNotFound, "application not found")
	}
	return aid, nil
}

// UserID identifies an authenticated platform user (student, agent or admin account).
type UserID string

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return strings.TrimSpace(string(u)) == ""
}

// AgentID identifies an agent profile. It is distinct from the agent's UserID.
type AgentID string

// String returns the string representation.
func (a AgentID) String() string {
	return string(a)
}

// IsEmpty checks if the ID is empty.
func (a AgentID) IsEmpty() bool {
	return strings.TrimSpace(string(a)) == ""
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	// MaxPage keeps (Page-1)*MaxPageSize inside int.
	MaxPage = math.MaxInt / MaxPageSize
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	if p.Page > MaxPage {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}

// PageInfo is the pagination metadata returned alongside a listing.
type PageInfo struct {
	TotalPages   int  `json:"totalPages"`
	CurrentPage  int  `json:"currentPage"`
	PreviousPage *int `json:"previousPage"`
	NextPage     *int `json:"nextPage"`
	TotalCount   int  `json:"totalCount"`
}

// NewPageInfo computes pagination metadata for a listing of total items.
func NewPageInfo(p Pagination, total int) PageInfo {
	limit := p.Limit()
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}

	info := PageInfo{
		TotalPages:  totalPages,
		CurrentPage: p.Page,
		TotalCount:  total,
	}
	if prev := p.Page - 1; prev > 0 {
		info.PreviousPage = &prev
	}
	if next := p.Page + 1; next <= totalPages {
		info.NextPage = &next
	}
	return info
}
