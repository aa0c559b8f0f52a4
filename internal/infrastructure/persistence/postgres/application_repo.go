package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ApplicationRepository implements application.Repository for PostgreSQL.
type ApplicationRepository struct {
	conn *Connection
}

var _ application.Repository = (*ApplicationRepository)(nil)

// NewApplicationRepository creates a new ApplicationRepository.
func NewApplicationRepository(conn *Connection) *ApplicationRepository {
	return &ApplicationRepository{conn: conn}
}

const applicationColumns = `
	id, owner_id, status, assigned_agent, rejection_feedback,
	education_history, test_scores, preferences, documents, internal_notes,
	version, created_at, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Write Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create inserts a new application with version 1.
func (r *ApplicationRepository) Create(ctx context.Context, app *application.Application) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	cols, err := encodeApplication(app)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $12)
	`
	_, err = r.conn.Exec(ctx, query,
		app.ID,
		string(app.OwnerID),
		string(app.Status),
		nullString(string(app.AssignedAgent)),
		nullString(app.RejectionFeedback),
		cols.education,
		cols.testScores,
		cols.preferences,
		cols.documents,
		cols.notes,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrApplicationExists
		}
		if IsCheckViolation(err) {
			return shared.WrapError("application", "Create", shared.ErrValidation, "application violates a storage constraint", err)
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	app.Version = 1
	return nil
}

// Update writes the application only if its stored version equals
// expectedVersion; the version is incremented in the same statement.
func (r *ApplicationRepository) Update(ctx context.Context, app *application.Application, expectedVersion int64) error {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	cols, err := encodeApplication(app)
	if err != nil {
		return err
	}

	query := `
		UPDATE applications SET
			status = $1,
			assigned_agent = $2,
			rejection_feedback = $3,
			education_history = $4,
			test_scores = $5,
			preferences = $6,
			documents = $7,
			internal_notes = $8,
			updated_at = $9,
			version = version + 1
		WHERE id = $10 AND version = $11
		RETURNING version
	`

	var newVersion int64
	err = r.conn.QueryRow(ctx, query,
		string(app.Status),
		nullString(string(app.AssignedAgent)),
		nullString(app.RejectionFeedback),
		cols.education,
		cols.testScores,
		cols.preferences,
		cols.documents,
		cols.notes,
		app.UpdatedAt,
		app.ID,
		expectedVersion,
	).Scan(&newVersion)
	if err != nil {
		if IsNoRows(err) {
			return r.missOrStale(ctx, app.ID)
		}
		if IsCheckViolation(err) {
			return shared.WrapError("application", "Update", shared.ErrValidation, "application violates a storage constraint", err)
		}
		return fmt.Errorf("failed to update application: %w", err)
	}

	app.Version = newVersion
	return nil
}

// missOrStale tells apart a deleted row from a lost version race.
func (r *ApplicationRepository) missOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check application: %w", err)
	}
	if !exists {
		return shared.ErrApplicationNotFound
	}
	return shared.ErrStaleApplication
}

// ─────────────────────────────────────────────────────────────────────────────
// Read Operations
// ─────────────────────────────────────────────────────────────────────────────

// GetByID returns an application by ID.
func (r *ApplicationRepository) GetByID(ctx context.Context, id shared.ApplicationID) (*application.Application, error) {
	if !id.IsValid() {
		return nil, shared.ErrApplicationNotFound
	}
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id.String())
	return r.scanOne(row)
}

// GetByOwner returns the application owned by the given student.
func (r *ApplicationRepository) GetByOwner(ctx context.Context, owner shared.UserID) (*application.Application, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	row := r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE owner_id = $1`, owner.String())
	return r.scanOne(row)
}

// List returns one page of applications, most recently updated first,
// and the total number of matches.
func (r *ApplicationRepository) List(ctx context.Context, filter application.ListFilter, page shared.Pagination) ([]*application.Application, int, error) {
	ctx, cancel := r.conn.withTimeout(ctx)
	defer cancel()

	where, args := buildWhere(filter)

	var total int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM applications`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}
	if total == 0 || page.Offset() >= total {
		return []*application.Application{}, total, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM applications%s ORDER BY updated_at DESC, id LIMIT $%d OFFSET $%d`,
		applicationColumns, where, len(args)+1, len(args)+2)
	args = append(args, page.Limit(), page.Offset())

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*application.Application, 0, page.Limit())
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate applications: %w", err)
	}

	return apps, total, nil
}

func buildWhere(filter application.ListFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if !filter.AssignedAgent.IsEmpty() {
		args = append(args, filter.AssignedAgent.String())
		conds = append(conds, fmt.Sprintf("assigned_agent = $%d", len(args)))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *ApplicationRepository) scanOne(row pgx.Row) (*application.Application, error) {
	app, err := scanApplication(row)
	if err != nil {
		if IsNoRows(err) || IsInvalidText(err) {
			return nil, shared.ErrApplicationNotFound
		}
		return nil, err
	}
	return app, nil
}

func scanApplication(row pgx.Row) (*application.Application, error) {
	var (
		app                                        application.Application
		owner, status                              string
		agent, feedback                            *string
		education, scores, prefs, documents, notes []byte
		createdAt, updatedAt                       time.Time
	)

	err := row.Scan(
		&app.ID,
		&owner,
		&status,
		&agent,
		&feedback,
		&education,
		&scores,
		&prefs,
		&documents,
		&notes,
		&app.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if IsNoRows(err) || IsInvalidText(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	app.OwnerID = shared.UserID(owner)
	app.Status = application.Status(status)
	if agent != nil {
		app.AssignedAgent = shared.AgentID(*agent)
	}
	if feedback != nil {
		app.RejectionFeedback = *feedback
	}
	app.CreatedAt = createdAt.UTC()
	app.UpdatedAt = updatedAt.UTC()

	for _, field := range []struct {
		name string
		data []byte
		dst  interface{}
	}{
		{"education_history", education, &app.EducationHistory},
		{"test_scores", scores, &app.TestScores},
		{"preferences", prefs, &app.Preferences},
		{"documents", documents, &app.Documents},
		{"internal_notes", notes, &app.InternalNotes},
	} {
		if len(field.data) == 0 {
			continue
		}
		if err := json.Unmarshal(field.data, field.dst); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field.name, err)
		}
	}

	app.Normalize()
	return &app, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Encoding
// ─────────────────────────────────────────────────────────────────────────────

type encodedColumns struct {
	education, testScores, preferences, documents, notes []byte
}

func encodeApplication(app *application.Application) (encodedColumns, error) {
	var cols encodedColumns
	var err error

	education := app.EducationHistory
	if education == nil {
		education = []application.EducationRecord{}
	}
	notes := app.InternalNotes
	if notes == nil {
		notes = []application.InternalNote{}
	}

	if cols.education, err = json.Marshal(education); err != nil {
		return cols, fmt.Errorf("failed to marshal education history: %w", err)
	}
	if cols.testScores, err = json.Marshal(app.TestScores); err != nil {
		return cols, fmt.Errorf("failed to marshal test scores: %w", err)
	}
	if cols.preferences, err = json.Marshal(app.Preferences); err != nil {
		return cols, fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if cols.documents, err = json.Marshal(app.Documents); err != nil {
		return cols, fmt.Errorf("failed to marshal documents: %w", err)
	}
	if cols.notes, err = json.Marshal(notes); err != nil {
		return cols, fmt.Errorf("failed to marshal internal notes: %w", err)
	}
	return cols, nil
}

func nullString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
