package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - этап жизненного цикла заявки. От него зависят все проверки.
type Status string

const (
	// StatusDraft - студент заполняет форму.
	StatusDraft Status = "draft"
	// StatusSubmitted - заявка отправлена и ждёт первичного рассмотрения.
	StatusSubmitted Status = "submitted"
	// StatusAccepted - первичное рассмотрение пройдено, можно загружать документы.
	StatusAccepted Status = "accepted"
	// StatusApproved - финальное одобрение после проверки документов.
	StatusApproved Status = "approved"
	// StatusRejected - заявка отклонена (на первичном или финальном этапе).
	StatusRejected Status = "rejected"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusAccepted, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsLocked возвращает true, если студент больше не может редактировать заявку.
func (s Status) IsLocked() bool {
	return s == StatusAccepted || s == StatusApproved
}

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// ParseStatus разбирает статус из внешнего ввода (например, фильтра списка).
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsValid() {
		return "", shared.NewDomainError("application", "ParseStatus", shared.ErrValidation,
			fmt.Sprintf("%q is not a supported status", raw))
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE DATA
// ══════════════════════════════════════════════════════════════════════════════

// EducationRecord - запись об образовании.
type EducationRecord struct {
	Institution    string `json:"institution"`
	Degree         string `json:"degree"`
	FieldOfStudy   string `json:"fieldOfStudy"`
	GraduationYear int    `json:"graduationYear"`
	GPA            string `json:"gpa,omitempty"`
}

// Validate проверяет обязательные поля записи.
func (e EducationRecord) Validate() error {
	switch {
	case strings.TrimSpace(e.Institution) == "":
		return fieldError("educationHistory.institution", "is required")
	case strings.TrimSpace(e.Degree) == "":
		return fieldError("educationHistory.degree", "is required")
	case strings.TrimSpace(e.FieldOfStudy) == "":
		return fieldError("educationHistory.fieldOfStudy", "is required")
	case e.GraduationYear < 1900 || e.GraduationYear > 2100:
		return fieldError("educationHistory.graduationYear", "must be between 1900 and 2100")
	}
	return nil
}

// TestScore - результат стандартизированного экзамена.
type TestScore struct {
	Score string     `json:"score,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
	URL   string     `json:"url,omitempty"`
}

// OtherTestScore - результат экзамена вне фиксированного списка.
type OtherTestScore struct {
	Name  string     `json:"name"`
	Score string     `json:"score,omitempty"`
	Date  *time.Time `json:"date,omitempty"`
	URL   string     `json:"url,omitempty"`
}

// TestScores - фиксированные слоты экзаменов плюс открытый список other.
type TestScores struct {
	IELTS    TestScore        `json:"ielts"`
	TOEFL    TestScore        `json:"toefl"`
	GRE      TestScore        `json:"gre"`
	GMAT     TestScore        `json:"gmat"`
	Duolingo TestScore        `json:"duolingo"`
	PTE      TestScore        `json:"pte"`
	Other    []OtherTestScore `json:"other"`
}

// Validate проверяет открытый список экзаменов.
func (t TestScores) Validate() error {
	for _, o := range t.Other {
		if strings.TrimSpace(o.Name) == "" {
			return fieldError("testScores.other.name", "is required")
		}
	}
	return nil
}

// Preferences - предпочтения студента по обучению.
type Preferences struct {
	PreferredCountries    []string `json:"preferredCountries"`
	PreferredFieldOfStudy string   `json:"preferredFieldOfStudy"`
	PreferredIntake       string   `json:"preferredIntake"`
}

// normalized убирает пустые и повторяющиеся страны: это множество, а не список.
func (p Preferences) normalized() Preferences {
	seen := make(map[string]struct{}, len(p.PreferredCountries))
	countries := make([]string, 0, len(p.PreferredCountries))
	for _, c := range p.PreferredCountries {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		countries = append(countries, c)
	}
	p.PreferredCountries = countries
	p.PreferredFieldOfStudy = strings.TrimSpace(p.PreferredFieldOfStudy)
	p.PreferredIntake = strings.TrimSpace(p.PreferredIntake)
	return p
}

// Profile - редактируемые студентом поля заявки.
// nil-поле означает "оставить как есть".
type Profile struct {
	EducationHistory []EducationRecord
	TestScores       *TestScores
	Preferences      *Preferences
}

// Validate проверяет присланные поля.
func (p Profile) Validate() error {
	for _, rec := range p.EducationHistory {
		if err := rec.Validate(); err != nil {
			return err
		}
	}
	if p.TestScores != nil {
		if err := p.TestScores.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// InternalNote - заметка агента, видимая только агентам и администраторам.
type InternalNote struct {
	ID        string         `json:"id"`
	Author    shared.AgentID `json:"author"`
	Note      string         `json:"note"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// Application - заявка студента и прогресс её рассмотрения.
// У каждого студента не больше одной заявки.
type Application struct {
	ID                string            `json:"id"`
	OwnerID           shared.UserID     `json:"owner"`
	Status            Status            `json:"status"`
	AssignedAgent     shared.AgentID    `json:"assignedAgent,omitempty"`
	RejectionFeedback string            `json:"rejectionFeedback,omitempty"`
	EducationHistory  []EducationRecord `json:"educationHistory"`
	TestScores        TestScores        `json:"testScores"`
	Preferences       Preferences       `json:"preferences"`
	Documents         Documents         `json:"documents"`
	InternalNotes     []InternalNote    `json:"internalNotes,omitempty"`

	// Version растёт при каждом сохранении; используется для оптимистичной блокировки.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewApplicationParams - параметры для создания заявки.
type NewApplicationParams struct {
	ID      string
	OwnerID shared.UserID
	Profile Profile
	// AsDraft создаёт заявку в статусе draft вместо submitted.
	AsDraft bool
	Now     time.Time
}

// NewApplication создаёт заявку при первой отправке студентом.
func NewApplication(params NewApplicationParams) (*Application, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, fieldError("id", "is required")
	}
	if params.OwnerID.IsEmpty() {
		return nil, fieldError("owner", "is required")
	}
	if err := params.Profile.Validate(); err != nil {
		return nil, err
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	status := StatusSubmitted
	if params.AsDraft {
		status = StatusDraft
	}

	app := &Application{
		ID:               params.ID,
		OwnerID:          params.OwnerID,
		Status:           status,
		EducationHistory: []EducationRecord{},
		Documents:        NewDocuments(),
		Version:          0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	app.applyProfile(params.Profile)

	return app, nil
}

// applyProfile переносит присланные поля; nil-поля не трогает.
func (a *Application) applyProfile(p Profile) {
	if p.EducationHistory != nil {
		a.EducationHistory = append([]EducationRecord(nil), p.EducationHistory...)
	}
	if p.TestScores != nil {
		scores := *p.TestScores
		scores.Other = append([]OtherTestScore(nil), p.TestScores.Other...)
		a.TestScores = scores
	}
	if p.Preferences != nil {
		a.Preferences = p.Preferences.normalized()
	}
}

// CanUpload возвращает true только пока заявка в статусе accepted.
func (a *Application) CanUpload() bool {
	return a.Status == StatusAccepted
}

// IsAssigned возвращает true, если у заявки есть ответственный агент.
func (a *Application) IsAssigned() bool {
	return !a.AssignedAgent.IsEmpty()
}

// CheckInvariants проверяет согласованность статуса и отзыва об отказе.
func (a *Application) CheckInvariants() error {
	if !a.Status.IsValid() {
		return shared.NewDomainError("application", "CheckInvariants", shared.ErrValidation,
			fmt.Sprintf("unknown status %q", a.Status))
	}
	hasFeedback := strings.TrimSpace(a.RejectionFeedback) != ""
	if hasFeedback != (a.Status == StatusRejected) {
		return shared.NewDomainError("application", "CheckInvariants", shared.ErrValidation,
			"rejection feedback must be present exactly when the application is rejected")
	}
	return nil
}

// WithoutInternalNotes возвращает копию для показа студенту.
func (a *Application) WithoutInternalNotes() *Application {
	c := a.Clone()
	c.InternalNotes = nil
	return c
}

// Normalize приводит запись из хранилища к рабочему виду.
func (a *Application) Normalize() {
	a.Documents.normalize()
	if a.EducationHistory == nil {
		a.EducationHistory = []EducationRecord{}
	}
}

// Clone создаёт глубокую копию заявки.
func (a *Application) Clone() *Application {
	c := *a
	c.EducationHistory = append([]EducationRecord(nil), a.EducationHistory...)
	c.TestScores.Other = append([]OtherTestScore(nil), a.TestScores.Other...)
	c.Preferences.PreferredCountries = append([]string(nil), a.Preferences.PreferredCountries...)
	c.InternalNotes = append([]InternalNote(nil), a.InternalNotes...)
	return &c
}

// String возвращает краткое описание заявки для логов.
func (a *Application) String() string {
	return fmt.Sprintf("Application{id=%s, owner=%s, status=%s, agent=%s}",
		a.ID, a.OwnerID, a.Status, a.AssignedAgent)
}

func fieldError(field, problem string) error {
	return shared.NewDomainError("application", "Validate", shared.ErrValidation, field+" "+problem)
}
