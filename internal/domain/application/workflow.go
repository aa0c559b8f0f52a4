package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// WorkflowConfig - настраиваемые правила процесса рассмотрения.
type WorkflowConfig struct {
	// RequiredDocuments - документы, которые должны быть одобрены до финального одобрения.
	RequiredDocuments []DocumentKey
}

// DefaultWorkflowConfig возвращает правила по умолчанию: транскрипт и резюме.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		RequiredDocuments: []DocumentKey{DocTranscript, DocResumeCV},
	}
}

// Validate проверяет конфигурацию.
func (c WorkflowConfig) Validate() error {
	for _, key := range c.RequiredDocuments {
		if !key.IsValid() {
			return fmt.Errorf("required document %q is not a known document key", key)
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DECISIONS
// ══════════════════════════════════════════════════════════════════════════════

// Decision - решение агента по заявке целиком.
type Decision string

const (
	// DecisionAccept - пропустить заявку после первичного рассмотрения.
	DecisionAccept Decision = "accepted"
	// DecisionApprove - финально одобрить заявку.
	DecisionApprove Decision = "approved"
	// DecisionReject - отклонить заявку (на любом этапе).
	DecisionReject Decision = "rejected"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE MACHINE
// ══════════════════════════════════════════════════════════════════════════════

// StateMachine проверяет предусловия переходов и применяет их эффекты к заявке.
// Любое нарушение проверки возвращается до изменения полей: частичных переходов нет.
type StateMachine struct {
	config WorkflowConfig
	now    func() time.Time
}

// NewStateMachine создаёт автомат с заданной конфигурацией.
func NewStateMachine(config WorkflowConfig) *StateMachine {
	return &StateMachine{
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock подменяет источник времени (для тестов).
func (m *StateMachine) WithClock(now func() time.Time) *StateMachine {
	m.now = now
	return m
}

// Config возвращает текущую конфигурацию.
func (m *StateMachine) Config() WorkflowConfig {
	return m.config
}

// Now возвращает текущее время автомата.
func (m *StateMachine) Now() time.Time {
	return m.now()
}

// Create создаёт заявку при первой отправке студентом.
func (m *StateMachine) Create(caller Caller, id string, profile Profile, asDraft bool) (*Application, error) {
	student, ok := caller.(StudentCaller)
	if !ok {
		return nil, shared.NewDomainError("application", "Submit", shared.ErrForbidden, "only students can submit applications")
	}
	return NewApplication(NewApplicationParams{
		ID:      id,
		OwnerID: student.User,
		Profile: profile,
		AsDraft: asDraft,
		Now:     m.now(),
	})
}

// Submit обновляет заявку студента. Повторная отправка после draft или
// rejected переводит её в submitted и очищает отзыв об отказе.
// Возвращает предыдущий статус.
func (m *StateMachine) Submit(caller Caller, app *Application, profile Profile, asDraft bool) (Status, error) {
	if !IsOwner(caller, app) {
		return "", shared.NewDomainError("application", "Submit", shared.ErrForbidden, "only the owner can edit the application")
	}
	if app.Status.IsLocked() {
		return "", shared.ErrApplicationLocked
	}
	if asDraft && app.Status != StatusDraft {
		return "", shared.NewDomainError("application", "Submit", shared.ErrWrongState,
			fmt.Sprintf("cannot save a draft while the application is %s", app.Status))
	}
	if err := profile.Validate(); err != nil {
		return "", err
	}

	previous := app.Status
	app.applyProfile(profile)
	if !asDraft && (previous == StatusDraft || previous == StatusRejected) {
		app.Status = StatusSubmitted
		app.RejectionFeedback = ""
	}
	app.UpdatedAt = m.now()

	return previous, nil
}

// InitialReview принимает или отклоняет отправленную заявку и назначает
// вызывающего ответственным агентом.
func (m *StateMachine) InitialReview(caller Caller, app *Application, decision Decision, feedback string) error {
	if !CanInitialReview(caller) {
		return shared.NewDomainError("application", "InitialReview", shared.ErrForbidden, "only agents and admins can review applications")
	}
	feedback = strings.TrimSpace(feedback)
	switch decision {
	case DecisionAccept:
	case DecisionReject:
		if feedback == "" {
			return shared.ErrFeedbackRequired
		}
	default:
		return shared.WrapError("application", "InitialReview", shared.ErrValidation,
			fmt.Sprintf("decision must be accepted or rejected, got %q", decision), shared.ErrInvalidDecision)
	}
	if app.Status != StatusSubmitted {
		return wrongState("InitialReview", app.Status, StatusSubmitted)
	}

	app.AssignedAgent = ReviewerID(caller)
	if decision == DecisionAccept {
		app.Status = StatusAccepted
	} else {
		app.Status = StatusRejected
		app.RejectionFeedback = feedback
	}
	app.UpdatedAt = m.now()
	return nil
}

// CheckUpload проверяет, что студент может загрузить документы в указанные слоты.
// Вызывается до записи файлов в хранилище.
func (m *StateMachine) CheckUpload(caller Caller, app *Application, keys []DocumentKey) error {
	if !IsOwner(caller, app) {
		return shared.NewDomainError("document", "Upload", shared.ErrForbidden, "only the owner can upload documents")
	}
	if len(keys) == 0 {
		return shared.ErrNoFilesProvided
	}
	for _, key := range keys {
		if !key.IsValid() {
			return shared.WrapError("document", "Upload", shared.ErrValidation,
				fmt.Sprintf("invalid document key %q", key), shared.ErrInvalidDocKey)
		}
	}
	if !app.CanUpload() {
		return wrongState("Upload", app.Status, StatusAccepted)
	}
	return nil
}

// UploadDocuments записывает новые ссылки на файлы. Каждый документ переходит
// в submitted, прежний отзыв сбрасывается. Возвращает вытесненные ссылки.
func (m *StateMachine) UploadDocuments(caller Caller, app *Application, locations map[DocumentKey]string) ([]string, error) {
	keys := make([]DocumentKey, 0, len(locations))
	for key := range locations {
		keys = append(keys, key)
	}
	if err := m.CheckUpload(caller, app, keys); err != nil {
		return nil, err
	}

	now := m.now()
	var superseded []string
	for _, key := range AllDocumentKeys() {
		location, ok := locations[key]
		if !ok {
			continue
		}
		if old := app.Documents.Slot(key).resubmit(location, now); old != "" {
			superseded = append(superseded, old)
		}
	}
	app.UpdatedAt = now
	return superseded, nil
}

// ReviewDocument выставляет решение по одному документу.
func (m *StateMachine) ReviewDocument(caller Caller, app *Application, key DocumentKey, decision DocumentStatus, feedback string) error {
	if err := requireEntitled("ReviewDocument", caller, app); err != nil {
		return err
	}
	if !key.IsValid() {
		return shared.WrapError("document", "Review", shared.ErrValidation,
			fmt.Sprintf("invalid document key %q", key), shared.ErrInvalidDocKey)
	}
	if !decision.IsReviewDecision() {
		return shared.WrapError("document", "Review", shared.ErrValidation,
			fmt.Sprintf("document status must be approved or rejected_for_revision, got %q", decision), shared.ErrInvalidDecision)
	}
	if app.Status != StatusAccepted {
		return wrongState("ReviewDocument", app.Status, StatusAccepted)
	}
	doc := app.Documents.Slot(key)
	if !doc.CanReview() {
		return shared.NewDomainError("document", "Review", shared.ErrWrongState,
			fmt.Sprintf("document %s is %s, only submitted documents can be reviewed", key, doc.Status))
	}

	now := m.now()
	doc.review(decision, feedback, now)
	app.UpdatedAt = now
	return nil
}

// FinalDecision одобряет или отклоняет заявку после проверки документов.
// Одобрение возможно только когда все обязательные документы одобрены.
func (m *StateMachine) FinalDecision(caller Caller, app *Application, decision Decision, feedback string) error {
	if err := requireEntitled("FinalDecision", caller, app); err != nil {
		return err
	}
	feedback = strings.TrimSpace(feedback)
	switch decision {
	case DecisionApprove:
	case DecisionReject:
		if feedback == "" {
			return shared.ErrFeedbackRequired
		}
	default:
		return shared.WrapError("application", "FinalDecision", shared.ErrValidation,
			fmt.Sprintf("decision must be approved or rejected, got %q", decision), shared.ErrInvalidDecision)
	}
	if app.Status != StatusAccepted {
		return wrongState("FinalDecision", app.Status, StatusAccepted)
	}

	if decision == DecisionApprove {
		if missing := app.Documents.MissingRequired(m.config.RequiredDocuments); len(missing) > 0 {
			names := make([]string, len(missing))
			for i, k := range missing {
				names[i] = k.String()
			}
			return shared.NewDomainError("application", "FinalDecision", shared.ErrIncompleteDocuments,
				"required documents are not approved: "+strings.Join(names, ", "))
		}
		app.Status = StatusApproved
	} else {
		app.Status = StatusRejected
		app.RejectionFeedback = feedback
	}
	app.UpdatedAt = m.now()
	return nil
}

// AddInternalNote добавляет заметку в конец журнала. Заметки не редактируются и не удаляются.
func (m *StateMachine) AddInternalNote(caller Caller, app *Application, noteID, text string) (InternalNote, error) {
	if err := requireEntitled("AddInternalNote", caller, app); err != nil {
		return InternalNote{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return InternalNote{}, shared.ErrNoteRequired
	}

	now := m.now()
	note := InternalNote{
		ID:        noteID,
		Author:    ReviewerID(caller),
		Note:      text,
		CreatedAt: now,
	}
	app.InternalNotes = append(app.InternalNotes, note)
	app.UpdatedAt = now
	return note, nil
}

// ReassignAgent передаёт заявку другому агенту. Доступно только администратору
// и только после того, как агент был назначен первичным рассмотрением.
// Возвращает прежнего агента.
func (m *StateMachine) ReassignAgent(caller Caller, app *Application, agent shared.AgentID) (shared.AgentID, error) {
	if _, ok := caller.(AdminCaller); !ok {
		return "", shared.NewDomainError("application", "ReassignAgent", shared.ErrForbidden, "only admins can reassign applications")
	}
	if agent.IsEmpty() {
		return "", fieldError("agentId", "is required")
	}
	if !app.IsAssigned() {
		return "", shared.NewDomainError("application", "ReassignAgent", shared.ErrWrongState,
			"application has not been through initial review yet")
	}

	previous := app.AssignedAgent
	app.AssignedAgent = agent
	app.UpdatedAt = m.now()
	return previous, nil
}

func wrongState(op string, actual, required Status) error {
	return shared.NewDomainError("application", op, shared.ErrWrongState,
		fmt.Sprintf("application is %s, expected %s", actual, required))
}
