package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents a committed workflow transition.
const (
	EventApplicationSubmitted EventType = "application.submitted"
	EventApplicationDrafted   EventType = "application.drafted"
	EventInitialReviewDone    EventType = "application.initial_reviewed"
	EventDocumentsUploaded    EventType = "application.documents_uploaded"
	EventDocumentReviewed     EventType = "application.document_reviewed"
	EventFinalDecisionMade    EventType = "application.final_decided"
	EventAgentReassigned      EventType = "application.agent_reassigned"
	EventInternalNoteAdded    EventType = "application.note_added"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Application Events
// ═══════════════════════════════════════════════════════════════════════════

// ApplicationSubmittedEvent is emitted when a student creates or updates the
// application through submit (including saving a draft).
type ApplicationSubmittedEvent struct {
	BaseEvent
	OwnerID        string `json:"owner_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
}

// Payload implements Event interface.
func (e ApplicationSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":        e.OwnerID,
		"status":          e.Status,
		"previous_status": e.PreviousStatus,
	}
}

// NewApplicationSubmittedEvent creates a new ApplicationSubmittedEvent.
// Draft saves are emitted as EventApplicationDrafted.
func NewApplicationSubmittedEvent(appID, ownerID, status, previousStatus string) ApplicationSubmittedEvent {
	eventType := EventApplicationSubmitted
	if status == "draft" {
		eventType = EventApplicationDrafted
	}
	return ApplicationSubmittedEvent{
		BaseEvent:      NewBaseEvent(eventType, appID),
		OwnerID:        ownerID,
		Status:         status,
		PreviousStatus: previousStatus,
	}
}

// IsStatusChange reports whether the submit moved the application to a new status.
func (e ApplicationSubmittedEvent) IsStatusChange() bool {
	return e.Status != e.PreviousStatus
}

// ReviewDecisionEvent is emitted for initial review and final decision.
type ReviewDecisionEvent struct {
	BaseEvent
	OwnerID    string `json:"owner_id"`
	ReviewerID string `json:"reviewer_id"`
	Status     string `json:"status"`
	Feedback   string `json:"feedback,omitempty"`
}

// Payload implements Event interface.
func (e ReviewDecisionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":    e.OwnerID,
		"reviewer_id": e.ReviewerID,
		"status":      e.Status,
		"feedback":    e.Feedback,
	}
}

// NewInitialReviewEvent creates an event for an initial review decision.
func NewInitialReviewEvent(appID, ownerID, reviewerID, status, feedback string) ReviewDecisionEvent {
	return ReviewDecisionEvent{
		BaseEvent:  NewBaseEvent(EventInitialReviewDone, appID),
		OwnerID:    ownerID,
		ReviewerID: reviewerID,
		Status:     status,
		Feedback:   feedback,
	}
}

// NewFinalDecisionEvent creates an event for a final decision.
func NewFinalDecisionEvent(appID, ownerID, reviewerID, status, feedback string) ReviewDecisionEvent {
	return ReviewDecisionEvent{
		BaseEvent:  NewBaseEvent(EventFinalDecisionMade, appID),
		OwnerID:    ownerID,
		ReviewerID: reviewerID,
		Status:     status,
		Feedback:   feedback,
	}
}

// DocumentsUploadedEvent is emitted after a student (re-)submits documents.
type DocumentsUploadedEvent struct {
	BaseEvent
	OwnerID       string   `json:"owner_id"`
	AssignedAgent string   `json:"assigned_agent"`
	DocumentKeys  []string `json:"document_keys"`
}

// Payload implements Event interface.
func (e DocumentsUploadedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":       e.OwnerID,
		"assigned_agent": e.AssignedAgent,
		"document_keys":  e.DocumentKeys,
	}
}

// NewDocumentsUploadedEvent creates a new DocumentsUploadedEvent.
func NewDocumentsUploadedEvent(appID, ownerID, assignedAgent string, keys []string) DocumentsUploadedEvent {
	return DocumentsUploadedEvent{
		BaseEvent:     NewBaseEvent(EventDocumentsUploaded, appID),
		OwnerID:       ownerID,
		AssignedAgent: assignedAgent,
		DocumentKeys:  keys,
	}
}

// DocumentReviewedEvent is emitted when an agent rules on a single document.
type DocumentReviewedEvent struct {
	BaseEvent
	OwnerID     string `json:"owner_id"`
	ReviewerID  string `json:"reviewer_id"`
	DocumentKey string `json:"document_key"`
	Status      string `json:"status"`
	Feedback    string `json:"feedback,omitempty"`
}

// Payload implements Event interface.
func (e DocumentReviewedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"owner_id":     e.OwnerID,
		"reviewer_id":  e.ReviewerID,
		"document_key": e.DocumentKey,
		"status":       e.Status,
		"feedback":     e.Feedback,
	}
}

// NewDocumentReviewedEvent creates a new DocumentReviewedEvent.
func NewDocumentReviewedEvent(appID, ownerID, reviewerID, key, status, feedback string) DocumentReviewedEvent {
	return DocumentReviewedEvent{
		BaseEvent:   NewBaseEvent(EventDocumentReviewed, appID),
		OwnerID:     ownerID,
		ReviewerID:  reviewerID,
		DocumentKey: key,
		Status:      status,
		Feedback:    feedback,
	}
}

// AgentReassignedEvent is emitted when an admin moves an application to another agent.
type AgentReassignedEvent struct {
	BaseEvent
	AdminID       string `json:"admin_id"`
	PreviousAgent string `json:"previous_agent"`
	NewAgent      string `json:"new_agent"`
}

// Payload implements Event interface.
func (e AgentReassignedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"admin_id":       e.AdminID,
		"previous_agent": e.PreviousAgent,
		"new_agent":      e.NewAgent,
	}
}

// NewAgentReassignedEvent creates a new AgentReassignedEvent.
func NewAgentReassignedEvent(appID, adminID, previousAgent, newAgent string) AgentReassignedEvent {
	return AgentReassignedEvent{
		BaseEvent:     NewBaseEvent(EventAgentReassigned, appID),
		AdminID:       adminID,
		PreviousAgent: previousAgent,
		NewAgent:      newAgent,
	}
}

// InternalNoteAddedEvent is emitted when a reviewer appends an internal note.
type InternalNoteAddedEvent struct {
	BaseEvent
	AuthorID string `json:"author_id"`
	NoteID   string `json:"note_id"`
}

// Payload implements Event interface.
func (e InternalNoteAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"author_id": e.AuthorID,
		"note_id":   e.NoteID,
	}
}

// NewInternalNoteAddedEvent creates a new InternalNoteAddedEvent.
func NewInternalNoteAddedEvent(appID, authorID, noteID string) InternalNoteAddedEvent {
	return InternalNoteAddedEvent{
		BaseEvent: NewBaseEvent(EventInternalNoteAdded, appID),
		AuthorID:  authorID,
		NoteID:    noteID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope serializes an event into an envelope.
func NewEventEnvelope(id string, event Event) (EventEnvelope, error) {
	payload, err := json.Marshal(event.Payload())
	if err != nil {
		return EventEnvelope{}, err
	}
	return EventEnvelope{
		ID:          id,
		Type:        event.EventType(),
		AggregateID: event.AggregateID(),
		Timestamp:   event.OccurredAt(),
		Version:     1,
		Payload:     payload,
	}, nil
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
