// Package eventhandler содержит обработчики доменных событий.
// Обработчики реагируют на уже сохранённые переходы процесса и запускают
// побочные эффекты: уведомления студентов и агентов через брокер сообщений.
package eventhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/admissions-hub/admissions-hub/config"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON WORKFLOW EVENT HANDLER
// Превращает события процесса рассмотрения в уведомления и публикует их.
// Ошибка публикации не откатывает переход: он уже сохранён.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier доставляет сериализованное уведомление. Ключ - ID заявки,
// чтобы уведомления по одной заявке сохраняли порядок.
type Notifier interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// Получатели уведомлений.
const (
	RecipientStudent   = "student"
	RecipientAgent     = "agent"
	RecipientReviewers = "reviewers"
)

// Notification - сообщение, которое уходит в брокер.
type Notification struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id"`
	Recipient     string    `json:"recipient"`
	OwnerID       string    `json:"owner_id,omitempty"`
	AgentID       string    `json:"agent_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	DocumentKey   string    `json:"document_key,omitempty"`
	DocumentKeys  []string  `json:"document_keys,omitempty"`
	Feedback      string    `json:"feedback,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// WorkflowEventConfig содержит конфигурацию обработчика.
type WorkflowEventConfig struct {
	// PublishTimeout - ограничение на доставку одного уведомления.
	PublishTimeout time.Duration
}

// DefaultWorkflowEventConfig возвращает конфигурацию по умолчанию.
func DefaultWorkflowEventConfig() WorkflowEventConfig {
	return WorkflowEventConfig{PublishTimeout: 15 * time.Second}
}

// OnWorkflowEventHandler публикует уведомления о переходах.
type OnWorkflowEventHandler struct {
	notifier Notifier
	flags    *config.FeatureFlags
	logger   *logger.Logger
	config   WorkflowEventConfig
}

// NewOnWorkflowEventHandler создаёт обработчик. flags может быть nil:
// тогда публикуются все уведомления.
func NewOnWorkflowEventHandler(
	notifier Notifier,
	flags *config.FeatureFlags,
	log *logger.Logger,
	cfg WorkflowEventConfig,
) *OnWorkflowEventHandler {
	if log == nil {
		log = logger.Default()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultWorkflowEventConfig().PublishTimeout
	}
	return &OnWorkflowEventHandler{
		notifier: notifier,
		flags:    flags,
		logger:   log.With(logger.Component("on_workflow_event")),
		config:   cfg,
	}
}

// HandledEvents - типы событий, на которые подписывается обработчик.
func HandledEvents() []shared.EventType {
	return []shared.EventType{
		shared.EventApplicationSubmitted,
		shared.EventInitialReviewDone,
		shared.EventDocumentsUploaded,
		shared.EventDocumentReviewed,
		shared.EventFinalDecisionMade,
		shared.EventAgentReassigned,
	}
}

// Register подписывает обработчик на все нужные события.
func (h *OnWorkflowEventHandler) Register(bus shared.EventSubscriber) error {
	for _, t := range HandledEvents() {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", t, err)
		}
	}
	return nil
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
func (h *OnWorkflowEventHandler) Handle(event shared.Event) error {
	n, flag, ok := h.build(event)
	if !ok {
		return nil
	}
	if h.flags != nil && !h.flags.IsEnabled(flag, nil) {
		h.logger.Debug("notification disabled",
			logger.String("event_type", string(event.EventType())),
			logger.String("feature", flag),
		)
		return nil
	}

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.PublishTimeout)
	defer cancel()

	headers := map[string]string{
		"event_id":   n.EventID,
		"event_type": n.Type,
		"recipient":  n.Recipient,
	}
	if err := h.notifier.Publish(ctx, n.ApplicationID, value, headers); err != nil {
		h.logger.Error("failed to publish notification",
			logger.ApplicationID(n.ApplicationID),
			logger.String("event_type", n.Type),
			logger.Err(err),
		)
		return err
	}

	h.logger.Info("notification published",
		logger.ApplicationID(n.ApplicationID),
		logger.String("event_type", n.Type),
		logger.String("recipient", n.Recipient),
	)
	return nil
}

// build собирает уведомление из полезной нагрузки. Работает и с локальными
// событиями, и с событиями, пришедшими из другого экземпляра.
func (h *OnWorkflowEventHandler) build(event shared.Event) (Notification, string, bool) {
	p := event.Payload()
	n := Notification{
		EventID:       eventID(event),
		Type:          string(event.EventType()),
		ApplicationID: event.AggregateID(),
		OwnerID:       str(p, "owner_id"),
		Status:        str(p, "status"),
		Feedback:      str(p, "feedback"),
		OccurredAt:    event.OccurredAt(),
	}

	switch event.EventType() {
	case shared.EventApplicationSubmitted:
		// Повторная отправка без смены статуса (правка формы) никого не касается.
		if n.Status == str(p, "previous_status") {
			return n, "", false
		}
		n.Recipient = RecipientReviewers
		return n, config.FeatureNotifyStatusChanges, true

	case shared.EventInitialReviewDone, shared.EventFinalDecisionMade:
		n.Recipient = RecipientStudent
		n.AgentID = str(p, "reviewer_id")
		return n, config.FeatureNotifyStatusChanges, true

	case shared.EventDocumentReviewed:
		n.Recipient = RecipientStudent
		n.AgentID = str(p, "reviewer_id")
		n.DocumentKey = str(p, "document_key")
		return n, config.FeatureNotifyDocumentReviews, true

	case shared.EventDocumentsUploaded:
		n.Recipient = RecipientAgent
		n.AgentID = str(p, "assigned_agent")
		n.DocumentKeys = strs(p, "document_keys")
		return n, config.FeatureNotifyDocumentReviews, true

	case shared.EventAgentReassigned:
		n.Recipient = RecipientAgent
		n.AgentID = str(p, "new_agent")
		return n, config.FeatureNotifyStatusChanges, true

	default:
		return n, "", false
	}
}

func eventID(event shared.Event) string {
	if e, ok := event.(interface{ EnvelopeID() string }); ok && e.EnvelopeID() != "" {
		return e.EnvelopeID()
	}
	return uuid.NewString()
}

func str(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}

// strs читает список строк. После JSON-декодирования это []interface{}.
func strs(p map[string]interface{}, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
