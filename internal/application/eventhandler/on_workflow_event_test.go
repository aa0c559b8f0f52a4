package eventhandler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/config"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/messaging"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

type sentMessage struct {
	key     string
	value   Notification
	headers map[string]string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeNotifier) Publish(_ context.Context, key string, value []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	var n Notification
	if err := json.Unmarshal(value, &n); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{key: key, value: n, headers: headers})
	return nil
}

func newBus(t *testing.T, h *OnWorkflowEventHandler) *messaging.InMemoryEventBus {
	t.Helper()
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{Logger: logger.Nop()})
	require.NoError(t, h.Register(bus))
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestOnWorkflowEvent_PublishesNotifications(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOnWorkflowEventHandler(notifier, nil, logger.Nop(), WorkflowEventConfig{})
	bus := newBus(t, h)

	require.NoError(t, bus.Publish(shared.NewInitialReviewEvent("app-1", "s1", "agent-a", "rejected", "Add GPA")))
	require.NoError(t, bus.Publish(shared.NewDocumentReviewedEvent("app-1", "s1", "agent-a", "transcript", "approved", "")))
	require.NoError(t, bus.Publish(shared.NewDocumentsUploadedEvent("app-1", "s1", "agent-a", []string{"transcript", "resume_cv"})))
	require.NoError(t, bus.Publish(shared.NewAgentReassignedEvent("app-1", "admin-1", "agent-a", "agent-b")))
	require.NoError(t, bus.Publish(shared.NewInternalNoteAddedEvent("app-1", "agent-a", "n1")))

	require.Len(t, notifier.sent, 4)

	first := notifier.sent[0]
	assert.Equal(t, "app-1", first.key)
	assert.Equal(t, RecipientStudent, first.value.Recipient)
	assert.Equal(t, "rejected", first.value.Status)
	assert.Equal(t, "Add GPA", first.value.Feedback)
	assert.Equal(t, string(shared.EventInitialReviewDone), first.headers["event_type"])
	assert.NotEmpty(t, first.headers["event_id"])

	assert.Equal(t, "transcript", notifier.sent[1].value.DocumentKey)
	assert.Equal(t, RecipientAgent, notifier.sent[2].value.Recipient)
	assert.Equal(t, []string{"transcript", "resume_cv"}, notifier.sent[2].value.DocumentKeys)
	assert.Equal(t, "agent-b", notifier.sent[3].value.AgentID)
}

func TestOnWorkflowEvent_SkipsUnchangedSubmit(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOnWorkflowEventHandler(notifier, nil, logger.Nop(), WorkflowEventConfig{})

	require.NoError(t, h.Handle(shared.NewApplicationSubmittedEvent("app-1", "s1", "submitted", "submitted")))
	assert.Empty(t, notifier.sent)

	require.NoError(t, h.Handle(shared.NewApplicationSubmittedEvent("app-1", "s1", "submitted", "rejected")))
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, RecipientReviewers, notifier.sent[0].value.Recipient)
}

func TestOnWorkflowEvent_FeatureFlags(t *testing.T) {
	notifier := &fakeNotifier{}
	flags := config.LoadFeatureFlags()
	require.NoError(t, flags.EnableFeature(config.FeatureNotifyStatusChanges))
	require.NoError(t, flags.DisableFeature(config.FeatureNotifyDocumentReviews))
	h := NewOnWorkflowEventHandler(notifier, flags, logger.Nop(), WorkflowEventConfig{})

	require.NoError(t, h.Handle(shared.NewDocumentReviewedEvent("app-1", "s1", "agent-a", "transcript", "approved", "")))
	assert.Empty(t, notifier.sent)

	require.NoError(t, h.Handle(shared.NewFinalDecisionEvent("app-1", "s1", "agent-a", "approved", "")))
	assert.Len(t, notifier.sent, 1)
}

func TestOnWorkflowEvent_RemoteEvent(t *testing.T) {
	data, err := messaging.EncodeEvent("instance-b", shared.NewDocumentsUploadedEvent("app-9", "s9", "agent-z", []string{"transcript"}))
	require.NoError(t, err)
	_, event, err := messaging.DecodeEvent(data)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	h := NewOnWorkflowEventHandler(notifier, nil, logger.Nop(), WorkflowEventConfig{})
	require.NoError(t, h.Handle(event))

	require.Len(t, notifier.sent, 1)
	got := notifier.sent[0]
	assert.Equal(t, []string{"transcript"}, got.value.DocumentKeys)
	assert.Equal(t, event.(*messaging.RemoteEvent).EnvelopeID(), got.value.EventID)
}

func TestOnWorkflowEvent_PublishError(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("broker down")}
	h := NewOnWorkflowEventHandler(notifier, nil, logger.Nop(), WorkflowEventConfig{})

	err := h.Handle(shared.NewFinalDecisionEvent("app-1", "s1", "agent-a", "approved", ""))
	assert.EqualError(t, err, "broker down")
}
