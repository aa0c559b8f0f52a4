package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

func TestParseDocumentKey(t *testing.T) {
	for _, key := range AllDocumentKeys() {
		got, err := ParseDocumentKey(" " + key.String() + " ")
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}

	_, err := ParseDocumentKey("resume")
	assert.ErrorIs(t, err, shared.ErrInvalidDocKey)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDocuments_SlotCoversEveryKey(t *testing.T) {
	docs := NewDocuments()
	seen := make(map[*Document]bool)
	for _, key := range AllDocumentKeys() {
		slot := docs.Slot(key)
		require.NotNil(t, slot, key)
		assert.False(t, seen[slot], "slots must be distinct")
		seen[slot] = true
	}
	assert.Nil(t, docs.Slot("passport"))
}

func TestDocument_CanReview(t *testing.T) {
	assert.False(t, Document{Status: DocPending}.CanReview())
	assert.True(t, Document{Status: DocSubmitted}.CanReview())
	assert.False(t, Document{Status: DocApproved}.CanReview())
	assert.False(t, Document{Status: DocRejectedForRevision}.CanReview())
}

func TestDocuments_IsComplete(t *testing.T) {
	docs := NewDocuments()
	required := DefaultWorkflowConfig().RequiredDocuments

	assert.False(t, docs.IsComplete(required))
	assert.Equal(t, []DocumentKey{DocTranscript, DocResumeCV}, docs.MissingRequired(required))

	docs.Transcript.Status = DocApproved
	docs.ResumeCV.Status = DocSubmitted
	assert.False(t, docs.IsComplete(required))

	docs.ResumeCV.Status = DocApproved
	assert.True(t, docs.IsComplete(required))
	assert.True(t, docs.IsComplete(nil))
}

func TestDocument_ResubmitClearsFeedback(t *testing.T) {
	doc := Document{Location: "a", Status: DocRejectedForRevision, Feedback: "blurry"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	old := doc.resubmit("b", now)
	assert.Equal(t, "a", old)
	assert.Equal(t, DocSubmitted, doc.Status)
	assert.Empty(t, doc.Feedback)
	require.NotNil(t, doc.UpdatedAt)
	assert.Equal(t, now, *doc.UpdatedAt)

	assert.Empty(t, doc.resubmit("b", now), "same location is not superseded")
}

func TestDocuments_Locations(t *testing.T) {
	docs := NewDocuments()
	docs.Transcript.Location = "file://t"
	docs.LetterOfRecommendation2.Location = "file://r2"

	assert.Equal(t, map[DocumentKey]string{
		DocTranscript:      "file://t",
		DocRecommendation2: "file://r2",
	}, docs.Locations())
}
