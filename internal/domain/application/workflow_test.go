package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

var (
	student = StudentCaller{User: "student-1"}
	agentX  = AgentCaller{User: "user-agent-x", Agent: "agent-x"}
	agentY  = AgentCaller{User: "user-agent-y", Agent: "agent-y"}
	admin   = AdminCaller{User: "admin-1"}
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newMachine() *StateMachine {
	return NewStateMachine(DefaultWorkflowConfig()).WithClock(fixedClock())
}

func sampleProfile() Profile {
	return Profile{
		EducationHistory: []EducationRecord{{
			Institution:    "University of Tartu",
			Degree:         "BSc",
			FieldOfStudy:   "Computer Science",
			GraduationYear: 2024,
			GPA:            "3.8/4.0",
		}},
		TestScores:  &TestScores{IELTS: TestScore{Score: "7.5"}},
		Preferences: &Preferences{PreferredCountries: []string{"Canada"}},
	}
}

func submitted(t *testing.T, sm *StateMachine) *Application {
	t.Helper()
	app, err := sm.Create(student, "7f8d2c1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", sampleProfile(), false)
	require.NoError(t, err)
	return app
}

func accepted(t *testing.T, sm *StateMachine) *Application {
	t.Helper()
	app := submitted(t, sm)
	require.NoError(t, sm.InitialReview(agentX, app, DecisionAccept, ""))
	return app
}

func withDocs(t *testing.T, sm *StateMachine, keys ...DocumentKey) *Application {
	t.Helper()
	app := accepted(t, sm)
	locs := make(map[DocumentKey]string)
	for _, k := range keys {
		locs[k] = "file://" + k.String() + "-v1"
	}
	_, err := sm.UploadDocuments(student, app, locs)
	require.NoError(t, err)
	return app
}

func TestCreate_SubmitsByDefault(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	assert.Equal(t, StatusSubmitted, app.Status)
	assert.Equal(t, shared.UserID("student-1"), app.OwnerID)
	assert.Equal(t, "7.5", app.TestScores.IELTS.Score)
	assert.Equal(t, []string{"Canada"}, app.Preferences.PreferredCountries)
	assert.Empty(t, app.AssignedAgent)
	for _, key := range AllDocumentKeys() {
		doc, ok := app.Documents.Get(key)
		require.True(t, ok)
		assert.Equal(t, DocPending, doc.Status, key)
	}
	assert.NoError(t, app.CheckInvariants())
}

func TestCreate_AsDraft(t *testing.T) {
	sm := newMachine()
	app, err := sm.Create(student, "7f8d2c1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", Profile{}, true)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, app.Status)
}

func TestCreate_OnlyStudents(t *testing.T) {
	sm := newMachine()
	_, err := sm.Create(agentX, "7f8d2c1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", Profile{}, false)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestCreate_RejectsMalformedEducation(t *testing.T) {
	sm := newMachine()
	_, err := sm.Create(student, "7f8d2c1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", Profile{
		EducationHistory: []EducationRecord{{Institution: "MIT", Degree: "BSc", GraduationYear: 2020}},
	}, false)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestPreferences_CountriesAreASet(t *testing.T) {
	sm := newMachine()
	app, err := sm.Create(student, "7f8d2c1e-3a4b-4c5d-8e9f-0a1b2c3d4e5f", Profile{
		Preferences: &Preferences{PreferredCountries: []string{"Canada", " canada", "", "Germany"}},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Canada", "Germany"}, app.Preferences.PreferredCountries)
}

func TestSubmit_TransitionTable(t *testing.T) {
	tests := []struct {
		name       string
		from       Status
		feedback   string
		asDraft    bool
		wantStatus Status
		wantErr    error
	}{
		{name: "draft becomes submitted", from: StatusDraft, wantStatus: StatusSubmitted},
		{name: "draft saved as draft", from: StatusDraft, asDraft: true, wantStatus: StatusDraft},
		{name: "submitted stays submitted", from: StatusSubmitted, wantStatus: StatusSubmitted},
		{name: "rejected resubmits", from: StatusRejected, feedback: "missing GPA", wantStatus: StatusSubmitted},
		{name: "accepted is locked", from: StatusAccepted, wantErr: shared.ErrLocked},
		{name: "approved is locked", from: StatusApproved, wantErr: shared.ErrLocked},
		{name: "draft save on submitted", from: StatusSubmitted, asDraft: true, wantErr: shared.ErrWrongState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newMachine()
			app := submitted(t, sm)
			app.Status = tt.from
			app.RejectionFeedback = tt.feedback
			before := app.Clone()

			prev, err := sm.Submit(student, app, Profile{Preferences: &Preferences{PreferredIntake: "Fall 2026"}}, tt.asDraft)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, app, "failed guard must not mutate")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.from, prev)
			assert.Equal(t, tt.wantStatus, app.Status)
			assert.Empty(t, app.RejectionFeedback)
			assert.Equal(t, "Fall 2026", app.Preferences.PreferredIntake)
			assert.NoError(t, app.CheckInvariants())
		})
	}
}

func TestSubmit_NilFieldsKeepExistingValues(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	_, err := sm.Submit(student, app, Profile{}, false)
	require.NoError(t, err)
	assert.Len(t, app.EducationHistory, 1)
	assert.Equal(t, "7.5", app.TestScores.IELTS.Score)
}

func TestSubmit_OtherStudentForbidden(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)
	_, err := sm.Submit(StudentCaller{User: "student-2"}, app, Profile{}, false)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestInitialReview_Accept(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	require.NoError(t, sm.InitialReview(agentX, app, DecisionAccept, ""))
	assert.Equal(t, StatusAccepted, app.Status)
	assert.Equal(t, shared.AgentID("agent-x"), app.AssignedAgent)
	assert.True(t, app.CanUpload())
}

func TestInitialReview_Reject(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	require.NoError(t, sm.InitialReview(agentY, app, DecisionReject, "  GPA below threshold "))
	assert.Equal(t, StatusRejected, app.Status)
	assert.Equal(t, "GPA below threshold", app.RejectionFeedback)
	assert.Equal(t, shared.AgentID("agent-y"), app.AssignedAgent)
	assert.NoError(t, app.CheckInvariants())
}

func TestInitialReview_Guards(t *testing.T) {
	tests := []struct {
		name     string
		caller   Caller
		status   Status
		decision Decision
		feedback string
		wantErr  error
	}{
		{name: "student cannot review", caller: student, status: StatusSubmitted, decision: DecisionAccept, wantErr: shared.ErrForbidden},
		{name: "reject needs feedback", caller: agentX, status: StatusSubmitted, decision: DecisionReject, feedback: "   ", wantErr: shared.ErrFeedbackRequired},
		{name: "unknown decision", caller: agentX, status: StatusSubmitted, decision: "maybe", wantErr: shared.ErrValidation},
		{name: "approve is not an initial decision", caller: agentX, status: StatusSubmitted, decision: DecisionApprove, wantErr: shared.ErrInvalidDecision},
		{name: "draft is wrong state", caller: agentX, status: StatusDraft, decision: DecisionAccept, wantErr: shared.ErrWrongState},
		{name: "already accepted", caller: agentY, status: StatusAccepted, decision: DecisionAccept, wantErr: shared.ErrWrongState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newMachine()
			app := submitted(t, sm)
			app.Status = tt.status
			before := app.Clone()

			err := sm.InitialReview(tt.caller, app, tt.decision, tt.feedback)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, app)
		})
	}
}

func TestInitialReview_AdminWithoutAgentProfile(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	require.NoError(t, sm.InitialReview(admin, app, DecisionAccept, ""))
	assert.Equal(t, shared.AgentID("admin-1"), app.AssignedAgent)
}

func TestUploadDocuments(t *testing.T) {
	sm := newMachine()
	app := accepted(t, sm)
	app.Documents.Transcript.Status = DocRejectedForRevision
	app.Documents.Transcript.Feedback = "blurry scan"
	app.Documents.Transcript.Location = "file://old-transcript"

	superseded, err := sm.UploadDocuments(student, app, map[DocumentKey]string{
		DocTranscript: "file://transcript-v2",
		DocResumeCV:   "file://cv-v1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"file://old-transcript"}, superseded)
	assert.Equal(t, DocSubmitted, app.Documents.Transcript.Status)
	assert.Empty(t, app.Documents.Transcript.Feedback)
	assert.Equal(t, "file://transcript-v2", app.Documents.Transcript.Location)
	require.NotNil(t, app.Documents.Transcript.UpdatedAt)
	assert.Equal(t, DocSubmitted, app.Documents.ResumeCV.Status)
	assert.Equal(t, DocPending, app.Documents.StatementOfPurpose.Status)
}

func TestUploadDocuments_OnlyWhileAccepted(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusSubmitted, StatusApproved, StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			sm := newMachine()
			app := submitted(t, sm)
			app.Status = status
			before := app.Documents

			_, err := sm.UploadDocuments(student, app, map[DocumentKey]string{DocTranscript: "file://x"})
			assert.ErrorIs(t, err, shared.ErrWrongState)
			assert.Equal(t, before, app.Documents)
		})
	}
}

func TestUploadDocuments_Validation(t *testing.T) {
	sm := newMachine()
	app := accepted(t, sm)

	_, err := sm.UploadDocuments(student, app, map[DocumentKey]string{})
	assert.ErrorIs(t, err, shared.ErrNoFilesProvided)

	_, err = sm.UploadDocuments(student, app, map[DocumentKey]string{"passport": "file://p"})
	assert.ErrorIs(t, err, shared.ErrInvalidDocKey)

	_, err = sm.UploadDocuments(agentX, app, map[DocumentKey]string{DocTranscript: "file://t"})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestReviewDocument(t *testing.T) {
	sm := newMachine()
	app := withDocs(t, sm, DocTranscript)

	require.NoError(t, sm.ReviewDocument(agentX, app, DocTranscript, DocRejectedForRevision, "page 2 missing"))
	assert.Equal(t, DocRejectedForRevision, app.Documents.Transcript.Status)
	assert.Equal(t, "page 2 missing", app.Documents.Transcript.Feedback)

	err := sm.ReviewDocument(agentX, app, DocTranscript, DocApproved, "")
	assert.ErrorIs(t, err, shared.ErrWrongState, "only submitted documents can be reviewed")
}

func TestReviewDocument_Guards(t *testing.T) {
	tests := []struct {
		name     string
		caller   Caller
		key      DocumentKey
		decision DocumentStatus
		wantErr  error
	}{
		{name: "other agent", caller: agentY, key: DocTranscript, decision: DocApproved, wantErr: shared.ErrForbidden},
		{name: "student", caller: student, key: DocTranscript, decision: DocApproved, wantErr: shared.ErrForbidden},
		{name: "unknown key", caller: agentX, key: "passport", decision: DocApproved, wantErr: shared.ErrInvalidDocKey},
		{name: "pending is not a decision", caller: agentX, key: DocTranscript, decision: DocPending, wantErr: shared.ErrValidation},
		{name: "document not uploaded", caller: agentX, key: DocResumeCV, decision: DocApproved, wantErr: shared.ErrWrongState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := newMachine()
			app := withDocs(t, sm, DocTranscript)
			before := app.Clone()

			err := sm.ReviewDocument(tt.caller, app, tt.key, tt.decision, "")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, app)
		})
	}
}

func TestReviewDocument_AdminAlwaysEntitled(t *testing.T) {
	sm := newMachine()
	app := withDocs(t, sm, DocTranscript)
	require.NoError(t, sm.ReviewDocument(admin, app, DocTranscript, DocApproved, ""))
	assert.Equal(t, DocApproved, app.Documents.Transcript.Status)
}

func TestFinalDecision_ApproveRequiresDocuments(t *testing.T) {
	sm := newMachine()
	app := withDocs(t, sm, DocTranscript, DocResumeCV)
	require.NoError(t, sm.ReviewDocument(agentX, app, DocTranscript, DocApproved, ""))

	err := sm.FinalDecision(agentX, app, DecisionApprove, "")
	require.ErrorIs(t, err, shared.ErrIncompleteDocuments)
	assert.Contains(t, err.Error(), "resume_cv")
	assert.Equal(t, StatusAccepted, app.Status)

	require.NoError(t, sm.ReviewDocument(agentX, app, DocResumeCV, DocApproved, ""))
	require.NoError(t, sm.FinalDecision(agentX, app, DecisionApprove, ""))
	assert.Equal(t, StatusApproved, app.Status)
	assert.NoError(t, app.CheckInvariants())
}

func TestFinalDecision_RequiredDocumentsAreConfigurable(t *testing.T) {
	sm := NewStateMachine(WorkflowConfig{RequiredDocuments: []DocumentKey{DocStatementOfPurpose}}).WithClock(fixedClock())
	app := withDocs(t, sm, DocStatementOfPurpose)

	require.NoError(t, sm.ReviewDocument(agentX, app, DocStatementOfPurpose, DocApproved, ""))
	require.NoError(t, sm.FinalDecision(agentX, app, DecisionApprove, ""))
	assert.Equal(t, StatusApproved, app.Status)
}

func TestFinalDecision_Reject(t *testing.T) {
	sm := newMachine()
	app := accepted(t, sm)

	err := sm.FinalDecision(agentX, app, DecisionReject, "")
	assert.ErrorIs(t, err, shared.ErrFeedbackRequired)

	require.NoError(t, sm.FinalDecision(agentX, app, DecisionReject, "documents inconsistent"))
	assert.Equal(t, StatusRejected, app.Status)
	assert.Equal(t, "documents inconsistent", app.RejectionFeedback)
	assert.Equal(t, shared.AgentID("agent-x"), app.AssignedAgent, "assignment persists through rejection")
	assert.NoError(t, app.CheckInvariants())
}

func TestFinalDecision_Guards(t *testing.T) {
	sm := newMachine()
	app := accepted(t, sm)

	assert.ErrorIs(t, sm.FinalDecision(agentY, app, DecisionReject, "no"), shared.ErrForbidden)
	assert.ErrorIs(t, sm.FinalDecision(agentX, app, DecisionAccept, ""), shared.ErrInvalidDecision)

	app.Status = StatusApproved
	assert.ErrorIs(t, sm.FinalDecision(agentX, app, DecisionReject, "late"), shared.ErrWrongState)
}

func TestResubmitAfterRejectionClearsFeedback(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)
	require.NoError(t, sm.InitialReview(agentX, app, DecisionReject, "incomplete history"))

	_, err := sm.Submit(student, app, sampleProfile(), false)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, app.Status)
	assert.Empty(t, app.RejectionFeedback)
	assert.Equal(t, shared.AgentID("agent-x"), app.AssignedAgent)

	require.NoError(t, sm.InitialReview(agentY, app, DecisionAccept, ""))
	assert.Equal(t, shared.AgentID("agent-y"), app.AssignedAgent)
}

func TestAddInternalNote(t *testing.T) {
	sm := newMachine()
	app := accepted(t, sm)

	note, err := sm.AddInternalNote(agentX, app, "note-1", "called the student")
	require.NoError(t, err)
	assert.Equal(t, shared.AgentID("agent-x"), note.Author)

	_, err = sm.AddInternalNote(agentX, app, "note-2", "  ")
	assert.ErrorIs(t, err, shared.ErrNoteRequired)

	_, err = sm.AddInternalNote(agentY, app, "note-3", "hi")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = sm.AddInternalNote(admin, app, "note-4", "escalated")
	require.NoError(t, err)

	require.Len(t, app.InternalNotes, 2)
	assert.Equal(t, "called the student", app.InternalNotes[0].Note)
	assert.Equal(t, "escalated", app.InternalNotes[1].Note)
	assert.Nil(t, app.WithoutInternalNotes().InternalNotes)
}

func TestReassignAgent(t *testing.T) {
	sm := newMachine()
	app := submitted(t, sm)

	_, err := sm.ReassignAgent(admin, app, "agent-y")
	assert.ErrorIs(t, err, shared.ErrWrongState)

	require.NoError(t, sm.InitialReview(agentX, app, DecisionAccept, ""))

	_, err = sm.ReassignAgent(agentX, app, "agent-y")
	assert.ErrorIs(t, err, shared.ErrForbidden)

	prev, err := sm.ReassignAgent(admin, app, "agent-y")
	require.NoError(t, err)
	assert.Equal(t, shared.AgentID("agent-x"), prev)
	assert.True(t, IsEntitled(agentY, app))
	assert.False(t, IsEntitled(agentX, app))
}

func TestScenario_FullLifecycle(t *testing.T) {
	sm := newMachine()

	app := submitted(t, sm)
	assert.Equal(t, StatusSubmitted, app.Status)

	require.NoError(t, sm.InitialReview(agentX, app, DecisionAccept, ""))
	assert.Equal(t, shared.AgentID("agent-x"), app.AssignedAgent)

	_, err := sm.UploadDocuments(student, app, map[DocumentKey]string{
		DocTranscript: "file://transcript",
		DocResumeCV:   "file://cv",
	})
	require.NoError(t, err)
	assert.Equal(t, DocSubmitted, app.Documents.Transcript.Status)
	assert.Equal(t, DocSubmitted, app.Documents.ResumeCV.Status)

	require.NoError(t, sm.ReviewDocument(agentX, app, DocTranscript, DocApproved, ""))
	require.NoError(t, sm.ReviewDocument(agentX, app, DocResumeCV, DocApproved, ""))
	require.NoError(t, sm.FinalDecision(agentX, app, DecisionApprove, ""))
	assert.Equal(t, StatusApproved, app.Status)

	err = sm.ReviewDocument(agentY, app, DocTranscript, DocApproved, "")
	assert.ErrorIs(t, err, shared.ErrForbidden)
}
