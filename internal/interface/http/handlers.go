package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/admissions-hub/admissions-hub/internal/application/command"
	"github.com/admissions-hub/admissions-hub/internal/application/query"
	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/internal/interface/http/handlers"
)

// maxMultipartMemory is the part of a multipart body kept in memory; the rest spills to disk.
const maxMultipartMemory = 8 << 20

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports every dependency check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, "", status)
		return
	}
	writeJSON(w, r, http.StatusOK, "", status)
}

// handleReady handles the readiness probe.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSONError(w, r, http.StatusServiceUnavailable, "NOT_READY", status.Message)
		return
	}
	writeJSON(w, r, http.StatusOK, "", map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, "", map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST BODIES
// ══════════════════════════════════════════════════════════════════════════════

type submitRequest struct {
	EducationHistory []application.EducationRecord `json:"educationHistory"`
	TestScores       *application.TestScores       `json:"testScores"`
	Preferences      *application.Preferences      `json:"preferences"`
	SaveAsDraft      bool                          `json:"saveAsDraft"`
}

type reviewRequest struct {
	Review            string `json:"review"`
	RejectionFeedback string `json:"rejectionFeedback"`
}

type docReviewRequest struct {
	DocName  string `json:"docName"`
	Status   string `json:"status"`
	Feedback string `json:"feedback"`
}

type noteRequest struct {
	Note string `json:"note"`
}

type agentRequest struct {
	AgentID string `json:"agentId"`
}

// decodeJSON reads the body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return shared.WrapError("http", "Decode", shared.ErrValidation, "malformed JSON body", err)
}

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (application.Caller, bool) {
	caller, ok := handlers.CallerFromContext(r.Context())
	if !ok {
		s.writeError(w, r, shared.NewDomainError("http", "Authenticate", shared.ErrUnauthorized, "authentication required"))
	}
	return caller, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleSubmitApplication handles POST /api/v1/applications/submit
func (s *Server) handleSubmitApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.SubmitApplication.Handle(r.Context(), command.SubmitApplicationCommand{
		Caller: caller,
		Profile: application.Profile{
			EducationHistory: req.EducationHistory,
			TestScores:       req.TestScores,
			Preferences:      req.Preferences,
		},
		SaveAsDraft: req.SaveAsDraft,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status, message := http.StatusOK, "Application submitted successfully"
	if res.Created {
		status = http.StatusCreated
	}
	if res.Application.Status == application.StatusDraft {
		message = "Draft saved"
	}
	writeJSON(w, r, status, message, map[string]interface{}{"application": res.Application})
}

// handleUploadDocuments handles PUT /api/v1/applications/upload-docs (multipart).
// Each form file field is named after its document slot.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, err)
			return
		}
		s.writeError(w, r, shared.WrapError("http", "Upload", shared.ErrValidation, "expected a multipart/form-data body", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := make(map[application.DocumentKey]application.Upload, len(r.MultipartForm.File))
	for field, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		upload, err := readUpload(headers[0])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		files[application.DocumentKey(strings.TrimSpace(field))] = upload
	}

	app, err := s.deps.UploadDocuments.Handle(r.Context(), command.UploadDocumentsCommand{
		Caller: caller,
		Files:  files,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, "Documents uploaded successfully", map[string]interface{}{"application": app})
}

func readUpload(fh *multipart.FileHeader) (application.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return application.Upload{}, shared.WrapError("http", "Upload", shared.ErrValidation, "cannot read uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return application.Upload{}, shared.WrapError("http", "Upload", shared.ErrValidation, "cannot read uploaded file", err)
	}
	return application.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// handleGetMyApplication handles GET /api/v1/applications/me
func (s *Server) handleGetMyApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if caller.Role() != application.RoleStudent {
		s.writeError(w, r, shared.NewDomainError("http", "GetMine", shared.ErrForbidden, "only students have their own application"))
		return
	}

	app, err := s.deps.GetApplication.Handle(r.Context(), query.GetApplicationQuery{Caller: caller})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "", map[string]interface{}{"application": app})
}

// ══════════════════════════════════════════════════════════════════════════════
// AGENT & ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListApplications handles GET /api/v1/applications/all
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, false)
}

// handleListAssigned handles GET /api/v1/applications/assigned
func (s *Server) handleListAssigned(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, true)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, scoped bool) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	res, err := s.deps.ListApplications.Handle(r.Context(), query.ListApplicationsQuery{
		Caller:        caller,
		Status:        q.Get("status"),
		AgentID:       q.Get("agent"),
		Page:          getQueryParamInt(r, "page", 1),
		PageSize:      getQueryParamInt(r, "limit", shared.DefaultPageSize),
		ScopedToAgent: scoped,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "", res)
}

// handleGetApplication handles GET /api/v1/applications/{id}
func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	app, err := s.deps.GetApplication.Handle(r.Context(), query.GetApplicationQuery{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "", map[string]interface{}{"application": app})
}

// handleInitialReview handles PUT /api/v1/applications/{id}/initial-review
func (s *Server) handleInitialReview(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.deps.InitialReview.Handle(r.Context(), command.InitialReviewCommand{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
		Decision:      application.Decision(req.Review),
		Feedback:      req.RejectionFeedback,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "Application "+string(app.Status), map[string]interface{}{"application": app})
}

// handleReviewDocument handles PUT /api/v1/applications/{id}/doc-review
func (s *Server) handleReviewDocument(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req docReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.deps.ReviewDocument.Handle(r.Context(), command.ReviewDocumentCommand{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
		DocName:       req.DocName,
		Status:        application.DocumentStatus(req.Status),
		Feedback:      req.Feedback,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "Document "+req.DocName+" marked as "+req.Status, map[string]interface{}{"application": app})
}

// handleFinalDecision handles PUT /api/v1/applications/{id}/final-decision
func (s *Server) handleFinalDecision(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.deps.FinalDecision.Handle(r.Context(), command.FinalDecisionCommand{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
		Decision:      application.Decision(req.Review),
		Feedback:      req.RejectionFeedback,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "Application "+string(app.Status), map[string]interface{}{"application": app})
}

// handleAddInternalNote handles POST /api/v1/applications/{id}/notes
func (s *Server) handleAddInternalNote(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.AddInternalNote.Handle(r.Context(), command.AddInternalNoteCommand{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
		Note:          req.Note,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, "Note added", map[string]interface{}{
		"note":        res.Note,
		"application": res.Application,
	})
}

// handleReassignAgent handles PUT /api/v1/applications/{id}/agent
func (s *Server) handleReassignAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req agentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.deps.ReassignAgent.Handle(r.Context(), command.ReassignAgentCommand{
		Caller:        caller,
		ApplicationID: mux.Vars(r)["id"],
		AgentID:       shared.AgentID(strings.TrimSpace(req.AgentID)),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, "Agent reassigned", map[string]interface{}{"application": app})
}
