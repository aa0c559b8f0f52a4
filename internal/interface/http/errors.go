package http

import (
	"errors"
	"net/http"

	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
	"github.com/admissions-hub/admissions-hub/internal/infrastructure/metrics"
	"github.com/admissions-hub/admissions-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// Every handler reports failures through writeError; this is the only place
// that knows how error kinds translate to HTTP.
// ══════════════════════════════════════════════════════════════════════════════

type errorMapping struct {
	kind   error
	status int
	code   string
}

// Order matters: the first matching kind wins.
var errorMappings = []errorMapping{
	{shared.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
	{shared.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{shared.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{shared.ErrValidation, http.StatusBadRequest, "VALIDATION_FAILED"},
	{shared.ErrWrongState, http.StatusConflict, "WRONG_STATE"},
	{shared.ErrConflict, http.StatusConflict, "CONFLICT"},
	{shared.ErrLocked, http.StatusLocked, "LOCKED"},
	{shared.ErrIncompleteDocuments, http.StatusUnprocessableEntity, "INCOMPLETE_DOCUMENTS"},
	{shared.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
	{shared.ErrTimeout, http.StatusGatewayTimeout, "TIMEOUT"},
	{shared.ErrServiceUnavailable, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
}

// classify returns the HTTP status, error code and client-facing message.
func classify(err error) (int, string, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large"
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.kind) {
			return m.status, m.code, clientMessage(err)
		}
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"
}

// clientMessage prefers the domain message over the wrapped chain, which
// carries internal operation names.
func clientMessage(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return err.Error()
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed",
			logger.String("path", r.URL.Path),
			logger.RequestID(getRequestID(r.Context())),
			logger.Err(err),
		)
	case code == "CONFLICT":
		if s.deps.Metrics != nil {
			s.deps.Metrics.RecordConflict(metrics.RoutePath(r))
		}
		s.logger.Info("concurrent update rejected",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
	}

	writeJSONError(w, r, status, code, message)
}
