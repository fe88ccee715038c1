package chi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/routedex/internal/domain"
	"github.com/kailas-cloud/routedex/internal/logger"
)

// ErrorCode is the machine-readable error code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest                ErrorCode = "bad_request"
	CodeInvalidCriteria           ErrorCode = "invalid_criteria"
	CodeInvalidQuery              ErrorCode = "invalid_query"
	CodeValidationFailed          ErrorCode = "validation_failed"
	CodeNotFound                  ErrorCode = "not_found"
	CodeConflict                  ErrorCode = "conflict"
	CodeInvalidReference          ErrorCode = "invalid_reference"
	CodeKeywordSearchNotSupported ErrorCode = "keyword_search_not_supported"
	CodeInternalError             ErrorCode = "internal_error"
)

// ErrorResponse is the error body of every failed request.
type ErrorResponse struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	CurrentVersion *int64    `json:"currentVersion,omitempty"`
	// RequestID is set on internal errors so they can be found in the logs.
	RequestID string `json:"requestId,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		versionConflictHandler,
		sentinelHandler(domain.ErrUnknownEntity, http.StatusNotFound, CodeNotFound, false),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound, false),
		sentinelHandler(domain.ErrInvalidCriteria, http.StatusBadRequest, CodeInvalidCriteria, true),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery, true),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed, true),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, CodeConflict, true),
		sentinelHandler(domain.ErrInvalidReference, http.StatusUnprocessableEntity, CodeInvalidReference, true),
		sentinelHandler(domain.ErrKeywordSearchNotSupported,
			http.StatusNotImplemented, CodeKeywordSearchNotSupported, false),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel
// error. Detailed handlers echo the error text, which for these sentinels only
// carries field names and operands supplied by the client.
func sentinelHandler(sentinel error, status int, code ErrorCode, detailed bool) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := sentinel.Error()
		if detailed {
			msg = clientMessage(err, sentinel)
		}
		writeError(w, status, code, msg)
		return true
	}
}

// versionConflictHandler reports the current version in the body and ETag.
func versionConflictHandler(w http.ResponseWriter, err error) bool {
	var vce *domain.VersionConflictError
	if !errors.As(err, &vce) {
		return false
	}
	w.Header().Set("ETag", strconv.Quote(strconv.FormatInt(vce.CurrentVersion, 10)))
	current := vce.CurrentVersion
	writeJSON(w, http.StatusConflict, ErrorResponse{
		Code:           CodeConflict,
		Message:        vce.Error(),
		CurrentVersion: &current,
	})
	return true
}

// clientMessage strips the service-side wrapping ("update route 3: ...") so
// the message starts at the sentinel.
func clientMessage(err, sentinel error) string {
	full := err.Error()
	if i := strings.Index(full, sentinel.Error()); i >= 0 {
		return full[i:]
	}
	return sentinel.Error()
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.String("path", r.URL.Path), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Code:      CodeInternalError,
		Message:   "internal error",
		RequestID: logger.RequestID(r.Context()),
	})
}

// requestLogger prefers the request-scoped logger set by the router.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if logger.RequestID(r.Context()) != "" {
		return logger.FromContext(r.Context())
	}
	return s.logger
}
