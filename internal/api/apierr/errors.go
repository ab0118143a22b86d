package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/soundcult/listenparty/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeSessionCreateFailed  = "SESSION_CREATE_FAILED"
	CodeSessionNotFound      = "SESSION_NOT_FOUND"
	CodeSessionEnded         = "SESSION_ENDED"
	CodeAlreadyInSession     = "ALREADY_IN_SESSION"
	CodeNotInSession         = "NOT_IN_SESSION"
	CodePermissionDenied     = "PERMISSION_DENIED"
	CodeNotHost              = "NOT_HOST"
	CodeParticipantNotFound  = "PARTICIPANT_NOT_FOUND"
	CodeQueueIndexOutOfRange = "QUEUE_INDEX_OUT_OF_RANGE"
	CodeQueueEmpty           = "QUEUE_EMPTY"
	CodeInternalError        = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	// Map model errors
	switch {
	case errors.Is(err, model.ErrSessionCreate):
		return &httpError{http.StatusBadGateway, APIError{CodeSessionCreateFailed, "Could not create session"}}
	case errors.Is(err, model.ErrSessionNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "No session with that code answered"}}
	case errors.Is(err, model.ErrSessionEnded):
		return &httpError{http.StatusGone, APIError{CodeSessionEnded, "The session has ended"}}
	case errors.Is(err, model.ErrAlreadyInSession):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyInSession, "Already in a session"}}
	case errors.Is(err, model.ErrNotInSession):
		return &httpError{http.StatusNotFound, APIError{CodeNotInSession, "Not in a session"}}
	case errors.Is(err, model.ErrPermissionDenied):
		return &httpError{http.StatusForbidden, APIError{CodePermissionDenied, "You do not have control of this session"}}
	case errors.Is(err, model.ErrNotHost):
		return &httpError{http.StatusForbidden, APIError{CodeNotHost, "Only the host can perform this action"}}
	case errors.Is(err, model.ErrParticipantNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeParticipantNotFound, "Participant not found"}}
	case errors.Is(err, model.ErrQueueIndexOutOfRange):
		return &httpError{http.StatusBadRequest, APIError{CodeQueueIndexOutOfRange, "Queue index out of range"}}
	case errors.Is(err, model.ErrQueueEmpty):
		return &httpError{http.StatusConflict, APIError{CodeQueueEmpty, "The queue is empty"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
