package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Status    int               `json:"status"`
	Message   string            `json:"message"`
	Timestamp string            `json:"timestamp"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Status:    status,
		Message:   message,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

// writeError maps the domain error taxonomy to a status code
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Timestamp: s.now().UTC().Format(time.RFC3339)}

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		resp.Status = http.StatusBadRequest
		resp.Message = vErr.Message
		resp.Errors = vErr.Fields
	case domain.IsNotFound(err):
		resp.Status = http.StatusNotFound
		resp.Message = err.Error()
	case domain.IsAlreadyExists(err):
		resp.Status = http.StatusConflict
		resp.Message = err.Error()
	case domain.IsStoreUnavailable(err):
		resp.Status = http.StatusServiceUnavailable
		resp.Message = "flag store unavailable"
	default:
		resp.Status = http.StatusInternalServerError
		resp.Message = "internal server error"
	}

	var retry interface{ Retryable() bool }
	if errors.As(err, &retry) && retry.Retryable() {
		w.Header().Set("Retry-After", "1")
	}

	if resp.Status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	}

	writeJSON(w, resp.Status, resp)
}

// decodeBody reads a JSON body into v. Malformed input is a validation error.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("request body is required")
		}
		return domain.NewValidationErrorWithCause("malformed request body", err)
	}
	return nil
}
