package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
	"github.com/GabrijelGordic/Suzeraj/pkg/logger"
	"github.com/GabrijelGordic/Suzeraj/pkg/validator"
)

// Response is the error envelope returned by every endpoint on failure.
// Successful responses are written as bare JSON documents.
type Response struct {
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the body under "error". RequestID echoes the
// correlation id so clients can quote it.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// Page is the list envelope used by catalog and review listings. Count is the
// size of the whole filtered set, not of Results.
type Page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

// NewPage builds a Page, substituting an empty slice for nil results so the
// JSON body always carries an array.
func NewPage[T any](results []T, count int) Page[T] {
	if results == nil {
		results = []T{}
	}
	return Page[T]{Count: count, Results: results}
}

// WriteJSON sends v as the body with status. Encoding errors are dropped
// since the status line is already out.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError renders err as the error envelope. Server-side failures are
// logged with the request-scoped logger, or fallback when none is set.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	appErr := apperrors.From(err)
	resp := &ErrorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}
	if appErr.Field != "" {
		resp.Fields = map[string]string{appErr.Field: appErr.Message}
	}

	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "request failed",
			slog.String("code", appErr.Code),
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}
	WriteJSON(w, appErr.Status, Response{Error: resp})
}

// WriteValidationError answers 400. Field failures from the validator are
// reported per field; anything else, such as a malformed body, becomes
// INVALID_INPUT with the error text.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if !errors.As(err, &valErr) {
		writeBadRequest(w, &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()})
		return
	}
	writeBadRequest(w, &ErrorResponse{
		Code:    "VALIDATION_ERROR",
		Message: "request validation failed",
		Fields:  valErr.Fields(),
	})
}

// ParseUUID parses a path parameter as a UUID. When it is not one, a 400
// INVALID_PARAMETER is written and ok is false.
func ParseUUID(w http.ResponseWriter, param string) (id uuid.UUID, ok bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		writeBadRequest(w, &ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid UUID: " + param})
		return uuid.Nil, false
	}
	return id, true
}

func writeBadRequest(w http.ResponseWriter, e *ErrorResponse) {
	WriteJSON(w, http.StatusBadRequest, Response{Error: e})
}
