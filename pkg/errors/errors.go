package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Every AppError wraps exactly one of these so callers can
// branch with errors.Is without caring about the message.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrInvalidRange    = errors.New("invalid range")
	ErrInvalidRating   = errors.New("invalid rating")
	ErrSelfReview      = errors.New("self review rejected")
	ErrDuplicateReview = errors.New("duplicate review")
	ErrSelfWishlist    = errors.New("self wishlist rejected")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrTransient       = errors.New("transient failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrServiceUnavail  = errors.New("service unavailable")
	ErrInternal        = errors.New("internal error")
)

// AppError represents a structured application error with HTTP status mapping.
// Field is set for validation errors that concern a single input field.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidFilter reports a malformed or out-of-enumeration query field.
func InvalidFilter(field, message string) *AppError {
	return &AppError{
		Code:    "INVALID_FILTER",
		Message: message,
		Field:   field,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidFilter,
	}
}

// InvalidRange reports a lower bound greater than its upper bound.
func InvalidRange(message string) *AppError {
	return &AppError{
		Code:    "INVALID_RANGE",
		Message: message,
		Field:   "min_price",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidRange,
	}
}

// InvalidRating creates a 400 error for a rating outside 1..5.
func InvalidRating(rating int) *AppError {
	return &AppError{
		Code:    "INVALID_RATING",
		Message: fmt.Sprintf("rating must be between 1 and 5, got %d", rating),
		Field:   "rating",
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidRating,
	}
}

// SelfReviewRejected creates a 400 error for a seller reviewing themselves.
func SelfReviewRejected() *AppError {
	return &AppError{
		Code:    "SELF_REVIEW_REJECTED",
		Message: "you cannot review yourself",
		Status:  http.StatusBadRequest,
		Err:     ErrSelfReview,
	}
}

// DuplicateReview creates a 409 error.
func DuplicateReview(sellerID string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_REVIEW",
		Message: fmt.Sprintf("you have already reviewed seller %s", sellerID),
		Status:  http.StatusConflict,
		Err:     ErrDuplicateReview,
	}
}

// SelfWishlistRejected creates a 400 error for liking one's own listing.
func SelfWishlistRejected() *AppError {
	return &AppError{
		Code:    "SELF_WISHLIST_REJECTED",
		Message: "you cannot wishlist your own listing",
		Status:  http.StatusBadRequest,
		Err:     ErrSelfWishlist,
	}
}

// Unauthorized creates a 401 error.
func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     ErrUnauthorized,
	}
}

// Forbidden creates a 403 error.
func Forbidden(message string) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     ErrForbidden,
	}
}

// RateLimited creates a 429 error.
func RateLimited() *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: "too many requests",
		Status:  http.StatusTooManyRequests,
		Err:     ErrRateLimited,
	}
}

// Transient creates a 503 error. The operation had no lasting effect and may
// be retried.
func Transient(err error) *AppError {
	return &AppError{
		Code:    "TRANSIENT_FAILURE",
		Message: "temporary storage failure, please retry",
		Status:  http.StatusServiceUnavailable,
		Err:     errors.Join(ErrTransient, err),
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// sentinelErrors describes bare sentinels that reach the transport without
// an AppError around them. An empty message means err.Error() is shown.
var sentinelErrors = []struct {
	sentinel error
	code     string
	message  string
	status   int
}{
	{ErrNotFound, "NOT_FOUND", "resource not found", http.StatusNotFound},
	{ErrDuplicateReview, "DUPLICATE_REVIEW", "review already exists", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", "", http.StatusBadRequest},
	{ErrInvalidFilter, "INVALID_FILTER", "", http.StatusBadRequest},
	{ErrInvalidRange, "INVALID_RANGE", "", http.StatusBadRequest},
	{ErrInvalidRating, "INVALID_RATING", "", http.StatusBadRequest},
	{ErrSelfReview, "SELF_REVIEW_REJECTED", "you cannot review yourself", http.StatusBadRequest},
	{ErrSelfWishlist, "SELF_WISHLIST_REJECTED", "you cannot wishlist your own listing", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", "authentication required", http.StatusUnauthorized},
	{ErrForbidden, "FORBIDDEN", "not allowed", http.StatusForbidden},
	{ErrRateLimited, "RATE_LIMITED", "too many requests", http.StatusTooManyRequests},
	{ErrTransient, "TRANSIENT_FAILURE", "temporary storage failure, please retry", http.StatusServiceUnavailable},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", "service temporarily unavailable", http.StatusServiceUnavailable},
}

// From returns the AppError for err: the first one in its chain, else one
// built from a known sentinel, else Internal. From(nil) is nil.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, se := range sentinelErrors {
		if errors.Is(err, se.sentinel) {
			msg := se.message
			if msg == "" {
				msg = err.Error()
			}
			return &AppError{Code: se.code, Message: msg, Status: se.status, Err: err}
		}
	}
	return Internal(err)
}

// HTTPStatus returns the HTTP status code for err.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).Status
}
