package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/GabrijelGordic/Suzeraj/pkg/errors"
)

// transient wraps a store failure that is not already classified, so the
// caller sees a retryable error. Cancellation passes through unchanged.
func transient(op string, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return apperrors.Transient(fmt.Errorf("%s: %w", op, err))
}

// resultLabel maps an error onto a metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperrors.ErrTransient):
		return "transient"
	case errors.Is(err, apperrors.ErrDuplicateReview):
		return "duplicate"
	case apperrors.HTTPStatus(err) < 500:
		return "rejected"
	default:
		return "error"
	}
}
