package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Sentinel taxonomy for the decision core. Components tag failures with
// errors.Join so callers branch with errors.Is while the original cause
// stays in the chain.
var (
	ErrValidation          = errors.New("validation failed")
	ErrBudgetExceeded      = errors.New("decision budget exceeded")
	ErrConstraintViolation = errors.New("hard constraint violated")
	ErrStaleOutcome        = errors.New("outcome outside observation window")
	ErrSynthesisFailure    = errors.New("synthesis run failed")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrConflict            = errors.New("conflict")
	ErrRetryable           = errors.New("retryable failure")
)

// Validation tags an error as caller-input validation failure.
func Validation(msg string) error {
	return errors.Join(ErrValidation, errors.New(strings.TrimSpace(msg)))
}

// Validationf is Validation with formatting.
func Validationf(format string, args ...interface{}) error {
	return errors.Join(ErrValidation, fmt.Errorf(format, args...))
}

// Constraint tags an error with the hard predicate that fired.
func Constraint(predicate string) error {
	return errors.Join(ErrConstraintViolation, fmt.Errorf("predicate %s", predicate))
}

// Stale tags a late outcome submission.
func Stale(msg string) error {
	return errors.Join(ErrStaleOutcome, errors.New(strings.TrimSpace(msg)))
}

// Synthesis tags a synthesis pipeline failure.
func Synthesis(stage string, err error) error {
	return errors.Join(ErrSynthesisFailure, fmt.Errorf("stage %s: %w", stage, err))
}

// Error carries the HTTP projection of a taxonomy failure.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From projects a taxonomy error onto status + stable machine code.
func From(err error) *Error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return New(http.StatusBadRequest, "validation_error", err)
	case errors.Is(err, ErrStaleOutcome):
		return New(http.StatusConflict, "stale_outcome", err)
	case errors.Is(err, ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	case errors.Is(err, ErrUnauthorized):
		return New(http.StatusUnauthorized, "unauthorized", err)
	case errors.Is(err, ErrConstraintViolation):
		return New(http.StatusUnprocessableEntity, "constraint_violation", err)
	case errors.Is(err, ErrSynthesisFailure):
		return New(http.StatusInternalServerError, "synthesis_failure", err)
	case errors.Is(err, ErrRetryable):
		return New(http.StatusServiceUnavailable, "retryable", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}

const (
	pgUniqueViolation     = "23505"
	pgSerializationFail   = "40001"
	pgDeadlockDetected    = "40P01"
	pgLockNotAvailable    = "55P03"
	pgTooManyConnections  = "53300"
	pgInsufficientPrivs   = "42501"
	pgForeignKeyViolation = "23503"
)

// MapDBError folds driver and ORM failures into the taxonomy. Unique
// violations surface as ErrConflict so idempotent writers can treat
// duplicate inserts as no-ops.
func MapDBError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Join(ErrConflict, fmt.Errorf("%s: %w", op, err))
		case pgSerializationFail, pgDeadlockDetected, pgLockNotAvailable, pgTooManyConnections:
			return errors.Join(ErrRetryable, fmt.Errorf("%s: %w", op, err))
		case pgForeignKeyViolation:
			return errors.Join(ErrValidation, fmt.Errorf("%s: %w", op, err))
		case pgInsufficientPrivs:
			return errors.Join(ErrUnauthorized, fmt.Errorf("%s: %w", op, err))
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, fmt.Errorf("%s: %w", op, err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errors.Join(ErrRetryable, fmt.Errorf("%s: %w", op, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUniqueViolation reports whether err is a duplicate-key insert, before
// or after MapDBError tagging.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
