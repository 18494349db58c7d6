package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies every error the engine can surface.
type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidState
	CapacityExceeded
	InsufficientBalance
	DuplicateParticipation
	Validation
	NoValidBid
	Unauthorized
	Forbidden
)

var kindNames = map[Kind]string{
	Internal:               "internal",
	NotFound:               "not_found",
	InvalidState:           "invalid_state",
	CapacityExceeded:       "capacity_exceeded",
	InsufficientBalance:    "insufficient_balance",
	DuplicateParticipation: "duplicate_participation",
	Validation:             "validation_error",
	NoValidBid:             "no_valid_bid",
	Unauthorized:           "unauthorized",
	Forbidden:              "forbidden",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Status is the HTTP status code used when the kind reaches a client.
func (k Kind) Status() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case InvalidState, DuplicateParticipation, NoValidBid:
		return http.StatusConflict
	case CapacityExceeded:
		return http.StatusUnprocessableEntity
	case InsufficientBalance:
		return http.StatusPaymentRequired
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperr.New(apperr.NotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause. A nil cause yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, Internal for anything that is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage is what a client may see. Internal causes are hidden unless
// expose is set (non-production environments).
func PublicMessage(err error, expose bool) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != Internal {
		return e.Msg
	}
	if expose && err != nil {
		return err.Error()
	}
	return "internal error"
}

// Convenience constructors for the common cases.

func NotFoundf(format string, args ...any) *Error { return Newf(NotFound, format, args...) }

func InvalidStatef(format string, args ...any) *Error { return Newf(InvalidState, format, args...) }

func Validationf(format string, args ...any) *Error { return Newf(Validation, format, args...) }
