package apperr

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine readable failure category.
type Kind string

const (
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindNotFound            Kind = "NOT_FOUND"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindNotConfigured       Kind = "NOT_CONFIGURED"
	KindInsufficientCredits Kind = "INSUFFICIENT_CREDITS"
	KindSlotUnavailable     Kind = "SLOT_UNAVAILABLE"
	KindPendingPayoutExists Kind = "PENDING_PAYOUT_EXISTS"
	KindNoCredits           Kind = "NO_CREDITS"
	KindNotScheduled        Kind = "NOT_SCHEDULED"
	KindTooEarly            Kind = "TOO_EARLY"
	KindAppointmentEnded    Kind = "APPOINTMENT_ENDED"
	KindVideoUnavailable    Kind = "VIDEO_UNAVAILABLE"
	KindVideoProvider       Kind = "VIDEO_PROVIDER_ERROR"
	KindLedgerFailure       Kind = "LEDGER_FAILURE"
	KindInternal            Kind = "INTERNAL"
)

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same Kind, so the
// sentinels below work with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrNotConfigured       = &Error{Kind: KindNotConfigured, Message: "not configured"}
	ErrInsufficientCredits = &Error{Kind: KindInsufficientCredits, Message: "insufficient credits"}
	ErrSlotUnavailable     = &Error{Kind: KindSlotUnavailable, Message: "this time slot is already booked"}
	ErrPendingPayoutExists = &Error{Kind: KindPendingPayoutExists, Message: "a payout request is already being processed"}
	ErrNoCredits           = &Error{Kind: KindNoCredits, Message: "no credits available for payout"}
	ErrNotScheduled        = &Error{Kind: KindNotScheduled, Message: "appointment is not scheduled"}
	ErrTooEarly            = &Error{Kind: KindTooEarly, Message: "too early to join"}
	ErrAppointmentEnded    = &Error{Kind: KindAppointmentEnded, Message: "appointment has ended"}
	ErrVideoUnavailable    = &Error{Kind: KindVideoUnavailable, Message: "video session not available"}
	ErrVideoProvider       = &Error{Kind: KindVideoProvider, Message: "video provider error"}
	ErrLedgerFailure       = &Error{Kind: KindLedgerFailure, Message: "ledger failure"}
)

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the message of the first *Error in err's chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
