package auction

import (
	"errors"
	"fmt"
)

// Kind classifies engine errors by who must react to them.
type Kind int

const (
	// KindValidation is a rejected bid or request; reported to the caller only.
	KindValidation Kind = iota + 1
	// KindConflict is an operation that does not fit the current state.
	KindConflict
	// KindFatal is a broken ledger invariant. The session halts.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Reason is the machine readable cause of a bid rejection.
type Reason string

const (
	ReasonSessionNotLive    Reason = "SESSION_NOT_LIVE"
	ReasonLotNotActive      Reason = "LOT_NOT_ACTIVE"
	ReasonUnknownTeam       Reason = "UNKNOWN_TEAM"
	ReasonAlreadyLeading    Reason = "ALREADY_LEADING"
	ReasonBelowMinIncrement Reason = "BELOW_MIN_INCREMENT"
	ReasonRosterFull        Reason = "ROSTER_FULL"
	ReasonInsufficientFunds Reason = "INSUFFICIENT_FUNDS"
)

// Error is the engine's typed error.
type Error struct {
	Kind   Kind
	Reason Reason
	Op     string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Reason != "" {
		msg = string(e.Reason)
	}
	if e.Err != nil {
		if msg == "" {
			return fmt.Sprintf("%s %s: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionClosed   = errors.New("session closed")
	ErrSessionComplete = errors.New("session complete")
	ErrLotStillActive  = errors.New("a lot is still active")
	ErrLotNotFound     = errors.New("lot not found")
	ErrForbidden       = errors.New("forbidden")
	// ErrSeqTaken means another append already owns the sequence number.
	ErrSeqTaken        = errors.New("journal sequence already taken")

	ErrTournamentNotFound = errors.New("tournament not found")
)

func rejected(reason Reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Op: "submit", Msg: fmt.Sprintf(format, args...)}
}

func conflict(op string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Msg: fmt.Sprintf(format, args...), Err: err}
}

func fatal(op string, format string, args ...any) *Error {
	return &Error{Kind: KindFatal, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or 0 if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// ReasonOf returns the rejection reason carried by err, if any.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
