// Package apperr defines the error kinds surfaced by every platform operation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so integrators can tell "role missing" from
// "pair mismatch" from "already graduated".
type Kind uint8

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindNotFound
	KindAlreadyExists
	KindPairMismatch
	KindInsufficientReserve
	KindInsufficientBalance
	KindInsufficientAllowance
	KindInvalidState
	KindSignatureInvalid
	KindInvalidAmount
)

var kindNames = map[Kind]string{
	KindUnknown:               "unknown",
	KindUnauthorized:          "unauthorized",
	KindNotFound:              "not found",
	KindAlreadyExists:         "already exists",
	KindPairMismatch:          "pair mismatch",
	KindInsufficientReserve:   "insufficient reserve",
	KindInsufficientBalance:   "insufficient balance",
	KindInsufficientAllowance: "insufficient allowance",
	KindInvalidState:          "invalid state",
	KindSignatureInvalid:      "signature invalid",
	KindInvalidAmount:         "invalid amount",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sentinels for errors.Is. Any *Error with the same Kind matches.
var (
	ErrUnauthorized          = &Error{Kind: KindUnauthorized}
	ErrNotFound              = &Error{Kind: KindNotFound}
	ErrAlreadyExists         = &Error{Kind: KindAlreadyExists}
	ErrPairMismatch          = &Error{Kind: KindPairMismatch}
	ErrInsufficientReserve   = &Error{Kind: KindInsufficientReserve}
	ErrInsufficientBalance   = &Error{Kind: KindInsufficientBalance}
	ErrInsufficientAllowance = &Error{Kind: KindInsufficientAllowance}
	ErrInvalidState          = &Error{Kind: KindInvalidState}
	ErrSignatureInvalid      = &Error{Kind: KindSignatureInvalid}
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount}
)

// Error is a classified failure of an operation.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// New builds a classified error for operation op.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Unauthorized reports that account lacks role for op.
func Unauthorized(op, account, role string) *Error {
	return New(KindUnauthorized, op, "account %s is missing role %s", account, role)
}

// NotFound reports a missing entity.
func NotFound(op, format string, args ...any) *Error {
	return New(KindNotFound, op, format, args...)
}

// InvalidState reports an operation attempted in the wrong lifecycle state.
func InvalidState(op, format string, args ...any) *Error {
	return New(KindInvalidState, op, format, args...)
}

// InvalidAmount reports a bad amount or argument.
func InvalidAmount(op, format string, args ...any) *Error {
	return New(KindInvalidAmount, op, format, args...)
}
