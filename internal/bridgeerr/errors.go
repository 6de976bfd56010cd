// Package bridgeerr classifies the error kinds that can flow out of any
// customs/route component. No component panics on an expected failure;
// every fallible operation returns one of these kinds so callers (timer
// loops vs. update handlers) can apply the right propagation policy.
package bridgeerr

import (
	"fmt"
	"time"
)

// Kind is the error classification used across the bridge core.
type Kind int

const (
	// InvalidArgs is a caller error: returned immediately, no state change.
	InvalidArgs Kind = iota

	// TemporarilyUnavailable signals back-pressure or a transient chain
	// condition; the caller should retry.
	TemporarilyUnavailable

	// AlreadySubmitted/AlreadyProcessed are idempotency signals; safe to
	// treat as success on the caller side.
	AlreadySubmitted
	AlreadyProcessed

	// RpcError, EvmRpcError, HttpOutcallError are transient; the owning
	// loop retries up to its ceiling, then logs and stalls.
	RpcError
	EvmRpcError
	HttpOutcallError

	// NotPayFees marks a deposit missing the required fee output;
	// unrecoverable for this txid.
	NotPayFees

	// InsufficientFunds / InsufficientAllowance / InsufficientRedeemFee
	// mean a release cannot proceed until deposits top up.
	InsufficientFunds
	InsufficientAllowance
	InsufficientRedeemFee

	// Fatal marks a violated invariant (inconsistent log, replay
	// divergence); the process should trap and halt for operator
	// intervention.
	Fatal

	// SendTicketErr means the Hub rejected a generate-ticket submission;
	// the request is recorded in failed_tickets and retried by an
	// operator endpoint.
	SendTicketErr
)

func (k Kind) String() string {
	switch k {
	case InvalidArgs:
		return "InvalidArgs"
	case TemporarilyUnavailable:
		return "TemporarilyUnavailable"
	case AlreadySubmitted:
		return "AlreadySubmitted"
	case AlreadyProcessed:
		return "AlreadyProcessed"
	case RpcError:
		return "RpcError"
	case EvmRpcError:
		return "EvmRpcError"
	case HttpOutcallError:
		return "HttpOutcallError"
	case NotPayFees:
		return "NotPayFees"
	case InsufficientFunds:
		return "InsufficientFunds"
	case InsufficientAllowance:
		return "InsufficientAllowance"
	case InsufficientRedeemFee:
		return "InsufficientRedeemFee"
	case Fatal:
		return "Fatal"
	case SendTicketErr:
		return "SendTicketErr"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried across component boundaries.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter *time.Duration
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Retryable builds a TemporarilyUnavailable/RpcError-family error carrying
// a suggested retry delay.
func Retryable(kind Kind, message string, retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: kind, Message: message, RetryAfter: &retryAfter, Cause: cause}
}

// Is reports whether err is a bridgeerr.Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// IsRetryable reports whether the caller's loop should retry next tick
// rather than stall or surface the error.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case TemporarilyUnavailable, RpcError, EvmRpcError, HttpOutcallError:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the caller should trap and halt.
func IsFatal(err error) bool {
	return Is(err, Fatal)
}
