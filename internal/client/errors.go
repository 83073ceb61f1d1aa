// README: Client error taxonomy; remote failures collapse into these kinds.
package client

import "fmt"

// Kind buckets every failure the controller can surface. Transport
// details never cross this boundary.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuth              Kind = "auth"
	KindConflict          Kind = "conflict"
	KindTransient         Kind = "transient"
	KindInvalidTransition Kind = "invalid_transition"
	KindOperationInFlight Kind = "operation_in_flight"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf classifies an error, defaulting to transient so unknown
// failures stay retryable by the caller's policy.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if ce, ok := err.(*Error); ok {
		return ce.Kind
	}
	return KindTransient
}

func IsConflict(err error) bool          { return KindOf(err) == KindConflict }
func IsValidation(err error) bool        { return KindOf(err) == KindValidation }
func IsAuth(err error) bool              { return KindOf(err) == KindAuth }
func IsTransient(err error) bool         { return KindOf(err) == KindTransient }
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }
func IsOperationInFlight(err error) bool { return KindOf(err) == KindOperationInFlight }
