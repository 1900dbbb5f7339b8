// internal/partial/errors.go
package partial

import (
	"fmt"
)

// Kind classifies a processing failure. Kinds are errors themselves so that
// errors.Is(err, partial.ErrUnknownTarget) matches any *Error of that kind.
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	ErrTransport            Kind = "TransportError"
	ErrMalformedResponse    Kind = "MalformedResponseError"
	ErrMalformedDirective   Kind = "MalformedDirectiveError"
	ErrUnknownTarget        Kind = "UnknownTargetError"
	ErrUnsupportedOperation Kind = "UnsupportedOperationError"
	ErrHeadReplacement      Kind = "HeadReplacementError"
	ErrServer               Kind = "ServerError"
)

// Titles shown to the event sink.
const (
	TitleClientError = "Partial update error"
	TitleServerError = "Server error"
)

// errorNamespace identifies this processor as the origin of an error.
const errorNamespace = "facespatch.partial"

// Error is the uniform failure shape handed to the event sink.
type Error struct {
	Title     string
	Name      Kind
	Namespace string
	Caller    string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s in %s: %s", e.Name, e.Caller, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Name
}

// newError is the single constructor for client-side failures.
func newError(kind Kind, caller, message string, cause error) *Error {
	return &Error{
		Title:     TitleClientError,
		Name:      kind,
		Namespace: errorNamespace,
		Caller:    caller,
		Message:   message,
		Err:       cause,
	}
}

func newErrorf(kind Kind, caller, format string, args ...interface{}) *Error {
	return newError(kind, caller, fmt.Sprintf(format, args...), nil)
}
