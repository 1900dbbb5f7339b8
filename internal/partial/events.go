// internal/partial/events.go
package partial

import (
	"sync"

	"go.uber.org/zap"
)

// EventSink is told how each response ended.
type EventSink interface {
	// Success follows a fully applied changes response.
	Success()
	// Error reports a client-side failure.
	Error(err *Error)
	// ServerError reports an error directive sent by the server.
	ServerError(name, message string)
}

// LoggingSink reports events through zap.
type LoggingSink struct {
	logger *zap.Logger
}

// NewLoggingSink creates a LoggingSink.
func NewLoggingSink(logger *zap.Logger) *LoggingSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingSink{logger: logger.Named("events")}
}

func (s *LoggingSink) Success() {
	s.logger.Info("Partial response applied.")
}

func (s *LoggingSink) Error(err *Error) {
	s.logger.Error(err.Title,
		zap.String("name", string(err.Name)),
		zap.String("namespace", err.Namespace),
		zap.String("caller", err.Caller),
		zap.String("message", err.Message),
		zap.NamedError("cause", err.Err))
}

func (s *LoggingSink) ServerError(name, message string) {
	s.logger.Warn(TitleServerError, zap.String("error_name", name), zap.String("error_message", message))
}

// Event is one recorded sink notification.
type Event struct {
	Type      string `json:"type"`
	Title     string `json:"title,omitempty"`
	Name      string `json:"name,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Caller    string `json:"caller,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Event types.
const (
	EventSuccess     = "success"
	EventError       = "error"
	EventServerError = "serverError"
)

// Recorder keeps every notification in order and forwards it to Next.
type Recorder struct {
	Next EventSink

	mu     sync.Mutex
	events []Event
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Success() {
	r.record(Event{Type: EventSuccess})
	if r.Next != nil {
		r.Next.Success()
	}
}

func (r *Recorder) Error(err *Error) {
	r.record(Event{
		Type:      EventError,
		Title:     err.Title,
		Name:      string(err.Name),
		Namespace: err.Namespace,
		Caller:    err.Caller,
		Message:   err.Message,
	})
	if r.Next != nil {
		r.Next.Error(err)
	}
}

func (r *Recorder) ServerError(name, message string) {
	r.record(Event{
		Type:      EventServerError,
		Title:     TitleServerError,
		Name:      name,
		Namespace: errorNamespace,
		Message:   message,
	})
	if r.Next != nil {
		r.Next.ServerError(name, message)
	}
}
