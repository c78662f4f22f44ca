package tool

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the machine-readable failure category carried by envelopes.
type ErrorKind string

const (
	// KindUnknownTool is returned when a tool name is not registered.
	KindUnknownTool ErrorKind = "UnknownTool"
	// KindBadParameters is returned when input cannot be bound to a tool's parameters.
	KindBadParameters ErrorKind = "BadParameters"
	// KindToolExecution is returned when the tool itself fails or panics.
	KindToolExecution ErrorKind = "ToolExecutionError"
	// KindModelUnavailable is returned when the language model call fails.
	KindModelUnavailable ErrorKind = "ModelUnavailable"
	// KindUnparsableInstruction is returned when model output is not a valid instruction.
	KindUnparsableInstruction ErrorKind = "UnparsableInstruction"
	// KindConfiguration is returned when a required credential or setting is missing.
	KindConfiguration ErrorKind = "ConfigurationError"
)

var (
	// ErrNotFound indicates a tool lookup miss.
	ErrNotFound = errors.New("tool: not found")
	// ErrMissingParameter indicates a required parameter was absent.
	ErrMissingParameter = errors.New("tool: missing parameter")
	// ErrInvalidParameter indicates a value could not be cast under the strict policy.
	ErrInvalidParameter = errors.New("tool: invalid parameter")
)

// ToolError is a structured error that can flow across the dispatcher,
// orchestration layer, and transports without losing its kind.
type ToolError struct {
	Kind      ErrorKind      `json:"errorKind"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	kind := strings.TrimSpace(string(e.Kind))
	msg := strings.TrimSpace(e.Message)
	switch {
	case kind == "" && msg == "":
		return string(KindToolExecution)
	case kind == "":
		return msg
	case msg == "":
		return kind
	default:
		return fmt.Sprintf("%s: %s", kind, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *ToolError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewToolError builds a ToolError. An empty kind falls back to
// KindToolExecution and an empty message falls back to the cause text.
func NewToolError(kind ErrorKind, message string, cause error) *ToolError {
	if strings.TrimSpace(string(kind)) == "" {
		kind = KindToolExecution
	}
	msg := strings.TrimSpace(message)
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &ToolError{
		Kind:    kind,
		Message: msg,
		Cause:   cause,
	}
}

// Errorf builds a ToolError with a formatted message and no cause.
func Errorf(kind ErrorKind, format string, args ...any) *ToolError {
	return NewToolError(kind, fmt.Sprintf(format, args...), nil)
}

// WithDetails merges details into the error and returns it.
func (e *ToolError) WithDetails(details map[string]any) *ToolError {
	if e == nil || len(details) == 0 {
		return e
	}
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for key, value := range details {
		e.Details[key] = value
	}
	return e
}

// clone returns a copy of e with its own details map.
func (e *ToolError) clone() *ToolError {
	out := *e
	if e.Details != nil {
		out.Details = make(map[string]any, len(e.Details))
		for key, value := range e.Details {
			out.Details[key] = value
		}
	}
	return &out
}

// AsRetryable marks the error as safe to retry.
func (e *ToolError) AsRetryable() *ToolError {
	if e != nil {
		e.Retryable = true
	}
	return e
}

// AsToolError extracts a *ToolError from an error chain.
func AsToolError(err error) (*ToolError, bool) {
	if err == nil {
		return nil, false
	}
	var toolErr *ToolError
	if errors.As(err, &toolErr) && toolErr != nil {
		return toolErr, true
	}
	return nil, false
}

// KindOf returns the error kind of err, or fallback when err carries none.
func KindOf(err error, fallback ErrorKind) ErrorKind {
	if toolErr, ok := AsToolError(err); ok && strings.TrimSpace(string(toolErr.Kind)) != "" {
		return toolErr.Kind
	}
	if strings.TrimSpace(string(fallback)) == "" {
		return KindToolExecution
	}
	return fallback
}
