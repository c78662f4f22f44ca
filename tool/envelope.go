package tool

import (
	"encoding/json"
	"errors"
	"strings"
)

// Envelope is the uniform result of a dispatch or route call. A successful
// envelope carries Result; a failed one carries ErrorKind and Message. The
// two are never populated together.
type Envelope struct {
	OK        bool           `json:"ok"`
	Result    any            `json:"result,omitempty"`
	ErrorKind ErrorKind      `json:"errorKind,omitempty"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Success wraps a tool's return value.
func Success(result any) Envelope {
	return Envelope{OK: true, Result: result}
}

// Failure builds a failed envelope.
func Failure(kind ErrorKind, message string, details map[string]any) Envelope {
	if strings.TrimSpace(string(kind)) == "" {
		kind = KindToolExecution
	}
	return Envelope{ErrorKind: kind, Message: message, Details: details}
}

// EnvelopeFromError converts any error into a failed envelope. Errors that
// are not a *ToolError are reported as ToolExecutionError.
func EnvelopeFromError(err error) Envelope {
	if err == nil {
		return Failure(KindToolExecution, "unknown failure", nil)
	}
	if toolErr, ok := AsToolError(err); ok {
		var details map[string]any
		if len(toolErr.Details) > 0 {
			details = make(map[string]any, len(toolErr.Details))
			for key, value := range toolErr.Details {
				details[key] = value
			}
		}
		message := toolErr.Message
		if message == "" {
			message = toolErr.Error()
		}
		return Failure(toolErr.Kind, message, details)
	}
	return Failure(KindToolExecution, err.Error(), nil)
}

// Err returns the envelope failure as a *ToolError, or nil on success.
func (e Envelope) Err() error {
	if e.OK {
		return nil
	}
	return NewToolError(e.ErrorKind, e.Message, nil).WithDetails(e.Details)
}

// WithDetail returns a copy of a failed envelope with one more detail set.
// Successful envelopes are returned unchanged.
func (e Envelope) WithDetail(key string, value any) Envelope {
	if e.OK {
		return e
	}
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// MarshalJSON always emits result on success, even when it is null, and
// never emits it on failure.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.OK {
		return json.Marshal(struct {
			OK     bool `json:"ok"`
			Result any  `json:"result"`
		}{OK: true, Result: e.Result})
	}
	return json.Marshal(struct {
		OK        bool           `json:"ok"`
		ErrorKind ErrorKind      `json:"errorKind"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details,omitempty"`
	}{ErrorKind: e.ErrorKind, Message: e.Message, Details: e.Details})
}

// UnmarshalJSON accepts the shape produced by MarshalJSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	type plain Envelope
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if out.OK && out.ErrorKind != "" {
		return errors.New("tool: envelope has both result and error")
	}
	*e = Envelope(out)
	return nil
}
