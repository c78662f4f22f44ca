package tool

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultAdapterTimeout = 30 * time.Second

// unitRequest is the payload sent to HTTP and stdio units.
type unitRequest struct {
	Tool      string `json:"tool"`
	Action    string `json:"action,omitempty"`
	Params    Args   `json:"params"`
	RequestID string `json:"request_id,omitempty"`
}

// decodeUnitResponse reads a unit reply. A reply is either {"result": v},
// {"error": "..."} / {"error": {"message", "kind", "retryable", "details"}},
// or any other JSON value, which is taken as the result itself.
func decodeUnitResponse(raw []byte) (any, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, NewToolError(KindToolExecution, "decode unit response", err)
	}

	obj, ok := body.(map[string]any)
	if !ok {
		return body, nil
	}
	if errorRaw, hasError := obj["error"]; hasError && errorRaw != nil {
		return nil, decodeUnitError(errorRaw)
	}
	if result, hasResult := obj["result"]; hasResult {
		return result, nil
	}
	return obj, nil
}

func decodeUnitError(raw any) error {
	switch v := raw.(type) {
	case string:
		return NewToolError(KindToolExecution, v, nil)
	case map[string]any:
		message, _ := v["message"].(string)
		kind, _ := v["kind"].(string)
		if kind == "" {
			kind, _ = v["errorKind"].(string)
		}
		retryable, _ := v["retryable"].(bool)

		err := NewToolError(ErrorKind(kind), message, nil)
		if err.Message == "" {
			err.Message = "tool unit reported an error"
		}
		if retryable {
			err.AsRetryable()
		}
		if rawDetails, ok := v["details"]; ok {
			if details, ok := rawDetails.(map[string]any); ok {
				err.WithDetails(details)
			} else {
				err.WithDetails(map[string]any{"details": rawDetails})
			}
		}
		return err
	default:
		return NewToolError(KindToolExecution, fmt.Sprintf("tool unit reported an error: %v", v), nil)
	}
}
