package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPHandler invokes a unit served over HTTP. Each call POSTs a JSON
// {tool, action, params, request_id} body to the endpoint.
type HTTPHandler struct {
	toolName string
	action   string
	endpoint string
	headers  map[string]string
	retry    RetryPolicy
	client   *http.Client
}

// NewHTTPHandler builds a handler from a manifest transport.
func NewHTTPHandler(toolName, action string, spec TransportSpec) (*HTTPHandler, error) {
	endpoint := strings.TrimSpace(spec.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("tool %s: http transport endpoint is empty", toolName)
	}
	return &HTTPHandler{
		toolName: toolName,
		action:   action,
		endpoint: endpoint,
		headers:  spec.Headers,
		retry:    spec.Retry,
		client:   unitHTTPClient(spec.Timeout(defaultAdapterTimeout)),
	}, nil
}

// Invoke implements Handler.
func (h *HTTPHandler) Invoke(ctx context.Context, args Args) (any, error) {
	body, err := json.Marshal(unitRequest{
		Tool:      h.toolName,
		Action:    h.action,
		Params:    args,
		RequestID: RequestIDFrom(ctx),
	})
	if err != nil {
		return nil, NewToolError(KindBadParameters, "encode http unit request", err)
	}

	result, attempts, err := Retry(ctx, h.retry, RetryMeta{ToolName: h.toolName, Component: TransportHTTP},
		func(ctx context.Context, _ int) (any, error) {
			return h.invokeAttempt(ctx, body)
		})
	if err != nil {
		if toolErr, ok := AsToolError(err); ok {
			return nil, toolErr.WithDetails(map[string]any{"attempts": attempts})
		}
		return nil, NewToolError(KindToolExecution, "http unit invoke failed", err).
			WithDetails(map[string]any{"attempts": attempts})
	}
	return result, nil
}

func (h *HTTPHandler) invokeAttempt(ctx context.Context, body []byte) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewToolError(KindConfiguration, "build http unit request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range h.headers {
		req.Header.Set(key, value)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, NewToolError(KindToolExecution, "http unit request failed", err).AsRetryable()
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewToolError(KindToolExecution, "read http unit response", err).AsRetryable()
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if _, decodeErr := decodeUnitResponse(respBody); decodeErr != nil {
			if toolErr, ok := AsToolError(decodeErr); ok && toolErr.Cause == nil {
				toolErr.WithDetails(map[string]any{"status": resp.StatusCode})
				if resp.StatusCode >= http.StatusInternalServerError {
					toolErr.AsRetryable()
				}
				return nil, toolErr
			}
		}
		message := strings.TrimSpace(string(respBody))
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		err := NewToolError(KindToolExecution, fmt.Sprintf("http unit returned status %d: %s", resp.StatusCode, message), nil).
			WithDetails(map[string]any{"status": resp.StatusCode})
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			err.AsRetryable()
		}
		return nil, err
	}

	return decodeUnitResponse(respBody)
}
