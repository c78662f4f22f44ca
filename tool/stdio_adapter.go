package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

// StdioHandler invokes a unit as a subprocess. The request JSON is written
// to stdin and the reply is read from stdout; one process runs per call.
type StdioHandler struct {
	toolName string
	action   string
	command  string
	args     []string
	env      []string
	dir      string
	timeout  time.Duration
	retry    RetryPolicy
}

// NewStdioHandler builds a handler from a manifest transport.
func NewStdioHandler(toolName, action string, spec TransportSpec) (*StdioHandler, error) {
	command := strings.TrimSpace(spec.Command)
	if command == "" {
		return nil, fmt.Errorf("tool %s: stdio transport command is empty", toolName)
	}
	return &StdioHandler{
		toolName: toolName,
		action:   action,
		command:  command,
		args:     slices.Clone(spec.Args),
		env:      flattenEnv(spec.Env),
		dir:      spec.Dir,
		timeout:  spec.Timeout(defaultAdapterTimeout),
		retry:    spec.Retry,
	}, nil
}

// Invoke implements Handler.
func (h *StdioHandler) Invoke(ctx context.Context, args Args) (any, error) {
	payload, err := json.Marshal(unitRequest{
		Tool:      h.toolName,
		Action:    h.action,
		Params:    args,
		RequestID: RequestIDFrom(ctx),
	})
	if err != nil {
		return nil, NewToolError(KindBadParameters, "encode stdio unit request", err)
	}

	result, attempts, err := Retry(ctx, h.retry, RetryMeta{ToolName: h.toolName, Component: TransportStdio},
		func(ctx context.Context, _ int) (any, error) {
			return h.invokeAttempt(ctx, payload)
		})
	if err != nil {
		if toolErr, ok := AsToolError(err); ok {
			return nil, toolErr.WithDetails(map[string]any{"attempts": attempts})
		}
		return nil, NewToolError(KindToolExecution, "stdio unit invoke failed", err).
			WithDetails(map[string]any{"attempts": attempts})
	}
	return result, nil
}

func (h *StdioHandler) invokeAttempt(parent context.Context, payload []byte) (any, error) {
	execCtx, cancel := withStdioInvokeTimeout(parent, h.timeout)
	defer cancel()

	// #nosec G204 -- command and args come from an operator-supplied manifest.
	cmd := exec.CommandContext(execCtx, h.command, h.args...)
	if len(h.env) > 0 {
		cmd.Env = append(os.Environ(), h.env...)
	}
	cmd.Dir = h.dir
	cmd.Stdin = bytes.NewReader(append(payload, '\n'))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	waitErr := cmd.Run()

	if err := execCtx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, NewToolError(KindToolExecution, "stdio unit timed out", err).
				WithDetails(map[string]any{"timeout": true}).
				AsRetryable()
		}
		return nil, NewToolError(KindToolExecution, "stdio unit canceled", err)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, NewToolError(KindToolExecution, "stdio unit failed to start", waitErr).AsRetryable()
		}
		if _, decodeErr := decodeUnitResponse(stdout.Bytes()); decodeErr != nil {
			if toolErr, ok := AsToolError(decodeErr); ok && toolErr.Cause == nil {
				return nil, toolErr
			}
		}
		message := strings.TrimSpace(stderr.String())
		if message == "" {
			message = waitErr.Error()
		}
		return nil, NewToolError(KindToolExecution, "stdio unit failed: "+message, waitErr).
			WithDetails(map[string]any{"stderr": message, "exit_code": exitErr.ExitCode()})
	}

	return decodeUnitResponse(stdout.Bytes())
}

func withStdioInvokeTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); !hasDeadline && timeout > 0 {
		return context.WithTimeout(parent, timeout)
	}
	return context.WithCancel(parent)
}

func flattenEnv(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	out := make([]string, 0, len(values))
	for _, key := range keys {
		out = append(out, key+"="+values[key])
	}
	return out
}
