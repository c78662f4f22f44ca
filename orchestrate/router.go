// Package orchestrate maps free-text requests to tool calls through a
// language model and hands them to the dispatcher.
package orchestrate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/petal-labs/petaltools/tool"
)

// Model is the language-model collaborator: one system instruction and one
// user message in, one text completion out.
type Model interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f ModelFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// RouterConfig configures a Router.
type RouterConfig struct {
	Dispatcher *tool.Dispatcher
	// Model may be nil when no provider is configured; Route then fails
	// with ConfigurationError.
	Model Model
	// Retry bounds model calls. The zero value makes a single attempt.
	Retry tool.RetryPolicy
	// Timeout bounds each model call when positive.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Router turns user text into a dispatched tool call. It keeps no state
// between calls.
type Router struct {
	dispatcher *tool.Dispatcher
	model      Model
	retry      tool.RetryPolicy
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRouter validates cfg and returns a Router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Dispatcher == nil {
		return nil, tool.NewToolError(tool.KindConfiguration, "router requires a dispatcher", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		dispatcher: cfg.Dispatcher,
		model:      cfg.Model,
		retry:      cfg.Retry,
		timeout:    cfg.Timeout,
		logger:     logger,
	}, nil
}

// Route asks the model which tool to call for text, validates the answer,
// replaces trusted parameters with process-held values, and dispatches.
// The dispatcher's envelope is returned unchanged.
func (r *Router) Route(ctx context.Context, text string) tool.Envelope {
	ctx, requestID := withRequestID(ctx)
	log := r.logger.With("request_id", requestID)

	instr, err := r.plan(ctx, text)
	if err != nil {
		env := tool.EnvelopeFromError(err).WithDetail("request_id", requestID)
		log.Warn("route failed", "error_kind", env.ErrorKind, "error", env.Message)
		return env
	}

	log.Debug("routing to tool", "tool", instr.Tool)
	return r.dispatcher.Dispatch(ctx, instr.Tool, instr.Params)
}

// Plan returns the instruction the model proposes for text, with trusted
// parameters already replaced, without dispatching it.
func (r *Router) Plan(ctx context.Context, text string) (Instruction, error) {
	ctx, _ = withRequestID(ctx)
	return r.plan(ctx, text)
}

func (r *Router) plan(ctx context.Context, text string) (Instruction, error) {
	if strings.TrimSpace(text) == "" {
		return Instruction{}, tool.NewToolError(tool.KindBadParameters, "query is empty", nil).
			WithDetails(map[string]any{"parameter": "query"})
	}
	if r.model == nil {
		return Instruction{}, tool.NewToolError(tool.KindConfiguration,
			"no language model configured; set a provider API key", nil)
	}

	reg := r.dispatcher.Registry()
	output, err := r.complete(ctx, SystemPrompt(reg), text)
	if err != nil {
		return Instruction{}, err
	}

	instr, err := ParseInstruction(output)
	if err != nil {
		return Instruction{}, err
	}

	desc, err := reg.Lookup(instr.Tool)
	if err != nil {
		return Instruction{}, err
	}
	params, err := tool.ApplyTrusted(desc, instr.Params, r.dispatcher.Secrets())
	if err != nil {
		return Instruction{}, err
	}
	instr.Params = params
	return instr, nil
}

func (r *Router) complete(ctx context.Context, system, user string) (string, error) {
	output, attempts, err := tool.Retry(ctx, r.retry, tool.RetryMeta{Component: "model"},
		func(ctx context.Context, attempt int) (string, error) {
			if r.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			out, err := r.model.Complete(ctx, system, user)
			if err != nil {
				if toolErr, ok := tool.AsToolError(err); ok {
					return "", toolErr
				}
				return "", tool.NewToolError(tool.KindModelUnavailable, "language model call failed: "+err.Error(), err).
					AsRetryable()
			}
			return out, nil
		})
	if err != nil {
		if toolErr, ok := tool.AsToolError(err); ok {
			// Build a fresh error; the model may return a shared value.
			return "", tool.NewToolError(toolErr.Kind, toolErr.Message, err).
				WithDetails(toolErr.Details).
				WithDetails(map[string]any{"attempts": attempts})
		}
		return "", tool.NewToolError(tool.KindModelUnavailable, "language model call failed: "+err.Error(), err).
			WithDetails(map[string]any{"attempts": attempts})
	}
	return output, nil
}

func withRequestID(ctx context.Context) (context.Context, string) {
	if id := tool.RequestIDFrom(ctx); id != "" {
		return ctx, id
	}
	id := tool.NewRequestID()
	return tool.WithRequestID(ctx, id), id
}
