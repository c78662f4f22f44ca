package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Registry *Registry
	// Policy selects how uncastable values are handled. Empty means
	// PolicyPermissive.
	Policy CoercionPolicy
	// Secrets supplies trusted parameter values.
	Secrets SecretLookup
	// Timeout bounds each invocation when positive.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dispatcher resolves, coerces, and invokes tools. It holds no per-call
// state and is safe for concurrent use.
type Dispatcher struct {
	registry *Registry
	policy   CoercionPolicy
	secrets  SecretLookup
	timeout  time.Duration
	logger   *slog.Logger
}

// NewDispatcher validates cfg and returns a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, NewToolError(KindConfiguration, "dispatcher requires a registry", nil)
	}
	policy, err := ParseCoercionPolicy(string(cfg.Policy))
	if err != nil {
		return nil, NewToolError(KindConfiguration, err.Error(), err)
	}
	if cfg.Timeout < 0 {
		return nil, NewToolError(KindConfiguration, "dispatch timeout must not be negative", nil)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		policy:   policy,
		secrets:  cfg.Secrets,
		timeout:  cfg.Timeout,
		logger:   logger,
	}, nil
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Secrets returns the lookup used for trusted parameters.
func (d *Dispatcher) Secrets() SecretLookup {
	return d.secrets
}

// Dispatch runs one tool call and always returns an envelope. Failures
// carry the request id in details.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, raw map[string]any) Envelope {
	ctx, requestID := ensureRequestID(ctx)
	began := time.Now()
	log := d.logger.With("tool", name, "request_id", requestID)

	desc, env := d.dispatch(ctx, name, raw)

	obs := DispatchObservation{
		ToolName:  name,
		Origin:    desc.Origin,
		RequestID: requestID,
		Duration:  time.Since(began),
		Success:   env.OK,
		ErrorKind: env.ErrorKind,
	}
	if env.OK {
		log.Debug("tool dispatched", "duration_ms", obs.Duration.Milliseconds())
	} else {
		env = env.WithDetail("request_id", requestID)
		timeout, _ := env.Details["timeout"].(bool)
		obs.Timeout = timeout
		level := slog.LevelWarn
		if env.ErrorKind == KindToolExecution || env.ErrorKind == KindConfiguration {
			level = slog.LevelError
		}
		log.Log(ctx, level, "tool dispatch failed",
			"error_kind", env.ErrorKind,
			"error", env.Message,
			"params", MaskTrusted(desc, raw),
		)
	}
	emitDispatchObservation(obs)
	return env
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, raw map[string]any) (Descriptor, Envelope) {
	desc, err := d.registry.Lookup(name)
	if err != nil {
		return Descriptor{}, EnvelopeFromError(err)
	}

	withSecrets, err := ApplyTrusted(desc, raw, d.secrets)
	if err != nil {
		return desc, EnvelopeFromError(err)
	}

	args, err := Coerce(desc.Parameters, withSecrets, d.policy)
	if err != nil {
		return desc, EnvelopeFromError(err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	out := await(ctx, start(ctx, desc, args))
	if out.err != nil {
		return desc, EnvelopeFromError(invocationError(desc.Name, out.err))
	}
	return desc, Success(out.value)
}

// outcome is the settled result of one invocation.
type outcome struct {
	value any
	err   error
}

// start begins an invocation and returns a channel that receives exactly one
// outcome. Sync handlers settle before start returns; async handlers run on
// their own goroutine.
func start(ctx context.Context, desc Descriptor, args Args) <-chan outcome {
	ch := make(chan outcome, 1)
	if !desc.Async {
		ch <- invokeSafely(ctx, desc.Handler, args)
		return ch
	}
	go func() {
		ch <- invokeSafely(ctx, desc.Handler, args)
	}()
	return ch
}

// await waits for the outcome or for ctx to end. A settled outcome always
// wins over a concurrent cancellation.
func await(ctx context.Context, ch <-chan outcome) outcome {
	select {
	case out := <-ch:
		return out
	default:
	}
	select {
	case out := <-ch:
		return out
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}

func invokeSafely(ctx context.Context, h Handler, args Args) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: &panicError{value: r}}
		}
	}()
	value, err := h.Invoke(ctx, args.clone())
	return outcome{value: value, err: err}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("tool panicked: %v", e.value)
}

// invocationError maps a handler failure onto a *ToolError. A handler's own
// ToolError keeps its kind; anything else is a ToolExecutionError.
func invocationError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		toolErr, ok := AsToolError(err)
		if ok {
			// The handler may return a shared error value.
			toolErr = toolErr.clone()
		} else {
			toolErr = NewToolError(KindToolExecution, fmt.Sprintf("tool %s timed out", name), err)
		}
		return toolErr.WithDetails(map[string]any{"timeout": true})
	}
	if toolErr, ok := AsToolError(err); ok {
		return toolErr
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return NewToolError(KindToolExecution, pe.Error(), err).
			WithDetails(map[string]any{"panic": true})
	}
	if errors.Is(err, context.Canceled) {
		return NewToolError(KindToolExecution, fmt.Sprintf("tool %s canceled", name), err)
	}
	return NewToolError(KindToolExecution, err.Error(), err)
}
