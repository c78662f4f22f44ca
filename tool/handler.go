package tool

import (
	"context"
	"fmt"
	"strings"
)

// Handler is the single entry point every tool unit implements.
type Handler interface {
	Invoke(ctx context.Context, args Args) (any, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, args Args) (any, error)

// Invoke calls f(ctx, args).
func (f HandlerFunc) Invoke(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// Args is the coerced argument set handed to a Handler. Values carry the
// canonical Go type of their declared parameter type (string, int64,
// float64, bool) unless the permissive policy kept an uncast input.
type Args map[string]any

// String returns the named argument as a string.
func (a Args) String(name string) (string, bool) {
	v, ok := a[name].(string)
	return v, ok
}

// Int returns the named argument as an int64.
func (a Args) Int(name string) (int64, bool) {
	v, ok := castInteger(a[name])
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

// Float returns the named argument as a float64.
func (a Args) Float(name string) (float64, bool) {
	v, ok := castFloat(a[name])
	if !ok {
		return 0, false
	}
	return v.(float64), true
}

// Bool returns the named argument as a bool.
func (a Args) Bool(name string) (bool, bool) {
	v, ok := castBoolean(a[name])
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// RequireString returns a non-empty string argument or a BadParameters error.
func (a Args) RequireString(name string) (string, error) {
	v, ok := a.String(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", NewToolError(
			KindBadParameters,
			fmt.Sprintf("parameter %s must be a non-empty string", name),
			ErrInvalidParameter,
		).WithDetails(map[string]any{"parameter": name})
	}
	return v, nil
}

func (a Args) clone() Args {
	out := make(Args, len(a))
	for key, value := range a {
		out[key] = value
	}
	return out
}
