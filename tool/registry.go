package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Unit is one candidate tool produced by a Source. A unit that failed to load
// carries Err and is skipped by Discover.
type Unit struct {
	Ref        string
	Descriptor Descriptor
	Err        error
}

// Source enumerates candidate units. An error from Units means the source
// itself is unusable; per-unit failures travel on Unit.Err.
type Source interface {
	Name() string
	Units(ctx context.Context) ([]Unit, error)
}

// Registry maps tool names to descriptors. It is built once and never
// mutated, so it is safe for any number of concurrent readers.
type Registry struct {
	byName map[string]Descriptor
	names  []string
}

// Discover builds a registry from sources in order. Units that fail to load
// or validate are logged and skipped. When two units share a name the first
// one wins. A source-level failure aborts discovery.
func Discover(ctx context.Context, logger *slog.Logger, sources ...Source) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(sources) == 0 {
		return nil, NewToolError(KindConfiguration, "no tool sources configured", nil)
	}

	reg := &Registry{byName: make(map[string]Descriptor)}
	for _, src := range sources {
		if src == nil {
			continue
		}
		units, err := src.Units(ctx)
		if err != nil {
			return nil, NewToolError(
				KindConfiguration,
				fmt.Sprintf("tool source %s: %v", src.Name(), err),
				err,
			)
		}
		for _, unit := range units {
			reg.admit(logger, src.Name(), unit)
		}
	}

	slices.Sort(reg.names)
	logger.Debug("tool registry built", "tools", len(reg.names))
	return reg, nil
}

func (r *Registry) admit(logger *slog.Logger, source string, unit Unit) {
	log := logger.With("source", source, "unit", unit.Ref)
	if unit.Err != nil {
		log.Warn("skipping tool unit", "error", unit.Err)
		return
	}

	desc := unit.Descriptor
	var warnings []string
	for _, diag := range ValidateDescriptor(desc) {
		if diag.Severity == SeverityError {
			log.Warn("skipping invalid tool unit",
				"tool", desc.Name,
				"field", diag.Field,
				"code", diag.Code,
				"error", diag.Message,
			)
			return
		}
		warnings = append(warnings, diag.Code)
	}
	if len(warnings) > 0 {
		log.Debug("tool unit has warnings", "tool", desc.Name, "codes", strings.Join(warnings, ","))
	}

	if _, exists := r.byName[desc.Name]; exists {
		log.Warn("skipping duplicate tool", "tool", desc.Name)
		return
	}
	r.byName[desc.Name] = desc.clone()
	r.names = append(r.names, desc.Name)
}

// NewRegistry builds a registry from descriptors and rejects invalid or
// duplicate entries instead of skipping them.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	reg := &Registry{byName: make(map[string]Descriptor, len(descriptors))}
	var errs []error
	for _, desc := range descriptors {
		if err := ValidateDescriptor(desc).Err(); err != nil {
			errs = append(errs, fmt.Errorf("tool %q: %w", desc.Name, err))
			continue
		}
		if _, exists := reg.byName[desc.Name]; exists {
			errs = append(errs, fmt.Errorf("tool %q: registered more than once", desc.Name))
			continue
		}
		reg.byName[desc.Name] = desc.clone()
		reg.names = append(reg.names, desc.Name)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	slices.Sort(reg.names)
	return reg, nil
}

// Lookup returns the named descriptor. A miss is a *ToolError of kind
// UnknownTool wrapping ErrNotFound.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	if r != nil {
		if desc, ok := r.byName[name]; ok {
			return desc.clone(), nil
		}
	}
	return Descriptor{}, NewToolError(
		KindUnknownTool,
		fmt.Sprintf("unknown tool: %s", name),
		fmt.Errorf("%w: %s", ErrNotFound, name),
	).WithDetails(map[string]any{"tool": name})
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byName[name]
	return ok
}

// Names returns registered tool names in lexical order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Clone(r.names)
}

// Descriptors returns every descriptor in name order.
func (r *Registry) Descriptors() []Descriptor {
	if r == nil {
		return nil
	}
	out := make([]Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name].clone())
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.names)
}
