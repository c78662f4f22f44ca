package tool

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML declaration of an out-of-process tool unit, read from
// a *_tool.yaml file.
type Manifest struct {
	Name        string                    `yaml:"name"`
	Description string                    `yaml:"description"`
	Async       bool                      `yaml:"async"`
	Transport   TransportSpec             `yaml:"transport"`
	Parameters  []ParameterManifest       `yaml:"parameters"`
	Entrypoints map[string]EntrypointSpec `yaml:"entrypoints"`
}

// EntrypointSpec is one named action a unit exposes.
type EntrypointSpec struct {
	Description string              `yaml:"description"`
	Parameters  []ParameterManifest `yaml:"parameters"`
}

// ParameterManifest declares one parameter in a manifest. HasDefault is set
// when the default key is present, so an explicit null default counts.
type ParameterManifest struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
	Trusted     bool   `yaml:"trusted"`
	TrustedFrom string `yaml:"trusted_from"`
	HasDefault  bool   `yaml:"-"`
}

// UnmarshalYAML records whether a default was declared.
func (p *ParameterManifest) UnmarshalYAML(node *yaml.Node) error {
	type plain ParameterManifest
	var out plain
	if err := node.Decode(&out); err != nil {
		return err
	}
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == "default" {
				out.HasDefault = true
				break
			}
		}
	}
	*p = ParameterManifest(out)
	return nil
}

// Transport types.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// TransportSpec describes how the dispatcher reaches the unit.
type TransportSpec struct {
	Type      string            `yaml:"type"`
	Endpoint  string            `yaml:"endpoint"`
	Headers   map[string]string `yaml:"headers"`
	Command   string            `yaml:"command"`
	Args      []string          `yaml:"args"`
	Env       map[string]string `yaml:"env"`
	Dir       string            `yaml:"dir"`
	TimeoutMS int               `yaml:"timeout_ms"`
	Retry     RetryPolicy       `yaml:"retry"`
}

// Timeout returns the transport timeout, or def when unset.
func (t TransportSpec) Timeout(def time.Duration) time.Duration {
	if t.TimeoutMS <= 0 {
		return def
	}
	return time.Duration(t.TimeoutMS) * time.Millisecond
}

// ParseManifest decodes a manifest document. Unknown keys are rejected.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	m.Transport.Type = strings.ToLower(strings.TrimSpace(m.Transport.Type))
	return m, nil
}

// SelectEntrypoint picks the entrypoint to expose: run, then main, then the
// first name in lexical order. It returns "" when none are declared.
func (m Manifest) SelectEntrypoint() string {
	if len(m.Entrypoints) == 0 {
		return ""
	}
	for _, preferred := range []string{"run", "main"} {
		if _, ok := m.Entrypoints[preferred]; ok {
			return preferred
		}
	}
	names := make([]string, 0, len(m.Entrypoints))
	for name := range m.Entrypoints {
		names = append(names, name)
	}
	slices.Sort(names)
	return names[0]
}

// Descriptor builds the unit's descriptor. fallbackName is used when the
// manifest does not name the tool.
func (m Manifest) Descriptor(fallbackName string) (Descriptor, error) {
	name := strings.TrimSpace(m.Name)
	if name == "" {
		name = fallbackName
	}

	description := m.Description
	params := m.Parameters
	action := m.SelectEntrypoint()
	if action != "" {
		entry := m.Entrypoints[action]
		if len(params) > 0 {
			return Descriptor{}, fmt.Errorf("tool %s: declare parameters on entrypoints or at the top level, not both", name)
		}
		params = entry.Parameters
		if description == "" {
			description = entry.Description
		}
	}

	specs := make([]ParameterSpec, 0, len(params))
	for _, p := range params {
		spec := ParameterSpec{
			Name:        strings.TrimSpace(p.Name),
			Type:        NormalizeType(p.Type),
			Description: p.Description,
			Trusted:     p.Trusted || p.TrustedFrom != "",
			TrustedFrom: strings.TrimSpace(p.TrustedFrom),
			HasDefault:  p.HasDefault,
			Default:     p.Default,
		}
		if spec.HasDefault && spec.Default != nil {
			if cast, ok := castValue(spec.Type, spec.Default); ok {
				spec.Default = cast
			}
		}
		specs = append(specs, spec)
	}

	desc := Descriptor{
		Name:        name,
		Description: description,
		Parameters:  specs,
		Async:       m.Async,
	}

	switch m.Transport.Type {
	case TransportHTTP:
		h, err := NewHTTPHandler(name, action, m.Transport)
		if err != nil {
			return Descriptor{}, err
		}
		desc.Origin = OriginHTTP
		desc.Handler = h
	case TransportStdio:
		h, err := NewStdioHandler(name, action, m.Transport)
		if err != nil {
			return Descriptor{}, err
		}
		desc.Origin = OriginStdio
		desc.Handler = h
		desc.Async = true
	case "":
		return Descriptor{}, fmt.Errorf("tool %s: transport.type is required", name)
	default:
		return Descriptor{}, fmt.Errorf("tool %s: unsupported transport %q (use http or stdio)", name, m.Transport.Type)
	}
	return desc, nil
}
