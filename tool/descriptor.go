package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// Origin indicates how a tool unit is implemented.
type Origin string

const (
	OriginNative Origin = "native"
	OriginHTTP   Origin = "http"
	OriginStdio  Origin = "stdio"
)

// ParameterSpec declares one named input of a tool.
type ParameterSpec struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	HasDefault  bool   `json:"-"`
	Default     any    `json:"default,omitempty"`
	// Trusted parameters are always filled from process-held secrets. Values
	// supplied by callers or by the model are discarded.
	Trusted bool `json:"trusted,omitempty"`
	// TrustedFrom names the secret that supplies a trusted parameter.
	TrustedFrom string `json:"trusted_from,omitempty"`
}

// Required reports whether the parameter must be supplied by the caller.
func (p ParameterSpec) Required() bool {
	return !p.HasDefault && !p.Trusted
}

// SecretName returns the secret key used for a trusted parameter.
func (p ParameterSpec) SecretName() string {
	if name := strings.TrimSpace(p.TrustedFrom); name != "" {
		return name
	}
	return strings.ToUpper(p.Name)
}

// Param declares a required parameter.
func Param(name, typ, description string) ParameterSpec {
	return ParameterSpec{Name: name, Type: NormalizeType(typ), Description: description}
}

// OptionalParam declares a parameter with a default value.
func OptionalParam(name, typ string, def any, description string) ParameterSpec {
	return ParameterSpec{
		Name:        name,
		Type:        NormalizeType(typ),
		Description: description,
		HasDefault:  true,
		Default:     def,
	}
}

// TrustedParam declares a parameter filled from the named process secret.
func TrustedParam(name, secret, description string) ParameterSpec {
	return ParameterSpec{
		Name:        name,
		Type:        TypeString,
		Description: description,
		Trusted:     true,
		TrustedFrom: secret,
	}
}

// Descriptor is the immutable description of one invokable tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  []ParameterSpec `json:"parameters"`
	Async       bool            `json:"async,omitempty"`
	Origin      Origin          `json:"origin,omitempty"`
	Handler     Handler         `json:"-"`
}

// Parameter returns the named parameter spec.
func (d Descriptor) Parameter(name string) (ParameterSpec, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return ParameterSpec{}, false
}

// Signature renders the descriptor as a compact call signature, e.g.
// weather(location: string, units: string = "metric").
func (d Descriptor) Signature() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('(')
	first := true
	for _, p := range d.Parameters {
		if p.Trusted {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Type)
		if p.HasDefault {
			b.WriteString(" = ")
			b.WriteString(formatDefault(p.Default))
		}
	}
	b.WriteByte(')')
	return b.String()
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.Parameters = append([]ParameterSpec(nil), d.Parameters...)
	return out
}

func formatDefault(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(value)
	default:
		return fmt.Sprint(value)
	}
}
