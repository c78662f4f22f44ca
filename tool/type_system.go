package tool

import (
	"fmt"
	"strings"
)

// Parameter type literals.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeAny     = "any"
	// TypeOpaque is accepted in manifests as an alias of TypeAny.
	TypeOpaque = "opaque"
)

var validTypes = map[string]struct{}{
	TypeString:  {},
	TypeInteger: {},
	TypeFloat:   {},
	TypeBoolean: {},
	TypeAny:     {},
}

var typeAliases = map[string]string{
	"":       TypeAny,
	"opaque": TypeAny,
	"str":    TypeString,
	"int":    TypeInteger,
	"number": TypeFloat,
	"bool":   TypeBoolean,
}

// NormalizeType lowercases a type literal and resolves aliases. Unknown
// literals are returned lowercased so validation can report them.
func NormalizeType(typ string) string {
	clean := strings.ToLower(strings.TrimSpace(typ))
	if alias, ok := typeAliases[clean]; ok {
		return alias
	}
	return clean
}

func isValidType(typ string) bool {
	_, ok := validTypes[typ]
	return ok
}

// ValidateDescriptor checks names, parameter uniqueness, types, and default
// compatibility.
func ValidateDescriptor(d Descriptor) Diagnostics {
	var diags Diagnostics

	if strings.TrimSpace(d.Name) == "" {
		diags = append(diags, Diagnostic{
			Field:    "name",
			Code:     "REQUIRED_NAME",
			Severity: SeverityError,
			Message:  "tool name is required",
		})
	}
	if d.Handler == nil {
		diags = append(diags, Diagnostic{
			Field:    "handler",
			Code:     "REQUIRED_HANDLER",
			Severity: SeverityError,
			Message:  "tool has no entry point",
		})
	}

	seen := make(map[string]struct{}, len(d.Parameters))
	for i, p := range d.Parameters {
		path := fmt.Sprintf("parameters[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			diags = append(diags, Diagnostic{
				Field:    path + ".name",
				Code:     "REQUIRED_NAME",
				Severity: SeverityError,
				Message:  "parameter name is required",
			})
			continue
		}
		path = "parameters." + p.Name
		if _, dup := seen[p.Name]; dup {
			diags = append(diags, Diagnostic{
				Field:    path,
				Code:     "DUPLICATE_PARAMETER",
				Severity: SeverityError,
				Message:  fmt.Sprintf("parameter %q is declared more than once", p.Name),
			})
			continue
		}
		seen[p.Name] = struct{}{}

		if !isValidType(p.Type) {
			diags = append(diags, Diagnostic{
				Field:    path + ".type",
				Code:     "INVALID_TYPE",
				Severity: SeverityError,
				Message:  fmt.Sprintf("Unsupported type %q; allowed: string, integer, float, boolean, any", p.Type),
			})
			continue
		}

		if p.HasDefault && p.Default != nil && p.Type != TypeAny {
			if _, ok := castValue(p.Type, p.Default); !ok {
				diags = append(diags, Diagnostic{
					Field:    path + ".default",
					Code:     "DEFAULT_TYPE_MISMATCH",
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("default %v is not a valid %s", p.Default, p.Type),
				})
			}
		}
		if p.Trusted && p.Type != TypeString {
			diags = append(diags, Diagnostic{
				Field:    path + ".type",
				Code:     "TRUSTED_NOT_STRING",
				Severity: SeverityWarning,
				Message:  "trusted parameters are supplied as strings",
			})
		}
	}

	return diags
}
