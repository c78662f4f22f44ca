package tool

import "strings"

// MaskedSecretValue is used in user-facing output for trusted values.
const MaskedSecretValue = "**********"

// MaskTrusted returns a copy of values with the trusted parameters of d
// masked. Unknown keys pass through unchanged.
func MaskTrusted(d Descriptor, values map[string]any) map[string]any {
	if len(values) == 0 {
		return nil
	}

	masked := make(map[string]any, len(values))
	for key, value := range values {
		masked[key] = value
	}
	for _, p := range d.Parameters {
		if !p.Trusted {
			continue
		}
		value, ok := masked[p.Name]
		if !ok {
			continue
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		masked[p.Name] = MaskedSecretValue
	}
	return masked
}
