package tool

import (
	"fmt"
	"os"
	"strings"
)

// SecretEnvPrefix is the prefix of environment variables that supply
// trusted parameter values, e.g. PETALTOOLS_SECRET_WEATHER_API_KEY.
const SecretEnvPrefix = "PETALTOOLS_SECRET_"

// SecretLookup resolves a process-held secret by name.
type SecretLookup func(name string) (string, bool)

// StaticSecrets serves secrets from a fixed map.
func StaticSecrets(values map[string]string) SecretLookup {
	copied := make(map[string]string, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return func(name string) (string, bool) {
		value, ok := copied[name]
		if !ok || strings.TrimSpace(value) == "" {
			return "", false
		}
		return value, true
	}
}

// EnvSecrets reads PETALTOOLS_SECRET_<NAME> first and then the bare <NAME>
// variable.
func EnvSecrets() SecretLookup {
	return func(name string) (string, bool) {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "" {
			return "", false
		}
		if value := strings.TrimSpace(os.Getenv(SecretEnvPrefix + key)); value != "" {
			return value, true
		}
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value, true
		}
		return "", false
	}
}

// ChainSecrets returns the first hit across lookups, in order.
func ChainSecrets(lookups ...SecretLookup) SecretLookup {
	return func(name string) (string, bool) {
		for _, lookup := range lookups {
			if lookup == nil {
				continue
			}
			if value, ok := lookup(name); ok {
				return value, true
			}
		}
		return "", false
	}
}

// ApplyTrusted returns a copy of raw in which every trusted parameter of d is
// replaced by its process-held value. Caller-supplied values for trusted
// parameters are always discarded. A trusted parameter with no held value
// and no default is a ConfigurationError.
func ApplyTrusted(d Descriptor, raw map[string]any, secrets SecretLookup) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		out[key] = value
	}

	for _, p := range d.Parameters {
		if !p.Trusted {
			continue
		}
		delete(out, p.Name)

		secret := p.SecretName()
		if secrets != nil {
			if value, ok := secrets(secret); ok {
				out[p.Name] = value
				continue
			}
		}
		if p.HasDefault {
			continue
		}
		return nil, NewToolError(
			KindConfiguration,
			fmt.Sprintf("tool %s requires credential %s for parameter %s", d.Name, secret, p.Name),
			nil,
		).WithDetails(map[string]any{"parameter": p.Name, "secret": secret})
	}
	return out, nil
}
