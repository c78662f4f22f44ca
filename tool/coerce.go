package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CoercionPolicy decides what happens when a value cannot be cast to its
// declared type.
type CoercionPolicy string

const (
	// PolicyPermissive keeps the uncast value and lets the tool decide.
	PolicyPermissive CoercionPolicy = "permissive"
	// PolicyStrict rejects the call with BadParameters.
	PolicyStrict CoercionPolicy = "strict"
)

// ParseCoercionPolicy parses a policy name. Empty selects PolicyPermissive.
func ParseCoercionPolicy(value string) (CoercionPolicy, error) {
	switch CoercionPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unknown coercion policy %q (use permissive or strict)", value)
	}
}

var (
	truthyWords = map[string]struct{}{"true": {}, "1": {}, "yes": {}, "y": {}, "on": {}, "t": {}}
	falsyWords  = map[string]struct{}{"false": {}, "0": {}, "no": {}, "n": {}, "off": {}, "f": {}}
)

// Coerce binds raw input to params in declared order. Present values are cast
// to their declared type, absent values take their default, and the first
// absent required parameter fails the call. Inputs not named by any parameter
// are dropped. Coerce does not mutate raw.
func Coerce(params []ParameterSpec, raw map[string]any, policy CoercionPolicy) (Args, error) {
	args := make(Args, len(params))
	for _, p := range params {
		value, present := raw[p.Name]
		if !present {
			if p.HasDefault {
				args[p.Name] = p.Default
				continue
			}
			return nil, NewToolError(
				KindBadParameters,
				"missing required parameter: "+p.Name,
				fmt.Errorf("%w: %s", ErrMissingParameter, p.Name),
			).WithDetails(map[string]any{"parameter": p.Name})
		}

		if p.Type == TypeAny || value == nil {
			args[p.Name] = value
			continue
		}

		cast, ok := castValue(p.Type, value)
		if ok {
			args[p.Name] = cast
			continue
		}
		if policy == PolicyStrict {
			return nil, NewToolError(
				KindBadParameters,
				fmt.Sprintf("parameter %s: cannot use %v as %s", p.Name, value, p.Type),
				fmt.Errorf("%w: %s", ErrInvalidParameter, p.Name),
			).WithDetails(map[string]any{"parameter": p.Name, "type": p.Type})
		}
		args[p.Name] = value
	}
	return args, nil
}

// castValue converts value to the canonical Go type for typ: string, int64,
// float64, or bool.
func castValue(typ string, value any) (any, bool) {
	switch typ {
	case TypeString:
		return castString(value)
	case TypeInteger:
		return castInteger(value)
	case TypeFloat:
		return castFloat(value)
	case TypeBoolean:
		return castBoolean(value)
	case TypeAny:
		return value, true
	default:
		return nil, false
	}
}

func castString(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return nil, false
	}
}

func castInteger(value any) (any, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return integralFloat(v)
	case float32:
		return integralFloat(float64(v))
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return integralFloat(f)
		}
		return nil, false
	case string:
		clean := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(clean, 64); err == nil {
			return integralFloat(f)
		}
		return nil, false
	default:
		return nil, false
	}
}

func integralFloat(f float64) (any, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f >= 1<<63 || f < -1<<63 {
		return nil, false
	}
	return int64(f), true
}

func castFloat(value any) (any, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, false
		}
		return f, true
	default:
		return nil, false
	}
}

func castBoolean(value any) (any, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		word := strings.ToLower(strings.TrimSpace(v))
		if _, ok := truthyWords[word]; ok {
			return true, true
		}
		if _, ok := falsyWords[word]; ok {
			return false, true
		}
		return nil, false
	case int, int32, int64, float32, float64, json.Number:
		n, ok := castInteger(v)
		if !ok {
			return nil, false
		}
		switch n.(int64) {
		case 0:
			return false, true
		case 1:
			return true, true
		}
		return nil, false
	default:
		return nil, false
	}
}
