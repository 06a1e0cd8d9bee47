package pex

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// Filter value types.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
)

// predicate is a compiled filter. A value of the wrong type never matches.
type predicate interface {
	match(v any) bool
}

type noFilter struct{}

func (noFilter) match(any) bool { return true }

// patternFilter searches the text form of the value; it is not anchored.
type patternFilter struct {
	re *regexp.Regexp
}

func (f patternFilter) match(v any) bool {
	text, ok := textOf(v)
	if !ok {
		return false
	}

	return f.re.MatchString(text)
}

type constFilter struct {
	value any
}

func (f constFilter) match(v any) bool {
	return jsonEqual(v, f.value)
}

type enumFilter struct {
	values []any
}

func (f enumFilter) match(v any) bool {
	for _, want := range f.values {
		if jsonEqual(v, want) {
			return true
		}
	}

	return false
}

type typedFilter struct {
	kind  string
	inner predicate
}

func (f typedFilter) match(v any) bool {
	return hasType(v, f.kind) && f.inner.match(v)
}

func compileFilter(f *Filter) (predicate, error) {
	if f == nil {
		return noFilter{}, nil
	}

	declared := 0
	if f.Pattern != "" {
		declared++
	}
	if len(f.Const) > 0 {
		declared++
	}
	if len(f.Enum) > 0 {
		declared++
	}
	if declared > 1 {
		return nil, fmt.Errorf("only one of pattern, const and enum may be set")
	}

	var inner predicate = noFilter{}

	switch {
	case f.Pattern != "":
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %q: %w", f.Pattern, err)
		}
		inner = patternFilter{re: re}
	case len(f.Const) > 0:
		value, err := decodeScalar(f.Const, f.Type)
		if err != nil {
			return nil, fmt.Errorf("const: %w", err)
		}
		inner = constFilter{value: value}
	case len(f.Enum) > 0:
		values := make([]any, 0, len(f.Enum))
		for i, raw := range f.Enum {
			value, err := decodeScalar(raw, f.Type)
			if err != nil {
				return nil, fmt.Errorf("enum[%d]: %w", i, err)
			}
			values = append(values, value)
		}
		inner = enumFilter{values: values}
	}

	if f.Type == "" {
		return inner, nil
	}

	switch f.Type {
	case TypeString, TypeNumber, TypeInteger, TypeBoolean:
		return typedFilter{kind: f.Type, inner: inner}, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", f.Type)
	}
}

// decodeScalar parses a const or enum literal, which must be a string,
// number or boolean consistent with the declared type.
func decodeScalar(raw json.RawMessage, kind string) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value: %w", err)
	}

	switch value.(type) {
	case string, float64, bool:
	default:
		return nil, fmt.Errorf("value %s must be a string, number or boolean", string(raw))
	}

	if kind != "" && !hasType(value, kind) {
		return nil, fmt.Errorf("value %s is not of type %s", string(raw), kind)
	}

	return value, nil
}

func hasType(v any, kind string) bool {
	switch kind {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(v)
		return ok
	case TypeInteger:
		n, ok := toFloat(v)
		return ok && n == math.Trunc(n) && !math.IsInf(n, 0)
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	}

	return false
}

func jsonEqual(v, want any) bool {
	switch w := want.(type) {
	case string:
		s, ok := v.(string)
		return ok && s == w
	case bool:
		b, ok := v.(bool)
		return ok && b == w
	case float64:
		n, ok := toFloat(v)
		return ok && n == w
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}

	return 0, false
}

// textOf renders scalar values for pattern matching. Objects and arrays have no text form.
func textOf(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	}

	if n, ok := toFloat(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64), true
	}

	return "", false
}
