package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// StringSchema validates string arguments.
type StringSchema struct {
	base
}

// String returns a schema accepting strings.
func String(opts ...Option) *StringSchema {
	return &StringSchema{newBase(KindString, opts)}
}

func (s *StringSchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	str, ok := raw.(string)
	if !ok {
		return nil, mismatch(s.kind, raw)
	}

	n := utf8.RuneCountInString(str)

	if s.minLength >= 0 && n < s.minLength {
		return nil, fmt.Errorf("must be at least %d characters", s.minLength)
	}

	if s.maxLength >= 0 && n > s.maxLength {
		return nil, fmt.Errorf("must be at most %d characters", s.maxLength)
	}

	if len(s.enum) > 0 && !slices.Contains(s.enum, str) {
		return nil, fmt.Errorf("must be one of %v", s.enum)
	}

	return str, nil
}

// NumberSchema validates numeric arguments and yields float64.
type NumberSchema struct {
	base
}

// Number returns a schema accepting any JSON number.
func Number(opts ...Option) *NumberSchema {
	return &NumberSchema{newBase(KindNumber, opts)}
}

func (s *NumberSchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) {
		return nil, mismatch(s.kind, raw)
	}

	return f, nil
}

// IntegerSchema validates whole numbers and yields int.
type IntegerSchema struct {
	base
}

// Integer returns a schema accepting whole numbers.
func Integer(opts ...Option) *IntegerSchema {
	return &IntegerSchema{newBase(KindInteger, opts)}
}

func (s *IntegerSchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	f, ok := toFloat(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil, mismatch(s.kind, raw)
	}

	if f >= math.MaxInt || f < math.MinInt {
		return nil, fmt.Errorf("must be an integer within range, got %v", f)
	}

	return int(f), nil
}

// BooleanSchema validates boolean arguments.
type BooleanSchema struct {
	base
}

// Boolean returns a schema accepting true or false.
func Boolean(opts ...Option) *BooleanSchema {
	return &BooleanSchema{newBase(KindBoolean, opts)}
}

func (s *BooleanSchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	b, ok := raw.(bool)
	if !ok {
		return nil, mismatch(s.kind, raw)
	}

	return b, nil
}

// toFloat accepts the numeric shapes arguments arrive in: float64 from
// encoding/json, json.Number, and plain Go integers from programmatic callers.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
