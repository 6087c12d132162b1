package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"
)

// ArraySchema validates every element of a list against a single element schema.
type ArraySchema struct {
	base
	elem Schema
}

// Array returns a schema accepting lists whose elements satisfy elem.
func Array(elem Schema, opts ...Option) *ArraySchema {
	return &ArraySchema{base: newBase(KindArray, opts), elem: elem}
}

func (s *ArraySchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, mismatch(s.kind, raw)
	}

	out := make([]any, rv.Len())

	for i := range out {
		value, err := s.elem.Validate(rv.Index(i).Interface())
		if err != nil {
			return nil, fmt.Errorf("element %d %w", i, err)
		}

		out[i] = value
	}

	return out, nil
}

// Properties describes the element schema under "items".
func (s *ArraySchema) Properties() map[string]any {
	return map[string]any{"items": describe(s.elem)}
}

// ObjectSchema validates a JSON object with declared properties. Undeclared
// keys are dropped from the validated value.
type ObjectSchema struct {
	base
	props map[string]Schema
}

// Object returns a schema accepting objects shaped by props.
func Object(props map[string]Schema, opts ...Option) *ObjectSchema {
	return &ObjectSchema{base: newBase(KindObject, opts), props: props}
}

func (s *ObjectSchema) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	in, ok := raw.(map[string]any)
	if !ok {
		return nil, mismatch(s.kind, raw)
	}

	out := make(map[string]any, len(s.props))

	for _, key := range Keys(s.props) {
		value, err := Field(in, key, s.props[key])
		if err != nil {
			return nil, fmt.Errorf("property %q %w", key, err)
		}

		if value != nil {
			out[key] = value
		}
	}

	return out, nil
}

func (s *ObjectSchema) Properties() map[string]any {
	properties := make(map[string]any, len(s.props))

	for key, prop := range s.props {
		properties[key] = describe(prop)
	}

	return properties
}

// StructSchema decodes an object argument into a Go value of type T.
type StructSchema[T any] struct {
	base
}

// Struct returns a schema decoding object arguments into T. The listed
// properties are reflected from T's json and jsonschema struct tags.
func Struct[T any](opts ...Option) *StructSchema[T] {
	return &StructSchema[T]{newBase(KindObject, opts)}
}

func (s *StructSchema[T]) Validate(raw any) (any, error) {
	if value, absent, err := s.missing(raw); absent {
		return value, err
	}

	if v, ok := raw.(T); ok {
		return v, nil
	}

	if _, ok := raw.(map[string]any); !ok {
		return nil, mismatch(s.kind, raw)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("cannot be encoded: %w", err)
	}

	var v T
	if err := json.Unmarshal(buf, &v); err != nil {
		return nil, fmt.Errorf("does not match the expected shape: %w", err)
	}

	return v, nil
}

func (s *StructSchema[T]) Properties() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var v T
	buf, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return map[string]any{}
	}

	var reflected struct {
		Properties map[string]any `json:"properties"`
	}

	if err := json.Unmarshal(buf, &reflected); err != nil || reflected.Properties == nil {
		return map[string]any{}
	}

	return reflected.Properties
}

// Describe returns the listing entry for a schema: its kind and description,
// plus nested properties for structured schemas.
func Describe(s Schema) map[string]any {
	return describe(s)
}

func describe(s Schema) map[string]any {
	entry := map[string]any{
		"type":        s.Kind(),
		"description": s.Description(),
	}

	if ps, ok := s.(PropertySchema); ok {
		switch s.Kind() {
		case KindArray:
			for key, value := range ps.Properties() {
				entry[key] = value
			}
		default:
			entry["properties"] = ps.Properties()
		}
	}

	return entry
}

// Keys returns the names of props in sorted order.
func Keys(props map[string]Schema) []string {
	keys := make([]string, 0, len(props))

	for key := range props {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
