// Package schema provides the argument validators tools declare for their inputs.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kinds reported by Schema.Kind, matching JSON schema primitive types.
const (
	KindString  = "string"
	KindNumber  = "number"
	KindInteger = "integer"
	KindBoolean = "boolean"
	KindArray   = "array"
	KindObject  = "object"
)

// ErrRequired is the diagnostic for a missing non-optional value.
var ErrRequired = errors.New("is required")

// Schema validates a single raw argument value.
type Schema interface {
	// Validate checks raw and returns the value handed to the tool handler.
	Validate(raw any) (any, error)

	// Kind returns the primitive kind tag used in tool listings.
	Kind() string

	// Description returns the human readable description of the argument.
	Description() string

	// Optional reports whether the argument may be omitted.
	Optional() bool
}

// PropertySchema is a Schema describing a structured value with named properties.
type PropertySchema interface {
	Schema

	// Properties returns the JSON schema properties of the structured value.
	Properties() map[string]any
}

// Option configures a schema at construction time.
type Option func(*base)

// Description sets the description shown in tool listings.
func Description(desc string) Option {
	return func(b *base) {
		b.description = desc
	}
}

// Optional marks the argument as omittable.
func Optional() Option {
	return func(b *base) {
		b.optional = true
	}
}

// Default marks the argument as omittable and substitutes value when it is missing.
func Default(value any) Option {
	return func(b *base) {
		b.optional = true
		b.def = value
	}
}

// MinLength rejects strings shorter than n runes.
func MinLength(n int) Option {
	return func(b *base) {
		b.minLength = n
	}
}

// MaxLength rejects strings longer than n runes.
func MaxLength(n int) Option {
	return func(b *base) {
		b.maxLength = n
	}
}

// Enum restricts a string to the given values.
func Enum(values ...string) Option {
	return func(b *base) {
		b.enum = values
	}
}

type base struct {
	kind        string
	description string
	optional    bool
	def         any
	minLength   int
	maxLength   int
	enum        []string
}

func newBase(kind string, opts []Option) base {
	b := base{
		kind:      kind,
		minLength: -1,
		maxLength: -1,
	}

	for _, opt := range opts {
		opt(&b)
	}

	return b
}

func (b base) Kind() string {
	return b.kind
}

func (b base) Description() string {
	return b.description
}

func (b base) Optional() bool {
	return b.optional
}

// missing reports whether raw is absent, returning the value to use in that case.
func (b base) missing(raw any) (value any, absent bool, err error) {
	if raw != nil {
		return nil, false, nil
	}

	if b.optional {
		return b.def, true, nil
	}

	return nil, true, ErrRequired
}

// Field validates values[key] against s. An absent key is handed to s as nil,
// while a key holding an explicit null is rejected even for optional schemas.
func Field(values map[string]any, key string, s Schema) (any, error) {
	raw, present := values[key]
	if present && raw == nil {
		return nil, fmt.Errorf("must be %s, got null", article(s.Kind()))
	}

	return s.Validate(raw)
}

func mismatch(kind string, raw any) error {
	return fmt.Errorf("must be %s, got %T", article(kind), raw)
}

func article(kind string) string {
	if strings.ContainsRune("aeiou", rune(kind[0])) {
		return "an " + kind
	}

	return "a " + kind
}
