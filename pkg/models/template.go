package models

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

type FieldType string

const (
	FieldTypeText         FieldType = "text"
	FieldTypeNumber       FieldType = "number"
	FieldTypeBoolean      FieldType = "boolean"
	FieldTypeSingleSelect FieldType = "single-select"
	FieldTypeMultiSelect  FieldType = "multi-select"
	FieldTypeRange        FieldType = "range"
)

// IsSelect reports whether values of this type are drawn from Options.
func (t FieldType) IsSelect() bool {
	return t == FieldTypeSingleSelect || t == FieldTypeMultiSelect
}

// IsNumeric reports whether Min and Max apply to this type.
func (t FieldType) IsNumeric() bool {
	return t == FieldTypeNumber || t == FieldTypeRange
}

// FieldDescriptor describes one structured attribute a listing exposes,
// e.g. "Mileage" or "RAM".
type FieldDescriptor struct {
	Key       string    `bson:"key" json:"key" yaml:"key" validate:"required,max=64,fieldkey"`
	Label     string    `bson:"label" json:"label" yaml:"label" validate:"required,max=120"`
	Type      FieldType `bson:"type" json:"type" yaml:"type" validate:"required,oneof=text number boolean single-select multi-select range"`
	Required  bool      `bson:"required" json:"required" yaml:"required"`
	Options   []string  `bson:"options,omitempty" json:"options,omitempty" yaml:"options,omitempty" validate:"omitempty,dive,required"`
	Min       *float64  `bson:"min,omitempty" json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64  `bson:"max,omitempty" json:"max,omitempty" yaml:"max,omitempty"`
	MaxLength int       `bson:"max_length,omitempty" json:"maxLength,omitempty" yaml:"maxLength,omitempty" validate:"gte=0"`
	Unit      string    `bson:"unit,omitempty" json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Template is the ordered set of fields listings in a category expose.
// Field order is display order and is preserved as stored.
type Template struct {
	Fields []FieldDescriptor `bson:"fields" json:"fields" yaml:"fields" validate:"dive"`
}

// IsEmpty reports whether t defines no fields. A nil template is empty.
func (t *Template) IsEmpty() bool {
	return t == nil || len(t.Fields) == 0
}

// Field looks up a descriptor by key.
func (t *Template) Field(key string) (FieldDescriptor, bool) {
	if t == nil {
		return FieldDescriptor{}, false
	}
	for _, f := range t.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// Clone returns a deep copy so callers can't mutate a snapshot's template.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	fields := make([]FieldDescriptor, len(t.Fields))
	for i, f := range t.Fields {
		if f.Options != nil {
			f.Options = append([]string(nil), f.Options...)
		}
		if f.Min != nil {
			v := *f.Min
			f.Min = &v
		}
		if f.Max != nil {
			v := *f.Max
			f.Max = &v
		}
		fields[i] = f
	}
	return &Template{Fields: fields}
}

var fieldKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var templateValidate = NewValidator()

// NewValidator returns a validator that knows the custom tags used by the
// category models.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("fieldkey", func(fl validator.FieldLevel) bool {
		return fieldKeyPattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks a single template: descriptor shape, key uniqueness,
// options for select types and numeric bounds.
func (t *Template) Validate() error {
	if t == nil {
		return nil
	}
	if err := templateValidate.Struct(t); err != nil {
		return errors.Wrap(err, "invalid template")
	}

	seen := make(map[string]struct{}, len(t.Fields))
	for _, f := range t.Fields {
		if _, dup := seen[f.Key]; dup {
			return errors.Errorf("invalid template: duplicate field key %q", f.Key)
		}
		seen[f.Key] = struct{}{}

		if f.Type.IsSelect() {
			if len(f.Options) == 0 {
				return errors.Errorf("invalid template: field %q of type %s needs options", f.Key, f.Type)
			}
			opts := make(map[string]struct{}, len(f.Options))
			for _, o := range f.Options {
				if _, dup := opts[o]; dup {
					return errors.Errorf("invalid template: field %q repeats option %q", f.Key, o)
				}
				opts[o] = struct{}{}
			}
		} else if len(f.Options) > 0 {
			return errors.Errorf("invalid template: field %q of type %s cannot have options", f.Key, f.Type)
		}

		if (f.Min != nil || f.Max != nil) && !f.Type.IsNumeric() {
			return errors.Errorf("invalid template: field %q of type %s cannot have bounds", f.Key, f.Type)
		}
		if f.Min != nil && f.Max != nil && *f.Min > *f.Max {
			return errors.Errorf("invalid template: field %q has min greater than max", f.Key)
		}
		if f.MaxLength > 0 && f.Type != FieldTypeText {
			return errors.Errorf("invalid template: field %q of type %s cannot have maxLength", f.Key, f.Type)
		}
	}

	return nil
}

// AttributeError reports one listing attribute that does not satisfy its descriptor.
type AttributeError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// AttributeErrors collects every violation found in one submission.
type AttributeErrors []AttributeError

func (e AttributeErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, a := range e {
		msgs = append(msgs, a.Key+": "+a.Message)
	}
	return "invalid attributes: " + strings.Join(msgs, "; ")
}

// ValidateValues checks listing attribute values against the template.
// An empty template permits free-form listings and accepts anything.
func (t *Template) ValidateValues(values map[string]any) error {
	if t.IsEmpty() {
		return nil
	}

	var errs AttributeErrors
	for key := range values {
		if _, ok := t.Field(key); !ok {
			errs = append(errs, AttributeError{Key: key, Message: "unknown attribute"})
		}
	}

	for _, f := range t.Fields {
		v, present := values[f.Key]
		if !present || isBlank(v) {
			if f.Required {
				errs = append(errs, AttributeError{Key: f.Key, Message: "is required"})
			}
			continue
		}
		if msg := f.check(v); msg != "" {
			errs = append(errs, AttributeError{Key: f.Key, Message: msg})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (f FieldDescriptor) check(v any) string {
	switch f.Type {
	case FieldTypeText:
		s, ok := v.(string)
		if !ok {
			return "must be a string"
		}
		if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
			return fmt.Sprintf("must be at most %d characters", f.MaxLength)
		}
	case FieldTypeNumber:
		n, ok := toFloat(v)
		if !ok {
			return "must be a number"
		}
		return f.checkBounds(n)
	case FieldTypeBoolean:
		if _, ok := v.(bool); !ok {
			return "must be a boolean"
		}
	case FieldTypeSingleSelect:
		s, ok := v.(string)
		if !ok {
			return "must be a string"
		}
		if !f.hasOption(s) {
			return fmt.Sprintf("%q is not an allowed option", s)
		}
	case FieldTypeMultiSelect:
		items, ok := toStrings(v)
		if !ok {
			return "must be a list of strings"
		}
		seen := make(map[string]struct{}, len(items))
		for _, s := range items {
			if !f.hasOption(s) {
				return fmt.Sprintf("%q is not an allowed option", s)
			}
			if _, dup := seen[s]; dup {
				return fmt.Sprintf("%q is selected more than once", s)
			}
			seen[s] = struct{}{}
		}
	case FieldTypeRange:
		from, to, ok := toRange(v)
		if !ok {
			return "must be a [from, to] pair of numbers"
		}
		if from > to {
			return "range start must not exceed range end"
		}
		if msg := f.checkBounds(from); msg != "" {
			return msg
		}
		return f.checkBounds(to)
	}
	return ""
}

func (f FieldDescriptor) checkBounds(n float64) string {
	if f.Min != nil && n < *f.Min {
		return fmt.Sprintf("must be at least %v", *f.Min)
	}
	if f.Max != nil && n > *f.Max {
		return fmt.Sprintf("must be at most %v", *f.Max)
	}
	return ""
}

func (f FieldDescriptor) hasOption(s string) bool {
	for _, o := range f.Options {
		if o == s {
			return true
		}
	}
	return false
}

func isBlank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	case []string:
		return len(x) == 0
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
	}
	return 0, false
}

func toStrings(v any) ([]string, bool) {
	switch x := v.(type) {
	case []string:
		return x, true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toRange(v any) (float64, float64, bool) {
	var pair []any
	switch x := v.(type) {
	case []any:
		pair = x
	case []float64:
		for _, f := range x {
			pair = append(pair, f)
		}
	case []int:
		for _, i := range x {
			pair = append(pair, i)
		}
	default:
		return 0, 0, false
	}
	if len(pair) != 2 {
		return 0, 0, false
	}
	from, ok := toFloat(pair[0])
	if !ok {
		return 0, 0, false
	}
	to, ok := toFloat(pair[1])
	if !ok {
		return 0, 0, false
	}
	return from, to, true
}
