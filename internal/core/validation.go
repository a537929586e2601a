package core

// validation.go turns untyped records into field values.
//
// Every imported field has a FieldSpec naming its type and whether the key
// must be present and whether an empty value is acceptable. A failing field
// produces a ValidationError carrying the record number, so a single bad
// record can be reported (or skipped) without stopping the parser.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldType represents the expected data type of an imported field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldInt
	FieldAmount
	FieldDate
	FieldCodes
)

// FieldSpec defines validation rules for one imported field.
type FieldSpec struct {
	Name       string    // lower-case key in the record
	Type       FieldType // expected data type
	Required   bool      // key must be present in the record
	AllowEmpty bool      // an empty or null value is accepted
}

// ValidationError reports one field of one record that could not be
// decoded.
type ValidationError struct {
	Record  int    // 1-based record number within its file
	Field   string // field name
	Value   string // offending value, empty when the field was missing
	Message string // human-readable reason
}

func (e ValidationError) Error() string {
	switch {
	case e.Record > 0 && e.Field != "":
		return fmt.Sprintf("record #%d: %s: %s", e.Record, e.Field, e.Message)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

// Reason is the message without the record prefix.
func (e ValidationError) Reason() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// fieldText returns the textual form of a record field, enforcing presence
// and emptiness rules. JSON scalars are stringified; numbers keep their
// literal form.
func fieldText(r Record, spec FieldSpec) (string, error) {
	raw, ok := r.Fields[spec.Name]
	if !ok {
		if spec.Required {
			return "", ValidationError{Record: r.Index, Field: spec.Name, Message: "missing required field"}
		}
		return "", nil
	}

	var s string
	switch v := raw.(type) {
	case nil:
	case string:
		s = strings.TrimSpace(v)
	case json.Number:
		if spec.Type == FieldDate {
			return "", ValidationError{Record: r.Index, Field: spec.Name, Value: v.String(), Message: "expected a date string"}
		}
		s = v.String()
	case bool:
		if spec.Type != FieldText && spec.Type != FieldCodes {
			return "", ValidationError{Record: r.Index, Field: spec.Name, Value: strconv.FormatBool(v), Message: "expected a number or string"}
		}
		s = strconv.FormatBool(v)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return "", ValidationError{Record: r.Index, Field: spec.Name, Value: fmt.Sprint(v), Message: "unsupported value"}
	}

	if s == "" && !spec.AllowEmpty {
		return "", ValidationError{Record: r.Index, Field: spec.Name, Message: "required field is empty"}
	}
	return s, nil
}

// fieldError wraps a coercion failure as a ValidationError.
func fieldError(r Record, spec FieldSpec, value string, err error) error {
	return ValidationError{Record: r.Index, Field: spec.Name, Value: value, Message: err.Error()}
}
