package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FieldType is the closed set of form field kinds a project schema may use.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldTextarea FieldType = "textarea"
	FieldCheckbox FieldType = "checkbox"
	FieldSelect   FieldType = "select"
	FieldDate     FieldType = "date"
	FieldTime     FieldType = "time"
)

// FieldDefinition is one entry of a project's form schema. ID is the stable
// key into submitted data; order of the slice is display order only.
type FieldDefinition struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

type Result struct {
	IsValid   bool
	Errors    []string
	Sanitized map[string]any
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	timePattern  = regexp.MustCompile(`^([01]\d|2[0-3]):([0-5]\d)(:([0-5]\d))?$`)
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// DecodeFields parses a project's stored schema column. A missing or null
// column decodes to an empty schema (legacy mode).
func DecodeFields(raw []byte) ([]FieldDefinition, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var fields []FieldDefinition
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// ValidateAndSanitize checks raw submitted values against the schema and
// returns cleaned output. With an empty schema every key passes through
// (strings trimmed and HTML-escaped); with a schema, the schema acts as both
// whitelist and validator and errors are collected in schema order.
func ValidateAndSanitize(data map[string]any, fields []FieldDefinition) Result {
	sanitized := make(map[string]any, len(data))

	if len(fields) == 0 {
		for key, value := range data {
			if s, ok := value.(string); ok {
				value = sanitizeString(s)
			}
			sanitized[key] = value
		}
		return Result{IsValid: true, Errors: []string{}, Sanitized: sanitized}
	}

	var errs []string
	for _, field := range fields {
		value, present := data[field.ID]
		if isEmpty(value) {
			present = false
		}
		if !present {
			if field.Required {
				errs = append(errs, fmt.Sprintf("%s is required.", field.Label))
			}
			continue
		}

		value, err := checkType(field, value)
		if err != "" {
			errs = append(errs, err)
			continue
		}
		if s, ok := value.(string); ok {
			value = sanitizeString(s)
		}
		sanitized[field.ID] = value
	}

	return Result{IsValid: len(errs) == 0, Errors: append([]string{}, errs...), Sanitized: sanitized}
}

// checkType validates a present value against the field's type and coerces
// numbers. The switch is exhaustive over FieldType so a new variant fails
// loudly here rather than validating nothing.
func checkType(field FieldDefinition, value any) (any, string) {
	switch field.Type {
	case FieldEmail:
		s, ok := value.(string)
		if !ok || !emailPattern.MatchString(s) {
			return value, fmt.Sprintf("%s must be a valid email.", field.Label)
		}
		return s, ""
	case FieldNumber:
		n, ok := toNumber(value)
		if !ok {
			return value, fmt.Sprintf("%s must be a number.", field.Label)
		}
		return n, ""
	case FieldDate:
		s, _ := value.(string)
		if !parseableDate(s) {
			return value, fmt.Sprintf("%s must be a valid date.", field.Label)
		}
		return s, ""
	case FieldTime:
		s, _ := value.(string)
		if !timePattern.MatchString(strings.TrimSpace(s)) {
			return value, fmt.Sprintf("%s must be a valid time (HH:MM).", field.Label)
		}
		return s, ""
	case FieldText, FieldTextarea, FieldCheckbox, FieldSelect:
		return value, ""
	default:
		return value, fmt.Sprintf("%s has an unknown field type.", field.Label)
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && s == ""
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func parseableDate(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// sanitizeString trims and neutralizes angle brackets. Escaping produces only
// "&lt;"/"&gt;", which contain no brackets themselves, so the function is
// idempotent.
func sanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "<", "&lt;")
	return strings.ReplaceAll(s, ">", "&gt;")
}
