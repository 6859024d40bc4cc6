package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfellner/advicebuilder/internal/models"
	"github.com/mfellner/advicebuilder/pkg/fault"
)

// answerDateLayout is the wire format of submitted date answers.
const answerDateLayout = "2006-01-02"

// validateAnswer checks value against the question's field-type shape and
// returns the normalized value to store: a trimmed string for text and
// date types, an option key for discrete choices, a []string for
// multiple options.
func validateAnswer(q *Question, value any) (any, *fault.ValidationError) {
	switch q.FieldType {
	case models.SingleOption, models.YesNo:
		key, ok := asString(value)
		if !ok || key == "" {
			return nil, fault.NewValidationError(q.ID, "an option must be selected")
		}
		if !q.HasOption(key) {
			return nil, fault.NewValidationError(q.ID, fmt.Sprintf("%q is not one of the available options", key))
		}
		return key, nil

	case models.MultipleOptions:
		keys, ok := asStringSlice(value)
		if !ok || len(keys) == 0 {
			return nil, fault.NewValidationError(q.ID, "at least one option must be selected")
		}
		for _, key := range keys {
			if !q.HasOption(key) {
				return nil, fault.NewValidationError(q.ID, fmt.Sprintf("%q is not one of the available options", key))
			}
		}
		return keys, nil

	case models.SingleLine, models.MultiLine:
		text, ok := asString(value)
		if !ok {
			return nil, fault.NewValidationError(q.ID, "a text answer is required")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fault.NewValidationError(q.ID, "a text answer is required")
		}
		return text, nil

	case models.Date:
		raw, ok := asString(value)
		if !ok {
			return nil, fault.NewValidationError(q.ID, "a date is required")
		}
		raw = strings.TrimSpace(raw)
		if _, err := time.Parse(answerDateLayout, raw); err != nil {
			return nil, fault.NewValidationError(q.ID, fmt.Sprintf("%q is not a valid date (expected YYYY-MM-DD)", raw))
		}
		return raw, nil

	default:
		return nil, fault.NewValidationError(q.ID, fmt.Sprintf("unknown field type %s", q.FieldType))
	}
}

func asString(value any) (string, bool) {
	s, ok := value.(string)
	return s, ok
}

// asStringSlice accepts []string directly and []any of strings, which is
// what a JSON round-trip through session storage produces.
func asStringSlice(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
