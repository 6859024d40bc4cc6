package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"

	"github.com/mfellner/advicebuilder/internal/models"
)

// displayDateLayout is how date answers appear in rendered documents.
const displayDateLayout = "02.01.2006"

// RenderDocument substitutes the collected answers into a document
// template. Templates use Django syntax: `{{ q1 }}` inserts the display
// rendering of question q1's answer (option label, label list, formatted
// date, or verbatim text; empty string when unanswered), and conditional
// blocks compare against the raw answer mapping exposed as `answers`:
//
//	{% if answers.q1 == "yes" %}…{% endif %}
//
// Rendering is a pure function of (template, answers): the same inputs
// always produce byte-identical output.
func RenderDocument(template string, graph *Graph, answers map[string]any) (string, error) {
	tpl, err := pongo2.FromString(template)
	if err != nil {
		return "", fmt.Errorf("parse document template: %w", err)
	}

	ctx := pongo2.Context{}
	for _, q := range graph.Questions() {
		ctx[q.ID] = DisplayValue(q, answers[q.ID])
	}

	raw := map[string]any{}
	for id, value := range answers {
		raw[id] = value
	}
	ctx["answers"] = raw

	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", fmt.Errorf("render document template: %w", err)
	}
	return out, nil
}

// DisplayValue renders one answer for inclusion in a document. Option
// answers render as their label, multiple options as a comma-separated
// label list, dates in dd.mm.yyyy form, text verbatim. A missing or
// malformed value renders as the empty string.
func DisplayValue(q *Question, value any) string {
	if value == nil {
		return ""
	}

	switch {
	case q.FieldType == models.MultipleOptions:
		keys, ok := asStringSlice(value)
		if !ok {
			return ""
		}
		labels := make([]string, 0, len(keys))
		for _, key := range keys {
			if label, ok := q.OptionLabel(key); ok {
				labels = append(labels, label)
			}
		}
		return strings.Join(labels, ", ")

	case q.FieldType.IsChoice():
		key, ok := asString(value)
		if !ok {
			return ""
		}
		if label, ok := q.OptionLabel(key); ok {
			return label
		}
		return ""

	default:
		text, ok := asString(value)
		if !ok {
			return ""
		}
		if q.FieldType == models.Date {
			parsed, err := time.Parse(answerDateLayout, text)
			if err != nil {
				return text
			}
			return parsed.Format(displayDateLayout)
		}
		return text
	}
}
