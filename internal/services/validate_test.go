package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateAnswer(t *testing.T) {
	g := newTestGraph(t)

	tests := []struct {
		name       string
		questionID string
		value      any
		want       any
		wantError  bool
	}{
		{
			name:       "yes/no accepts yes",
			questionID: "a",
			value:      "yes",
			want:       "yes",
		},
		{
			name:       "yes/no rejects other keys",
			questionID: "a",
			value:      "maybe",
			wantError:  true,
		},
		{
			name:       "single option accepts a known key",
			questionID: "b",
			value:      "permanent",
			want:       "permanent",
		},
		{
			name:       "single option rejects unknown key",
			questionID: "b",
			value:      "freelance",
			wantError:  true,
		},
		{
			name:       "single option rejects missing value",
			questionID: "b",
			value:      "",
			wantError:  true,
		},
		{
			name:       "multiple options accepts known keys",
			questionID: "b1",
			value:      []string{"bonus", "car"},
			want:       []string{"bonus", "car"},
		},
		{
			name:       "multiple options accepts []any",
			questionID: "b1",
			value:      []any{"bonus"},
			want:       []string{"bonus"},
		},
		{
			name:       "multiple options rejects empty selection",
			questionID: "b1",
			value:      []string{},
			wantError:  true,
		},
		{
			name:       "multiple options rejects unknown key",
			questionID: "b1",
			value:      []string{"bonus", "yacht"},
			wantError:  true,
		},
		{
			name:       "single line trims whitespace",
			questionID: "c",
			value:      "  Jane Doe  ",
			want:       "Jane Doe",
		},
		{
			name:       "single line rejects blank",
			questionID: "c",
			value:      "   ",
			wantError:  true,
		},
		{
			name:       "single line rejects non-string",
			questionID: "c",
			value:      42,
			wantError:  true,
		},
		{
			name:       "date accepts ISO form",
			questionID: "d",
			value:      "2021-07-17",
			want:       "2021-07-17",
		},
		{
			name:       "date rejects other forms",
			questionID: "d",
			value:      "17.07.2021",
			wantError:  true,
		},
		{
			name:       "multi line accepts text",
			questionID: "e",
			value:      "It happened on a Monday.",
			want:       "It happened on a Monday.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, ok := g.Question(tt.questionID)
			if !ok {
				t.Fatalf("fixture has no question %s", tt.questionID)
			}

			got, verr := validateAnswer(q, tt.value)

			if tt.wantError {
				if verr == nil {
					t.Fatalf("expected validation error, got value %v", got)
				}
				if verr.QuestionID != tt.questionID {
					t.Errorf("expected error bound to %s, got %s", tt.questionID, verr.QuestionID)
				}
				return
			}

			if verr != nil {
				t.Fatalf("unexpected validation error: %v", verr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("normalized value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
