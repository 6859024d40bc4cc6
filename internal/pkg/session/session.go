// Package session holds the per-traversal draft state of a form wizard.
//
// Drafts are keyed by an opaque prefix scoped to one session and law case,
// so distinct traversals never see each other's answers. A draft survives
// across requests until the wizard finishes or the caller resets it.
package session

import "context"

// Data is the draft stored for one traversal.
type Data struct {
	// Answers maps question id to the raw submitted value (string,
	// []string, or an ISO date string).
	Answers map[string]any `json:"answers"`
	// Order records the question ids in submission order.
	Order             []string `json:"order"`
	CurrentQuestionID string   `json:"current_question_id"`
	Completed         bool     `json:"completed"`
	// AnswerID links the draft to a persisted answer record, 0 if none.
	AnswerID int `json:"answer_id,omitempty"`
}

// NewData returns an empty draft.
func NewData() Data {
	return Data{Answers: map[string]any{}}
}

// Store persists drafts keyed by prefix.
type Store interface {
	Get(ctx context.Context, prefix string) (Data, error)
	Set(ctx context.Context, prefix string, data Data) error
	Reset(ctx context.Context, prefix string) error
}
