package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mfellner/advicebuilder/internal/pkg/logger"
	"github.com/mfellner/advicebuilder/internal/pkg/sanitize"
	"github.com/mfellner/advicebuilder/internal/pkg/session"
	"github.com/mfellner/advicebuilder/pkg/fault"
)

// LawCase is the read-only configuration the wizard runs against: the
// document template plus the flags controlling downloads and answer
// persistence.
type LawCase struct {
	ID                   int
	Title                string
	Template             string
	AllowDownload        bool
	AllowPartialDownload bool
	SaveAnswers          bool
}

// Progress locates the current step inside the questionaire sequence.
type Progress struct {
	StepIndex int `json:"step_index"`
	StepCount int `json:"step_count"`
}

// StepResult is what the wizard hands back after every navigation call.
// Done means the sequence finished; otherwise Question is the node to
// present next. Message carries a matched condition's message, Validation
// the recovered input error for re-presenting the same question.
type StepResult struct {
	Question       *Question
	Message        string
	Validation     *fault.ValidationError
	Progress       Progress
	Done           bool
	SuccessMessage string
}

// DownloadResult is the artifact query: the accumulated answers in
// submission order plus the rendered document.
type DownloadResult struct {
	Answers          map[string]any
	Order            []string
	RenderedDocument string
}

// WizardService walks one session through a law case's question graph.
// All state lives in the session store under the caller's prefix; the
// service itself is stateless and safe for concurrent sessions.
type WizardService interface {
	// Start clears the draft and presents the first question. Restart is
	// destructive and idempotent.
	Start(ctx context.Context, prefix string) (*StepResult, error)
	// Current re-presents the question the session is waiting on without
	// mutating anything.
	Current(ctx context.Context, prefix string) (*StepResult, error)
	// SubmitAnswer validates and records value for the current question,
	// then advances along the graph. Shape errors are recovered into the
	// returned StepResult; a stale question id is rejected with
	// fault.ErrStaleStep and leaves the draft untouched.
	SubmitAnswer(ctx context.Context, prefix, questionID string, value any) (*StepResult, error)
	// GoTo repositions the wizard on a previously visited question. It
	// bypasses validation and evaluation and never touches answers.
	GoTo(ctx context.Context, prefix, questionID string) (*StepResult, error)
	// Download reads the accumulated answers and the rendered document.
	// It is a query, valid once completed or at any time when the law
	// case permits partial downloads.
	Download(ctx context.Context, prefix string) (*DownloadResult, error)
	// BindAnswer attaches a persisted answer record to the session so
	// Download serves that record's document.
	BindAnswer(ctx context.Context, prefix string, answerID int) error
}

type wizardServiceImpl struct {
	lawCase   LawCase
	graph     *Graph
	evaluator *ConditionEvaluator
	sessions  session.Store
	answers   AnswerService
	log       *logger.Logger
}

// NewWizardService wires a wizard for one law case. answers may be nil
// when completed traversals are not persisted.
func NewWizardService(lawCase LawCase, graph *Graph, sessions session.Store, answers AnswerService, log *logger.Logger) WizardService {
	if log == nil {
		log = logger.Nop()
	}
	return &wizardServiceImpl{
		lawCase:   lawCase,
		graph:     graph,
		evaluator: NewConditionEvaluator(graph, log),
		sessions:  sessions,
		answers:   answers,
		log:       log.With("law_case", lawCase.ID),
	}
}

func (s *wizardServiceImpl) Start(ctx context.Context, prefix string) (*StepResult, error) {
	if err := s.sessions.Reset(ctx, prefix); err != nil {
		return nil, fault.NewInternalError("reset session draft", err)
	}

	first := s.graph.FirstQuestion()
	if first == nil {
		return nil, fault.NewClientError("law case has no questions", fault.ErrNotFound)
	}

	data := session.NewData()
	data.CurrentQuestionID = first.ID
	if err := s.sessions.Set(ctx, prefix, data); err != nil {
		return nil, fault.NewInternalError("store session draft", err)
	}

	return s.stepFor(first, "", nil), nil
}

func (s *wizardServiceImpl) Current(ctx context.Context, prefix string) (*StepResult, error) {
	data, err := s.sessions.Get(ctx, prefix)
	if err != nil {
		return nil, fault.NewInternalError("read session draft", err)
	}

	if data.Completed {
		return s.completedStep(), nil
	}

	q, err := s.currentQuestion(data)
	if err != nil {
		return nil, err
	}
	return s.stepFor(q, "", nil), nil
}

func (s *wizardServiceImpl) SubmitAnswer(ctx context.Context, prefix, questionID string, value any) (*StepResult, error) {
	data, err := s.sessions.Get(ctx, prefix)
	if err != nil {
		return nil, fault.NewInternalError("read session draft", err)
	}

	if data.Completed {
		return nil, fault.NewClientError("sequence already completed", fault.ErrStaleStep)
	}

	current, err := s.currentQuestion(data)
	if err != nil {
		return nil, err
	}
	if current.ID != questionID {
		return nil, fault.NewClientError(
			fmt.Sprintf("expected answer for question %s, got %s", current.ID, questionID),
			fault.ErrStaleStep)
	}

	normalized, verr := validateAnswer(current, value)
	if verr != nil {
		// recovered locally: same question again, error attached
		return s.stepFor(current, "", verr), nil
	}

	if data.Answers == nil {
		data.Answers = map[string]any{}
	}
	if _, seen := data.Answers[current.ID]; !seen {
		data.Order = append(data.Order, current.ID)
	}
	data.Answers[current.ID] = normalized

	outcome := s.evaluator.Evaluate(current, normalized)

	if outcome.End {
		return s.complete(ctx, prefix, data, current, outcome)
	}

	next, ok := s.graph.Question(outcome.NextID)
	if !ok {
		return nil, fault.NewInternalError("evaluator produced unknown question "+outcome.NextID, fault.ErrNotFound)
	}

	data.CurrentQuestionID = next.ID
	if err := s.sessions.Set(ctx, prefix, data); err != nil {
		return nil, fault.NewInternalError("store session draft", err)
	}

	return s.stepFor(next, outcome.Message, nil), nil
}

func (s *wizardServiceImpl) complete(ctx context.Context, prefix string, data session.Data, last *Question, outcome Outcome) (*StepResult, error) {
	data.Completed = true
	data.CurrentQuestionID = ""

	if s.lawCase.SaveAnswers && s.answers != nil && data.AnswerID == 0 {
		record, err := s.answers.CreateFromDraft(ctx, s.lawCase.ID, "", copyAnswers(data.Answers))
		if err != nil {
			return nil, fault.NewInternalError("persist completed answers", err)
		}
		data.AnswerID = record.ID
	}

	if err := s.sessions.Set(ctx, prefix, data); err != nil {
		return nil, fault.NewInternalError("store session draft", err)
	}

	s.log.Info("sequence completed", "answers", len(data.Answers), "record", data.AnswerID)

	result := s.completedStep()
	result.Message = outcome.Message
	if qa, ok := s.graph.Questionaire(last.QuestionaireID); ok {
		result.SuccessMessage = qa.SuccessMessage
	}
	return result, nil
}

func (s *wizardServiceImpl) GoTo(ctx context.Context, prefix, questionID string) (*StepResult, error) {
	q, ok := s.graph.Question(questionID)
	if !ok {
		return nil, fault.NewClientError("question "+questionID, fault.ErrNotFound)
	}

	data, err := s.sessions.Get(ctx, prefix)
	if err != nil {
		return nil, fault.NewInternalError("read session draft", err)
	}

	data.Completed = false
	data.CurrentQuestionID = q.ID
	if err := s.sessions.Set(ctx, prefix, data); err != nil {
		return nil, fault.NewInternalError("store session draft", err)
	}

	return s.stepFor(q, "", nil), nil
}

func (s *wizardServiceImpl) Download(ctx context.Context, prefix string) (*DownloadResult, error) {
	if !s.lawCase.AllowDownload {
		return nil, fault.NewClientError("law case does not allow downloads", fault.ErrDownloadNotAllowed)
	}

	data, err := s.sessions.Get(ctx, prefix)
	if err != nil {
		return nil, fault.NewInternalError("read session draft", err)
	}

	if !data.Completed && !s.lawCase.AllowPartialDownload {
		return nil, fault.NewClientError("sequence not completed", fault.ErrDownloadNotAllowed)
	}

	result := &DownloadResult{
		Answers: copyAnswers(data.Answers),
		Order:   append([]string(nil), data.Order...),
	}

	if data.AnswerID != 0 && s.answers != nil {
		rendered, err := s.answers.RenderedDocument(ctx, data.AnswerID)
		if err != nil {
			return nil, err
		}
		result.RenderedDocument = rendered
		return result, nil
	}

	rendered, err := RenderDocument(s.lawCase.Template, s.graph, result.Answers)
	if err != nil {
		return nil, fault.NewInternalError("render document", err)
	}
	result.RenderedDocument = sanitize.HTMLField(rendered)
	return result, nil
}

func (s *wizardServiceImpl) BindAnswer(ctx context.Context, prefix string, answerID int) error {
	if s.answers == nil {
		return fault.NewClientError("answer records are not enabled", fault.ErrNotFound)
	}
	if _, err := s.answers.Get(ctx, answerID); err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			return fault.NewClientError(fmt.Sprintf("answer record %d", answerID), fault.ErrNotFound)
		}
		return err
	}

	data, err := s.sessions.Get(ctx, prefix)
	if err != nil {
		return fault.NewInternalError("read session draft", err)
	}

	data.AnswerID = answerID
	if err := s.sessions.Set(ctx, prefix, data); err != nil {
		return fault.NewInternalError("store session draft", err)
	}
	return nil
}

// currentQuestion resolves the draft's position, falling back to the
// first question for a fresh draft.
func (s *wizardServiceImpl) currentQuestion(data session.Data) (*Question, error) {
	if data.CurrentQuestionID == "" {
		first := s.graph.FirstQuestion()
		if first == nil {
			return nil, fault.NewClientError("law case has no questions", fault.ErrNotFound)
		}
		return first, nil
	}

	q, ok := s.graph.Question(data.CurrentQuestionID)
	if !ok {
		return nil, fault.NewInternalError("draft points at unknown question "+data.CurrentQuestionID, fault.ErrNotFound)
	}
	return q, nil
}

func (s *wizardServiceImpl) stepFor(q *Question, message string, verr *fault.ValidationError) *StepResult {
	idx, _ := s.graph.StageIndex(q.QuestionaireID)
	return &StepResult{
		Question:   q,
		Message:    message,
		Validation: verr,
		Progress:   Progress{StepIndex: idx, StepCount: s.graph.StageCount()},
	}
}

func (s *wizardServiceImpl) completedStep() *StepResult {
	count := s.graph.StageCount()
	return &StepResult{
		Done:     true,
		Progress: Progress{StepIndex: count, StepCount: count},
	}
}

func copyAnswers(answers map[string]any) map[string]any {
	out := make(map[string]any, len(answers))
	for id, value := range answers {
		out[id] = value
	}
	return out
}
