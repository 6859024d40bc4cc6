package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mfellner/advicebuilder/internal/models"
	"github.com/mfellner/advicebuilder/internal/pkg/logger"
	"github.com/mfellner/advicebuilder/internal/pkg/store"
	"github.com/mfellner/advicebuilder/pkg/fault"
)

// ConditionInput is one authored condition in a replacement set.
type ConditionInput struct {
	IfValue        string
	ThenQuestionID *int
	Message        string
}

// AuthoringService maintains the persisted question graph and loads it
// into the engine's in-memory form. It is the write side the wizard never
// touches: authoring edits become visible to a session only when its
// graph is (re)loaded.
type AuthoringService interface {
	// CreateQuestionaire appends a stage at the end of a law case.
	CreateQuestionaire(ctx context.Context, lawCaseID int, title, successMessage string) (*models.QuestionaireRow, error)
	// AppendQuestion attaches a new question as child of the stage's
	// last question, or as root when the stage is empty.
	AppendQuestion(ctx context.Context, questionaireID int, text string, fieldType models.FieldType) (*models.QuestionRow, error)
	// InsertQuestion places a question at an explicit parent and sibling
	// position, shifting only the affected sibling set.
	InsertQuestion(ctx context.Context, questionaireID int, parentID *int, position int, text string, fieldType models.FieldType) (*models.QuestionRow, error)
	// UpdateQuestion saves an edit and prunes conditions whose
	// comparison target is no longer an option key.
	UpdateQuestion(ctx context.Context, id int, dto models.QuestionDTO) (*models.QuestionRow, error)
	// ReplaceConditions swaps a question's whole condition set:
	// delete-all-then-recreate, never a patch. Jump targets that do not
	// resolve are stored as message-only conditions.
	ReplaceConditions(ctx context.Context, questionID int, inputs []ConditionInput) ([]models.ConditionRow, error)
	// LoadGraph builds the engine graph for one law case.
	LoadGraph(ctx context.Context, lawCaseID int) (*Graph, error)
	// LoadLawCase builds the wizard's law case view, template included.
	LoadLawCase(ctx context.Context, lawCaseID int) (*LawCase, error)
}

type authoringServiceImpl struct {
	lawCases      store.Datastorer[models.LawCaseRow]
	documents     store.Datastorer[models.DocumentRow]
	questionaires store.Datastorer[models.QuestionaireRow]
	questions     store.Datastorer[models.QuestionRow]
	conditions    store.Datastorer[models.ConditionRow]
	log           *logger.Logger
}

func NewAuthoringService(
	lawCases store.Datastorer[models.LawCaseRow],
	documents store.Datastorer[models.DocumentRow],
	questionaires store.Datastorer[models.QuestionaireRow],
	questions store.Datastorer[models.QuestionRow],
	conditions store.Datastorer[models.ConditionRow],
	log *logger.Logger,
) AuthoringService {
	if log == nil {
		log = logger.Nop()
	}
	return &authoringServiceImpl{
		lawCases:      lawCases,
		documents:     documents,
		questionaires: questionaires,
		questions:     questions,
		conditions:    conditions,
		log:           log.With("service", "authoring"),
	}
}

func (s *authoringServiceImpl) CreateQuestionaire(ctx context.Context, lawCaseID int, title, successMessage string) (*models.QuestionaireRow, error) {
	position, err := nextPosition(ctx, s.questionaires,
		"SELECT COALESCE(MAX(position)+1, 0) FROM questionaires WHERE law_case_id=$1", lawCaseID)
	if err != nil {
		return nil, err
	}

	created, err := s.questionaires.Create(ctx, models.QuestionaireDTO{
		LawCaseID:      lawCaseID,
		Position:       position,
		Title:          title,
		SuccessMessage: successMessage,
	})
	if err != nil {
		return nil, err
	}
	return asRow[models.QuestionaireRow](created)
}

func (s *authoringServiceImpl) AppendQuestion(ctx context.Context, questionaireID int, text string, fieldType models.FieldType) (*models.QuestionRow, error) {
	stage, err := s.questionaires.Get(ctx,
		"SELECT id, law_case_id, position, title, success_message FROM questionaires WHERE id=$1", questionaireID)
	if err != nil {
		return nil, err
	}

	graph, err := s.LoadGraph(ctx, stage.LawCaseID)
	if err != nil {
		return nil, err
	}

	dto := models.QuestionDTO{
		QuestionaireID: questionaireID,
		Text:           text,
		FieldType:      fieldType,
		Options:        models.OptionList{},
	}

	if last := graph.LastQuestion(strconv.Itoa(questionaireID)); last != nil {
		parentID, err := strconv.Atoi(last.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed question id %q: %w", last.ID, err)
		}
		dto.ParentID = &parentID
		position, err := nextPosition(ctx, s.questions,
			"SELECT COALESCE(MAX(position)+1, 0) FROM questions WHERE parent_id=$1", parentID)
		if err != nil {
			return nil, err
		}
		dto.Position = position
	}

	created, err := s.questions.Create(ctx, dto)
	if err != nil {
		return nil, err
	}
	return asRow[models.QuestionRow](created)
}

func (s *authoringServiceImpl) InsertQuestion(ctx context.Context, questionaireID int, parentID *int, position int, text string, fieldType models.FieldType) (*models.QuestionRow, error) {
	// shift only the affected sibling set; other subtrees keep their
	// ordinals untouched
	var err error
	if parentID == nil {
		_, err = s.questions.Base().ExecContext(ctx,
			"UPDATE questions SET position = position + 1 WHERE questionaire_id=$1 AND parent_id IS NULL AND position >= $2",
			questionaireID, position)
	} else {
		_, err = s.questions.Base().ExecContext(ctx,
			"UPDATE questions SET position = position + 1 WHERE parent_id=$1 AND position >= $2",
			*parentID, position)
	}
	if err != nil {
		return nil, err
	}

	created, err := s.questions.Create(ctx, models.QuestionDTO{
		QuestionaireID: questionaireID,
		ParentID:       parentID,
		Position:       position,
		Text:           text,
		FieldType:      fieldType,
		Options:        models.OptionList{},
	})
	if err != nil {
		return nil, err
	}
	return asRow[models.QuestionRow](created)
}

func (s *authoringServiceImpl) UpdateQuestion(ctx context.Context, id int, dto models.QuestionDTO) (*models.QuestionRow, error) {
	updated, err := s.questions.Update(ctx, id, dto)
	if err != nil {
		return nil, err
	}
	row, err := asRow[models.QuestionRow](updated)
	if err != nil {
		return nil, err
	}

	if err := s.cleanUpConditions(ctx, id, row.Options); err != nil {
		return nil, err
	}
	return row, nil
}

// cleanUpConditions deletes conditions whose comparison target vanished
// from the question's option set.
func (s *authoringServiceImpl) cleanUpConditions(ctx context.Context, questionID int, options models.OptionList) error {
	conds, err := s.conditions.Select(ctx,
		"SELECT id, question_id, position, if_value, then_question_id, message FROM conditions WHERE question_id=$1 ORDER BY position",
		questionID)
	if err != nil {
		return err
	}

	for _, id := range staleConditionIDs(conds, options) {
		if err := s.conditions.Delete(ctx, id); err != nil {
			return err
		}
		s.log.Warn("removed condition with stale option target", "question", questionID, "condition", id)
	}
	return nil
}

// staleConditionIDs picks the conditions whose IfValue is no longer one
// of the question's option keys.
func staleConditionIDs(conds []models.ConditionRow, options models.OptionList) []int {
	keys := map[string]bool{}
	for _, opt := range options {
		keys[opt.Key] = true
	}

	var stale []int
	for _, cond := range conds {
		if !keys[cond.IfValue] {
			stale = append(stale, cond.ID)
		}
	}
	return stale
}

func (s *authoringServiceImpl) ReplaceConditions(ctx context.Context, questionID int, inputs []ConditionInput) ([]models.ConditionRow, error) {
	if err := s.conditions.DeleteWhere(ctx, "question_id", questionID); err != nil {
		return nil, err
	}

	out := make([]models.ConditionRow, 0, len(inputs))
	for i, input := range inputs {
		target := input.ThenQuestionID
		if target != nil {
			_, err := s.questions.Get(ctx,
				"SELECT id, questionaire_id, parent_id, position, text, help_text, field_type, options, information FROM questions WHERE id=$1",
				*target)
			if errors.Is(err, fault.ErrNotFound) {
				s.log.Warn("condition target does not exist, storing message-only",
					"question", questionID, "target", *target)
				target = nil
			} else if err != nil {
				return nil, err
			}
		}

		created, err := s.conditions.Create(ctx, models.ConditionDTO{
			QuestionID:     questionID,
			Position:       i,
			IfValue:        input.IfValue,
			ThenQuestionID: target,
			Message:        input.Message,
		})
		if err != nil {
			return nil, err
		}
		row, err := asRow[models.ConditionRow](created)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
	}
	return out, nil
}

func (s *authoringServiceImpl) LoadGraph(ctx context.Context, lawCaseID int) (*Graph, error) {
	stages, err := s.questionaires.Select(ctx,
		"SELECT id, law_case_id, position, title, success_message FROM questionaires WHERE law_case_id=$1 ORDER BY position",
		lawCaseID)
	if err != nil {
		return nil, err
	}

	questionRows, err := s.questions.Select(ctx,
		`SELECT q.id, q.questionaire_id, q.parent_id, q.position, q.text, q.help_text,
			q.field_type, q.options, q.information
		FROM questions q
		JOIN questionaires qa ON q.questionaire_id = qa.id
		WHERE qa.law_case_id=$1`,
		lawCaseID)
	if err != nil {
		return nil, err
	}

	conditionRows, err := s.conditions.Select(ctx,
		`SELECT c.id, c.question_id, c.position, c.if_value, c.then_question_id, c.message
		FROM conditions c
		JOIN questions q ON c.question_id = q.id
		JOIN questionaires qa ON q.questionaire_id = qa.id
		WHERE qa.law_case_id=$1
		ORDER BY c.question_id, c.position`,
		lawCaseID)
	if err != nil {
		return nil, err
	}

	return buildGraph(stages, questionRows, conditionRows)
}

// buildGraph converts persisted rows into the engine's graph form.
func buildGraph(stages []models.QuestionaireRow, questionRows []models.QuestionRow, conditionRows []models.ConditionRow) (*Graph, error) {
	questionaires := make([]Questionaire, 0, len(stages))
	for _, row := range stages {
		questionaires = append(questionaires, Questionaire{
			ID:             strconv.Itoa(row.ID),
			Title:          row.Title,
			SuccessMessage: row.SuccessMessage,
			Position:       row.Position,
		})
	}

	questions := make([]Question, 0, len(questionRows))
	for _, row := range questionRows {
		parent := ""
		if row.ParentID != nil {
			parent = strconv.Itoa(*row.ParentID)
		}
		questions = append(questions, Question{
			ID:             strconv.Itoa(row.ID),
			QuestionaireID: strconv.Itoa(row.QuestionaireID),
			ParentID:       parent,
			Position:       row.Position,
			Text:           row.Text,
			HelpText:       row.HelpText,
			FieldType:      row.FieldType,
			Options:        row.Options,
			Information:    row.Information,
		})
	}

	conditions := make([]Condition, 0, len(conditionRows))
	for _, row := range conditionRows {
		target := ""
		if row.ThenQuestionID != nil {
			target = strconv.Itoa(*row.ThenQuestionID)
		}
		conditions = append(conditions, Condition{
			ID:             strconv.Itoa(row.ID),
			QuestionID:     strconv.Itoa(row.QuestionID),
			IfValue:        row.IfValue,
			ThenQuestionID: target,
			Message:        row.Message,
		})
	}

	return NewGraph(questionaires, questions, conditions)
}

func (s *authoringServiceImpl) LoadLawCase(ctx context.Context, lawCaseID int) (*LawCase, error) {
	row, err := s.lawCases.Get(ctx,
		"SELECT id, title, description, allow_download, allow_partial_download, save_answers, document_id FROM law_cases WHERE id=$1",
		lawCaseID)
	if err != nil {
		return nil, err
	}

	lawCase := &LawCase{
		ID:                   row.ID,
		Title:                row.Title,
		AllowDownload:        row.AllowDownload,
		AllowPartialDownload: row.AllowPartialDownload,
		SaveAnswers:          row.SaveAnswers,
	}

	if row.DocumentID != nil {
		doc, err := s.documents.Get(ctx,
			"SELECT id, document_type_id, name, template, sample_answers FROM documents WHERE id=$1",
			*row.DocumentID)
		if err != nil {
			return nil, err
		}
		lawCase.Template = doc.Template
	}

	return lawCase, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
}

func nextPosition(ctx context.Context, q rowQuerier, query string, args ...any) (int, error) {
	raw, err := q.QueryRow(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	switch v := raw.(type) {
	case int64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("expected int position, got %T", raw)
	}
}

func asRow[T any](model any) (*T, error) {
	row, ok := model.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", model)
	}
	return row, nil
}
