package services

import (
	"errors"
	"strconv"

	"github.com/expr-lang/expr"

	"github.com/mfellner/advicebuilder/internal/models"
	"github.com/mfellner/advicebuilder/internal/pkg/logger"
)

// Outcome is the result of evaluating one answered question: the next
// question to present (End when the sequence is finished) and an optional
// message to surface alongside it.
type Outcome struct {
	NextID  string
	End     bool
	Message string
}

// ConditionEvaluator resolves the conditions of an answered question
// against the value just given. Conditions are checked in authoring
// order and the first match wins.
type ConditionEvaluator struct {
	graph *Graph
	log   *logger.Logger
}

func NewConditionEvaluator(graph *Graph, log *logger.Logger) *ConditionEvaluator {
	if log == nil {
		log = logger.Nop()
	}
	return &ConditionEvaluator{graph: graph, log: log}
}

// Evaluate returns the navigation outcome for question q answered with
// value. A matching condition's jump target overrides the intrinsic tree
// successor; its message rides along either way. Without a match the
// default successor is used and no message is attached.
func (e *ConditionEvaluator) Evaluate(q *Question, value any) Outcome {
	for _, cond := range e.graph.ConditionsFor(q.ID) {
		match, err := e.matches(q, cond, value)
		if err != nil {
			e.log.Warn("condition evaluation failed",
				"question", q.ID, "condition", cond.ID, "error", err)
			continue
		}
		if !match {
			continue
		}

		next := e.jumpTarget(q, cond)
		if next == nil {
			next = e.graph.NextDefault(q)
		}
		if next == nil {
			return Outcome{End: true, Message: cond.Message}
		}
		return Outcome{NextID: next.ID, Message: cond.Message}
	}

	next := e.graph.NextDefault(q)
	if next == nil {
		return Outcome{End: true}
	}
	return Outcome{NextID: next.ID}
}

// jumpTarget resolves a condition's target question. A target that no
// longer exists degrades the condition to message-only.
func (e *ConditionEvaluator) jumpTarget(q *Question, cond Condition) *Question {
	if cond.ThenQuestionID == "" {
		return nil
	}
	target, ok := e.graph.Question(cond.ThenQuestionID)
	if !ok {
		e.log.Warn("condition references missing target question",
			"question", q.ID, "condition", cond.ID, "target", cond.ThenQuestionID)
		return nil
	}
	return target
}

// matches compiles the condition's comparison into an expression over the
// answer value and runs it. Discrete choice answers compare for key
// equality; multiple-option answers check set membership. Free-text and
// date questions have no defined comparison and never match.
func (e *ConditionEvaluator) matches(q *Question, cond Condition, value any) (bool, error) {
	var src string

	switch q.FieldType {
	case models.SingleOption, models.YesNo:
		src = "answer == " + strconv.Quote(cond.IfValue)
	case models.MultipleOptions:
		src = strconv.Quote(cond.IfValue) + " in answer"
	default:
		e.log.Warn("condition attached to question without discrete answers",
			"question", q.ID, "condition", cond.ID, "field_type", q.FieldType.String())
		return false, nil
	}

	env := map[string]any{"answer": value}

	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}

	result, ok := output.(bool)
	if !ok {
		return false, errors.New("expression did not return a boolean")
	}

	return result, nil
}
