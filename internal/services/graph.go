package services

import (
	"fmt"
	"sort"

	"github.com/mfellner/advicebuilder/internal/models"
)

// Questionaire is one ordered stage of a law case.
type Questionaire struct {
	ID             string
	Title          string
	SuccessMessage string
	Position       int
}

// Question is a node of the question graph. ParentID is empty for roots;
// Position orders a node among its siblings.
type Question struct {
	ID             string
	QuestionaireID string
	ParentID       string
	Position       int
	Text           string
	HelpText       string
	FieldType      models.FieldType
	Options        []models.Option
	Information    string
}

// OptionLabel resolves an option key to its authored label. Yes/no
// questions without an explicit option set fall back to the key itself.
func (q *Question) OptionLabel(key string) (string, bool) {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt.Label, true
		}
	}
	if q.FieldType == models.YesNo && (key == "yes" || key == "no") {
		return key, true
	}
	return "", false
}

// HasOption reports whether key is a valid answer for a choice question.
func (q *Question) HasOption(key string) bool {
	_, ok := q.OptionLabel(key)
	return ok
}

// Condition is a branching rule attached to its trigger question.
// IfValue is compared against the trigger question's answer; a match may
// redirect navigation to ThenQuestionID and/or attach Message.
type Condition struct {
	ID             string
	QuestionID     string
	IfValue        string
	ThenQuestionID string
	Message        string
}

// Graph is the read-only question tree of one law case: ordered
// questionaires, an arena of question nodes indexed by id, and the
// conditions per trigger question in authoring order.
//
// The default traversal is left-to-right depth-first pre-order over
// authored sibling order, crossing into the next questionaire's first
// question when a stage runs out.
type Graph struct {
	questionaires []Questionaire
	stageIndex    map[string]int
	questions     map[string]*Question
	children      map[string][]string
	roots         map[string][]string
	conditions    map[string][]Condition
}

// NewGraph builds a graph from authored rows. Sibling and stage order
// follow the authored positions. A question referencing an unknown parent
// or questionaire is a data error.
func NewGraph(questionaires []Questionaire, questions []Question, conditions []Condition) (*Graph, error) {
	g := &Graph{
		questionaires: append([]Questionaire(nil), questionaires...),
		stageIndex:    map[string]int{},
		questions:     map[string]*Question{},
		children:      map[string][]string{},
		roots:         map[string][]string{},
		conditions:    map[string][]Condition{},
	}

	sort.SliceStable(g.questionaires, func(i, j int) bool {
		return g.questionaires[i].Position < g.questionaires[j].Position
	})
	for i, qa := range g.questionaires {
		g.stageIndex[qa.ID] = i
	}

	for i := range questions {
		q := questions[i]
		if _, ok := g.stageIndex[q.QuestionaireID]; !ok {
			return nil, fmt.Errorf("question %s references unknown questionaire %s", q.ID, q.QuestionaireID)
		}
		if _, dup := g.questions[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s", q.ID)
		}
		g.questions[q.ID] = &q
	}

	for id, q := range g.questions {
		if q.ParentID == "" {
			g.roots[q.QuestionaireID] = append(g.roots[q.QuestionaireID], id)
			continue
		}
		if _, ok := g.questions[q.ParentID]; !ok {
			return nil, fmt.Errorf("question %s references unknown parent %s", id, q.ParentID)
		}
		g.children[q.ParentID] = append(g.children[q.ParentID], id)
	}

	byPosition := func(ids []string) {
		sort.SliceStable(ids, func(i, j int) bool {
			return g.questions[ids[i]].Position < g.questions[ids[j]].Position
		})
	}
	for _, ids := range g.roots {
		byPosition(ids)
	}
	for _, ids := range g.children {
		byPosition(ids)
	}

	for _, c := range conditions {
		g.conditions[c.QuestionID] = append(g.conditions[c.QuestionID], c)
	}

	return g, nil
}

// Question looks up a node by id.
func (g *Graph) Question(id string) (*Question, bool) {
	q, ok := g.questions[id]
	return q, ok
}

// Questions returns every node of the graph. Order is unspecified.
func (g *Graph) Questions() []*Question {
	out := make([]*Question, 0, len(g.questions))
	for _, q := range g.questions {
		out = append(out, q)
	}
	return out
}

// ConditionsFor returns the conditions attached to a question in
// authoring order.
func (g *Graph) ConditionsFor(questionID string) []Condition {
	return g.conditions[questionID]
}

// FirstQuestion returns the entry point of the whole sequence, nil when
// no questionaire has any questions.
func (g *Graph) FirstQuestion() *Question {
	for _, qa := range g.questionaires {
		if first := g.firstQuestionOf(qa.ID); first != nil {
			return first
		}
	}
	return nil
}

func (g *Graph) firstQuestionOf(questionaireID string) *Question {
	roots := g.roots[questionaireID]
	if len(roots) == 0 {
		return nil
	}
	return g.questions[roots[0]]
}

// LastQuestion returns the final node of a questionaire's pre-order
// traversal, nil when the stage is empty.
func (g *Graph) LastQuestion(questionaireID string) *Question {
	roots := g.roots[questionaireID]
	if len(roots) == 0 {
		return nil
	}
	cur := g.questions[roots[len(roots)-1]]
	for {
		kids := g.children[cur.ID]
		if len(kids) == 0 {
			return cur
		}
		cur = g.questions[kids[len(kids)-1]]
	}
}

// NextDefault returns the intrinsic successor of q: first child, else
// next sibling, else the nearest ancestor's next sibling, else the next
// questionaire's first question. Nil means end of sequence.
func (g *Graph) NextDefault(q *Question) *Question {
	if kids := g.children[q.ID]; len(kids) > 0 {
		return g.questions[kids[0]]
	}

	cur := q
	for {
		if sib := g.nextSibling(cur); sib != nil {
			return sib
		}
		if cur.ParentID == "" {
			break
		}
		cur = g.questions[cur.ParentID]
	}

	for i := g.stageIndex[q.QuestionaireID] + 1; i < len(g.questionaires); i++ {
		if first := g.firstQuestionOf(g.questionaires[i].ID); first != nil {
			return first
		}
	}
	return nil
}

func (g *Graph) nextSibling(q *Question) *Question {
	var siblings []string
	if q.ParentID == "" {
		siblings = g.roots[q.QuestionaireID]
	} else {
		siblings = g.children[q.ParentID]
	}
	for i, id := range siblings {
		if id == q.ID && i+1 < len(siblings) {
			return g.questions[siblings[i+1]]
		}
	}
	return nil
}

// Questionaire looks up a stage by id.
func (g *Graph) Questionaire(id string) (Questionaire, bool) {
	idx, ok := g.stageIndex[id]
	if !ok {
		return Questionaire{}, false
	}
	return g.questionaires[idx], true
}

// StageIndex returns the zero-based position of a questionaire within
// the sequence.
func (g *Graph) StageIndex(questionaireID string) (int, bool) {
	idx, ok := g.stageIndex[questionaireID]
	return idx, ok
}

// StageCount returns the number of questionaires.
func (g *Graph) StageCount() int {
	return len(g.questionaires)
}
