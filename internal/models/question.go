package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// FieldType is the closed set of answer shapes a question can take.
type FieldType int

const (
	SingleOption FieldType = iota + 1
	YesNo
	MultipleOptions
	SingleLine
	MultiLine
	Date
)

func (t FieldType) String() string {
	switch t {
	case SingleOption:
		return "single_option"
	case YesNo:
		return "yes_no"
	case MultipleOptions:
		return "multiple_options"
	case SingleLine:
		return "single_line"
	case MultiLine:
		return "multi_line"
	case Date:
		return "date"
	default:
		return fmt.Sprintf("field_type(%d)", int(t))
	}
}

// IsChoice reports whether answers are option keys.
func (t FieldType) IsChoice() bool {
	return t == SingleOption || t == YesNo || t == MultipleOptions
}

// Option is one entry of a question's ordered option mapping.
type Option struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// OptionList preserves the authored option order. Stored as a JSON column.
type OptionList []Option

func (l OptionList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *OptionList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into OptionList", src)
	}
}

type QuestionRow struct {
	ID             int        `db:"id" json:"id"`
	QuestionaireID int        `db:"questionaire_id" json:"questionaire_id"`
	ParentID       *int       `db:"parent_id" json:"parent_id"`
	Position       int        `db:"position" json:"position"`
	Text           string     `db:"text" json:"text"`
	HelpText       string     `db:"help_text" json:"help_text"`
	FieldType      FieldType  `db:"field_type" json:"field_type"`
	Options        OptionList `db:"options" json:"options"`
	Information    string     `db:"information" json:"information"`
}

type QuestionDTO struct {
	QuestionaireID int        `db:"questionaire_id"`
	ParentID       *int       `db:"parent_id"`
	Position       int        `db:"position"`
	Text           string     `db:"text"`
	HelpText       string     `db:"help_text"`
	FieldType      FieldType  `db:"field_type"`
	Options        OptionList `db:"options"`
	Information    string     `db:"information"`
}

func (d QuestionDTO) ToModel(id int) any {
	return &QuestionRow{
		ID:             id,
		QuestionaireID: d.QuestionaireID,
		ParentID:       d.ParentID,
		Position:       d.Position,
		Text:           d.Text,
		HelpText:       d.HelpText,
		FieldType:      d.FieldType,
		Options:        d.Options,
		Information:    d.Information,
	}
}

// ConditionRow is one branching rule attached to a question. Position is
// the authoring order; evaluation short-circuits on the first match.
type ConditionRow struct {
	ID             int    `db:"id" json:"id"`
	QuestionID     int    `db:"question_id" json:"question_id"`
	Position       int    `db:"position" json:"position"`
	IfValue        string `db:"if_value" json:"if_value"`
	ThenQuestionID *int   `db:"then_question_id" json:"then_question_id"`
	Message        string `db:"message" json:"message"`
}

type ConditionDTO struct {
	QuestionID     int    `db:"question_id"`
	Position       int    `db:"position"`
	IfValue        string `db:"if_value"`
	ThenQuestionID *int   `db:"then_question_id"`
	Message        string `db:"message"`
}

func (d ConditionDTO) ToModel(id int) any {
	return &ConditionRow{
		ID:             id,
		QuestionID:     d.QuestionID,
		Position:       d.Position,
		IfValue:        d.IfValue,
		ThenQuestionID: d.ThenQuestionID,
		Message:        d.Message,
	}
}
