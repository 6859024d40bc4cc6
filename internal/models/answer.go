package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONMap is a structured blob column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", src)
	}
}

// AnswerRow is the durable record of one completed traversal.
// RenderedDocument is populated once, lazily, and only replaced when an
// author edits it explicitly.
type AnswerRow struct {
	ID               int       `db:"id" json:"id"`
	LawCaseID        int       `db:"law_case_id" json:"law_case_id"`
	Creator          string    `db:"creator" json:"creator"`
	Answers          JSONMap   `db:"answers" json:"answers"`
	RenderedDocument string    `db:"rendered_document" json:"rendered_document"`
	ExtraInfo        JSONMap   `db:"extra_info" json:"extra_info"`
	ExternalID       *int      `db:"external_id" json:"external_id"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

type AnswerDTO struct {
	LawCaseID        int     `db:"law_case_id"`
	Creator          string  `db:"creator"`
	Answers          JSONMap `db:"answers"`
	RenderedDocument string  `db:"rendered_document"`
	ExtraInfo        JSONMap `db:"extra_info"`
	ExternalID       *int    `db:"external_id"`
}

func (d AnswerDTO) ToModel(id int) any {
	return &AnswerRow{
		ID:               id,
		LawCaseID:        d.LawCaseID,
		Creator:          d.Creator,
		Answers:          d.Answers,
		RenderedDocument: d.RenderedDocument,
		ExtraInfo:        d.ExtraInfo,
		ExternalID:       d.ExternalID,
	}
}
