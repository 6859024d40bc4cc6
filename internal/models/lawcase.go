package models

type LawCaseRow struct {
	ID                   int    `db:"id" json:"id"`
	Title                string `db:"title" json:"title"`
	Description          string `db:"description" json:"description"`
	AllowDownload        bool   `db:"allow_download" json:"allow_download"`
	AllowPartialDownload bool   `db:"allow_partial_download" json:"allow_partial_download"`
	SaveAnswers          bool   `db:"save_answers" json:"save_answers"`
	DocumentID           *int   `db:"document_id" json:"document_id"`
}

type LawCaseDTO struct {
	Title                string `db:"title"`
	Description          string `db:"description"`
	AllowDownload        bool   `db:"allow_download"`
	AllowPartialDownload bool   `db:"allow_partial_download"`
	SaveAnswers          bool   `db:"save_answers"`
	DocumentID           *int   `db:"document_id"`
}

func (d LawCaseDTO) ToModel(id int) any {
	return &LawCaseRow{
		ID:                   id,
		Title:                d.Title,
		Description:          d.Description,
		AllowDownload:        d.AllowDownload,
		AllowPartialDownload: d.AllowPartialDownload,
		SaveAnswers:          d.SaveAnswers,
		DocumentID:           d.DocumentID,
	}
}

type DocumentTypeRow struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DocumentRow holds the law case's template. SampleAnswers feeds the
// authoring preview and is never read by the wizard.
type DocumentRow struct {
	ID             int     `db:"id" json:"id"`
	DocumentTypeID *int    `db:"document_type_id" json:"document_type_id"`
	Name           string  `db:"name" json:"name"`
	Template       string  `db:"template" json:"template"`
	SampleAnswers  JSONMap `db:"sample_answers" json:"sample_answers"`
}

type DocumentDTO struct {
	DocumentTypeID *int    `db:"document_type_id"`
	Name           string  `db:"name"`
	Template       string  `db:"template"`
	SampleAnswers  JSONMap `db:"sample_answers"`
}

func (d DocumentDTO) ToModel(id int) any {
	return &DocumentRow{
		ID:             id,
		DocumentTypeID: d.DocumentTypeID,
		Name:           d.Name,
		Template:       d.Template,
		SampleAnswers:  d.SampleAnswers,
	}
}

// QuestionaireRow is one ordered stage of a law case.
type QuestionaireRow struct {
	ID             int    `db:"id" json:"id"`
	LawCaseID      int    `db:"law_case_id" json:"law_case_id"`
	Position       int    `db:"position" json:"position"`
	Title          string `db:"title" json:"title"`
	SuccessMessage string `db:"success_message" json:"success_message"`
}

type QuestionaireDTO struct {
	LawCaseID      int    `db:"law_case_id"`
	Position       int    `db:"position"`
	Title          string `db:"title"`
	SuccessMessage string `db:"success_message"`
}

func (d QuestionaireDTO) ToModel(id int) any {
	return &QuestionaireRow{
		ID:             id,
		LawCaseID:      d.LawCaseID,
		Position:       d.Position,
		Title:          d.Title,
		SuccessMessage: d.SuccessMessage,
	}
}
