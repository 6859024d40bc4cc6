package services

import (
	"context"
	"fmt"

	"github.com/mfellner/advicebuilder/internal/models"
	"github.com/mfellner/advicebuilder/internal/pkg/logger"
	"github.com/mfellner/advicebuilder/internal/pkg/paginator"
	"github.com/mfellner/advicebuilder/internal/pkg/sanitize"
	"github.com/mfellner/advicebuilder/internal/pkg/store"
)

// PDFExporter turns a rendered document into a binary download.
type PDFExporter interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// RenderFunc produces a document from a completed answer mapping. The
// wizard binds it to the law case's template and graph.
type RenderFunc func(answers map[string]any) (string, error)

// AnswerService manages the durable records of completed traversals.
type AnswerService interface {
	// CreateFromDraft promotes a completed draft to a durable record.
	CreateFromDraft(ctx context.Context, lawCaseID int, creator string, answers map[string]any) (*models.AnswerRow, error)
	// Get loads one record.
	Get(ctx context.Context, id int) (*models.AnswerRow, error)
	// RenderedDocument returns the record's document, rendering and
	// storing it on first access. Once set it is never re-rendered.
	RenderedDocument(ctx context.Context, id int) (string, error)
	// UpdateRenderedDocument replaces the document with an author's
	// manual edit. The edit is sanitized before storage.
	UpdateRenderedDocument(ctx context.Context, id int, html string) (*models.AnswerRow, error)
	// List pages through the records of one law case, newest first.
	List(ctx context.Context, lawCaseID, page, limit int) (*paginator.PaginatedResponse[models.AnswerRow], error)
	// ExportPDF renders the record's document through the exporter.
	ExportPDF(ctx context.Context, id int) ([]byte, error)
}

type answerServiceImpl struct {
	datastore store.Datastorer[models.AnswerRow]
	pager     paginator.Paginator[models.AnswerRow]
	render    RenderFunc
	exporter  PDFExporter
	log       *logger.Logger
}

// NewAnswerService instantiates the AnswerService. exporter may be nil
// when PDF export is not configured.
func NewAnswerService(ds store.Datastorer[models.AnswerRow], render RenderFunc, exporter PDFExporter, log *logger.Logger) AnswerService {
	if log == nil {
		log = logger.Nop()
	}
	return &answerServiceImpl{
		datastore: ds,
		pager:     paginator.NewPaginator(ds),
		render:    render,
		exporter:  exporter,
		log:       log.With("service", "answers"),
	}
}

func (s *answerServiceImpl) CreateFromDraft(ctx context.Context, lawCaseID int, creator string, answers map[string]any) (*models.AnswerRow, error) {
	dto := models.AnswerDTO{
		LawCaseID: lawCaseID,
		Creator:   creator,
		Answers:   models.JSONMap(answers),
		ExtraInfo: models.JSONMap{},
	}

	created, err := s.datastore.Create(ctx, dto)
	if err != nil {
		return nil, err
	}

	row, ok := created.(*models.AnswerRow)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", created)
	}
	s.log.Info("answer record created", "id", row.ID, "law_case", lawCaseID)
	return row, nil
}

func (s *answerServiceImpl) Get(ctx context.Context, id int) (*models.AnswerRow, error) {
	query := `SELECT id, law_case_id, creator, answers, rendered_document,
		extra_info, external_id, created_at, updated_at
		FROM answers WHERE id=$1`
	return s.datastore.Get(ctx, query, id)
}

func (s *answerServiceImpl) RenderedDocument(ctx context.Context, id int) (string, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	if row.RenderedDocument != "" {
		return row.RenderedDocument, nil
	}

	rendered, err := s.render(map[string]any(row.Answers))
	if err != nil {
		return "", err
	}
	rendered = sanitize.HTMLField(rendered)

	// a legitimately empty document must still be written through, so
	// this bypasses Update's unset-field skip
	if _, err := s.datastore.UpdateColumns(ctx, id, map[string]any{"rendered_document": rendered}); err != nil {
		return "", err
	}
	return rendered, nil
}

func (s *answerServiceImpl) UpdateRenderedDocument(ctx context.Context, id int, html string) (*models.AnswerRow, error) {
	cleaned := sanitize.HTMLField(html)

	updated, err := s.datastore.UpdateColumns(ctx, id, map[string]any{"rendered_document": cleaned})
	if err != nil {
		return nil, err
	}

	row, ok := updated.(*models.AnswerRow)
	if !ok {
		return nil, fmt.Errorf("unexpected model type %T", updated)
	}
	return row, nil
}

func (s *answerServiceImpl) List(ctx context.Context, lawCaseID, page, limit int) (*paginator.PaginatedResponse[models.AnswerRow], error) {
	query := `SELECT id, law_case_id, creator, answers, rendered_document,
		extra_info, external_id, created_at, updated_at
		FROM answers WHERE law_case_id=$1 ORDER BY created_at DESC`
	return s.pager.PaginateQuery(ctx, query, []any{lawCaseID}, page, limit)
}

func (s *answerServiceImpl) ExportPDF(ctx context.Context, id int) ([]byte, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("no pdf exporter configured")
	}

	html, err := s.RenderedDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Render(ctx, html)
}
