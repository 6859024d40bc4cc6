package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mfellner/advicebuilder/internal/models"
	"github.com/mfellner/advicebuilder/internal/pkg/paginator"
	"github.com/mfellner/advicebuilder/internal/pkg/session"
	"github.com/mfellner/advicebuilder/pkg/fault"
)

const testTemplate = `<p>Name: {{ c }}</p>{% if answers.a == "yes" %}<p>Currently employed ({{ b }}).</p>{% endif %}<p>Incident: {{ d }}</p>`

func newTestWizard(t *testing.T, lawCase LawCase, answers AnswerService, conditions ...Condition) (WizardService, session.Store) {
	t.Helper()

	g := newTestGraph(t, conditions...)
	sessions := session.NewMemoryStore(time.Hour)
	return NewWizardService(lawCase, g, sessions, answers, nil), sessions
}

func permissiveLawCase() LawCase {
	return LawCase{
		ID:            1,
		Title:         "Employment dispute",
		Template:      testTemplate,
		AllowDownload: true,
	}
}

func TestStartPresentsFirstQuestion(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil)

	step, err := svc.Start(context.Background(), "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Question == nil || step.Question.ID != "a" {
		t.Fatalf("expected first question a, got %+v", step.Question)
	}
	if step.Progress.StepIndex != 0 || step.Progress.StepCount != 2 {
		t.Errorf("expected progress 0/2, got %+v", step.Progress)
	}
}

func TestSubmitAnswerAdvancesAlongTree(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step, err := svc.SubmitAnswer(ctx, "sess1", "a", "yes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Question == nil || step.Question.ID != "b" {
		t.Errorf("expected next question b, got %+v", step.Question)
	}
}

func TestSubmitAnswerConditionSkipsSubtree(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil, Condition{
		ID: "c1", QuestionID: "a", IfValue: "no", ThenQuestionID: "c",
		Message: "Employment questions skipped.",
	})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step, err := svc.SubmitAnswer(ctx, "sess1", "a", "no")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Question == nil || step.Question.ID != "c" {
		t.Errorf("expected jump to c, got %+v", step.Question)
	}
	if step.Message != "Employment questions skipped." {
		t.Errorf("expected condition message, got %q", step.Message)
	}
}

func TestSubmitStaleStepRejected(t *testing.T) {
	svc, sessions := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.SubmitAnswer(ctx, "sess1", "c", "Jane Doe")
	if !errors.Is(err, fault.ErrStaleStep) {
		t.Fatalf("expected stale step error, got %v", err)
	}

	// draft must be untouched
	data, _ := sessions.Get(ctx, "sess1")
	if len(data.Answers) != 0 {
		t.Errorf("expected empty answers after rejection, got %v", data.Answers)
	}
	if data.CurrentQuestionID != "a" {
		t.Errorf("expected current question a after rejection, got %q", data.CurrentQuestionID)
	}
}

func TestSubmitInvalidShapeRepresentsSameQuestion(t *testing.T) {
	svc, sessions := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step, err := svc.SubmitAnswer(ctx, "sess1", "a", "maybe")
	if err != nil {
		t.Fatalf("validation must be recovered, got error: %v", err)
	}
	if step.Validation == nil {
		t.Fatal("expected validation error attached to step")
	}
	if step.Question == nil || step.Question.ID != "a" {
		t.Errorf("expected same question a to be re-presented, got %+v", step.Question)
	}

	data, _ := sessions.Get(ctx, "sess1")
	if len(data.Answers) != 0 {
		t.Errorf("expected invalid answer not to be stored, got %v", data.Answers)
	}
}

func TestRestartResetsDraft(t *testing.T) {
	svc, sessions := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, "sess1", "a", "yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step, err := svc.Start(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Question == nil || step.Question.ID != "a" {
		t.Errorf("expected restart to land on a, got %+v", step.Question)
	}

	data, _ := sessions.Get(ctx, "sess1")
	if len(data.Answers) != 0 {
		t.Errorf("expected empty answer mapping after restart, got %v", data.Answers)
	}

	// restart on an already-empty draft is a no-op
	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error on repeated restart: %v", err)
	}
}

func TestGoToRepositionsWithoutTouchingAnswers(t *testing.T) {
	svc, sessions := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, "sess1", "a", "yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	step, err := svc.GoTo(ctx, "sess1", "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if step.Question == nil || step.Question.ID != "a" {
		t.Errorf("expected reposition on a, got %+v", step.Question)
	}

	data, _ := sessions.Get(ctx, "sess1")
	if diff := cmp.Diff(map[string]any{"a": "yes"}, data.Answers); diff != "" {
		t.Errorf("answers changed by GoTo (-want +got):\n%s", diff)
	}
}

// completeTraversal walks the fixture to the end on the employed path.
func completeTraversal(t *testing.T, svc WizardService, prefix string) *StepResult {
	t.Helper()
	ctx := context.Background()

	if _, err := svc.Start(ctx, prefix); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		questionID string
		value      any
	}{
		{"a", "yes"},
		{"b", "permanent"},
		{"b1", []string{"bonus"}},
		{"c", "Jane Doe"},
		{"d", "2021-07-17"},
		{"e", "The contract was terminated without notice."},
	}

	var last *StepResult
	for _, s := range steps {
		step, err := svc.SubmitAnswer(ctx, prefix, s.questionID, s.value)
		if err != nil {
			t.Fatalf("unexpected error answering %s: %v", s.questionID, err)
		}
		last = step
	}
	return last
}

func TestCompletionAndDownload(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil)

	last := completeTraversal(t, svc, "sess1")
	if !last.Done {
		t.Fatalf("expected sequence to be completed, got %+v", last)
	}
	if last.SuccessMessage != "All done, your document is ready." {
		t.Errorf("expected questionaire success message, got %q", last.SuccessMessage)
	}

	download, err := svc.Download(context.Background(), "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(download.RenderedDocument, "Name: Jane Doe") {
		t.Errorf("expected name substitution, got %q", download.RenderedDocument)
	}
	if !strings.Contains(download.RenderedDocument, "Currently employed (Permanent contract).") {
		t.Errorf("expected conditional block for a=yes, got %q", download.RenderedDocument)
	}
	if !strings.Contains(download.RenderedDocument, "Incident: 17.07.2021") {
		t.Errorf("expected formatted date, got %q", download.RenderedDocument)
	}

	wantOrder := []string{"a", "b", "b1", "c", "d", "e"}
	if diff := cmp.Diff(wantOrder, download.Order); diff != "" {
		t.Errorf("answer order mismatch (-want +got):\n%s", diff)
	}
}

func TestConditionalBlockOmittedOnSkippedPath(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil, Condition{
		ID: "c1", QuestionID: "a", IfValue: "no", ThenQuestionID: "c",
	})
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, s := range []struct {
		questionID string
		value      any
	}{
		{"a", "no"},
		{"c", "Jane Doe"},
		{"d", "2021-07-17"},
		{"e", "No employment involved."},
	} {
		if _, err := svc.SubmitAnswer(ctx, "sess1", s.questionID, s.value); err != nil {
			t.Fatalf("unexpected error answering %s: %v", s.questionID, err)
		}
	}

	download, err := svc.Download(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(download.RenderedDocument, "Currently employed") {
		t.Errorf("expected conditional block to be omitted for a=no, got %q", download.RenderedDocument)
	}
}

func TestDownloadGating(t *testing.T) {
	lawCase := permissiveLawCase()
	lawCase.AllowDownload = false
	svc, _ := newTestWizard(t, lawCase, nil)

	if _, err := svc.Download(context.Background(), "sess1"); !errors.Is(err, fault.ErrDownloadNotAllowed) {
		t.Errorf("expected download to be disallowed, got %v", err)
	}
}

func TestDownloadRequiresCompletionUnlessPartialAllowed(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "sess1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.SubmitAnswer(ctx, "sess1", "a", "yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Download(ctx, "sess1"); !errors.Is(err, fault.ErrDownloadNotAllowed) {
		t.Errorf("expected partial download to be rejected, got %v", err)
	}

	lawCase := permissiveLawCase()
	lawCase.AllowPartialDownload = true
	partial, _ := newTestWizard(t, lawCase, nil)
	if _, err := partial.Start(ctx, "sess2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := partial.SubmitAnswer(ctx, "sess2", "a", "yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := partial.Download(ctx, "sess2"); err != nil {
		t.Errorf("expected partial download to succeed, got %v", err)
	}
}

func TestSubmitAfterCompletionRejected(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), nil)
	completeTraversal(t, svc, "sess1")

	_, err := svc.SubmitAnswer(context.Background(), "sess1", "a", "yes")
	if !errors.Is(err, fault.ErrStaleStep) {
		t.Errorf("expected stale step error after completion, got %v", err)
	}
}

// fakeAnswerService is an in-memory AnswerService for wizard tests.
type fakeAnswerService struct {
	nextID  int
	records map[int]*models.AnswerRow
}

func newFakeAnswerService() *fakeAnswerService {
	return &fakeAnswerService{nextID: 1, records: map[int]*models.AnswerRow{}}
}

func (f *fakeAnswerService) CreateFromDraft(_ context.Context, lawCaseID int, creator string, answers map[string]any) (*models.AnswerRow, error) {
	row := &models.AnswerRow{
		ID:        f.nextID,
		LawCaseID: lawCaseID,
		Creator:   creator,
		Answers:   models.JSONMap(answers),
	}
	f.records[row.ID] = row
	f.nextID++
	return row, nil
}

func (f *fakeAnswerService) Get(_ context.Context, id int) (*models.AnswerRow, error) {
	row, ok := f.records[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	return row, nil
}

func (f *fakeAnswerService) RenderedDocument(ctx context.Context, id int) (string, error) {
	row, err := f.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if row.RenderedDocument == "" {
		row.RenderedDocument = fmt.Sprintf("<p>record %d</p>", id)
	}
	return row.RenderedDocument, nil
}

func (f *fakeAnswerService) UpdateRenderedDocument(_ context.Context, id int, html string) (*models.AnswerRow, error) {
	row, ok := f.records[id]
	if !ok {
		return nil, fault.ErrNotFound
	}
	row.RenderedDocument = html
	return row, nil
}

func (f *fakeAnswerService) List(context.Context, int, int, int) (*paginator.PaginatedResponse[models.AnswerRow], error) {
	return nil, fault.ErrNotFound
}

func (f *fakeAnswerService) ExportPDF(context.Context, int) ([]byte, error) {
	return nil, fault.ErrNotFound
}

func TestCompletionPersistsAnswerRecord(t *testing.T) {
	fake := newFakeAnswerService()
	lawCase := permissiveLawCase()
	lawCase.SaveAnswers = true
	svc, sessions := newTestWizard(t, lawCase, fake)

	completeTraversal(t, svc, "sess1")

	data, _ := sessions.Get(context.Background(), "sess1")
	if data.AnswerID == 0 {
		t.Fatal("expected completed draft to be promoted to a record")
	}

	record := fake.records[data.AnswerID]
	if record == nil {
		t.Fatal("expected record to exist")
	}
	if got := record.Answers["c"]; got != "Jane Doe" {
		t.Errorf("expected persisted answer for c, got %v", got)
	}
}

func TestBindAnswerServesPersistedDocument(t *testing.T) {
	fake := newFakeAnswerService()
	record, _ := fake.CreateFromDraft(context.Background(), 1, "", map[string]any{"a": "yes"})
	record.RenderedDocument = "<p>previously rendered</p>"

	lawCase := permissiveLawCase()
	lawCase.AllowPartialDownload = true
	svc, _ := newTestWizard(t, lawCase, fake)
	ctx := context.Background()

	if err := svc.BindAnswer(ctx, "sess1", record.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	download, err := svc.Download(ctx, "sess1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if download.RenderedDocument != "<p>previously rendered</p>" {
		t.Errorf("expected persisted document, got %q", download.RenderedDocument)
	}
}

func TestBindAnswerUnknownRecord(t *testing.T) {
	svc, _ := newTestWizard(t, permissiveLawCase(), newFakeAnswerService())

	err := svc.BindAnswer(context.Background(), "sess1", 99)
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("expected not found error, got %v", err)
	}
}
