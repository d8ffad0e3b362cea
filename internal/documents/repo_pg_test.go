package documents

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var scanColumns = []string{
	"id", "chart_id", "patient_id", "kind", "source_ref", "file_name", "mime_type", "size_bytes",
	"extracted_text", "status", "quality_score", "completeness_score", "compliance_score", "confidence_score",
	"analysis", "error_code", "error_message", "extracted_at", "analyzed_at", "created_at", "updated_at",
}

func TestPGRepoCreateTruncatesText(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	long := strings.Repeat("a", MaxExtractedTextRunes+10)

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			"doc-1",
			"chart-1",
			nil,
			"clinical_note",
			"charts/chart-1/note.pdf",
			"note.pdf",
			"application/pdf",
			int64(2048),
			strings.Repeat("a", MaxExtractedTextRunes),
			StatusPending,
			created,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := Document{
		ID:            "doc-1",
		ChartID:       "chart-1",
		Kind:          "clinical_note",
		SourceRef:     "charts/chart-1/note.pdf",
		FileName:      "note.pdf",
		MimeType:      "application/pdf",
		SizeBytes:     2048,
		ExtractedText: long,
		CreatedAt:     created,
	}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetDocumentsByChart(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Now().UTC()
	rows := sqlmock.NewRows(scanColumns).
		AddRow("doc-1", "chart-1", "pat-1", "oasis_assessment", "https://files.example/a.pdf", "a.pdf", "application/pdf", int64(10),
			"text", "completed", int64(88), int64(90), nil, int64(70),
			[]byte(`{"qualityScore":88}`), nil, nil, now, now, now, now).
		AddRow("doc-2", "chart-1", nil, "other", "charts/chart-1/b.mp4", "b.mp4", nil, int64(20),
			nil, "pending", nil, nil, nil, nil,
			nil, nil, nil, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents")).
		WithArgs("chart-1", "").
		WillReturnRows(rows)

	repo := &PGRepo{DB: db}
	docs, err := repo.GetDocumentsByChart(context.Background(), "chart-1", "")
	if err != nil {
		t.Fatalf("GetDocumentsByChart: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	first := docs[0]
	if first.QualityScore == nil || *first.QualityScore != 88 || first.ComplianceScore != nil {
		t.Fatalf("unexpected scores %+v", first)
	}
	if first.PatientID != "pat-1" || first.Status != StatusCompleted || first.AnalyzedAt == nil {
		t.Fatalf("unexpected first document %+v", first)
	}
	var parsed map[string]any
	if err := json.Unmarshal(first.Analysis, &parsed); err != nil || parsed["qualityScore"] != float64(88) {
		t.Fatalf("unexpected analysis %s", first.Analysis)
	}
	second := docs[1]
	if second.ExtractedText != "" || second.QualityScore != nil || second.Analysis != nil || second.ExtractedAt != nil {
		t.Fatalf("expected empty nullable fields, got %+v", second)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateDocumentSingleStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	text := "extracted"
	status := StatusCompleted
	quality := 91
	analyzedAt := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET extracted_text = $1, status = $2, quality_score = $3, analysis = $4, analyzed_at = $5, updated_at = $6 WHERE id = $7")).
		WithArgs(text, "completed", 91, []byte(`{"qualityScore":91}`), analyzedAt, sqlmock.AnyArg(), "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := &PGRepo{DB: db}
	err = repo.UpdateDocument(context.Background(), "doc-1", Update{
		ExtractedText: &text,
		Status:        &status,
		QualityScore:  &quality,
		Analysis:      json.RawMessage(`{"qualityScore":91}`),
		AnalyzedAt:    &analyzedAt,
	})
	if err != nil {
		t.Fatalf("UpdateDocument: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateDocumentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 0))

	status := StatusFailed
	repo := &PGRepo{DB: db}
	if err := repo.UpdateDocument(context.Background(), "missing", Update{Status: &status}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
