package documents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, chart_id, patient_id, kind, source_ref, file_name, mime_type, size_bytes,
extracted_text, status, quality_score, completeness_score, compliance_score, confidence_score,
analysis, error_code, error_message, extracted_at, analyzed_at, created_at, updated_at`

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (
    id,
    chart_id,
    patient_id,
    kind,
    source_ref,
    file_name,
    mime_type,
    size_bytes,
    extracted_text,
    status,
    created_at,
    updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)`

	status := doc.Status
	if status == "" {
		status = StatusPending
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.DB.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.ChartID,
		nullString(doc.PatientID),
		doc.Kind,
		doc.SourceRef,
		doc.FileName,
		nullString(doc.MimeType),
		doc.SizeBytes,
		nullString(TruncateText(doc.ExtractedText)),
		status,
		createdAt,
	)
	return err
}

// GetByID fetches a document by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE id = $1 AND deleted_at IS NULL
LIMIT 1`
	doc, err := scanDocument(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, err
	}
	return doc, nil
}

// GetDocumentsByChart lists a chart's documents oldest first.
func (r *PGRepo) GetDocumentsByChart(ctx context.Context, chartID string, status Status) ([]Document, error) {
	query := `SELECT ` + documentColumns + `
FROM documents
WHERE chart_id = $1 AND ($2 = '' OR status = $2) AND deleted_at IS NULL
ORDER BY created_at ASC, id ASC`

	rows, err := r.DB.QueryContext(ctx, query, chartID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateDocument writes all set fields of u in one statement.
func (r *PGRepo) UpdateDocument(ctx context.Context, id string, u Update) error {
	sets, args := updateAssignments(u)
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d AND deleted_at IS NULL", strings.Join(sets, ", "), len(args))
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// updateAssignments lists "column = $n" pairs in a fixed column order.
func updateAssignments(u Update) ([]string, []any) {
	var sets []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.ExtractedText != nil {
		add("extracted_text", TruncateText(*u.ExtractedText))
	}
	if u.Status != nil {
		add("status", string(*u.Status))
	}
	if u.QualityScore != nil {
		add("quality_score", *u.QualityScore)
	}
	if u.CompletenessScore != nil {
		add("completeness_score", *u.CompletenessScore)
	}
	if u.ComplianceScore != nil {
		add("compliance_score", *u.ComplianceScore)
	}
	if u.ConfidenceScore != nil {
		add("confidence_score", *u.ConfidenceScore)
	}
	if u.Analysis != nil {
		add("analysis", []byte(u.Analysis))
	}
	if u.ErrorCode != nil {
		add("error_code", nullString(*u.ErrorCode))
	}
	if u.ErrorMessage != nil {
		add("error_message", nullString(*u.ErrorMessage))
	}
	if u.ExtractedAt != nil {
		add("extracted_at", *u.ExtractedAt)
	}
	if u.AnalyzedAt != nil {
		add("analyzed_at", *u.AnalyzedAt)
	}
	return sets, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var patientID sql.NullString
	var mimeType sql.NullString
	var extractedText sql.NullString
	var status string
	var quality, completeness, compliance, confidence sql.NullInt32
	var analysis []byte
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var extractedAt sql.NullTime
	var analyzedAt sql.NullTime
	err := row.Scan(
		&doc.ID,
		&doc.ChartID,
		&patientID,
		&doc.Kind,
		&doc.SourceRef,
		&doc.FileName,
		&mimeType,
		&doc.SizeBytes,
		&extractedText,
		&status,
		&quality,
		&completeness,
		&compliance,
		&confidence,
		&analysis,
		&errorCode,
		&errorMessage,
		&extractedAt,
		&analyzedAt,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return Document{}, err
	}
	doc.PatientID = patientID.String
	doc.MimeType = mimeType.String
	doc.ExtractedText = extractedText.String
	doc.Status = Status(status)
	doc.QualityScore = nullInt(quality)
	doc.CompletenessScore = nullInt(completeness)
	doc.ComplianceScore = nullInt(compliance)
	doc.ConfidenceScore = nullInt(confidence)
	if len(analysis) > 0 {
		doc.Analysis = json.RawMessage(analysis)
	}
	doc.ErrorCode = errorCode.String
	doc.ErrorMessage = errorMessage.String
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	if analyzedAt.Valid {
		doc.AnalyzedAt = &analyzedAt.Time
	}
	return doc, nil
}

func nullInt(v sql.NullInt32) *int {
	if !v.Valid {
		return nil
	}
	return intPtr(int(v.Int32))
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

var _ Repo = (*PGRepo)(nil)
