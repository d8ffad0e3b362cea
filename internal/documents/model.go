package documents

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid input")
)

// MaxExtractedTextRunes caps the stored extracted text.
const MaxExtractedTextRunes = 50000

// Status is the pipeline state of a document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a status filter. An empty string means no filter.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case "", StatusPending, StatusCompleted, StatusFailed:
		return Status(raw), true
	default:
		return "", false
	}
}

// Document is one source file of a patient chart together with its latest QA result.
type Document struct {
	ID        string
	ChartID   string
	PatientID string
	// Kind is the clinical document type, e.g. oasis_assessment or training_material.
	Kind string
	// SourceRef is an http(s) URL or an object store key.
	SourceRef string
	FileName  string
	MimeType  string
	SizeBytes int64

	ExtractedText     string
	Status            Status
	QualityScore      *int
	CompletenessScore *int
	ComplianceScore   *int
	ConfidenceScore   *int
	Analysis          json.RawMessage
	ErrorCode         string
	ErrorMessage      string
	ExtractedAt       *time.Time
	AnalyzedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Update is a partial document update; nil fields are left unchanged.
type Update struct {
	ExtractedText     *string
	Status            *Status
	QualityScore      *int
	CompletenessScore *int
	ComplianceScore   *int
	ConfidenceScore   *int
	Analysis          json.RawMessage
	ErrorCode         *string
	ErrorMessage      *string
	ExtractedAt       *time.Time
	AnalyzedAt        *time.Time
}

// TruncateText bounds extracted text to MaxExtractedTextRunes.
func TruncateText(s string) string {
	if len(s) <= MaxExtractedTextRunes {
		return s
	}
	runes := []rune(s)
	if len(runes) <= MaxExtractedTextRunes {
		return s
	}
	return string(runes[:MaxExtractedTextRunes])
}

// apply merges u into doc in memory.
func (u Update) apply(doc *Document) {
	if u.ExtractedText != nil {
		doc.ExtractedText = TruncateText(*u.ExtractedText)
	}
	if u.Status != nil {
		doc.Status = *u.Status
	}
	if u.QualityScore != nil {
		doc.QualityScore = intPtr(*u.QualityScore)
	}
	if u.CompletenessScore != nil {
		doc.CompletenessScore = intPtr(*u.CompletenessScore)
	}
	if u.ComplianceScore != nil {
		doc.ComplianceScore = intPtr(*u.ComplianceScore)
	}
	if u.ConfidenceScore != nil {
		doc.ConfidenceScore = intPtr(*u.ConfidenceScore)
	}
	if u.Analysis != nil {
		doc.Analysis = append(json.RawMessage(nil), u.Analysis...)
	}
	if u.ErrorCode != nil {
		doc.ErrorCode = *u.ErrorCode
	}
	if u.ErrorMessage != nil {
		doc.ErrorMessage = *u.ErrorMessage
	}
	if u.ExtractedAt != nil {
		t := *u.ExtractedAt
		doc.ExtractedAt = &t
	}
	if u.AnalyzedAt != nil {
		t := *u.AnalyzedAt
		doc.AnalyzedAt = &t
	}
}

func intPtr(v int) *int { return &v }
