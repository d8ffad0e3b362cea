package documents

import (
	"encoding/json"
	"time"
)

// DocumentResponse is the outward-facing representation of a document. Extracted text is omitted.
type DocumentResponse struct {
	DocumentID        string          `json:"documentId"`
	ChartID           string          `json:"chartId"`
	PatientID         string          `json:"patientId,omitempty"`
	Kind              string          `json:"kind"`
	SourceRef         string          `json:"sourceRef"`
	FileName          string          `json:"fileName"`
	MimeType          string          `json:"mimeType,omitempty"`
	SizeBytes         int64           `json:"sizeBytes"`
	Status            Status          `json:"status"`
	HasExtractedText  bool            `json:"hasExtractedText"`
	QualityScore      *int            `json:"qualityScore,omitempty"`
	CompletenessScore *int            `json:"completenessScore,omitempty"`
	ComplianceScore   *int            `json:"complianceScore,omitempty"`
	ConfidenceScore   *int            `json:"confidenceScore,omitempty"`
	Analysis          json.RawMessage `json:"analysis,omitempty"`
	ErrorCode         string          `json:"errorCode,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
	ExtractedAt       *time.Time      `json:"extractedAt,omitempty"`
	AnalyzedAt        *time.Time      `json:"analyzedAt,omitempty"`
	UploadedAt        time.Time       `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:        doc.ID,
		ChartID:           doc.ChartID,
		PatientID:         doc.PatientID,
		Kind:              doc.Kind,
		SourceRef:         doc.SourceRef,
		FileName:          doc.FileName,
		MimeType:          doc.MimeType,
		SizeBytes:         doc.SizeBytes,
		Status:            doc.Status,
		HasExtractedText:  doc.ExtractedText != "",
		QualityScore:      doc.QualityScore,
		CompletenessScore: doc.CompletenessScore,
		ComplianceScore:   doc.ComplianceScore,
		ConfidenceScore:   doc.ConfidenceScore,
		Analysis:          doc.Analysis,
		ErrorCode:         doc.ErrorCode,
		ErrorMessage:      doc.ErrorMessage,
		ExtractedAt:       doc.ExtractedAt,
		AnalyzedAt:        doc.AnalyzedAt,
		UploadedAt:        doc.CreatedAt,
	}
}
