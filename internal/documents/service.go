package documents

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"chart-qa-backend/internal/shared/storage/object"
)

// Service registers chart documents and lists them.
type Service struct {
	Store object.ObjectStore
	Repo  Repo
}

// RegisterInput describes a document whose bytes already live at SourceRef.
type RegisterInput struct {
	PatientID string
	Kind      string
	SourceRef string
	FileName  string
	MimeType  string
	SizeBytes int64
}

// Register records a document for a chart.
func (s *Service) Register(ctx context.Context, chartID string, in RegisterInput) (Document, error) {
	chartID = strings.TrimSpace(chartID)
	in.SourceRef = strings.TrimSpace(in.SourceRef)
	if chartID == "" || in.SourceRef == "" {
		return Document{}, fmt.Errorf("%w: chartId and sourceRef are required", ErrInvalidInput)
	}
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = in.SourceRef[strings.LastIndex(in.SourceRef, "/")+1:]
	}
	kind := strings.TrimSpace(in.Kind)
	if kind == "" {
		kind = "other"
	}

	now := time.Now().UTC()
	doc := Document{
		ID:        uuid.NewString(),
		ChartID:   chartID,
		PatientID: strings.TrimSpace(in.PatientID),
		Kind:      kind,
		SourceRef: in.SourceRef,
		FileName:  fileName,
		MimeType:  strings.TrimSpace(in.MimeType),
		SizeBytes: in.SizeBytes,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Upload stores the file under the chart's namespace and registers it.
func (s *Service) Upload(ctx context.Context, chartID string, in RegisterInput, r io.Reader) (Document, error) {
	if s.Store == nil {
		return Document{}, fmt.Errorf("object store not configured")
	}
	key, err := object.ChartKey(chartID, in.FileName)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	size, err := s.Store.SaveWithKey(ctx, key, in.MimeType, r)
	if err != nil {
		return Document{}, err
	}
	in.SourceRef = key
	in.SizeBytes = size
	return s.Register(ctx, chartID, in)
}

// List returns a chart's documents, optionally filtered by status.
func (s *Service) List(ctx context.Context, chartID string, status Status) ([]Document, error) {
	if strings.TrimSpace(chartID) == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.GetDocumentsByChart(ctx, chartID, status)
}
