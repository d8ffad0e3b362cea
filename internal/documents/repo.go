package documents

import "context"

// Repo defines persistence operations for chart documents.
type Repo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, id string) (Document, error)
	// GetDocumentsByChart lists a chart's documents oldest first; an empty status matches all.
	GetDocumentsByChart(ctx context.Context, chartID string, status Status) ([]Document, error)
	UpdateDocument(ctx context.Context, id string, u Update) error
}
