package documents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Document // id -> document
	now  func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Document),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new document.
func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.ID == "" || doc.ChartID == "" {
		return ErrInvalidInput
	}
	if doc.Status == "" {
		doc.Status = StatusPending
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = r.now()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	doc.ExtractedText = TruncateText(doc.ExtractedText)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[doc.ID] = doc
	return nil
}

// GetByID returns a document by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.data[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

// GetDocumentsByChart returns a chart's documents, oldest first.
func (r *MemoryRepo) GetDocumentsByChart(ctx context.Context, chartID string, status Status) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := []Document{}
	for _, doc := range r.data {
		if doc.ChartID != chartID {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		out = append(out, doc)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateDocument applies a partial update.
func (r *MemoryRepo) UpdateDocument(ctx context.Context, id string, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.data[id]
	if !ok {
		return ErrNotFound
	}
	u.apply(&doc)
	doc.UpdatedAt = r.now()
	r.data[id] = doc
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
