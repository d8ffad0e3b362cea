package chartqa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chart-qa-backend/internal/queue"
	"chart-qa-backend/internal/shared/telemetry"
)

// Enqueue queues req for asynchronous processing and returns the job message.
func Enqueue(ctx context.Context, q queue.Client, req Request) (queue.Message, error) {
	if q == nil {
		return queue.Message{}, ErrJobQueueNotConfigured
	}
	chartID := strings.TrimSpace(req.ChartID)
	if chartID == "" {
		chartID = strings.TrimSpace(req.PatientID)
	}
	if chartID == "" {
		return queue.Message{}, ErrInvalidRequest
	}
	msg := queue.Message{
		JobID:             uuid.NewString(),
		ChartID:           chartID,
		PatientID:         strings.TrimSpace(req.PatientID),
		IncludeAIAnalysis: req.IncludeAIAnalysis,
		ForceReExtract:    req.ForceReExtract,
		RequestID:         requestIDFromContext(ctx),
		EnqueuedAt:        time.Now().UTC().Format(time.RFC3339),
		Version:           queue.MessageVersion,
	}
	if err := q.Send(ctx, msg); err != nil {
		return queue.Message{}, fmt.Errorf("enqueue chart qa job: %w", err)
	}
	telemetry.Info("chart_qa.job_enqueued", map[string]any{
		"request_id": msg.RequestID,
		"job_id":     msg.JobID,
		"chart_id":   msg.ChartID,
	})
	return msg, nil
}

// RunJob processes a queued chart QA job. Jobs that can never succeed are logged and
// acknowledged; every other failure is returned so the queue redelivers it.
func (s *Service) RunJob(ctx context.Context, msg queue.Message) error {
	ctx = WithRequestID(ctx, msg.RequestID)
	rep, err := s.Run(ctx, Request{
		ChartID:           msg.ChartID,
		PatientID:         msg.PatientID,
		IncludeAIAnalysis: msg.IncludeAIAnalysis,
		ForceReExtract:    msg.ForceReExtract,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrNoDocuments) {
			telemetry.Warn("chart_qa.job_dropped", map[string]any{
				"request_id": msg.RequestID,
				"job_id":     msg.JobID,
				"chart_id":   msg.ChartID,
				"error":      err.Error(),
			})
			return nil
		}
		return err
	}
	telemetry.Info("chart_qa.job_completed", map[string]any{
		"request_id":       msg.RequestID,
		"job_id":           msg.JobID,
		"chart_id":         rep.ChartID,
		"overall_qa_score": rep.OverallQAScore,
		"risk_level":       rep.RiskLevel,
	})
	return nil
}
