package chartqa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"chart-qa-backend/internal/analysis"
	"chart-qa-backend/internal/documents"
	"chart-qa-backend/internal/extract"
	"chart-qa-backend/internal/lock"
	"chart-qa-backend/internal/report"
	"chart-qa-backend/internal/shared/metrics"
	"chart-qa-backend/internal/shared/telemetry"
)

const (
	defaultConcurrency   = 4
	defaultChartTimeout  = 10 * time.Minute
	defaultUpdateTimeout = 30 * time.Second

	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Config bounds a chart run.
type Config struct {
	Concurrency  int
	ChartTimeout time.Duration
	// UpdateTimeout bounds each document write, which outlives run cancellation.
	UpdateTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:   defaultConcurrency,
		ChartTimeout:  defaultChartTimeout,
		UpdateTimeout: defaultUpdateTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.ChartTimeout <= 0 {
		c.ChartTimeout = defaultChartTimeout
	}
	if c.UpdateTimeout <= 0 {
		c.UpdateTimeout = defaultUpdateTimeout
	}
	return c
}

// Extractor turns a document source into text.
type Extractor interface {
	Extract(ctx context.Context, src extract.Source) (extract.Result, error)
}

// Analyzer scores extracted text.
type Analyzer interface {
	Analyze(ctx context.Context, text string, meta analysis.Meta) (analysis.Result, error)
	HeuristicOnly(text string, meta analysis.Meta) analysis.Result
}

var (
	_ Extractor = (*extract.Orchestrator)(nil)
	_ Analyzer  = (*analysis.Engine)(nil)
)

// Request selects a chart and how to process it.
type Request struct {
	ChartID           string
	PatientID         string
	IncludeAIAnalysis bool
	// ForceReExtract ignores previously extracted text.
	ForceReExtract bool
}

// Service runs the QA pipeline over every document of a chart.
type Service struct {
	Docs      documents.Repo
	Extractor Extractor
	Analyzer  Analyzer
	Locker    lock.Locker
	Config    Config
}

// Run processes all documents of a chart with bounded concurrency and aggregates the outcomes.
// Per-document failures are reported in the outcome list; configuration errors, caller
// cancellation and store read failures abort the run.
func (s *Service) Run(ctx context.Context, req Request) (report.ChartReport, error) {
	chartID := strings.TrimSpace(req.ChartID)
	if chartID == "" {
		chartID = strings.TrimSpace(req.PatientID)
	}
	if chartID == "" {
		return report.ChartReport{}, ErrInvalidRequest
	}
	if s.Docs == nil || s.Extractor == nil || s.Analyzer == nil {
		return report.ChartReport{}, errors.New("chart qa service not configured")
	}
	cfg := s.Config.withDefaults()
	start := time.Now()
	metrics.IncChartRun()

	runCtx, cancel := context.WithTimeout(ctx, cfg.ChartTimeout)
	defer cancel()

	docs, err := s.Docs.GetDocumentsByChart(runCtx, chartID, "")
	if err != nil {
		return s.failRun(ctx, chartID, start, fmt.Errorf("load chart documents: %w", err))
	}
	if len(docs) == 0 {
		return s.failRun(ctx, chartID, start, ErrNoDocuments)
	}

	telemetry.Info("chart_qa.started", map[string]any{
		"request_id":          requestIDFromContext(ctx),
		"chart_id":            chartID,
		"documents":           len(docs),
		"include_ai_analysis": req.IncludeAIAnalysis,
		"force_re_extract":    req.ForceReExtract,
	})

	outcomes := make([]report.DocumentOutcome, len(docs))
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			out, err := s.processDocument(gctx, runCtx, cfg, req, chartID, doc)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return s.failRun(ctx, chartID, start, err)
	}

	rep := report.Aggregate(chartID, outcomes)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	metrics.ObserveChartDurationMs(elapsed)
	telemetry.Info("chart_qa.completed", map[string]any{
		"request_id":         requestIDFromContext(ctx),
		"chart_id":           chartID,
		"overall_qa_score":   rep.OverallQAScore,
		"risk_level":         rep.RiskLevel,
		"documents_analyzed": rep.DocumentsAnalyzed,
		"documents_failed":   rep.DocumentsFailed,
		"duration_ms":        elapsed,
	})
	return rep, nil
}

func (s *Service) failRun(ctx context.Context, chartID string, start time.Time, err error) (report.ChartReport, error) {
	metrics.IncChartRunFailed()
	metrics.ObserveChartDurationMs(float64(time.Since(start).Microseconds()) / 1000.0)
	telemetry.Error("chart_qa.failed", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"chart_id":   chartID,
		"error":      sanitizeError(err.Error()),
	})
	return report.ChartReport{}, err
}

// docRun carries the state of one document through the pipeline.
type docRun struct {
	doc         documents.Document
	out         report.DocumentOutcome
	text        string
	extractedAt *time.Time
}

// processDocument runs lock, extract, analyze and persist for one document.
// A non-nil error is fatal to the whole run; everything else is folded into the outcome.
func (s *Service) processDocument(ctx, runCtx context.Context, cfg Config, req Request, chartID string, doc documents.Document) (report.DocumentOutcome, error) {
	run := &docRun{
		doc: doc,
		out: report.DocumentOutcome{
			DocumentID: doc.ID,
			FileName:   doc.FileName,
			Kind:       analysis.NormalizeKind(doc.Kind),
		},
	}
	fields := map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"chart_id":    chartID,
		"document_id": doc.ID,
	}

	if s.Locker != nil {
		release, ok, err := s.Locker.TryLock(ctx, doc.ID)
		if err != nil {
			if ctx.Err() != nil {
				return s.interrupted(ctx, runCtx, cfg, run, fields)
			}
			return s.reject(run, fields, "lock unavailable: "+err.Error()), nil
		}
		if !ok {
			return s.reject(run, fields, lockedMessage), nil
		}
		defer release()
	}

	run.text = doc.ExtractedText
	if strings.TrimSpace(run.text) == "" || req.ForceReExtract {
		fields["stage"] = "extract"
		res, err := s.Extractor.Extract(ctx, extract.Source{
			Ref:      doc.SourceRef,
			FileName: doc.FileName,
			MimeType: doc.MimeType,
			Size:     doc.SizeBytes,
		})
		if err != nil {
			if extract.IsConfigurationError(err) {
				return report.DocumentOutcome{}, err
			}
			if ctx.Err() != nil {
				return s.interrupted(ctx, runCtx, cfg, run, fields)
			}
			return s.fail(ctx, cfg, run, fields, ErrorCodeExtractionFailed, err.Error()), nil
		}
		if !res.Succeeded {
			return s.fail(ctx, cfg, run, fields, ErrorCodeExtractionFailed, res.Diagnostic), nil
		}
		now := time.Now().UTC()
		run.text = documents.TruncateText(res.Text)
		run.extractedAt = &now
		fields["method"] = res.Method
	}

	fields["stage"] = "analyze"
	meta := analysis.Meta{DocumentID: doc.ID, Kind: doc.Kind, FileName: doc.FileName, ChartID: chartID}
	var result analysis.Result
	switch {
	case req.IncludeAIAnalysis:
		var err error
		result, err = s.Analyzer.Analyze(ctx, run.text, meta)
		if err != nil {
			if extract.IsConfigurationError(err) {
				return report.DocumentOutcome{}, err
			}
			if ctx.Err() != nil {
				return s.interrupted(ctx, runCtx, cfg, run, fields)
			}
			return s.fail(ctx, cfg, run, fields, ErrorCodeAnalysisFailed, err.Error()), nil
		}
	case doc.QualityScore != nil && run.extractedAt == nil:
		stored := storedResult(doc)
		run.out.Status = statusCompleted
		run.out.Analysis = &stored
		return run.out, nil
	default:
		result = s.Analyzer.HeuristicOnly(run.text, meta)
	}

	s.complete(ctx, cfg, run, fields, result)
	return run.out, nil
}

// complete persists text, scores and timestamps in one update.
func (s *Service) complete(ctx context.Context, cfg Config, run *docRun, fields map[string]any, result analysis.Result) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = nil
	}
	now := time.Now().UTC()
	status := documents.StatusCompleted
	empty := ""
	u := documents.Update{
		Status:            &status,
		QualityScore:      &result.QualityScore,
		CompletenessScore: &result.CompletenessScore,
		ComplianceScore:   result.ComplianceScore,
		ConfidenceScore:   &result.ConfidenceScore,
		Analysis:          raw,
		ErrorCode:         &empty,
		ErrorMessage:      &empty,
		AnalyzedAt:        &now,
	}
	if run.extractedAt != nil {
		u.ExtractedText = &run.text
		u.ExtractedAt = run.extractedAt
	}
	s.persist(ctx, cfg, run.doc.ID, u, fields)

	run.out.Status = statusCompleted
	run.out.Analysis = &result
	fields["quality_score"] = result.QualityScore
	fields["source"] = result.Source
	telemetry.Info("chart_qa.document_completed", fields)
}

// fail records a per-document failure on the document and in the outcome.
func (s *Service) fail(ctx context.Context, cfg Config, run *docRun, fields map[string]any, code, msg string) report.DocumentOutcome {
	msg = sanitizeError(msg)
	if msg == "" {
		msg = strings.ToLower(strings.ReplaceAll(code, "_", " "))
	}
	status := documents.StatusFailed
	u := documents.Update{Status: &status, ErrorCode: &code, ErrorMessage: &msg}
	if run.extractedAt != nil {
		u.ExtractedText = &run.text
		u.ExtractedAt = run.extractedAt
	}
	s.persist(ctx, cfg, run.doc.ID, u, fields)

	metrics.IncDocumentFailed()
	fields["error_code"] = code
	fields["error"] = msg
	telemetry.Warn("chart_qa.document_failed", fields)

	run.out.Status = statusFailed
	run.out.ErrorCode = code
	run.out.Error = msg
	return run.out
}

// reject reports a document that another pipeline holds. The document itself is left untouched.
func (s *Service) reject(run *docRun, fields map[string]any, msg string) report.DocumentOutcome {
	metrics.IncDocumentFailed()
	fields["error_code"] = ErrorCodeLocked
	telemetry.Warn("chart_qa.document_locked", fields)
	run.out.Status = statusFailed
	run.out.ErrorCode = ErrorCodeLocked
	run.out.Error = sanitizeError(msg)
	return run.out
}

// interrupted handles a cancelled document context. Only the chart deadline is a per-document
// TIMEOUT; caller cancellation and sibling fatal errors abort the run.
func (s *Service) interrupted(ctx, runCtx context.Context, cfg Config, run *docRun, fields map[string]any) (report.DocumentOutcome, error) {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return s.fail(ctx, cfg, run, fields, ErrorCodeTimeout, timeoutMessage), nil
	}
	return report.DocumentOutcome{}, ctx.Err()
}

// persist writes u even when the run context is already cancelled.
func (s *Service) persist(ctx context.Context, cfg Config, id string, u documents.Update, fields map[string]any) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.UpdateTimeout)
	defer cancel()
	if err := s.Docs.UpdateDocument(writeCtx, id, u); err != nil {
		telemetry.Error("chart_qa.document_update_failed", map[string]any{
			"request_id":  fields["request_id"],
			"chart_id":    fields["chart_id"],
			"document_id": id,
			"error":       sanitizeError(err.Error()),
		})
	}
}

// storedResult rebuilds a Result from a previously persisted analysis.
func storedResult(doc documents.Document) analysis.Result {
	var res analysis.Result
	if len(doc.Analysis) > 0 && json.Unmarshal(doc.Analysis, &res) == nil {
		return withLists(res)
	}
	res = analysis.Result{
		QualityScore:     *doc.QualityScore,
		ComplianceScore:  doc.ComplianceScore,
		ComplianceChecks: analysis.ComplianceChecks{HIPAACompliant: true, DomainCompliant: true},
	}
	if doc.CompletenessScore != nil {
		res.CompletenessScore = *doc.CompletenessScore
	}
	if doc.ConfidenceScore != nil {
		res.ConfidenceScore = *doc.ConfidenceScore
	}
	return withLists(res)
}

func withLists(res analysis.Result) analysis.Result {
	for _, list := range []*[]string{
		&res.FlaggedIssues,
		&res.CriticalIssues,
		&res.Recommendations,
		&res.FinancialImpact.Opportunities,
		&res.ComplianceChecks.Issues,
	} {
		if *list == nil {
			*list = []string{}
		}
	}
	return res
}
