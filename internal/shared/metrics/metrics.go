package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	chartRunsTotal        atomic.Uint64
	chartRunsFailedTotal  atomic.Uint64
	documentsFailedTotal  atomic.Uint64
	extractionsOKTotal    atomic.Uint64
	extractionsEmptyTotal atomic.Uint64
	analysesAITotal       atomic.Uint64
	analysesFallbackTotal atomic.Uint64
	inferenceRetriesTotal atomic.Uint64
	jobsReceivedTotal     atomic.Uint64
	jobsSucceededTotal    atomic.Uint64
	jobsFailedTotal       atomic.Uint64
	jobsDroppedTotal      atomic.Uint64

	chartDuration = newHistogram([]float64{500, 1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncChartRun counts a chart QA run start.
func IncChartRun() {
	chartRunsTotal.Add(1)
}

// IncChartRunFailed counts a chart QA run that returned an error.
func IncChartRunFailed() {
	chartRunsFailedTotal.Add(1)
}

// IncDocumentFailed counts a document whose pipeline failed.
func IncDocumentFailed() {
	documentsFailedTotal.Add(1)
}

// IncExtraction counts an extraction by outcome.
func IncExtraction(succeeded bool) {
	if succeeded {
		extractionsOKTotal.Add(1)
		return
	}
	extractionsEmptyTotal.Add(1)
}

// IncAnalysis counts an analysis by whether the heuristic fallback produced it.
func IncAnalysis(heuristic bool) {
	if heuristic {
		analysesFallbackTotal.Add(1)
		return
	}
	analysesAITotal.Add(1)
}

// IncInferenceRetry counts a retried inference attempt.
func IncInferenceRetry() {
	inferenceRetriesTotal.Add(1)
}

// IncJobReceived counts a queued chart QA job picked up by a worker.
func IncJobReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobSucceeded counts a job that completed and was acknowledged.
func IncJobSucceeded() {
	jobsSucceededTotal.Add(1)
}

// IncJobFailed counts a job left on the queue for redelivery.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobDropped counts an unprocessable job removed from the queue.
func IncJobDropped() {
	jobsDroppedTotal.Add(1)
}

// ObserveChartDurationMs records a chart run duration in milliseconds.
func ObserveChartDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	chartDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "qa_chart_runs_total", "Chart QA runs started", chartRunsTotal.Load())
	writeCounter(&buf, "qa_chart_runs_failed_total", "Chart QA runs that returned an error", chartRunsFailedTotal.Load())
	writeCounter(&buf, "qa_documents_failed_total", "Documents whose pipeline failed", documentsFailedTotal.Load())
	writeLabeledCounter(&buf, "qa_extractions_total", "Extractions by outcome", "outcome", map[string]uint64{
		"succeeded": extractionsOKTotal.Load(),
		"failed":    extractionsEmptyTotal.Load(),
	})
	writeLabeledCounter(&buf, "qa_analyses_total", "Analyses by source", "source", map[string]uint64{
		"ai":        analysesAITotal.Load(),
		"heuristic": analysesFallbackTotal.Load(),
	})
	writeCounter(&buf, "qa_inference_retries_total", "Inference attempts retried", inferenceRetriesTotal.Load())
	writeLabeledCounter(&buf, "qa_jobs_total", "Queued chart QA jobs by outcome", "outcome", map[string]uint64{
		"received":  jobsReceivedTotal.Load(),
		"succeeded": jobsSucceededTotal.Load(),
		"failed":    jobsFailedTotal.Load(),
		"dropped":   jobsDroppedTotal.Load(),
	})
	writeHistogram(&buf, "qa_chart_duration_ms", "Chart QA run duration in milliseconds", chartDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=\"%s\"} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

