package chartqa

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/extract"
	"chart-qa-backend/internal/queue"
	"chart-qa-backend/internal/shared/server/middleware"
	"chart-qa-backend/internal/shared/server/respond"
)

// Handler exposes chart QA runs over HTTP.
type Handler struct {
	Svc   *Service
	Queue queue.Client
}

// NewHandler constructs a Handler. q may be nil when no job queue is configured.
func NewHandler(svc *Service, q queue.Client) *Handler {
	return &Handler{Svc: svc, Queue: q}
}

// RegisterRoutes attaches QA routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/qa/analyze", h.analyze)
	rg.POST("/qa/jobs", h.enqueue)
}

type analyzeRequest struct {
	ChartID           string `json:"chartId"`
	PatientID         string `json:"patientId"`
	IncludeAIAnalysis *bool  `json:"includeAIAnalysis"`
	ForceReExtract    bool   `json:"forceReExtract"`
}

func (r analyzeRequest) toRequest() Request {
	include := true
	if r.IncludeAIAnalysis != nil {
		include = *r.IncludeAIAnalysis
	}
	return Request{
		ChartID:           strings.TrimSpace(r.ChartID),
		PatientID:         strings.TrimSpace(r.PatientID),
		IncludeAIAnalysis: include,
		ForceReExtract:    r.ForceReExtract,
	}
}

func (h *Handler) bind(c *gin.Context) (Request, bool) {
	var body analyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return Request{}, false
	}
	req := body.toRequest()
	if req.ChartID == "" && req.PatientID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", ErrInvalidRequest.Error(), nil)
		return Request{}, false
	}
	chartID := req.ChartID
	if chartID == "" {
		chartID = req.PatientID
	}
	c.Set("chartId", chartID)
	return req, true
}

func (h *Handler) analyze(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	rep, err := h.Svc.Run(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNoDocuments):
			respond.Error(c, http.StatusNotFound, "not_found", "no documents found for chart", nil)
		case extract.IsConfigurationError(err):
			respond.Error(c, http.StatusServiceUnavailable, "not_configured", "inference or conversion services are not configured", nil)
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			respond.Error(c, http.StatusGatewayTimeout, "timeout", "chart QA run did not finish in time", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "chart QA run failed", nil)
		}
		return
	}
	respond.OK(c, rep)
}

func (h *Handler) enqueue(c *gin.Context) {
	if h.Queue == nil {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", ErrJobQueueNotConfigured.Error(), nil)
		return
	}
	req, ok := h.bind(c)
	if !ok {
		return
	}
	ctx := WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
	msg, err := Enqueue(ctx, h.Queue, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to enqueue chart QA job", nil)
		}
		return
	}
	c.Set("jobId", msg.JobID)
	respond.Accepted(c, gin.H{
		"jobId":   msg.JobID,
		"chartId": msg.ChartID,
		"status":  "queued",
	})
}
