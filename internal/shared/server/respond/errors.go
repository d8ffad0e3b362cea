package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/shared/telemetry"
)

// ErrorBody is the error object every endpoint returns. RequestID echoes the
// X-Request-Id of the failed call so operators can find its log lines.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// contextFields maps gin context keys set by handlers to log field names.
var contextFields = [][2]string{
	{"chartId", "chart_id"},
	{"documentId", "document_id"},
	{"jobId", "job_id"},
}

// Error aborts the request with a standardized error body. Client errors are
// logged at warn, server errors at error.
func Error(c *gin.Context, status int, code, message string, details any) {
	requestID := c.GetString("requestId")
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": requestID,
	}
	for _, kv := range contextFields {
		if v := c.GetString(kv[0]); v != "" {
			fields[kv[1]] = v
		}
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	}})
}
