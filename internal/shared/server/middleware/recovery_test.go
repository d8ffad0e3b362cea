package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/shared/telemetry"
)

func TestRecoveryReturnsStandardError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var logs bytes.Buffer
	restore := telemetry.SetOutput(&logs)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.POST("/api/v1/qa/analyze", func(c *gin.Context) {
		c.Set("chartId", "chart-9")
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/qa/analyze", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "internal_error" {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	out := logs.String()
	if !strings.Contains(out, `"chart_id":"chart-9"`) || !strings.Contains(out, `"error":"boom"`) {
		t.Fatalf("expected panic log with chart id, got %s", out)
	}
}
