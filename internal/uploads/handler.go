package uploads

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/shared/server/respond"
	"chart-qa-backend/internal/shared/storage/object"
	"chart-qa-backend/internal/shared/telemetry"
)

const (
	maxUploadBytes       = 500 << 20
	presignExpires       = 15 * time.Minute
	DefaultUploadsPrefix = "uploads/"
)

var allowedContentTypes = map[string]struct{}{
	"application/pdf":               {},
	"application/msword":            {},
	"application/vnd.ms-powerpoint": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"text/plain":      {},
	"text/markdown":   {},
	"video/mp4":       {},
	"video/quicktime": {},
	"video/webm":      {},
}

// Presigner is the subset of the S3 presign client the handler needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Handler issues presigned S3 PUT URLs for chart document uploads.
type Handler struct {
	presign Presigner
	bucket  string
	prefix  string
}

// NewHandler constructs a Handler. A nil presigner means uploads are not configured.
func NewHandler(presign Presigner, bucket, prefix string) *Handler {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultUploadsPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Handler{presign: presign, bucket: strings.TrimSpace(bucket), prefix: prefix}
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type presignResponse struct {
	UploadURL        string `json:"uploadUrl"`
	S3Key            string `json:"s3Key"`
	SourceRef        string `json:"sourceRef"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/charts/:chartId/uploads/presign", h.presignUpload)
}

func (h *Handler) presignUpload(c *gin.Context) {
	chartID := strings.TrimSpace(c.Param("chartId"))
	c.Set("chartId", chartID)

	if h.presign == nil || h.bucket == "" {
		respond.Error(c, http.StatusServiceUnavailable, "not_configured", "uploads not configured", nil)
		return
	}

	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.FileName = strings.TrimSpace(req.FileName)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))
	if req.ContentType == "" {
		req.ContentType = strings.ToLower(strings.TrimSpace(req.MimeType))
	}

	if req.FileName == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileName is required", nil)
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "contentType is not allowed", nil)
		return
	}
	if req.SizeBytes <= 0 || req.SizeBytes > maxUploadBytes {
		respond.Error(c, http.StatusBadRequest, "validation_error", "sizeBytes exceeds limit", nil)
		return
	}

	sourceRef, err := object.ChartKey(chartID, req.FileName)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid fileName or chartId", nil)
		return
	}
	key := path.Join(h.prefix, sourceRef)

	expires := presignExpires
	out, err := h.presign.PresignPutObject(c.Request.Context(), presignInput(h.bucket, key), func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		telemetry.Error("uploads.presign.failed", map[string]any{
			"err":         err.Error(),
			"bucket":      h.bucket,
			"key":         key,
			"contentType": req.ContentType,
			"sizeBytes":   req.SizeBytes,
			"chart_id":    chartID,
			"request_id":  c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to generate upload url", nil)
		return
	}

	respond.JSON(c, http.StatusOK, presignResponse{
		UploadURL:        out.URL,
		S3Key:            key,
		SourceRef:        sourceRef,
		ExpiresInSeconds: int64(expires.Seconds()),
	})
}

// presignInput leaves Content-Type and Content-Length unsigned so browsers can PUT directly.
func presignInput(bucket, key string) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
}
