package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/shared/server/respond"
)

const maxUploadSize = 200 << 20 // 200MB

// Extractor is the orchestrator contract the handler needs.
type Extractor interface {
	Extract(ctx context.Context, src Source) (Result, error)
}

// Handler exposes single-file extraction over HTTP.
type Handler struct {
	Extractor Extractor
}

// NewHandler constructs a Handler.
func NewHandler(extractor Extractor) *Handler {
	return &Handler{Extractor: extractor}
}

// RegisterRoutes attaches extraction routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/extractions", h.extract)
}

type extractRequest struct {
	FileRef      string  `json:"fileRef"`
	DeclaredKind string  `json:"declaredKind"`
	FileName     string  `json:"fileName"`
	MimeType     string  `json:"mimeType"`
	SizeBytes    int64   `json:"sizeBytes"`
	Frames       []Frame `json:"frames"`
}

func (h *Handler) extract(c *gin.Context) {
	var (
		src Source
		ok  bool
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		src, ok = h.multipartSource(c)
	} else {
		src, ok = h.jsonSource(c)
	}
	if !ok {
		return
	}

	res, err := h.Extractor.Extract(c.Request.Context(), src)
	if err != nil {
		switch {
		case IsConfigurationError(err):
			respond.Error(c, http.StatusServiceUnavailable, "not_configured", "extraction services are not configured", nil)
		case c.Request.Context().Err() != nil:
			respond.Error(c, http.StatusGatewayTimeout, "timeout", "extraction cancelled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "extraction failed", nil)
		}
		return
	}
	respond.OK(c, res)
}

func (h *Handler) jsonSource(c *gin.Context) (Source, bool) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return Source{}, false
	}
	req.FileRef = strings.TrimSpace(req.FileRef)
	if req.FileRef == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "fileRef is required", nil)
		return Source{}, false
	}
	return Source{
		Ref:          req.FileRef,
		DeclaredKind: req.DeclaredKind,
		FileName:     strings.TrimSpace(req.FileName),
		MimeType:     req.MimeType,
		Size:         req.SizeBytes,
		Frames:       req.Frames,
	}, true
}

func (h *Handler) multipartSource(c *gin.Context) (Source, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return Source{}, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Source{}, false
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return Source{}, false
	}

	var frames []Frame
	if raw := strings.TrimSpace(c.PostForm("frames")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &frames); err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "frames must be a JSON array", nil)
			return Source{}, false
		}
	}

	fileName := strings.TrimSpace(c.PostForm("fileName"))
	if fileName == "" {
		fileName = fileHeader.Filename
	}
	return Source{
		Bytes:        data,
		DeclaredKind: c.PostForm("declaredKind"),
		FileName:     fileName,
		MimeType:     fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		Frames:       frames,
	}, true
}
