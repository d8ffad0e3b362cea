package documents

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"chart-qa-backend/internal/shared/server/respond"
)

const maxUploadSize = 200 << 20 // 200MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/charts/:chartId/documents", h.create)
	rg.GET("/charts/:chartId/documents", h.list)
}

type registerRequest struct {
	PatientID string `json:"patientId"`
	Kind      string `json:"kind"`
	SourceRef string `json:"sourceRef"`
	FileName  string `json:"fileName"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
}

func (h *Handler) create(c *gin.Context) {
	chartID := strings.TrimSpace(c.Param("chartId"))
	c.Set("chartId", chartID)

	var (
		doc Document
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
		fileHeader, ferr := c.FormFile("file")
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
			return
		}
		file, ferr := fileHeader.Open()
		if ferr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
			return
		}
		defer file.Close()
		doc, err = h.Svc.Upload(c.Request.Context(), chartID, RegisterInput{
			PatientID: c.PostForm("patientId"),
			Kind:      c.PostForm("kind"),
			FileName:  fileHeader.Filename,
			MimeType:  fileHeader.Header.Get("Content-Type"),
		}, file)
	} else {
		var req registerRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
			return
		}
		doc, err = h.Svc.Register(c.Request.Context(), chartID, RegisterInput(req))
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create document", nil)
		}
		return
	}
	c.Set("documentId", doc.ID)
	respond.JSON(c, http.StatusCreated, toResponse(doc))
}

func (h *Handler) list(c *gin.Context) {
	chartID := strings.TrimSpace(c.Param("chartId"))
	c.Set("chartId", chartID)

	status, ok := ParseStatus(strings.TrimSpace(c.Query("status")))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "status must be pending, completed or failed", nil)
		return
	}

	docs, err := h.Svc.List(c.Request.Context(), chartID, status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "chartId is required", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		}
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.OK(c, gin.H{"chartId": chartID, "documents": resp})
}
