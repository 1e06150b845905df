package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/civic-issue-api/internal/dto"
	appErrors "github.com/noah-isme/civic-issue-api/pkg/errors"
	"github.com/noah-isme/civic-issue-api/pkg/response"
)

type evidenceService interface {
	MaxFileSize() int64
	Upload(ctx context.Context, image []byte, filename, uploaderID string) (*dto.EvidenceUploadResponse, error)
	Open(token string) ([]byte, string, error)
}

// EvidenceHandler accepts evidence photos and serves them back through signed links.
type EvidenceHandler struct {
	service evidenceService
}

// NewEvidenceHandler constructs an EvidenceHandler.
func NewEvidenceHandler(svc evidenceService) *EvidenceHandler {
	return &EvidenceHandler{service: svc}
}

// Upload godoc
// @Summary Upload evidence photo
// @Description Stores the image, returns a signed URL and, when the classifier is reachable, a suggested category.
// @Tags Evidence
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Evidence image"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /issues/evidence [post]
func (h *EvidenceHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	limit := h.service.MaxFileSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1024*1024)
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	if fileHeader.Size > limit {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image is too large"))
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open image"))
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read image"))
		return
	}

	result, err := h.service.Upload(c.Request.Context(), data, fileHeader.Filename, actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Fetch evidence image
// @Tags Evidence
// @Produce image/jpeg
// @Produce image/png
// @Param token path string true "Signed evidence token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /evidence/{token} [get]
func (h *EvidenceHandler) Download(c *gin.Context) {
	data, contentType, err := h.service.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
