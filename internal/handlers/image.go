package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tradepost/composite-backend/internal/platform/apierr"
	"github.com/tradepost/composite-backend/internal/services"
)

const maxUploadBytes = 16 << 20

type ImageHandler struct {
	imageService services.ImageService
}

func NewImageHandler(imageService services.ImageService) *ImageHandler {
	return &ImageHandler{imageService: imageService}
}

func (ih *ImageHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, apierr.CodeValidation,
			fmt.Errorf("multipart field %q required: %w", "file", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		Respond(c, err)
		return
	}
	defer file.Close()
	uploaded, err := ih.imageService.Upload(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploaded)
}

// Resolve is mounted on a wildcard because stored keys contain slashes.
func (ih *ImageHandler) Resolve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		Respond(c, apierr.Validation(fmt.Errorf("image key required")))
		return
	}
	resolved, err := ih.imageService.ResolveURL(c.Request.Context(), key)
	if err != nil {
		Respond(c, err)
		return
	}
	RespondOK(c, resolved)
}
