package handler

import (
	"errors"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/middleware"
	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/pkg/response"
)

const maxUploadSize = 20 * 1024 * 1024 // 20MB

type GenerateHandler struct {
	service *service.GenerateService
}

func NewGenerateHandler(svc *service.GenerateService) *GenerateHandler {
	return &GenerateHandler{service: svc}
}

// Generate handles POST /api/generate
func (h *GenerateHandler) Generate(c *fiber.Ctx) error {
	templateKey := c.FormValue("template")
	if templateKey == "" {
		return response.ValidationError(c, "template is required", nil)
	}

	file, err := c.FormFile("image")
	if err != nil {
		return response.ValidationError(c, "image is required", nil)
	}
	if file.Size > maxUploadSize {
		return response.ValidationError(c, "File size exceeds 20MB limit", map[string]interface{}{
			"maxSize":  maxUploadSize,
			"fileSize": file.Size,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return response.ServiceError(c, "Failed to read file")
	}

	upload := &model.UploadRequest{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Data:        data,
	}
	if upload.ContentType == "application/octet-stream" {
		// let the client sniff it
		upload.ContentType = ""
	}

	result, err := h.service.Generate(c.UserContext(), middleware.GetSession(c), templateKey, upload)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnknownTemplate):
			return response.ValidationError(c, "Unknown template", map[string]interface{}{"template": templateKey})
		case errors.Is(err, client.ErrInvalidUpload):
			return response.ValidationError(c, "Invalid image", formatValidationErrors(err))
		default:
			return response.UpstreamError(c, model.TextSubmitFailed+err.Error())
		}
	}

	return response.Accepted(c, result)
}
