package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/dbdemo/showcase/internal/client"
	"github.com/dbdemo/showcase/internal/middleware"
	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/poller"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/pkg/response"
)

type ResultHandler struct {
	service *service.ResultService
}

func NewResultHandler(svc *service.ResultService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// Result handles GET /api/result
func (h *ResultHandler) Result(c *fiber.Ctx) error {
	result, err := h.service.Snapshot(c.UserContext(), middleware.GetSession(c))
	if err != nil {
		return response.UpstreamError(c, model.TextPollFailed)
	}
	return response.OK(c, result)
}

// Download handles GET /api/result/download
func (h *ResultHandler) Download(c *fiber.Ctx) error {
	file, err := h.service.Download(c.UserContext(), middleware.GetSession(c))
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrNoJob):
			return response.NoJob(c, model.TextNoJob)
		case errors.Is(err, service.ErrImageNotReady), errors.Is(err, client.ErrNoImage):
			return response.NotReady(c, model.TextImageNotFound)
		default:
			return response.UpstreamError(c, model.TextDownloadFailed)
		}
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Send(file.Data)
}

// Share handles POST /api/result/share
func (h *ResultHandler) Share(c *fiber.Ctx) error {
	result, err := h.service.Share(c.UserContext(), middleware.GetSession(c))
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrNoJob):
			return response.NoJob(c, model.TextNoJob)
		case errors.Is(err, service.ErrImageNotReady):
			return response.NotReady(c, model.TextShareMissing)
		default:
			return response.UpstreamError(c, err.Error())
		}
	}
	return response.OK(c, result)
}

type notifyBody struct {
	Phone string `json:"phone" form:"phone"`
}

// Notify handles POST /api/notify
func (h *ResultHandler) Notify(c *fiber.Ctx) error {
	var body notifyBody
	if err := c.BodyParser(&body); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	err := h.service.Notify(c.UserContext(), middleware.GetSession(c), body.Phone)
	if err != nil {
		switch {
		case errors.Is(err, poller.ErrNoJob):
			return response.NoJob(c, model.TextNoJob)
		case errors.Is(err, client.ErrInvalidNotify):
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		default:
			return response.UpstreamError(c, err.Error())
		}
	}
	return response.OK(c, fiber.Map{"status": "PHONE_REGISTERED"})
}
