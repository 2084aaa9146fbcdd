package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/pkg/response"
)

type TemplateHandler struct {
	interval time.Duration
}

func NewTemplateHandler(interval time.Duration) *TemplateHandler {
	return &TemplateHandler{interval: interval}
}

// List handles GET /api/templates
func (h *TemplateHandler) List(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"templates":       model.Templates(),
		"intervalSeconds": int(h.interval.Seconds()),
	})
}

// Get handles GET /api/templates/:id
func (h *TemplateHandler) Get(c *fiber.Ctx) error {
	tmpl, ok := model.ResolveTemplate(c.Params("id"))
	if !ok {
		return response.NotFound(c, "Template not found")
	}
	return response.OK(c, tmpl)
}
