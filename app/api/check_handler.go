package api

import (
	"docfill/store"

	"github.com/gofiber/fiber/v2"
)

type CheckHandler struct {
	store store.Storer
}

func NewCheckHandler(s store.Storer) *CheckHandler {
	return &CheckHandler{store: s}
}

func (h *CheckHandler) HandleHealthy(c *fiber.Ctx) error {
	if err := h.store.Ping(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"result": "degraded", "db": false})
	}
	return c.JSON(fiber.Map{"result": "ok", "db": true})
}
