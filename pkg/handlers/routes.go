package handlers

import (
	"tms/pkg/models"
	"tms/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type RouteHandler struct {
	svc services.RouteService
}

func NewRoutes(svc services.RouteService) *RouteHandler {
	return &RouteHandler{svc: svc}
}

func (h *RouteHandler) List(c *fiber.Ctx) error {
	routes, err := h.svc.List()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": routes})
}

func (h *RouteHandler) Get(c *fiber.Ctx) error {
	route, err := h.svc.Get(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(route)
}

func (h *RouteHandler) Create(c *fiber.Ctx) error {
	var req models.RouteUpsertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	route, err := h.svc.Create(req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(route)
}

func (h *RouteHandler) Update(c *fiber.Ctx) error {
	var req models.RouteUpsertRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	route, err := h.svc.Update(c.Params("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(route)
}

func (h *RouteHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}
