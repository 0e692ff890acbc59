package handlers

import (
	"tms/pkg/models"
	"tms/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type RequestHandler struct {
	svc services.RequestService
}

func NewRequests(svc services.RequestService) *RequestHandler {
	return &RequestHandler{svc: svc}
}

func (h *RequestHandler) Create(c *fiber.Ctx) error {
	var req models.CreateBusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	created, err := h.svc.Create(callerID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(created)
}

func (h *RequestHandler) ListMine(c *fiber.Ctx) error {
	items, err := h.svc.ListMine(callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *RequestHandler) ListAll(c *fiber.Ctx) error {
	items, err := h.svc.ListAll(callerRole(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": items})
}

func (h *RequestHandler) Get(c *fiber.Ctx) error {
	req, err := h.svc.Get(c.Params("id"), callerID(c), callerRole(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(req)
}

func (h *RequestHandler) Decide(c *fiber.Ctx) error {
	var dec models.Decision
	if err := c.BodyParser(&dec); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	updated, err := h.svc.Decide(c.Params("id"), dec)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(updated)
}
