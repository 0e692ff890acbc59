package handlers

import (
	"tms/pkg/models"
	"tms/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type BusHandler struct {
	svc services.BusService
}

func NewBuses(svc services.BusService) *BusHandler {
	return &BusHandler{svc: svc}
}

func (h *BusHandler) List(c *fiber.Ctx) error {
	buses, err := h.svc.List()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": buses})
}

func (h *BusHandler) Get(c *fiber.Ctx) error {
	bus, err := h.svc.Get(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bus)
}

func (h *BusHandler) Create(c *fiber.Ctx) error {
	var req models.BusCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	bus, err := h.svc.Create(req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"bus": bus})
}

func (h *BusHandler) Update(c *fiber.Ctx) error {
	var req models.BusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	bus, err := h.svc.Update(c.Params("id"), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"bus": bus})
}

func (h *BusHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "deleted"})
}

func (h *BusHandler) GetPassengers(c *fiber.Ctx) error {
	passengers, err := h.svc.GetPassengers(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": passengers})
}

func (h *BusHandler) SetPassengers(c *fiber.Ctx) error {
	var req models.SetPassengersRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	bus, err := h.svc.SetPassengers(c.Params("id"), req.AssignedPassengerIDs)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"bus": bus})
}

func (h *BusHandler) Nearby(c *fiber.Ctx) error {
	lat := c.QueryFloat("lat")
	lng := c.QueryFloat("lng")
	radius := c.QueryFloat("radius_km", 5)

	buses, err := h.svc.Nearby(lat, lng, radius)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": buses})
}

func (h *BusHandler) UpdateLocation(c *fiber.Ctx) error {
	var req models.LocationUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	if err := h.svc.UpdateLocation(c.Params("id"), callerID(c), callerRole(c), req.Lat, req.Lng); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

func (h *BusHandler) Live(c *fiber.Ctx) error {
	positions, err := h.svc.Live()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": positions})
}
