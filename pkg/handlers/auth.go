package handlers

import (
	"tms/pkg/models"
	"tms/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	svc services.AuthService
}

func NewAuth(svc services.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	resp, err := h.svc.Register(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(resp)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	resp, err := h.svc.Login(req, c.Get("User-Agent"), c.IP())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
	}

	resp, err := h.svc.Refresh(req.RefreshToken)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(resp)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.svc.Me(callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	c.BodyParser(&req)

	if err := h.svc.Logout(req.RefreshToken); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "logged out"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	if err := h.svc.LogoutAll(callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"status": "logged out everywhere"})
}

func (h *AuthHandler) Sessions(c *fiber.Ctx) error {
	sessions, err := h.svc.Sessions(callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": sessions})
}

// Users serves the directory the reviewer board picks passengers from.
func (h *AuthHandler) Users(c *fiber.Ctx) error {
	users, err := h.svc.Users()
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"items": users})
}
