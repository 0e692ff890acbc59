package handlers

import (
	"errors"
	"log"

	"tms/pkg/errs"

	"github.com/gofiber/fiber/v2"
)

// fail translates a domain error into an HTTP response. Every non-2xx body
// is `{"error": "<message>"}`, which callers surface verbatim.
func fail(c *fiber.Ctx, err error) error {
	var (
		validation *errs.ValidationError
		notFound   *errs.NotFoundError
		authz      *errs.AuthorizationError
		capacity   *errs.CapacityExceededError
		conflict   *errs.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &authz):
		return c.Status(403).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &notFound):
		return c.Status(404).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &conflict):
		return c.Status(409).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &capacity):
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("[HTTP] internal error: %v", err)
	return c.Status(500).JSON(fiber.Map{"error": "internal error"})
}

func callerID(c *fiber.Ctx) int {
	id, _ := c.Locals("user_id").(int)
	return id
}

func callerRole(c *fiber.Ctx) string {
	role, _ := c.Locals("role").(string)
	return role
}
