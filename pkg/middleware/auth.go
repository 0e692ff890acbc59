package middleware

import (
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

func JwtSecret() string {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret-key-change-in-production"
	}
	return secret
}

func AuthMiddleware(c *fiber.Ctx) error {
	auth := c.Get("Authorization")
	if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
		return c.Status(401).JSON(fiber.Map{"error": "missing bearer token"})
	}

	tokenStr := auth[7:]

	token, err := jwt.ParseWithClaims(tokenStr, &jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(JwtSecret()), nil
	})
	if err != nil || !token.Valid {
		return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
	}

	claims := token.Claims.(*jwt.MapClaims)
	userID, ok := (*claims)["user_id"].(float64)
	if !ok {
		return c.Status(401).JSON(fiber.Map{"error": "invalid token"})
	}
	userUUID, _ := (*claims)["uuid"].(string)
	name, _ := (*claims)["name"].(string)
	role, _ := (*claims)["role"].(string)

	c.Locals("user_id", int(userID))
	c.Locals("user_uuid", userUUID)
	c.Locals("name", name)
	c.Locals("role", role)

	return c.Next()
}

// RequireRoles gates a route to the given roles. Must run after
// AuthMiddleware so the role local is populated.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("role").(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(403).JSON(fiber.Map{"error": "access denied"})
	}
}
