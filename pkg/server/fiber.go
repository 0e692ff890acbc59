package server

import (
	"time"

	"tms/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// NewApp builds the Fiber app with the middleware every route shares.
// Position payloads are small and frequent, so compression stays at the
// fastest level.
func NewApp(name string) *fiber.App {
	started := time.Now()

	app := fiber.New(fiber.Config{
		AppName:           name,
		ReduceMemoryUsage: true,
	})

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(cors.New(middleware.CORSConfig()))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"service":  name,
			"uptime_s": int64(time.Since(started).Seconds()),
		})
	})

	return app
}
