package middleware

import (
	"os"

	"github.com/gofiber/fiber/v2/middleware/cors"
)

func CORSConfig() cors.Config {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		origins = "http://localhost:3000,http://localhost:5173"
	}
	return cors.Config{
		AllowOrigins: origins,
		AllowMethods: "POST,GET,DELETE,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Cache-Control,Pragma,Authorization",
	}
}
