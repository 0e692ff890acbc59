package main

import (
	"log"
	"os"
	"strings"
	"time"

	"tms/pkg/broker"
	"tms/pkg/cache"
	"tms/pkg/database"
	"tms/pkg/envelope"
	"tms/pkg/handlers"
	"tms/pkg/hub"
	"tms/pkg/middleware"
	"tms/pkg/models"
	"tms/pkg/repository"
	"tms/pkg/server"
	"tms/pkg/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/golang-jwt/jwt/v5"
)

const eventChannel = "transit.events"

func main() {
	db := database.Connect()
	defer db.Close()

	// Serverless PG: keep pool small, connections short-lived
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	database.Migrate(db)

	log.Println("[TMS] Connecting to Redis...")
	redis := cache.New()
	defer redis.Close()
	log.Println("[TMS] Redis connected")

	events := broker.New()
	defer events.Close()

	wsHub := hub.New()

	// Location events may originate on any instance; the broker fans them
	// out so every hub sees them.
	events.On("bus.location", func(env envelope.Envelope) {
		pos, err := envelope.ParseData[models.BusPosition](env)
		if err != nil {
			return
		}
		wsHub.Broadcast("bus.location", "transit", pos)
	})
	events.Subscribe(eventChannel)

	userRepo := repository.NewUserRepository(db)
	routeRepo := repository.NewRouteRepository(db)
	busRepo := repository.NewBusRepository(db)
	requestRepo := repository.NewRequestRepository(db)

	go cleanExpiredSessions(userRepo)

	authSvc := services.NewAuthService(userRepo)
	routeSvc := services.NewRouteService(routeRepo)
	busSvc := services.NewBusService(busRepo, userRepo, redis, events)
	requestSvc := services.NewRequestService(requestRepo, busRepo, routeRepo, userRepo)

	auth := handlers.NewAuth(authSvc)
	routes := handlers.NewRoutes(routeSvc)
	buses := handlers.NewBuses(busSvc)
	requests := handlers.NewRequests(requestSvc)

	app := server.NewApp("tms")

	authGroup := app.Group("/auth")
	authGroup.Post("/register", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), auth.Register)

	authGroup.Post("/login", limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}), auth.Login)

	authGroup.Post("/refresh", auth.Refresh)

	authPriv := authGroup.Group("", middleware.AuthMiddleware)
	authPriv.Get("/me", auth.Me)
	authPriv.Post("/logout", auth.Logout)
	authPriv.Post("/logout-all", auth.LogoutAll)
	authPriv.Get("/sessions", auth.Sessions)

	app.Get("/users", middleware.AuthMiddleware,
		middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), auth.Users)

	// ── Bus requests: create/track by requesters, decide by reviewers ──
	reqGroup := app.Group("/bus-requests", middleware.AuthMiddleware)
	reqGroup.Post("/", middleware.RequireRoles(models.RoleStudent, models.RoleStaff), requests.Create)
	reqGroup.Get("/mine", requests.ListMine)
	reqGroup.Get("/", requests.ListAll)
	reqGroup.Get("/:id", requests.Get)
	reqGroup.Put("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), requests.Decide)

	// ── Buses: roster, live positions, admin CRUD ──
	busGroup := app.Group("/buses", middleware.AuthMiddleware)
	busGroup.Get("/", buses.List)
	busGroup.Get("/nearby", buses.Nearby)
	busGroup.Get("/live", buses.Live)
	busGroup.Post("/", middleware.RequireRoles(models.RoleAdmin), buses.Create)
	busGroup.Get("/:id", buses.Get)
	busGroup.Put("/:id", middleware.RequireRoles(models.RoleAdmin), buses.Update)
	busGroup.Delete("/:id", middleware.RequireRoles(models.RoleAdmin), buses.Delete)
	busGroup.Get("/:id/passengers", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), buses.GetPassengers)
	busGroup.Put("/:id/passengers", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff), buses.SetPassengers)
	busGroup.Put("/:id/location", middleware.RequireRoles(models.RoleDriver, models.RoleAdmin), buses.UpdateLocation)

	// ── Routes registry ──
	routeGroup := app.Group("/routes", middleware.AuthMiddleware)
	routeGroup.Get("/", routes.List)
	routeGroup.Get("/:id", routes.Get)
	routeGroup.Post("/", middleware.RequireRoles(models.RoleAdmin), routes.Create)
	routeGroup.Put("/:id", middleware.RequireRoles(models.RoleAdmin), routes.Update)
	routeGroup.Delete("/:id", middleware.RequireRoles(models.RoleAdmin), routes.Delete)

	app.Get("/hub/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"clients": wsHub.ClientCount()})
	})

	app.Use("/ws", parseWSToken)
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(int)
		name, _ := c.Locals("name").(string)
		wsHub.HandleClientConn(c, userID, name)
	}))

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	addr := "0.0.0.0:" + port
	log.Printf("[TMS] Server starting on %s", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("[TMS] Failed to start: %v", err)
	}
}

// parseWSToken authenticates the WebSocket upgrade without rejecting
// anonymous viewers; the live feed is read-only.
func parseWSToken(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenStr = authHeader[7:]
		}
	}

	userID := 0
	name := ""

	if tokenStr != "" {
		token, err := jwt.ParseWithClaims(tokenStr, &jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
			return []byte(middleware.JwtSecret()), nil
		})

		if err == nil && token.Valid {
			claims := token.Claims.(*jwt.MapClaims)
			if id, ok := (*claims)["user_id"].(float64); ok {
				userID = int(id)
			}
			if n, ok := (*claims)["name"].(string); ok {
				name = n
			}
		}
	}

	c.Locals("user_id", userID)
	c.Locals("name", name)
	return c.Next()
}

func cleanExpiredSessions(repo repository.UserRepository) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		repo.DeleteExpiredSessions()
	}
}
