package router

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/dbdemo/showcase/internal/config"
	"github.com/dbdemo/showcase/internal/handler"
	"github.com/dbdemo/showcase/internal/middleware"
	"github.com/dbdemo/showcase/internal/service"
	"github.com/dbdemo/showcase/internal/session"
	ws "github.com/dbdemo/showcase/internal/websocket"
	"github.com/dbdemo/showcase/pkg/response"
)

// Services reports which backends are configured, for /health
type Services struct {
	Remote  bool
	Redis   bool
	Storage bool
}

// Deps is everything the HTTP surface needs
type Deps struct {
	Config   *config.Config
	Sessions session.Store
	Redis    *redis.Client
	Generate *service.GenerateService
	Result   *service.ResultService
	Hub      *ws.Hub
	Services Services
	// AccessLog turns on the request logger
	AccessLog bool
}

// New builds the gateway app
func New(d *Deps) *fiber.App {
	cfg := d.Config

	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		BodyLimit:    25 * 1024 * 1024, // 25MB
	})

	app.Use(recover.New())
	if d.AccessLog {
		logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
		if strings.EqualFold(cfg.Server.LogLevel, "debug") {
			logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
			log.Println("Debug logging enabled")
		}
		app.Use(logger.New(logger.Config{
			Format: logFormat,
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"remote":  d.Services.Remote,
				"redis":   d.Services.Redis,
				"storage": d.Services.Storage,
			},
		})
	})

	templateHandler := handler.NewTemplateHandler(cfg.Carousel.Interval)
	generateHandler := handler.NewGenerateHandler(d.Generate)
	resultHandler := handler.NewResultHandler(d.Result)
	wsHandler := handler.NewWSHandler(d.Hub, cfg.Carousel.Interval)
	rateLimiter := middleware.NewRateLimiter(d.Redis)
	sessions := middleware.Session(d.Sessions, cfg.Session.TTL)

	api := app.Group("/api")
	api.Get("/templates", templateHandler.List)
	api.Get("/templates/:id", templateHandler.Get)

	api.Post("/generate", sessions, rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generateHandler.Generate)

	result := api.Group("/result", sessions)
	result.Get("/", resultHandler.Result)
	result.Get("/download", resultHandler.Download)
	result.Post("/share", resultHandler.Share)
	api.Post("/notify", sessions, resultHandler.Notify)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/result", sessions, websocket.New(wsHandler.Result))
	app.Get("/ws/carousel", websocket.New(wsHandler.Carousel))

	return app
}

// ErrorHandler renders unhandled errors in the JSON error envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	errCode := response.CodeServiceError
	if code == fiber.StatusNotFound {
		errCode = response.CodeNotFound
	}
	return response.Error(c, code, errCode, message, nil)
}
