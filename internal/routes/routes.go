package routes

import (
	"time"

	"github.com/cipher-systems/report-portal/internal/config"
	"github.com/cipher-systems/report-portal/internal/handlers"
	"github.com/cipher-systems/report-portal/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	reportHandler *handlers.ReportHandler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Discord OAuth sign-in
	auth := api.Group("/auth")
	auth.Get("/login", authHandler.Login)
	auth.Get("/callback", authHandler.Callback)
	auth.Get("/me", middleware.JWTProtected(cfg), authHandler.Me)
	auth.Post("/logout", authHandler.Logout)

	// Report submission is open to anonymous users but throttled harder:
	// 10 req/min per IP
	api.Post("/reports",
		limiter.New(limiter.Config{
			Max:               10,
			Expiration:        1 * time.Minute,
			LimiterMiddleware: limiter.SlidingWindow{},
			KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
		}),
		middleware.OptionalAuth(cfg),
		reportHandler.CreateReport)

	// Staff dashboard and report access
	api.Get("/reports", middleware.JWTProtected(cfg), middleware.StaffRequired(), reportHandler.ListReports)
	api.Get("/reports/:id", middleware.JWTProtected(cfg), reportHandler.GetReport)
	api.Patch("/reports/:id", middleware.JWTProtected(cfg), middleware.StaffRequired(), reportHandler.UpdateReport)
}
