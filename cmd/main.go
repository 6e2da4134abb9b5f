package main

import (
	"ticketsplit/internal/handler"
	"ticketsplit/internal/middleware"
	"ticketsplit/pkg/config"
	"ticketsplit/pkg/database"
	"ticketsplit/pkg/jwtutil"
	"ticketsplit/pkg/logger"
	"ticketsplit/pkg/mailer"
	"ticketsplit/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables. A missing
	// required setting is fatal.
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting ticketsplit service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Shared services, injected into the handlers
	jwt := jwtutil.New(&cfg.JWT)
	mail := mailer.New(&cfg.Mail)

	users := handler.NewUserHandler(db, jwt, mail)
	projects := handler.NewProjectHandler(db)
	tickets := handler.NewTicketHandler(db)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	handler.RegisterRoutes(e, jwt, users, projects, tickets)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
