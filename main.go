package main

import (
	"fmt"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"threadmail/config"
	"threadmail/handlers/api"
	"threadmail/ingest"
	"threadmail/middleware"
	"threadmail/storage"
	"threadmail/utils"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	utils.Log.SetLevel(utils.ParseLogLevel(cfg.Log.Level))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
		utils.Log.Error("Failed to create data directory: %v", err)
		os.Exit(1)
	}

	db, err := storage.InitDB(cfg.Storage.DataDir)
	if err != nil {
		utils.Log.Error("Failed to open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	threadStore := storage.NewThreadStore(db)
	ingestService := ingest.NewService(threadStore, utils.Log)
	cache := utils.NewMemoryCache()

	// Initialize Fiber
	app := fiber.New(fiber.Config{
		AppName: "threadmail",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			} else {
				utils.Log.Error("Unhandled error: %v", err)
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	// Add global middleware
	app.Use(recover.New())  // Recover from panics
	app.Use(logger.New())   // Request logging
	app.Use(compress.New()) // Response compression
	app.Use(helmet.New(helmet.Config{ // Security headers
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "SAMEORIGIN",
		ReferrerPolicy:     "no-referrer",
	}))

	// Add rate limiting (100 requests per minute per IP)
	app.Use(middleware.RateLimiter(100, time.Minute))

	// Initialize handlers
	threadHandler := api.NewThreadHandler(threadStore, cache, cfg.ThreadListTTL())
	ingestHandler := api.NewIngestHandler(ingestService, cache)

	// API routes
	apiRoutes := app.Group("/api")
	{
		apiRoutes.Post("/ingest", ingestHandler.IngestMessage)

		apiRoutes.Get("/threads", threadHandler.ListThreads)
		apiRoutes.Get("/threads/:id", threadHandler.GetThread)
		apiRoutes.Get("/threads/:id/events", threadHandler.GetThreadEvents)

		apiRoutes.Post("/threads/:id/archive", threadHandler.Archive)
		apiRoutes.Post("/threads/:id/unarchive", threadHandler.Unarchive)
		apiRoutes.Post("/threads/:id/mute", threadHandler.Mute)
		apiRoutes.Post("/threads/:id/unmute", threadHandler.Unmute)
		apiRoutes.Post("/threads/:id/read", threadHandler.MarkAllRead)

		apiRoutes.Delete("/threads/:id/messages/:messageId", threadHandler.RemoveMessage)
		apiRoutes.Post("/threads/:id/messages/:messageId/read", threadHandler.MarkMessageRead)
		apiRoutes.Post("/threads/:id/messages/:messageId/unread", threadHandler.MarkMessageUnread)
		apiRoutes.Post("/threads/:id/messages/:messageId/flag", threadHandler.FlagMessage)
		apiRoutes.Post("/threads/:id/messages/:messageId/unflag", threadHandler.UnflagMessage)
		apiRoutes.Post("/threads/:id/messages/:messageId/labels/:label", threadHandler.LabelMessage)
		apiRoutes.Delete("/threads/:id/messages/:messageId/labels/:label", threadHandler.UnlabelMessage)
	}

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Retention sweeper: archived threads idle past the cutoff are deleted.
	// Storage is the only place a thread is ever destroyed.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval())
		defer ticker.Stop()

		for range ticker.C {
			purged, err := threadStore.PurgeInactiveBefore(cfg.RetentionCutoff(time.Now()))
			if err != nil {
				utils.Log.Error("Retention sweep failed: %v", err)
				continue
			}
			if purged > 0 {
				utils.Log.Info("Retention sweep purged %d thread(s)", purged)
				cache.Delete(api.ThreadListCacheKey)
			}
		}
	}()

	// Start server
	utils.Log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		utils.Log.Error("Error starting server: %v", err)
		os.Exit(1)
	}
}
