package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/database"
	"github.com/cottageplayer/backend/internal/handlers"
	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/internal/session"
	"github.com/cottageplayer/backend/internal/storage"
	"github.com/cottageplayer/backend/pkg/logger"
)

func main() {
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	mediaStore, err := storage.NewMediaStore(cfg.Storage)
	if err != nil {
		log.Fatalf("media store initialization failed: %v", err)
	}
	if err := mediaStore.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring media bucket: %v", err)
	}

	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL)
	verifier := services.NewGoogleVerifier(cfg.Google)
	accounts := services.NewAccountService(db, cfg.Signup)
	library := services.NewLibraryService(db, mediaStore, cfg.Library)
	playlists := services.NewPlaylistService(db, cfg.Library.PlaylistNameCatalog)

	if err := accounts.ReconcileAdmins(context.Background(), cfg.Signup.InitialAdminEmails); err != nil {
		log.Fatalf("admin reconciliation failed: %v", err)
	}

	authHandler := handlers.NewAuthHandler(cfg, verifier, accounts, sessions)
	usersHandler := handlers.NewUsersHandler(accounts)
	mediaHandler := handlers.NewMediaHandler(library, cfg.Library)
	playlistsHandler := handlers.NewPlaylistsHandler(playlists)

	authMiddleware := middleware.NewAuthMiddleware(db, sessions)

	app := fiber.New(fiber.Config{BodyLimit: 2 * 1024 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.FrontendURL))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Get("/login", authHandler.Login)
	authRoutes.Get("/callback", authHandler.Callback)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/status", authHandler.Status)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapManageUsers))
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Post("/", usersHandler.Create)
	userRoutes.Put("/:id/role", usersHandler.SetRole)
	userRoutes.Put("/:id/active", usersHandler.SetActive)
	userRoutes.Delete("/:id", usersHandler.Delete)

	mediaRoutes := api.Group("/media", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapView))
	mediaRoutes.Get("/catalogs", mediaHandler.Catalogs)
	mediaRoutes.Post("/upload", mediaHandler.Upload)
	mediaRoutes.Get("/", mediaHandler.List)
	mediaRoutes.Get("/:id/content", mediaHandler.Content)
	mediaRoutes.Get("/:id/url", mediaHandler.ContentURL)
	mediaRoutes.Get("/:id/thumbnail", mediaHandler.Thumbnail)
	mediaRoutes.Get("/:id", mediaHandler.Get)
	mediaRoutes.Put("/:id", mediaHandler.Update)
	mediaRoutes.Delete("/:id", mediaHandler.Delete)

	playlistRoutes := api.Group("/playlists", authMiddleware.RequireAuth, middleware.RequireCapability(authz.CapView))
	playlistRoutes.Post("/", playlistsHandler.Create)
	playlistRoutes.Get("/", playlistsHandler.List)
	playlistRoutes.Get("/:id", playlistsHandler.Get)
	playlistRoutes.Put("/:id", playlistsHandler.Update)
	playlistRoutes.Delete("/:id", playlistsHandler.Delete)
	playlistRoutes.Put("/:id/items", playlistsHandler.SetItems)
	playlistRoutes.Post("/:id/items/:mediaID", playlistsHandler.AddItem)
	playlistRoutes.Delete("/:id/items/:mediaID", playlistsHandler.RemoveItem)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}
