package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/preventia/studio-api/internal/config"
	"github.com/preventia/studio-api/internal/domain/auth"
	"github.com/preventia/studio-api/internal/domain/image"
	"github.com/preventia/studio-api/internal/domain/public"
	"github.com/preventia/studio-api/internal/domain/studio"
	"github.com/preventia/studio-api/internal/middleware"
	"github.com/preventia/studio-api/internal/pkg/database"
	"github.com/preventia/studio-api/internal/pkg/jwt"
	"github.com/preventia/studio-api/internal/pkg/logger"
	pkgresponse "github.com/preventia/studio-api/internal/pkg/response"
	"github.com/preventia/studio-api/internal/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			// A broken config halts the studio; serve the setup guide
			// instead of a half-working admin area.
			runSetupGuide(cfgErr)
			return
		}
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		LogFile:     cfg.LogFile,
	})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Preventia studio API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	var store storage.Storage
	if cfg.S3AccessKey != "" {
		store, err = storage.NewS3Storage(storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			PublicURL: cfg.S3PublicURL,
		})
	} else {
		log.Warn().Msg("No S3 credentials, storing images on the local filesystem")
		store, err = storage.NewLocalStorage("./data/"+cfg.S3Bucket, cfg.S3PublicURL)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object storage client")
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	revocations := auth.NewRevocationStore(redis)

	// ---------- Repositories ----------
	userRepo := auth.NewRepository(db)
	imageRepo := image.NewRepository(db)

	// ---------- Services ----------
	authService := auth.NewService(userRepo, jwtService, revocations)
	imageService := image.NewService(imageRepo, store)

	// ---------- Studio ----------
	previewHub := studio.NewHub()
	go previewHub.Run()
	coordinator := studio.NewCoordinator(imageService, previewHub)

	// ---------- Handlers ----------
	authHandler := auth.NewHandler(authService)
	imageHandler := image.NewHandler(imageService, coordinator)
	studioHandler := studio.NewHandler(coordinator, imageService, previewHub, cfg.AllowedOrigins)
	publicHandler := public.NewHandler(imageRepo, cfg.PublicDisplayOwner, cfg.PublicAPIKey)

	var revocationChecker middleware.RevocationChecker
	if revocations != nil {
		revocationChecker = revocations
	}
	authMiddleware := middleware.Auth(jwtService, revocationChecker)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.OK(w, map[string]string{
			"status":  "ok",
			"version": "1.0.0",
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes(authMiddleware))

		// Account provisioning: active session + admin role.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(middleware.RequireAdmin())
			r.Post("/accounts", authHandler.CreateAccount)
		})

		r.Route("/studio", func(r chi.Router) {
			// Websocket clients pass the token as a query parameter.
			r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
				if token := req.URL.Query().Get("token"); token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
				authMiddleware(http.HandlerFunc(studioHandler.WebSocket)).ServeHTTP(w, req)
			})

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware)
				r.Mount("/clients", imageHandler.Routes())
				r.Mount("/", studioHandler.Routes())
			})
		})

		r.Mount("/public", publicHandler.Routes())
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}

// runSetupGuide answers every request with configuration instructions until
// the operator fixes the environment and restarts.
func runSetupGuide(cfgErr *config.Error) {
	log.Error().Str("key", cfgErr.Key).Str("reason", cfgErr.Reason).Msg("Invalid configuration, serving setup guide")

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pkgresponse.Error(w, http.StatusServiceUnavailable, "CONFIGURATION_ERROR",
			"The studio is not configured yet: "+cfgErr.Error()+
				". Fix the environment and restart the service.")
	})

	log.Info().Str("addr", ":"+port).Msg("Setup guide listening")
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal().Err(err).Msg("Setup guide server error")
	}
}
