package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"picshare-backend/internal/auth"
	"picshare-backend/internal/config"
	"picshare-backend/internal/handlers"
	"picshare-backend/internal/repository"
	"picshare-backend/internal/services"
	"picshare-backend/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// stores is the metadata backend picked by database.driver
type stores struct {
	users  services.UserStore
	images services.ImageStore
	ping   func(ctx context.Context) error
	close  func()
}

func Run() {
	// Load configuration
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.IsProduction())

	ctx := context.Background()

	db, err := openStores(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open metadata store")
	}
	defer db.close()

	objects, err := openObjectStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create object store")
	}

	stager, err := storage.NewStager(cfg.Staging.Dir, cfg.Staging.MaxUploadBytes)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare staging directory")
	}

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL)
	assets := services.NewAssetManager(objects, cfg.Staging.MaxUploadBytes, cfg.Storage.Timeout)
	wsHub := services.NewWSHub()

	notifier := services.Notifiers{wsHub}
	if cfg.APNs.Enabled {
		push, err := services.NewPushNotifier(services.PushConfig{
			KeyFile:    cfg.APNs.KeyFile,
			KeyID:      cfg.APNs.KeyID,
			TeamID:     cfg.APNs.TeamID,
			Topic:      cfg.APNs.Topic,
			Production: cfg.APNs.Production,
		}, db.users)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create push notifier")
		}
		notifier = append(notifier, push)
		log.Info().Str("topic", cfg.APNs.Topic).Msg("APNs push notifications enabled")
	}

	userService := services.NewUserService(db.users, db.images, assets, tokens)
	imageService := services.NewImageService(db.images, db.users, assets, notifier)

	// Initialize handlers
	rs := &handlers.Responder{Debug: !cfg.IsProduction()}
	uploader := handlers.NewUploader(stager)

	router := handlers.NewRouter(handlers.RouterConfig{
		Responder:      rs,
		Verifier:       tokens,
		Auth:           handlers.NewAuthHandler(rs, userService),
		Users:          handlers.NewUserHandler(rs, userService, uploader),
		Images:         handlers.NewImageHandler(rs, imageService, uploader),
		WebSocket:      handlers.NewWebSocketHandler(rs, wsHub, tokens, cfg.Server.AllowedOrigins),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         db.ping,
		RequestLogging: !cfg.IsProduction(),
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("mode", cfg.Server.Mode).
			Str("storage", cfg.Storage.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStores connects the metadata store and applies the schema
func openStores(ctx context.Context, cfg config.DatabaseConfig) (*stores, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory metadata store, data is lost on restart")
		users := repository.NewMemoryUserStore()
		return &stores{
			users:  users,
			images: repository.NewMemoryImageStore(users),
			close:  func() {},
		}, nil
	}

	db, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test database connection
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if err := repository.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &stores{
		users:  repository.NewUserRepository(db),
		images: repository.NewImageRepository(db),
		ping:   db.Ping,
		close:  db.Close,
	}, nil
}

// openObjectStore builds the remote object store named by storage.driver
func openObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return storage.NewS3Store(ctx, storage.S3Options{
			Region:    cfg.Region,
			Bucket:    cfg.Bucket,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Endpoint:  cfg.Endpoint,
			PublicURL: cfg.PublicURL,
		})
	case config.DriverMinio:
		return storage.NewMinioStore(storage.MinioOptions{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
			PublicURL: cfg.PublicURL,
		})
	case config.DriverMemory:
		log.Warn().Msg("Using in-memory object store, uploads are lost on restart")
		base := cfg.PublicURL
		if base == "" {
			base = "http://localhost/objects"
		}
		return storage.NewMemoryStore(base), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string, production bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
