package main

import (
	"chatapp-backend/internal/blobstore"
	"chatapp-backend/internal/config"
	"chatapp-backend/internal/database"
	"chatapp-backend/internal/handlers"
	"chatapp-backend/internal/hub"
	"chatapp-backend/internal/jwt"
	"chatapp-backend/internal/keyValue"
	"chatapp-backend/internal/permissions"
	"chatapp-backend/internal/rooms"
	"chatapp-backend/internal/snowflake"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

func setupLogger(cfg *config.Config) (*zap.SugaredLogger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = level
	zapConfig.OutputPaths = []string{"stdout"}
	if cfg.LogToFile {
		zapConfig.OutputPaths = append(zapConfig.OutputPaths, "app.log")
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

func setupCache(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (*keyValue.Store, error) {
	if cfg.SelfContained {
		sugar.Info("Using local key-value store")
		return keyValue.NewLocal(sugar), nil
	}

	sugar.Infof("Connecting to redis at [%s]...", cfg.RedisAddress)
	redisClient, err := keyValue.ConnectRedis(ctx, cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return keyValue.NewRedis(sugar, redisClient), nil
}

func run(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) error {
	db, err := database.Setup(cfg, sugar)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()

	cache, err := setupCache(ctx, cfg, sugar)
	if err != nil {
		return fmt.Errorf("key-value store: %w", err)
	}

	ids, err := snowflake.New(cfg.SnowflakeWorkerID)
	if err != nil {
		return fmt.Errorf("snowflake: %w", err)
	}

	blobs, err := blobstore.New(cfg.UploadDir, cfg.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("upload directory: %w", err)
	}

	store := database.NewStore(db, ids, sugar)
	gate := permissions.NewGate(store, sugar)

	h := handlers.New(handlers.Deps{
		Config: cfg,
		Sugar:  sugar,
		Store:  store,
		Gate:   gate,
		Hub:    hub.New(store, rooms.NewRegistry(), gate, sugar),
		Blobs:  blobs,
		Cache:  cache,
		Issuer: jwt.New(cfg.JwtSecret, cfg.IsHttps()),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	supervisor := suture.New("chatapp", suture.Spec{
		EventHook: func(e suture.Event) {
			sugar.Warnw("Supervisor event", "event", e.String())
		},
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
	supervisor.Add(newHttpService(server, cfg, sugar))
	supervisor.Add(serviceFunc{name: "key-value janitor", serve: cache.Serve})

	protocol := "http"
	if cfg.IsHttps() {
		protocol = "https"
	}
	sugar.Infof("Server is running on %s://%s", protocol, cfg.ListenAddress())

	err = supervisor.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func main() {
	fmt.Println("Reading config...")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println("Setting up logger...")
	sugar, err := setupLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer sugar.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatal(err)
	}
	sugar.Info("Server stopped")
}
