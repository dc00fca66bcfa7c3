package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	_ "github.com/grocerly/auth-api/docs" // Swagger docs (generated)
	"github.com/grocerly/auth-api/internal/auth"
	"github.com/grocerly/auth-api/internal/config"
	"github.com/grocerly/auth-api/internal/database"
	httpServer "github.com/grocerly/auth-api/internal/http"
	"github.com/grocerly/auth-api/internal/logging"
	"github.com/grocerly/auth-api/internal/password"
	"github.com/grocerly/auth-api/internal/user"
)

// @title           Groceries Auth API
// @version         1.0
// @description     Stateless cookie-based authentication service.

// @host      localhost:8080
// @BasePath  /

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"token_backend", cfg.Auth.TokenBackend,
	)

	store, closeStore, err := initStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer closeStore()

	tokenService, err := initTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	authService := auth.NewService(store, password.NewHasher(), tokenService, logger)

	authHandler := auth.NewHandler(
		authService,
		!cfg.Server.IsDevelopment(), // isProduction
		cfg.Auth.TokenValidity,
	)
	authMiddleware := auth.NewMiddleware(tokenService, cfg.Auth.AdminToken)

	router := httpServer.NewRouter(cfg, authHandler, authMiddleware, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received shutdown signal", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initStore builds the configured credential store backend and returns
// a cleanup func for its underlying connection.
func initStore(cfg *config.Config) (user.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}

		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)

		if err := database.RunMigrations(context.Background(), sqlDB); err != nil {
			sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		db := database.NewBunDB(sqlDB)
		return user.NewPostgresStore(db), func() { db.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		return user.NewRedisStore(client), func() { client.Close() }, nil

	case "memory":
		return user.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func initTokenService(cfg config.AuthConfig) (auth.TokenService, error) {
	if cfg.TokenBackend == "paseto" {
		return auth.NewPasetoService(cfg.TokenSecret, cfg.TokenValidity)
	}
	return auth.NewJWTService(cfg.TokenSecret, cfg.TokenValidity)
}
