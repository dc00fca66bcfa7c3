package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"os"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/grocerly/auth-api/internal/auth"
	"github.com/grocerly/auth-api/internal/config"
	"github.com/grocerly/auth-api/internal/database"
	"github.com/grocerly/auth-api/internal/logging"
	"github.com/grocerly/auth-api/internal/password"
	"github.com/grocerly/auth-api/internal/user"
)

// authctl runs administrative tasks out of band, against the same
// configuration the API server reads.
func main() {
	app := &cli.App{
		Name:  "authctl",
		Usage: "administrative tasks for the auth service",
		Commands: []*cli.Command{
			{
				Name:  "migrate-passwords",
				Usage: "rewrite legacy plaintext credentials as salted hashes",
				Action: func(c *cli.Context) error {
					return migratePasswords(c.Context)
				},
			},
			{
				Name:  "genkey",
				Usage: "generate a random 256-bit token secret",
				Action: func(c *cli.Context) error {
					return genkey(c.App.Writer)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func migratePasswords(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer closeStore()

	tokens, err := auth.NewJWTService(cfg.Auth.TokenSecret, cfg.Auth.TokenValidity)
	if err != nil {
		return err
	}

	service := auth.NewService(store, password.NewHasher(), tokens, logger)

	updated, err := service.MigratePasswordHashes(ctx)
	if err != nil {
		return fmt.Errorf("migration stopped after %d updates: %w", updated, err)
	}

	fmt.Printf("migrated %d credential(s)\n", updated)
	return nil
}

func genkey(w io.Writer) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}
	fmt.Fprintln(w, base64.StdEncoding.EncodeToString(key))
	return nil
}

func openStore(cfg *config.Config) (user.Store, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.Database.ConnectionString())
		if err != nil {
			return nil, nil, err
		}
		if err := sqlDB.Ping(); err != nil {
			sqlDB.Close()
			return nil, nil, err
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
			return nil, nil, err
		}
		return user.NewRedisStore(client), func() { client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("store backend %q has no durable data to migrate", cfg.Store.Backend)
	}
}
