package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salehm/coaching-store/internal/database"
	"github.com/salehm/coaching-store/pkg/config"
	"github.com/salehm/coaching-store/pkg/logging"
)

func main() {
	cfg := config.Load()
	log := logging.New("migrate", cfg.AppEnv, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		log.Error("migration failed", "err", err)
		os.Exit(1)
	}
	log.Info("schema up to date")
}
