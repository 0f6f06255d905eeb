package main

// Run database migrations:
//   go run ./cmd/migrate

import (
	"context"
	"fmt"
	"log"
	"os"

	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	urls := []string{cfg.DatabaseURL}
	if cfg.StagingDatabaseURL != "" && cfg.StagingDatabaseURL != cfg.DatabaseURL {
		urls = append(urls, cfg.StagingDatabaseURL)
	}

	opts := db.OptionsFromEnv(db.DefaultMigrateOptions())
	for _, url := range urls {
		if err := migrate(ctx, url, opts); err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
	}
	log.Printf("migrations applied to %d database(s)", len(urls))
}

func migrate(ctx context.Context, url string, opts db.Options) error {
	sqlDB, err := db.Connect(ctx, url, opts)
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	defer sqlDB.Close()

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
