package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"

	"carelog-backend/internal/attachments"
	"carelog-backend/internal/auditreports"
	"carelog-backend/internal/queue"
	"carelog-backend/internal/shared/config"
	"carelog-backend/internal/shared/storage/blob"
	localstore "carelog-backend/internal/shared/storage/blob/local"
	s3store "carelog-backend/internal/shared/storage/blob/s3"
	"carelog-backend/internal/shared/storage/db"
	"carelog-backend/internal/staging"
)

// App holds the shared dependencies of the janitor jobs.
type App struct {
	Config      config.Config
	DB          *sql.DB
	StagingDB   *sql.DB
	Blobs       blob.Store
	Queue       queue.Client
	Staging     staging.Store
	Attachments attachments.Repo
	AuditAssets auditreports.Repo
	Registry    *attachments.Registry
	Sweeper     *attachments.Sweeper
	Reconciler  *auditreports.Reconciler
}

// Build prepares shared dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.BlobStoreType) == "" {
		cfg.BlobStoreType = "local"
	}

	sqlDB, stagingDB, err := buildDatabases(ctx, cfg)
	if err != nil {
		return nil, err
	}

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		DB:        sqlDB,
		StagingDB: stagingDB,
		Blobs:     blobs,
		Queue:     queueClient,
	}
	buildServices(app)
	return app, nil
}

// buildDatabases connects the durable and staging databases. The in-memory
// fallback applies only in dev with neither URL set; a configured URL that
// cannot be reached is always an error.
func buildDatabases(ctx context.Context, cfg config.Config) (*sql.DB, *sql.DB, error) {
	dbURL := strings.TrimSpace(cfg.DatabaseURL)
	stagingURL := strings.TrimSpace(cfg.StagingDatabaseURL)

	switch {
	case dbURL == "" && stagingURL == "":
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL and STAGING_DATABASE_URL empty; using in-memory stores")
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	case dbURL == "":
		return nil, nil, fmt.Errorf("DATABASE_URL is required when STAGING_DATABASE_URL is set")
	case stagingURL == "":
		stagingURL = dbURL
	}

	sqlDB, err := connectDB(ctx, dbURL, "DATABASE_URL")
	if err != nil {
		return nil, nil, err
	}
	if stagingURL == dbURL {
		return sqlDB, sqlDB, nil
	}

	stagingDB, err := connectDB(ctx, stagingURL, "STAGING_DATABASE_URL")
	if err != nil {
		if !db.IsLambdaRuntime() {
			_ = sqlDB.Close()
		}
		return nil, nil, err
	}
	return sqlDB, stagingDB, nil
}

func connectDB(ctx context.Context, url, envKey string) (*sql.DB, error) {
	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, url, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, url, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", envKey, err)
	}
	return sqlDB, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch cfg.BlobStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			KMSKeyID:        cfg.SSEKMSKeyID,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildServices(app *App) {
	var (
		stagingStore staging.Store
		attachRepo   attachments.Repo
		assetRepo    auditreports.Repo
	)

	if app.DB != nil {
		attachRepo = &attachments.PGRepo{DB: app.DB}
		assetRepo = &auditreports.PGRepo{DB: app.DB}
	} else {
		attachRepo = attachments.NewMemoryRepo()
		assetRepo = auditreports.NewMemoryRepo()
	}
	if app.StagingDB != nil {
		stagingStore = &staging.PGStore{DB: app.StagingDB}
	} else {
		stagingStore = staging.NewMemoryStore()
	}

	registry := attachments.DefaultRegistry(app.Blobs, app.Config.MediaContainer, attachRepo)

	app.Staging = stagingStore
	app.Attachments = attachRepo
	app.AuditAssets = assetRepo
	app.Registry = registry
	app.Sweeper = &attachments.Sweeper{
		Candidates:  attachRepo,
		Staging:     stagingStore,
		Collection:  app.Config.StagingCollection,
		Registry:    registry,
		Concurrency: app.Config.SweepConcurrency,
	}
	app.Reconciler = &auditreports.Reconciler{
		Assets:      assetRepo,
		Blobs:       app.Blobs,
		Concurrency: app.Config.ReconcileConcurrency,
		DryRun:      app.Config.ReconcileDryRun,
	}
}
