package cmd

import (
	"context"
	"fmt"

	"discovery-sync/core/config"
	"discovery-sync/core/database"
	"discovery-sync/core/discovery"
	"discovery-sync/core/logger"
	"discovery-sync/core/metrics"
	"discovery-sync/core/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// environment is everything a command needs to talk to the appliance and the mirror.
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	client *discovery.Client
	store  storage.Client
}

// bootstrap loads the configuration and opens the connections shared by the
// sync and start commands. The storage client is only created when archiving
// is enabled.
func bootstrap(ctx context.Context) (*environment, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. Initialize Logger
	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	// 3. Connect to Database (required)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection required: %w", err)
	}
	logg.Info("Connected to mirror database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("schema", cfg.Database.Schema),
	)

	// 4. Upstream client
	client, err := discovery.NewClient(cfg.Discovery, logg, discovery.WithObserver(metrics.Upstream{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	env := &environment{cfg: cfg, logger: logg, db: db, client: client}

	// 5. Report archive (optional)
	if cfg.Storage.Enabled {
		store, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		if err := storage.EnsureBucket(ctx, store, cfg.Storage.Bucket, cfg.Storage.Region); err != nil {
			logg.Warn("Report bucket unavailable, archiving will retry per run", zap.Error(err))
		}
		env.store = store
	}

	return env, nil
}
