package main

import (
	"context"
	"fmt"

	"github.com/amaumene/seenarr/internal/backup"
	"github.com/amaumene/seenarr/internal/config"
	"github.com/amaumene/seenarr/internal/engine"
	"github.com/amaumene/seenarr/internal/services/docstore"
	"github.com/amaumene/seenarr/internal/services/tmdb"
	"github.com/amaumene/seenarr/internal/storage"
	"github.com/amaumene/seenarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// app holds the wired components shared by every command
type app struct {
	cfg      *config.Config
	logger   *logrus.Logger
	db       *storage.Database
	client   *tmdb.Client
	auth     *tmdb.Authenticator
	engine   *engine.Engine
	exporter *backup.Exporter
}

func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("database", cfg.DatabaseFile).Debug("Configuration loaded")

	// 3. Open the store and hydrate the library, importing legacy state on first run
	db, err := storage.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store := storage.NewStore(db.KV(), logger)
	bridge := storage.NewBridge(storage.NewFileKV(cfg.LegacyStateDir), store, logger)
	state := storage.Hydrate(store, bridge)

	// 4. Remote clients
	client := tmdb.NewClient(cfg, logger)
	notifier := engine.NewLogNotifier(logger)

	debounce := cfg.ResyncDebounce
	if debounce == 0 {
		debounce = -1
	}

	// 5. Engine
	eng := engine.NewEngine(state, engine.Config{
		Store:          store,
		Remote:         tmdb.NewBreaker(client, logger),
		Intents:        db.Intents(),
		Notifier:       notifier,
		Logger:         logger,
		DebounceWindow: debounce,
	})

	if cfg.TMDBAPIKey != "" && cfg.TMDBAPIKey != state.APICredential {
		if err := eng.SetCredential(cfg.TMDBAPIKey); err != nil {
			db.Close()
			return nil, err
		}
	}
	client.SetAPIKey(eng.Snapshot().APICredential)

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		client: client,
		auth:   tmdb.NewAuthenticator(client, cfg.TMDBAuthURL),
		engine: eng,
	}

	// 6. Backup exporter
	if cfg.BackupConfigured() {
		a.exporter = backup.NewExporter(eng, docstore.NewClient(cfg, logger), cfg.BackupFilename, notifier, logger)
	}

	return a, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}

// revokeSession deletes the remote session before a local logout; failures are logged only
func (a *app) revokeSession(ctx context.Context) {
	state := a.engine.Snapshot()
	if !state.HasSession() {
		return
	}
	if err := a.client.DeleteSession(ctx, state.Session.SessionID); err != nil {
		a.logger.WithError(err).Warn("Failed to revoke remote session")
	}
}
