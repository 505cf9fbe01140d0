package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/iniwap/AIWriteX/internal/adapter/driven/articlefs"
	"github.com/iniwap/AIWriteX/internal/adapter/driven/asset"
	"github.com/iniwap/AIWriteX/internal/adapter/driven/imagegen"
	sqliteadapter "github.com/iniwap/AIWriteX/internal/adapter/driven/sqlite"
	"github.com/iniwap/AIWriteX/internal/adapter/driven/wechat"
	"github.com/iniwap/AIWriteX/internal/application"
	"github.com/iniwap/AIWriteX/internal/config"
	"github.com/iniwap/AIWriteX/internal/domain/model"
	"github.com/iniwap/AIWriteX/internal/domain/port/driven"
	"github.com/iniwap/AIWriteX/internal/metrics"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg      *config.Config
	db       *sqliteadapter.DB
	recorder *metrics.PrometheusRecorder
	service  *application.PublishService
}

// newApp loads configuration, opens the history database and wires the
// publish service. Callers must call close.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogging(cfg.LogLevel)
	slog.Debug("config loaded",
		"db_path", cfg.DBPath,
		"accounts", len(cfg.Accounts),
		"image_generator", cfg.ImageGenerator,
		"concurrency", cfg.Concurrency,
	)

	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	generator, err := imagegen.New(cfg.ImageGenerator, cfg.HTTPTimeout)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	recorder := metrics.NewPrometheusRecorder(nil)

	baseURL := cfg.APIBaseURL
	if baseURL == "" {
		baseURL = wechat.DefaultBaseURL
	}
	registry := application.NewPlatformRegistry(func(cred model.Credential) (driven.Platform, error) {
		client, err := wechat.NewClientWithHTTPClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			baseURL,
			cred,
			wechat.WithLogger(slog.Default().With("app_id", cred.MaskedAppID())),
			wechat.WithRecorder(recorder),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	})

	service := application.NewPublishService(application.PublishServiceDeps{
		Accounts: cfg.Accounts,
		Registry: registry,
		Loader:   articlefs.NewLoader(),
		History:  sqliteadapter.NewHistoryRepo(db),
		Orchestrator: application.OrchestratorDeps{
			Resolver:     asset.NewResolver("", cfg.HTTPTimeout),
			Cropper:      asset.Cropper{},
			Generator:    generator,
			DefaultCover: asset.DefaultCover,
			Metrics:      recorder,
			Poll: application.PollPolicy{
				Attempts: cfg.PollAttempts,
				Interval: cfg.PollInterval,
			},
		},
		Concurrency: cfg.Concurrency,
		Logger:      slog.Default(),
	})

	return &app{cfg: cfg, db: db, recorder: recorder, service: service}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
