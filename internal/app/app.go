// Package app assembles the configured backends into a runnable server.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LineReport/internal/config"
	"github.com/dharsanguruparan/LineReport/internal/credentials"
	"github.com/dharsanguruparan/LineReport/internal/database"
	"github.com/dharsanguruparan/LineReport/internal/drive"
	"github.com/dharsanguruparan/LineReport/internal/history"
	"github.com/dharsanguruparan/LineReport/internal/logger"
	"github.com/dharsanguruparan/LineReport/internal/report"
	"github.com/dharsanguruparan/LineReport/internal/repository"
	"github.com/dharsanguruparan/LineReport/internal/s3storage"
	"github.com/dharsanguruparan/LineReport/internal/server"
	"github.com/dharsanguruparan/LineReport/internal/sheets"
	"github.com/dharsanguruparan/LineReport/internal/signing"
	"github.com/dharsanguruparan/LineReport/internal/storage"
)

// Records is what a record backend provides.
type Records interface {
	report.Appender
	history.Lister
}

// App holds the wired components.
type App struct {
	Credentials credentials.Source
	Records     Records
	Photos      report.Uploader
	Reports     *report.Service
	History     *history.Viewer
	Signer      *signing.Signer

	memPhotos *storage.MemoryPhotos
	pool      *pgxpool.Pool
	log       *logger.Logger
}

// Build connects every backend named in cfg. Google credentials are not
// parsed here; a bad blob surfaces on the first request.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{log: log}
	if cfg.NeedsGoogle() {
		a.Credentials = credentials.NewLoader(cfg.CredentialsJSON)
	}

	if err := a.buildRecords(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildPhotos(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	a.Reports = report.NewService(log, a.Records, a.Photos, cfg.Machines, report.Options{
		Location:       cfg.Location,
		CleanupOrphans: cfg.CleanupOrphans,
	})
	a.History = history.NewViewer(log, a.Records, cfg.HistoryLimit)
	a.Signer = signing.NewSigner(cfg.FormSecret, cfg.FormTokenTTL)
	log.Info("backends ready", "records", cfg.RecordBackend, "photos", cfg.PhotoBackend)
	return a, nil
}

func (a *App) buildRecords(ctx context.Context, cfg *config.Config) error {
	switch cfg.RecordBackend {
	case config.BackendSheets:
		store, err := sheets.New(a.Credentials, cfg.SpreadsheetID, cfg.SheetRange)
		if err != nil {
			return fmt.Errorf("sheets store: %w", err)
		}
		a.Records = store
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		a.pool = pool
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		a.Records = repository.NewReportRepository(pool)
	case config.BackendMemory:
		a.Records = storage.NewMemoryStore()
	default:
		return &config.Error{Key: "LINEREPORT_RECORD_BACKEND", Err: fmt.Errorf("unknown backend %q", cfg.RecordBackend)}
	}
	return nil
}

func (a *App) buildPhotos(ctx context.Context, cfg *config.Config) error {
	switch cfg.PhotoBackend {
	case config.BackendDrive:
		up, err := drive.New(a.Credentials, cfg.DriveFolderID)
		if err != nil {
			return fmt.Errorf("drive uploader: %w", err)
		}
		a.Photos = up
	case config.BackendS3:
		st, err := s3storage.New(cfg)
		if err != nil {
			return fmt.Errorf("s3 storage: %w", err)
		}
		if err := st.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("ensure bucket: %w", err)
		}
		a.Photos = st
	case config.BackendMemory:
		a.memPhotos = storage.NewMemoryPhotos("/photos/")
		a.Photos = a.memPhotos
	default:
		return &config.Error{Key: "LINEREPORT_PHOTO_BACKEND", Err: fmt.Errorf("unknown backend %q", cfg.PhotoBackend)}
	}
	return nil
}

// Server builds the HTTP server over the wired components.
func (a *App) Server(cfg *config.Config) (*server.Server, error) {
	deps := server.Deps{
		Reports:     a.Reports,
		History:     a.History,
		Signer:      a.Signer,
		Credentials: a.Credentials,
	}
	if a.memPhotos != nil {
		deps.Photos = a.memPhotos
	}
	return server.New(cfg, a.log, deps)
}

// Close releases backend connections.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
