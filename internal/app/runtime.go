// Package app assembles the generation runtime shared by the API server and
// the command line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"genstudio/internal/adapter/repo"
	"genstudio/internal/catalog"
	"genstudio/internal/domain"
	"genstudio/internal/generation"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/library"
	"genstudio/internal/providers/audio"
	"genstudio/internal/providers/gateway"
	"genstudio/internal/providers/image"
	"genstudio/internal/providers/music"
	"genstudio/internal/providers/video"
	"genstudio/internal/storage"
)

// ErrStoreLocked is returned when another process owns the local store.
var ErrStoreLocked = errors.New("app: asset store is in use by another process")

// Runtime is a fully wired generation stack.
type Runtime struct {
	Config      *infra.Config
	Logger      *infra.Logger
	Catalog     *catalog.Catalog
	Store       domain.AssetStore
	Credentials *credentials.Store
	Gateway     *gateway.Client
	Library     *library.Library
	Poller      *generation.Poller
	Submitter   *generation.Submitter
	Media       *storage.FileStore
	Exporter    *storage.Exporter

	lock   *flock.Flock
	cancel context.CancelFunc
}

// Open wires the runtime. Background work (polling and submissions) lives
// until Close. Pending assets are not resumed here; callers decide when.
func Open(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (*Runtime, error) {
	logger = infra.OrDiscard(logger)
	rt := &Runtime{Config: cfg, Logger: logger}

	if cfg.DatabaseURL == "" {
		if err := rt.acquireLock(); err != nil {
			return nil, err
		}
	}

	models, err := catalog.Load(cfg.ModelCatalogPath)
	if err != nil {
		rt.releaseLock()
		return nil, err
	}
	rt.Catalog = models

	store, backend, err := repo.OpenStore(ctx, cfg, logger)
	if err != nil {
		rt.releaseLock()
		return nil, fmt.Errorf("app: open store: %w", err)
	}
	rt.Store = store

	rt.Credentials = credentials.NewStore(credentials.Credentials{
		APIKey:  cfg.GatewayAPIKey,
		BaseURL: cfg.GatewayBaseURL,
	}, backend, cfg.LockGatewayBaseURL)
	if err := rt.Credentials.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("stored credentials unavailable, using environment")
	}

	rt.Gateway = gateway.NewClient(rt.Credentials, gateway.Options{
		Timeout:   cfg.GatewayTimeout,
		UserAgent: "genstudio/1.0",
		Logger:    logger,
	})

	if cfg.MediaDir != "" {
		media, err := storage.NewFileStore(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.Media = media
	}

	rt.Library = library.New(store, logger)
	rt.Library.Load(ctx)

	bg, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	rt.Poller = generation.NewPoller(bg, rt.Gateway, rt.Library,
		generation.WithPolicy(generation.PolicyFromConfig(cfg)),
		generation.WithLabels(generation.NewLabels(cfg.DefaultLocale)),
		generation.WithPollerLogger(logger),
	)

	videos := video.NewGenerator(rt.Gateway, models)
	composer := music.NewComposer(rt.Gateway, "")
	rt.Submitter = generation.NewSubmitter(bg, generation.Deps{
		Catalog:     models,
		Library:     rt.Library,
		Poller:      rt.Poller,
		Credentials: rt.Gateway,
		Image:       image.NewGenerator(rt.Gateway),
		Video:       videos,
		Audio:       audio.NewSynthesizer(rt.Gateway, 0),
		Music:       composer,
		Remixer:     videos,
		Lyrics:      composer,
		Media:       rt.Media,
		Logger:      logger,
	})
	rt.Exporter = storage.NewExporter(rt.Media, rt.Gateway, logger)
	return rt, nil
}

// Close stops background work, then releases the store.
func (rt *Runtime) Close() {
	if rt.cancel != nil {
		rt.cancel()
		rt.Submitter.Wait()
		rt.Poller.Wait()
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			rt.Logger.Warn().Err(err).Msg("close asset store")
		}
	}
	rt.releaseLock()
}

func (rt *Runtime) acquireLock() error {
	path := strings.TrimSpace(rt.Config.StorePath) + ".lock"
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("app: create store dir: %w", err)
		}
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("app: lock %s: %w", path, err)
	}
	if !locked {
		return ErrStoreLocked
	}
	rt.lock = lock
	return nil
}

func (rt *Runtime) releaseLock() {
	if rt.lock == nil {
		return
	}
	if err := rt.lock.Unlock(); err != nil {
		rt.Logger.Warn().Err(err).Msg("release store lock")
	}
	rt.lock = nil
}
