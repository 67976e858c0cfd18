package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/framecast"
	"github.com/aretw0/framecast/internal/config"
	"github.com/aretw0/framecast/internal/logging"
	"github.com/aretw0/framecast/pkg/adapters/file"
	"github.com/aretw0/framecast/pkg/adapters/memory"
	"github.com/aretw0/framecast/pkg/adapters/redis"
	"github.com/aretw0/framecast/pkg/adapters/sqlite"
	"github.com/aretw0/framecast/pkg/compositor"
	"github.com/aretw0/framecast/pkg/export"
	"github.com/aretw0/framecast/pkg/observability"
	"github.com/aretw0/framecast/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type eventStore interface {
	ports.EventStore
	io.Closer
}

// app is the wired process: config, logger, store and a started Studio.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   eventStore
	studio  *framecast.Studio
	metrics *observability.Metrics
}

// newApp loads configuration from the command flags and starts a Studio.
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	baseDir := "."
	if path != "" {
		baseDir = filepath.Dir(path)
	}
	return buildApp(cmd.Context(), cfg, baseDir, logger)
}

func buildApp(ctx context.Context, cfg *config.Config, baseDir string, logger *slog.Logger) (*app, error) {
	interp, err := compositor.ParseInterpolation(cfg.Compositor.Interpolation)
	if err != nil {
		return nil, err
	}
	comp := compositor.New(
		compositor.WithInterpolation(interp),
		compositor.WithMaxSourcePixels(cfg.Compositor.MaxSourcePixels),
		compositor.WithLogger(logger),
	)

	frames, err := openFrames(cfg, baseDir, comp)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	opts := []framecast.Option{
		framecast.WithLogger(logger),
		framecast.WithCompositor(comp),
		framecast.WithOutputSize(cfg.Compositor.OutputSize),
		framecast.WithLifecycleHooks(metrics.Hooks()),
		framecast.WithShareOptions(export.ShareOptions{
			Title:      cfg.Share.Title,
			Text:       cfg.Share.Text,
			FilePrefix: cfg.Share.FilePrefix,
		}),
	}
	if cfg.Share.Outbox != "" {
		opts = append(opts, framecast.WithSharer(file.NewOutbox(cfg.Share.Outbox)))
	}

	studio, err := framecast.New(frames, store, opts...)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	if err := studio.Start(ctx); err != nil {
		_ = studio.Close()
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		studio:  studio,
		metrics: metrics,
	}, nil
}

// Close drains pending writes before releasing the store.
func (a *app) Close() error {
	if err := a.studio.Close(); err != nil {
		return err
	}
	return a.store.Close()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (eventStore, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rc := cfg.Store.Redis
		store := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(rc.Prefix),
			redis.WithLogger(logger),
		)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("redis %s: %w", rc.Addr, err)
		}
		logger.Debug("Using redis event store", "addr", rc.Addr, "prefix", rc.Prefix)
		return store, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(cfg.Store.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using sqlite event store", "path", cfg.Store.SQLite.Path)
		return store, nil
	case config.DriverMemory:
		logger.Debug("Using in-memory event store")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openFrames(cfg *config.Config, baseDir string, comp *compositor.Compositor) (ports.FrameRegistry, error) {
	fc := cfg.Frames
	switch {
	case len(fc.Items) > 0:
		reg, err := file.LoadFrames(baseDir, fc.Items, fc.Active, file.WithCompositor(comp))
		if err != nil {
			return nil, err
		}
		return reg, nil
	case fc.Dir != "":
		dir := fc.Dir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(baseDir, dir)
		}
		reg, err := file.LoadDir(dir, file.WithCompositor(comp))
		if err != nil {
			return nil, err
		}
		if fc.Active != "" {
			if err := reg.SetActive(context.Background(), fc.Active); err != nil {
				return nil, err
			}
		}
		return reg, nil
	default:
		frame, err := compositor.DefaultFrame(cfg.Compositor.OutputSize)
		if err != nil {
			return nil, err
		}
		reg, err := memory.NewRegistry(frame)
		if err != nil {
			return nil, err
		}
		return reg, nil
	}
}
