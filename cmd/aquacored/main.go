// Command aquacored runs the aquacore HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aquacore/internal/cache"
	"aquacore/internal/catalog"
	"aquacore/internal/config"
	"aquacore/internal/core"
	"aquacore/internal/preview"
	"aquacore/internal/server"
	"aquacore/internal/tank"
	"aquacore/pkg/domain"
)

func main() {
	configPath := flag.String("config", os.Getenv("AQUACORE_CONFIG"), "path to YAML config file")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(*configPath, log); err != nil {
		log.Error("fatal", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tanks, err := core.OpenTankStore(cfg.Storage)
	if err != nil {
		return err
	}
	if closer, ok := tanks.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	blobs, err := core.OpenBlobStore(ctx, cfg.Blob)
	if err != nil {
		return err
	}

	snapshots, err := cache.New(cfg.Cache.Dir)
	if err != nil {
		return err
	}

	species, err := loadCatalog(cfg.Catalog, log)
	if err != nil {
		return err
	}
	log.Info("catalog loaded", slog.Int("species", len(species)))

	svc := core.NewService(tanks, core.Options{
		Catalog:   species,
		SelfAvoid: cfg.Compat.SelfAvoid,
		Bounds:    tank.Bounds{Width: cfg.Tank.Width, Height: cfg.Tank.Height},
		Cache:     snapshots,
		Previews:  preview.NewManager(blobs, tanks),
		Logger:    log,
		Debounce:  time.Duration(cfg.Persist.DebounceMS) * time.Millisecond,
	})
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(svc, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Server.Addr),
			slog.String("storage", cfg.Storage.Driver), slog.String("blob", cfg.Blob.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// loadCatalog merges the configured YAML and CSV sources. No sources
// configured yields an empty catalog, which is valid for a storage-only
// deployment.
func loadCatalog(cfg config.CatalogConfig, log *slog.Logger) ([]domain.Species, error) {
	var out []domain.Species
	if cfg.YAMLPath != "" {
		list, err := catalog.LoadYAML(cfg.YAMLPath, log)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	if cfg.CSVPath != "" {
		list, err := catalog.LoadCSV(cfg.CSVPath, log)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}
