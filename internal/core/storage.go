package core

import (
	"context"
	"fmt"

	"aquacore/internal/config"
	blobcore "aquacore/internal/infra/blob/core"
	blobfs "aquacore/internal/infra/blob/fs"
	blobmem "aquacore/internal/infra/blob/memory"
	blobs3 "aquacore/internal/infra/blob/s3"
	"aquacore/internal/infra/persistence/memory"
	"aquacore/internal/infra/persistence/postgres"
	"aquacore/internal/infra/persistence/sqlite"
	"aquacore/pkg/domain"
)

// OpenTankStore selects a tank store backend from configuration.
func OpenTankStore(cfg config.StorageConfig) (domain.TankStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.NewStore(), nil
	case "sqlite":
		return sqlite.NewStore(cfg.SQLitePath)
	case "postgres":
		return postgres.NewStore(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// OpenBlobStore selects a preview blob backend from configuration.
func OpenBlobStore(ctx context.Context, cfg config.BlobConfig) (blobcore.Store, error) {
	switch cfg.Driver {
	case "", "fs":
		return blobfs.New(cfg.FSRoot)
	case "memory":
		return blobmem.New(), nil
	case "s3":
		return blobs3.OpenFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
