package store

import (
	"context"
	"fmt"

	"artscope/config"
	"artscope/internal/adapter/memstore"
	"artscope/internal/port"
)

// Open builds the artwork store selected by cfg.Store.Driver. File-backed
// stores are placed under the data directory of dir.
func Open(ctx context.Context, cfg *config.Config, dir string) (port.ArtworkStore, error) {
	switch cfg.Store.Driver {
	case "bolt", "":
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, err
		}
		return NewBoltStore(cfg.StorePath(dir))
	case "sqlite":
		if err := config.EnsureDataDir(dir); err != nil {
			return nil, err
		}
		return OpenSQLite(cfg.StorePath(dir))
	case "postgres":
		dsn := cfg.PostgresDSN()
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver selected but no DSN configured (set %s or store.dsn)", cfg.Store.DSNEnv)
		}
		return OpenPostgres(ctx, dsn)
	case "memory":
		return memstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}
