package db

import (
	"fmt"

	"github.com/ishaan812/gitsage/internal/config"
)

// Open returns the store selected by cfg.DBBackend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.DBBackend {
	case config.BackendDuckDB, "":
		return OpenDuckDB(cfg.DBPath)
	case config.BackendSQLite:
		return OpenSQLite(cfg.DBPath)
	case config.BackendPostgres:
		return OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.DBBackend)
	}
}
