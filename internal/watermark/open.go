package watermark

import (
	"context"
	"fmt"

	"tower_bot/internal/config"
	"tower_bot/internal/db"
)

// Open builds the backend selected by cfg.Backend. The mongo backend is also
// returned as a *db.MongoDB so callers can record run history with it.
func Open(ctx context.Context, cfg config.StateConfig) (Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(cfg.Dir)
	case "redis":
		return OpenRedis(ctx, cfg.URL, cfg.Prefix)
	case "postgres":
		return OpenPostgres(ctx, cfg.URL)
	case "mongo":
		return db.NewMongoDB(cfg)
	default:
		return nil, fmt.Errorf("unsupported state backend %q", cfg.Backend)
	}
}
