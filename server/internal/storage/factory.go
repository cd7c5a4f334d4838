package storage

import (
	"context"
	"fmt"

	"mindly/server/internal/config"
)

// Open 按配置选择 Backend。
func Open(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryBackend(), nil
	case "file":
		return NewFileBackend(cfg.Path)
	case "redis":
		return NewRedisBackend(ctx, cfg.Redis)
	case "sqlite":
		return NewSQLiteBackend(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
