package state

import (
	"context"
	"fmt"
	"time"

	"github.com/maine/youtube_blog_worker/internal/config"
)

// OpenBackend создаёт backend по настройкам state. Возвращаемая функция
// закрывает соединение; для файлового backend она ничего не делает.
func OpenBackend(ctx context.Context, cfg config.State, clock func() time.Time) (Backend, func() error, error) {
	noop := func() error { return nil }

	target := cfg.DSN
	if target == "" {
		target = cfg.Path
	}

	switch cfg.Backend {
	case "", "file":
		return NewFileBackend(target, clock), noop, nil
	case "sqlite":
		b, err := NewSQLiteBackend(ctx, target, clock)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case "postgres":
		b, err := NewPostgresBackend(ctx, cfg.DSN, clock)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	case "redis":
		b, err := NewRedisBackend(ctx, cfg.DSN, cfg.KeyPrefix, clock)
		if err != nil {
			return nil, noop, err
		}
		return b, b.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", config.ErrInvalidBackend, cfg.Backend)
	}
}
