package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/tarot-miniapp/internal/config"
	"github.com/magabrotheeeer/tarot-miniapp/internal/dailycache"
	"github.com/magabrotheeeer/tarot-miniapp/internal/http/handlers/health"
	"github.com/magabrotheeeer/tarot-miniapp/internal/migrations"
	"github.com/magabrotheeeer/tarot-miniapp/internal/storage/postgresql"
)

// Драйверы хранилища карты дня.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// dailyStore хранилище карты дня с проверкой доступности и закрытием.
type dailyStore struct {
	dailycache.Store
	check health.Checker
	close func() error
}

func newDailyStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*dailyStore, error) {
	const op = "app.newDailyStore"

	switch cfg.Driver {
	case DriverRedis:
		s, err := dailycache.InitRedis(ctx, cfg.RedisConnection)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &dailyStore{
			Store: s,
			check: func(ctx context.Context) error { return s.Db.Ping(ctx).Err() },
			close: s.Close,
		}, nil
	case DriverPostgres:
		s, err := postgresql.New(cfg.StorageConnectionString)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := migrations.Run(s.DB, cfg.MigrationsPath); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return &dailyStore{
			Store: s,
			check: func(ctx context.Context) error { return postgresql.CheckDatabaseReady(ctx, s) },
			close: s.Close,
		}, nil
	case DriverMemory:
		log.Warn("daily cache is in memory, card of the day is lost on restart")
		return &dailyStore{
			Store: dailycache.NewMemoryStore(),
			close: func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("%s: unknown daily cache driver %q", op, cfg.Driver)
	}
}
