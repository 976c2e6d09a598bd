// Package backend opens the durable session persister selected by
// configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/migrations"
	"github.com/rryowa/gymsession/internal/storage"
	"github.com/rryowa/gymsession/internal/storage/file"
	"github.com/rryowa/gymsession/internal/storage/postgres"
	"github.com/rryowa/gymsession/internal/storage/redis"
	"github.com/rryowa/gymsession/internal/util"
)

const (
	Memory   = "memory"
	File     = "file"
	Redis    = "redis"
	Postgres = "postgres"
)

// Open returns a nil persister for the memory backend. cleanup is never nil.
func Open(ctx context.Context, cfg *util.ClientConfig, log *zap.SugaredLogger) (storage.Persister, func(), error) {
	noop := func() {}

	switch cfg.SessionBackend {
	case Memory:
		return nil, noop, nil

	case File:
		return file.NewSessionStorage(cfg.CredentialsFile), noop, nil

	case Redis:
		client, cleanup, err := util.NewRedisClient(ctx, log, util.NewRedisConfig())
		if err != nil {
			return nil, noop, err
		}
		return redis.NewSessionStorage(client), cleanup, nil

	case Postgres:
		db, cleanup, err := util.NewDBConnection(log, util.NewDBConfig())
		if err != nil {
			return nil, noop, err
		}
		if err := migrations.RunMigrations(db, log); err != nil {
			cleanup()
			return nil, noop, err
		}
		return postgres.NewSessionStorage(db), cleanup, nil

	default:
		return nil, noop, fmt.Errorf("%w: %q", storage.ErrUnknownBackend, cfg.SessionBackend)
	}
}
