package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/raksha/internal/config"
	"github.com/geocoder89/raksha/internal/db"
	apphttp "github.com/geocoder89/raksha/internal/http"
	"github.com/geocoder89/raksha/internal/http/handlers"
	"github.com/geocoder89/raksha/internal/observability"
	"github.com/geocoder89/raksha/internal/repo/memory"
	"github.com/geocoder89/raksha/internal/repo/mongostore"
	"github.com/geocoder89/raksha/internal/repo/postgres"
)

type stores struct {
	users apphttp.UserRepository
	zones handlers.ZoneStore
	ping  handlers.PingFunc
	close func()
}

// openStore connects the backend named by STORE_DRIVER and prepares its schema.
func openStore(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DBURL)
		if err != nil {
			return stores{}, fmt.Errorf("connect postgres: %w", err)
		}

		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return stores{}, fmt.Errorf("migrate postgres: %w", err)
		}

		log.Info("store ready", "driver", cfg.StoreDriver)

		return stores{
			users: postgres.NewUsersRepo(pool, prom),
			zones: postgres.NewDangerZonesRepo(pool, prom),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil

	case config.StoreDriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return stores{}, fmt.Errorf("connect mongo: %w", err)
		}

		database := client.Database(cfg.MongoDB)
		if err := mongostore.EnsureIndexes(ctx, database); err != nil {
			_ = client.Disconnect(context.Background())
			return stores{}, fmt.Errorf("mongo indexes: %w", err)
		}

		log.Info("store ready", "driver", cfg.StoreDriver, "database", cfg.MongoDB)

		return stores{
			users: mongostore.NewUsersRepo(database, prom),
			zones: mongostore.NewDangerZonesRepo(database, prom),
			ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")

		return stores{
			users: memory.NewUsersRepo(),
			zones: memory.NewDangerZonesRepo(),
			ping:  func(context.Context) error { return nil },
			close: func() {},
		}, nil
	}
}
