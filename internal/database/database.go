package database

import (
	"context"
	"errors"
	"fmt"
	"photopost-bot/internal/config"
)

// ErrPhotoNotFound is returned when a photo is not found.
var ErrPhotoNotFound = errors.New("photo not found")

// Open connects the store selected by cfg.StoreDriver.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := ConnectDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewMongoPhotoStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.PostgresURI)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
