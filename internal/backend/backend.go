// Package backend selects and constructs the storage implementation named
// by the configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/lumewell/passkey-backend/internal/storage"
	"github.com/lumewell/passkey-backend/internal/storage/memory"
	"github.com/lumewell/passkey-backend/internal/storage/mongodb"
	"github.com/lumewell/passkey-backend/pkg/config"
)

// New creates a storage backend based on the configuration
func New(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		return memory.NewStore(), nil
	case "mongodb":
		store, err := mongodb.NewStore(ctx, &cfg.Storage.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mongodb storage: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
	}
}
