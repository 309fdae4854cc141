package storage

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dealdesk/internal/common"
	"github.com/ternarybob/dealdesk/internal/interfaces"
	"github.com/ternarybob/dealdesk/internal/storage/badger"
	"github.com/ternarybob/dealdesk/internal/storage/postgres"
)

// NewStorageManager creates a new storage manager based on config
func NewStorageManager(ctx context.Context, logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	switch config.Storage.Type {
	case "", "badger":
		manager, err := badger.NewManager(logger, &config.Storage.Badger)
		if err != nil {
			return nil, err
		}
		return manager, nil
	case "postgres":
		manager, err := postgres.NewManager(ctx, logger, &config.Storage.Postgres)
		if err != nil {
			return nil, err
		}
		return manager, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Storage.Type)
	}
}
