package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"committeehub/config"
	"committeehub/db"
	"committeehub/internal/memstore"
	"committeehub/internal/storage"

	"github.com/casbin/casbin/v2/persist"
	mongodbadapter "github.com/casbin/mongodb-adapter/v3"
)

type stores struct {
	committees    storage.CommitteeStore
	motions       storage.MotionStore
	users         storage.UserStore
	policyAdapter persist.Adapter
	close         func()
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.Storage == config.StorageMemory {
		mem := memstore.New()
		log.Warn("using in-memory storage; data is lost on restart")
		return &stores{committees: mem, motions: mem, users: mem, close: func() {}}, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, database, err := db.ConnectMongoDB(connectCtx, cfg.Database.URI)
	if err != nil {
		return nil, err
	}
	closeClient := func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(disconnectCtx); err != nil {
			log.Warn("failed to disconnect from MongoDB", "error", err)
		}
	}
	if err := db.EnsureIndexes(connectCtx, database); err != nil {
		closeClient()
		return nil, err
	}

	s := &stores{
		committees: db.NewCommitteeStore(database),
		motions:    db.NewMotionStore(database),
		users:      db.NewUserStore(database),
		close:      closeClient,
	}
	if cfg.RBAC.Persist {
		adapter, err := mongodbadapter.NewAdapter(cfg.Database.URI)
		if err != nil {
			closeClient()
			return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
		}
		s.policyAdapter = adapter
	}
	return s, nil
}
