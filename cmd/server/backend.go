package main

import (
	"context"
	"fmt"

	"plaxrec/internal/auth"
	"plaxrec/internal/config"
	"plaxrec/internal/db"
	"plaxrec/internal/handlers"
	"plaxrec/internal/services"
	"plaxrec/internal/store"
	"plaxrec/internal/store/memstore"
)

type profileBackend interface {
	services.ProfileStore
	services.ProfileDirectory
}

type batchBackend interface {
	services.BatchStore
	handlers.BatchStore
}

type transactionBackend interface {
	services.TransactionStore
	handlers.TransactionStore
}

type movementBackend interface {
	services.MovementStore
	handlers.Reconciler
}

type auditBackend interface {
	services.AuditStore
	handlers.AuditStore
}

// backend is one storage driver: postgres through sqlx, or the in-process store.
type backend struct {
	txRunner     db.TxRunner
	profiles     profileBackend
	batches      batchBackend
	transactions transactionBackend
	movements    movementBackend
	audit        auditBackend
	close        func() error
}

func openBackend(ctx context.Context, cfg config.Config) (backend, error) {
	switch cfg.DB.Driver {
	case config.DriverPostgres:
		database, err := db.Connect(cfg.DB.URL, db.PoolOptions{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
		})
		if err != nil {
			return backend{}, fmt.Errorf("connect database: %w", err)
		}
		return backend{
			txRunner:     db.NewTxRunner(database),
			profiles:     store.NewProfileStore(database),
			batches:      store.NewBatchStore(database),
			transactions: store.NewTransactionStore(database),
			movements:    store.NewMovementStore(database),
			audit:        store.NewAuditStore(database),
			close:        database.Close,
		}, nil
	case config.DriverMemory:
		mem := memstore.New()
		if cfg.Seed.Mode == config.SeedDemo {
			hash, err := auth.HashPassword(cfg.Seed.Password)
			if err != nil {
				return backend{}, fmt.Errorf("hash seed password: %w", err)
			}
			if err := memstore.SeedDemo(ctx, mem, hash, cfg.Rates.KgToPlax); err != nil {
				return backend{}, fmt.Errorf("seed demo data: %w", err)
			}
		}
		return backend{
			txRunner:     mem,
			profiles:     mem.Profiles(),
			batches:      mem.Batches(),
			transactions: mem.Transactions(),
			movements:    mem.Movements(),
			audit:        mem.Audit(),
			close:        func() error { return nil },
		}, nil
	}
	return backend{}, fmt.Errorf("unknown database driver %q", cfg.DB.Driver)
}
