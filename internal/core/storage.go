package core

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"plantledger/internal/blob"
	"plantledger/internal/config"
	"plantledger/internal/infra/persistence/memory"
	"plantledger/internal/infra/persistence/postgres"
	"plantledger/internal/infra/persistence/relational"
	"plantledger/internal/infra/persistence/sqlite"
	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory     StorageDriver = "memory"     // in-memory only (tests / ephemeral)
	StorageSQLite     StorageDriver = "sqlite"     // embedded sqlite snapshot file
	StoragePostgres   StorageDriver = "postgres"   // PostgreSQL snapshot table
	StorageRelational StorageDriver = "relational" // one table per entity via gorm
)

type (
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend from cfg. Defaults to sqlite when the
// driver is unset.
func OpenPersistentStore(ctx context.Context, cfg config.StorageConfig, engine *RulesEngine, log logger.Logger) (PersistentStore, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	log = log.Module("storage")
	switch driver {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath, engine)
		if err != nil {
			return nil, err
		}
		log.Info("opened sqlite store", logger.String("path", store.Path()))
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, cfg.PostgresDSN, engine)
		if err != nil {
			return nil, err
		}
		log.Info("opened postgres store")
		return store, nil
	case StorageRelational:
		store, err := relational.Open(ctx, relational.Config{
			Dialect:      cfg.Relational.Dialect,
			DSN:          cfg.Relational.DSN,
			Logger:       logger.NewGormLoggerAdapter(log.Module("gorm"), cfg.Relational.SlowThreshold),
			MaxOpenConns: cfg.Relational.MaxOpenConns,
		}, engine)
		if err != nil {
			return nil, err
		}
		log.Info("opened relational store", logger.String("dialect", store.Dialect()))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenBlobStore builds the image file store described by cfg.
func OpenBlobStore(ctx context.Context, cfg config.BlobConfig) (blob.Store, error) {
	return blob.Open(ctx, blob.Config{
		Driver: cfg.Driver,
		FSRoot: cfg.FSRoot,
		S3: blob.S3Config{
			Region:          cfg.S3.Region,
			Bucket:          cfg.S3.Bucket,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			PathStyle:       cfg.S3.PathStyle,
		},
	})
}

// OpenLedger wires a ledger from configuration: default rules, the configured
// store and blob backend, and Prometheus metrics when enabled. A nil
// registerer uses prometheus.DefaultRegisterer.
func OpenLedger(ctx context.Context, cfg config.Config, log logger.Logger, registerer prometheus.Registerer) (*Ledger, error) {
	if log == nil {
		log = logger.NewDiscard()
	}
	store, err := OpenPersistentStore(ctx, cfg.Storage, NewDefaultRulesEngine(), log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := OpenBlobStore(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	opts := []Option{
		WithLogger(log),
		WithBlobStore(blobs),
		WithCodeRetries(cfg.Ledger.CodeRetries),
	}
	if cfg.Metrics.Enabled {
		if registerer == nil {
			registerer = prometheus.DefaultRegisterer
		}
		recorder, err := NewPrometheusRecorder(registerer, cfg.Metrics.Namespace)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, WithMetricsRecorder(recorder))
	}
	return NewLedger(store, opts...), nil
}
