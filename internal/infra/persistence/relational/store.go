// Package relational provides a GORM-backed persistent store that keeps one
// normalized table per ledger entity. Transactions run against the embedded
// in-memory store and committed changes are replayed row by row.
package relational

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plantledger/internal/infra/persistence/memory"
	"plantledger/pkg/domain"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

// Supported dialects.
const (
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
)

// Config selects the database behind the store.
type Config struct {
	Dialect string
	DSN     string
	// Logger receives GORM statement logs. Nil silences them.
	Logger gormlogger.Interface
	// MaxOpenConns caps the pool for server dialects. Zero keeps the driver default.
	MaxOpenConns int
}

// Store persists ledger rows through GORM while reusing the in-memory store
// for transactions and rule evaluation.
type Store struct {
	*memory.Store
	db      *gorm.DB
	dialect string
}

type tables struct {
	collections       []collectionRow
	seedBatches       []seedBatchRow
	germinations      []germinationRow
	germinationEvents []germinationEventRow
	cultivations      []cultivationRow
	cultivationEvents []cultivationEventRow
	subgroups         []subgroupRow
	images            []imageRow
}

// Open connects using cfg, migrates the schema and hydrates the in-memory state.
func Open(ctx context.Context, cfg Config, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}
	gormCfg := &gorm.Config{Logger: cfg.Logger}
	if gormCfg.Logger == nil {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)
	}
	if cfg.MaxOpenConns > 0 && cfg.Dialect != DialectSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return newStore(ctx, db, cfg.Dialect, engine, opts...)
}

func newStore(ctx context.Context, db *gorm.DB, dialect string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if err := db.WithContext(ctx).AutoMigrate(models()...); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("failed to migrate ledger schema: %w", err)
	}
	loaded, err := loadTables(ctx, db)
	if err != nil {
		closeDB(db)
		return nil, err
	}
	mem := memory.NewStore(engine, opts...)
	mem.ImportState(snapshotFromRows(loaded))
	s := &Store{Store: mem, db: db, dialect: dialect}
	mem.OnCommit(s.replay)
	return s, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch strings.ToLower(cfg.Dialect) {
	case DialectSQLite, "":
		if dsn == "" {
			dsn = "plantledger.db"
		}
		if !strings.Contains(dsn, "?") && dsn != ":memory:" {
			dsn += "?_foreign_keys=ON&_busy_timeout=5000"
		}
		return sqlite.Open(dsn), nil
	case DialectMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("mysql dialect requires a dsn")
		}
		if !strings.Contains(dsn, "parseTime") {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "charset=utf8mb4&parseTime=True&loc=UTC"
		}
		return mysql.Open(dsn), nil
	case DialectPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres dialect requires a dsn")
		}
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported relational dialect %q", cfg.Dialect)
	}
}

func loadTables(ctx context.Context, db *gorm.DB) (tables, error) {
	var t tables
	q := db.WithContext(ctx)
	loads := []struct {
		name string
		dest any
	}{
		{"collections", &t.collections},
		{"seed_batches", &t.seedBatches},
		{"germination_records", &t.germinations},
		{"germination_events", &t.germinationEvents},
		{"cultivation_records", &t.cultivations},
		{"cultivation_events", &t.cultivationEvents},
		{"cultivation_subgroups", &t.subgroups},
		{"images", &t.images},
	}
	for _, l := range loads {
		if err := q.Find(l.dest).Error; err != nil {
			return tables{}, fmt.Errorf("failed to load %s: %w", l.name, err)
		}
	}
	return t, nil
}

// replay writes the committed changes in order inside one database transaction.
func (s *Store) replay(ctx context.Context, _ memory.Snapshot, changes []domain.Change) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, change := range changes {
			if change.Action == domain.ActionDelete {
				if err := deleteRow(tx, change); err != nil {
					return err
				}
				continue
			}
			row, err := rowFor(change)
			if err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
				return fmt.Errorf("failed to %s %s: %w", change.Action, change.Entity, err)
			}
		}
		return nil
	})
}

func deleteRow(tx *gorm.DB, change domain.Change) error {
	img, ok := change.Before.(domain.Image)
	if !ok || change.Entity != domain.EntityImage {
		return fmt.Errorf("unsupported delete of %s", change.Entity)
	}
	if err := tx.Delete(&imageRow{}, "id = ?", img.ID).Error; err != nil {
		return fmt.Errorf("failed to delete image %s: %w", img.ID, err)
	}
	return nil
}

// DB exposes the GORM handle for maintenance tasks.
func (s *Store) DB() *gorm.DB { return s.db }

// Dialect reports the configured SQL dialect.
func (s *Store) Dialect() string { return s.dialect }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying database: %w", err)
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
