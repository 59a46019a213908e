package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"plantledger/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	batchID := ""
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		col, err := tx.CreateCollection(domain.Collection{Code: "COL-20240101-ABC123", Location: "Valley", Collector: "Wu"})
		if err != nil {
			return err
		}
		b, err := tx.CreateSeedBatch(domain.SeedBatch{Code: "SEED-20240101-ABC123", TotalQuantity: 40, CollectionID: &col.ID})
		batchID = b.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
	_ = reloaded.View(context.Background(), func(v domain.TransactionView) error {
		b, ok := v.FindSeedBatch(batchID)
		if !ok || b.TotalQuantity != 40 || b.CollectionID == nil {
			t.Fatalf("expected seed batch to survive reload, got %+v", b)
		}
		if len(v.ListCollections()) != 1 {
			t.Fatalf("expected one collection")
		}
		return nil
	})
}

func TestSQLiteStoreFailedWriteKeepsPreviousState(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "state.db"), domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	if _, err := store.DB().Exec(`DROP TABLE state`); err != nil {
		t.Fatalf("drop table: %v", err)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCollection(domain.Collection{Location: "x", Collector: "y"})
		return err
	})
	if err == nil {
		t.Fatalf("expected persist error once the state table is gone")
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		if len(v.ListCollections()) != 0 {
			t.Fatalf("in-memory state must roll back with the failed write")
		}
		return nil
	})
	_ = store.Close()
}

func TestSQLiteStoreLoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.db")
	store, err := NewStore(path, nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if _, err := store.DB().Exec(`INSERT INTO state(bucket,payload) VALUES('collections', '{not json')`); err != nil {
		t.Fatalf("seed invalid payload: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path, nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestSQLiteStoreDuplicateCodeSurfaces(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "dup.db"), nil)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateCultivationRecord(domain.CultivationRecord{Code: "CUL-1", Quantity: 1}); err != nil {
			return err
		}
		_, err := tx.CreateCultivationRecord(domain.CultivationRecord{Code: "CUL-1", Quantity: 1})
		return err
	})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected duplicate code, got %v", err)
	}
}
