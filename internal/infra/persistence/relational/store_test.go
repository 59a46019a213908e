package relational

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantledger/pkg/domain"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{Dialect: DialectSQLite, DSN: path}, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return store
}

func TestRelationalStoreReplaysAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store := openTestStore(t, path)

	lat := 25.1
	var batchID, cultID, imageID string
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		col, err := tx.CreateCollection(domain.Collection{
			Code: "COL-20240301-AAAAAA", Location: "Cangshan", Collector: "Li",
			Latitude: &lat, Taxon: domain.Taxon{Family: "Rosaceae", Genus: "Prunus"},
			Site: domain.SiteDetails{Terrain: "slope"},
		})
		if err != nil {
			return err
		}
		b, err := tx.CreateSeedBatch(domain.SeedBatch{
			Code: "SEED-20240301-AAAAAA", TotalQuantity: 100,
			Source: domain.SourceFieldCollection, CollectionID: &col.ID,
		})
		if err != nil {
			return err
		}
		batchID = b.ID
		c, err := tx.CreateCultivationRecord(domain.CultivationRecord{
			Code: "CUL-20240301-AAAAAA", Quantity: 5, Status: domain.CultivationAlive,
			Origin: domain.OriginSeedBatch, SeedBatchID: &b.ID,
		})
		if err != nil {
			return err
		}
		cultID = c.ID
		img, err := tx.CreateImage(domain.Image{OwnerKind: domain.ImageOwnerCultivation, OwnerID: c.ID, BlobKey: "images/cultivation/x.jpg"})
		imageID = img.ID
		return err
	})
	require.NoError(t, err)

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.UpdateCultivationRecord(cultID, func(r *domain.CultivationRecord) error {
			r.Quantity = 3
			return nil
		}); err != nil {
			return err
		}
		return tx.DeleteImage(imageID)
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reloaded := openTestStore(t, path)
	t.Cleanup(func() { _ = reloaded.Close() })
	assert.Equal(t, DialectSQLite, reloaded.Dialect())

	err = reloaded.View(ctx, func(v domain.TransactionView) error {
		cols := v.ListCollections()
		require.Len(t, cols, 1)
		assert.Equal(t, "Rosaceae", cols[0].Taxon.Family)
		assert.Equal(t, "slope", cols[0].Site.Terrain)
		require.NotNil(t, cols[0].Latitude)
		assert.InDelta(t, 25.1, *cols[0].Latitude, 1e-9)

		b, ok := v.FindSeedBatch(batchID)
		require.True(t, ok)
		assert.Equal(t, 100, b.TotalQuantity)

		c, ok := v.FindCultivationRecord(cultID)
		require.True(t, ok)
		assert.Equal(t, 3, c.Quantity)
		assert.Empty(t, v.ListImages())
		return nil
	})
	require.NoError(t, err)
}

func TestRelationalStoreReplayFailureDiscardsCommit(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.DB().Migrator().DropTable(&collectionRow{}))

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateCollection(domain.Collection{Location: "Hill", Collector: "Ma", CollectionDate: time.Now()})
		return err
	})
	require.Error(t, err)
	assert.Empty(t, store.ExportState().Collections)
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(Config{Dialect: "oracle"})
	assert.Error(t, err)
	_, err = dialectorFor(Config{Dialect: DialectMySQL})
	assert.Error(t, err)
	_, err = dialectorFor(Config{Dialect: DialectPostgres})
	assert.Error(t, err)

	d, err := dialectorFor(Config{Dialect: DialectMySQL, DSN: "u:p@tcp(localhost:3306)/ledger"})
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	d, err = dialectorFor(Config{Dialect: DialectPostgres, DSN: "postgres://localhost/ledger"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	d, err = dialectorFor(Config{})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

func TestRowForRejectsUnknownPayload(t *testing.T) {
	_, err := rowFor(domain.Change{Entity: domain.EntityCollection, After: "nope"})
	assert.Error(t, err)
	assert.Error(t, deleteRow(nil, domain.Change{Entity: domain.EntityCollection, Action: domain.ActionDelete}))
}
