package core

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"plantledger/internal/blob"
	"plantledger/internal/infra/persistence/memory"
	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

var testToday = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	ledger *Ledger
	store  *memory.Store
	blobs  blob.Store
	logs   *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memory.NewStore(NewDefaultRulesEngine())
	logs := &bytes.Buffer{}
	blobs := blob.NewMemory()
	base := []Option{
		WithClock(ClockFunc(func() time.Time { return testToday })),
		WithLogger(logger.NewSlogLogger(logs, logger.LogLevelDebug, logger.FormatJSON)),
		WithBlobStore(blobs),
	}
	return fixture{
		ledger: NewLedger(store, append(base, opts...)...),
		store:  store,
		blobs:  blobs,
		logs:   logs,
	}
}

func (f fixture) collection(t *testing.T, taxon domain.Taxon) domain.Collection {
	t.Helper()
	c, err := f.ledger.CreateCollection(context.Background(), domain.Collection{
		Location:       "Xishuangbanna",
		Collector:      "Li Wei",
		CollectionDate: day(2024, 3, 2),
		Taxon:          taxon,
	})
	require.NoError(t, err)
	return c
}

func (f fixture) batch(t *testing.T, total int, collectionID *string) domain.SeedBatch {
	t.Helper()
	b, err := f.ledger.CreateSeedBatch(context.Background(), domain.SeedBatch{
		TotalQuantity:   total,
		StorageLocation: "Vault A",
		StorageDate:     day(2024, 3, 10),
		CollectionID:    collectionID,
	})
	require.NoError(t, err)
	return b
}

func (f fixture) cultivation(t *testing.T, quantity int) domain.CultivationRecord {
	t.Helper()
	r, err := f.ledger.CreateCultivationRecord(context.Background(), domain.CultivationRecord{
		Quantity:  quantity,
		Location:  "Greenhouse 2",
		StartDate: day(2024, 4, 1),
		Origin:    domain.OriginOther,
	})
	require.NoError(t, err)
	return r
}

func strPtr(s string) *string { return &s }
