package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantledger/internal/core"
	"plantledger/internal/infra/persistence/memory"
	"plantledger/pkg/domain"
)

var testToday = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// garden is a small ledger shared by the query tests:
//
//	rose (COL, Rosaceae) -> roseSeed (100) -> roseTrial (20 used, 15 germinated, completed)
//	                                       -> mother (10 plants, fruiting)
//	mother -> harvest (30) -> daughter (5 plants)
//	mother -> cutting (2 plants)
//	fern (COL, unidentified) -> fernSeed (8) fully used by fernTrial
type garden struct {
	ledger *core.Ledger
	store  *memory.Store

	rose, fern                  domain.Collection
	roseSeed, fernSeed, harvest domain.SeedBatch
	roseTrial, fernTrial        domain.GerminationRecord
	mother, daughter, cutting   domain.CultivationRecord
}

func newGarden(t *testing.T) garden {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore(core.NewDefaultRulesEngine())
	g := garden{
		ledger: core.NewLedger(store, core.WithClock(core.ClockFunc(func() time.Time { return testToday }))),
		store:  store,
	}
	var err error

	g.rose, err = g.ledger.CreateCollection(ctx, domain.Collection{
		Location:       "Kunming",
		Collector:      "Zhang San",
		CollectionDate: day(2024, 3, 1),
		Taxon: domain.Taxon{
			Family: "Rosaceae", FamilyLocal: "蔷薇科",
			Genus: "Rosa", SpeciesLatin: "Rosa chinensis", SpeciesLocal: "月季",
		},
		Identification: domain.Identification{Identified: true},
	})
	require.NoError(t, err)
	g.fern, err = g.ledger.CreateCollection(ctx, domain.Collection{
		Location:       "Xishuangbanna",
		Collector:      "Li Wei",
		CollectionDate: day(2024, 4, 2),
		Taxon:          domain.Taxon{Family: "Cyatheaceae"},
	})
	require.NoError(t, err)

	g.roseSeed, err = g.ledger.CreateSeedBatch(ctx, domain.SeedBatch{TotalQuantity: 100, StorageDate: day(2024, 3, 5), StorageLocation: "Vault A", CollectionID: &g.rose.ID})
	require.NoError(t, err)
	g.fernSeed, err = g.ledger.CreateSeedBatch(ctx, domain.SeedBatch{TotalQuantity: 8, StorageDate: day(2024, 4, 6), StorageLocation: "Vault B", CollectionID: &g.fern.ID})
	require.NoError(t, err)

	g.roseTrial, err = g.ledger.CreateGerminationRecord(ctx, domain.GerminationRecord{SeedBatchID: g.roseSeed.ID, QuantityUsed: 20, Treatment: "cold"})
	require.NoError(t, err)
	_, err = g.ledger.AppendGerminationEvent(ctx, g.roseTrial.ID, day(2024, 5, 1), 15, "")
	require.NoError(t, err)
	g.roseTrial, err = g.ledger.CompleteGermination(ctx, g.roseTrial.ID)
	require.NoError(t, err)
	g.fernTrial, err = g.ledger.CreateGerminationRecord(ctx, domain.GerminationRecord{SeedBatchID: g.fernSeed.ID, QuantityUsed: 8})
	require.NoError(t, err)

	g.mother, err = g.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 10, Location: "Greenhouse 1", StartDate: day(2024, 3, 20), SeedBatchID: &g.roseSeed.ID})
	require.NoError(t, err)
	_, err = g.ledger.ApplyCultivationStatus(ctx, g.mother.ID, domain.TransitionFruiting, day(2024, 7, 3), "")
	require.NoError(t, err)
	g.harvest, err = g.ledger.CreateHarvestedSeedBatch(ctx, g.mother.ID, domain.SeedBatch{TotalQuantity: 30, StorageDate: day(2024, 8, 1)})
	require.NoError(t, err)
	g.daughter, err = g.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 5, Location: "Greenhouse 2", StartDate: day(2024, 8, 10), SeedBatchID: &g.harvest.ID})
	require.NoError(t, err)
	g.cutting, err = g.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 2, Location: "Greenhouse 2", StartDate: day(2024, 8, 12), ParentCultivationID: &g.mother.ID})
	require.NoError(t, err)
	return g
}

func (g garden) view(t *testing.T, fn func(domain.TransactionView)) {
	t.Helper()
	require.NoError(t, g.store.View(context.Background(), func(v domain.TransactionView) error {
		fn(v)
		return nil
	}))
}

func TestListSeedBatchesWithAvailability(t *testing.T) {
	g := newGarden(t)
	g.view(t, func(v domain.TransactionView) {
		batches := ListSeedBatchesWithAvailability(v)
		require.Len(t, batches, 2)
		assert.Equal(t, g.harvest.ID, batches[0].Batch.ID, "newest storage date first")
		assert.Equal(t, 25, batches[0].Available)
		assert.Equal(t, g.roseSeed.ID, batches[1].Batch.ID)
		assert.Equal(t, 70, batches[1].Available)

		fern := SeedBatchesByCollection(v, g.fern.ID)
		require.Len(t, fern, 1)
		assert.Zero(t, fern[0].Available)
	})
}

func TestSearchCollections(t *testing.T) {
	g := newGarden(t)
	g.view(t, func(v domain.TransactionView) {
		codes := func(cs []domain.Collection) []string {
			var out []string
			for _, c := range cs {
				out = append(out, c.Code)
			}
			return out
		}
		rose := []string{g.rose.Code}

		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: "ROSA CHIN"})))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: "月季"})))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: "yueji"})))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: "YJ"})))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: "qiang wei"})))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{Text: g.rose.Code[4:12]})))
		assert.Empty(t, SearchCollections(v, CollectionFilter{Text: "orchid"}))

		assert.Equal(t, []string{g.fern.Code}, codes(SearchCollections(v, CollectionFilter{Collector: "li"})))
		assert.Equal(t, []string{g.fern.Code}, codes(UnidentifiedCollections(v)))
		assert.Equal(t, rose, codes(SearchCollections(v, CollectionFilter{From: day(2024, 2, 1), To: day(2024, 3, 1)})))
		assert.Len(t, SearchCollections(v, CollectionFilter{}), 2)

		assert.Equal(t, []string{"Cyatheaceae", "Rosaceae"}, Families(v))
		assert.Equal(t, []string{"Rosa"}, Genera(v))
	})
}

func TestSearchCultivationsAndFruiting(t *testing.T) {
	g := newGarden(t)
	_, err := g.ledger.ApplyCultivationStatus(context.Background(), g.cutting.ID, domain.TransitionDead, day(2024, 8, 20), "")
	require.NoError(t, err)

	g.view(t, func(v domain.TransactionView) {
		inHouse2 := SearchCultivations(v, CultivationFilter{Location: "greenhouse 2"})
		require.Len(t, inHouse2, 2)
		assert.Equal(t, g.daughter.ID, inHouse2[0].ID)

		dead := SearchCultivations(v, CultivationFilter{Status: domain.CultivationDead})
		require.Len(t, dead, 1)
		assert.Equal(t, g.cutting.ID, dead[0].ID)

		assert.Len(t, SearchCultivations(v, CultivationFilter{Text: "月季"}), 3)

		fruiting := FruitingAlive(v)
		require.Len(t, fruiting, 1)
		assert.Equal(t, g.mother.ID, fruiting[0].ID)

		assert.Len(t, SearchSeedBatches(v, SeedBatchFilter{StorageLocation: "vault"}), 2)
		assert.Len(t, SearchGerminationRecords(v, GerminationFilter{Status: domain.GerminationCompleted}), 1)
		assert.Len(t, SearchGerminationRecords(v, GerminationFilter{Treatment: "COLD"}), 1)
	})
}

func TestLineageTraversal(t *testing.T) {
	g := newGarden(t)
	g.view(t, func(v domain.TransactionView) {
		steps, err := LineageOf(v, g.daughter.Code)
		require.NoError(t, err)
		var kinds []domain.EntityType
		for _, s := range steps {
			kinds = append(kinds, s.Kind)
		}
		assert.Equal(t, []domain.EntityType{
			domain.EntityCultivationRecord,
			domain.EntitySeedBatch,
			domain.EntityCultivationRecord,
			domain.EntitySeedBatch,
			domain.EntityCollection,
		}, kinds)
		assert.Equal(t, g.rose.Code, steps[len(steps)-1].Code)

		steps, err = LineageOf(v, g.roseTrial.Code)
		require.NoError(t, err)
		require.Len(t, steps, 3)
		assert.Equal(t, g.roseSeed.ID, steps[1].ID)

		_, err = LineageOf(v, "XYZ-20240101-ABCDEF")
		var verr domain.ValidationError
		assert.ErrorAs(t, err, &verr)
		_, err = LineageOf(v, "CUL-20240101-ABCDEF")
		var nf domain.NotFoundError
		assert.ErrorAs(t, err, &nf)

		ancestors, err := CultivationAncestors(v, g.daughter.ID)
		require.NoError(t, err)
		require.Len(t, ancestors, 1)
		assert.Equal(t, g.mother.ID, ancestors[0].ID)

		descendants, err := CultivationDescendants(v, g.mother.ID)
		require.NoError(t, err)
		require.Len(t, descendants, 2)
		assert.Equal(t, g.daughter.ID, descendants[0].ID)
		assert.Equal(t, g.cutting.ID, descendants[1].ID)

		harvested := HarvestedSeedBatches(v, g.mother.ID)
		require.Len(t, harvested, 1)
		assert.Equal(t, g.harvest.ID, harvested[0].ID)

		_, err = CultivationDescendants(v, "ghost")
		assert.ErrorAs(t, err, &nf)
	})
}

func TestKindForCode(t *testing.T) {
	for code, want := range map[string]domain.EntityType{
		"COL-20240301-0A1B2C":  domain.EntityCollection,
		"seed-20240301-0A1B2C": domain.EntitySeedBatch,
		"GER-20240301-0A1B2C":  domain.EntityGerminationRecord,
		"CUL-20240301-0A1B2C":  domain.EntityCultivationRecord,
	} {
		got, ok := KindForCode(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
	_, ok := KindForCode("IMG-1")
	assert.False(t, ok)
}
