package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantledger/pkg/domain"
)

func TestCreateCollectionRequiresLocationAndCollector(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.CreateCollection(ctx, domain.Collection{Collector: "Li Wei"})
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "location", verr.Field)

	_, err = f.ledger.CreateCollection(ctx, domain.Collection{Location: "Yunnan", Collector: "  "})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "collector", verr.Field)
}

func TestCreateCollectionAssignsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := f.collection(t, domain.Taxon{Family: "Rosaceae"})
	assert.Regexp(t, regexp.MustCompile(`^COL-20240302-[0-9A-F]{6}$`), c.Code)
	assert.NotEmpty(t, c.ID)

	undated, err := f.ledger.CreateCollection(ctx, domain.Collection{Location: "Yunnan", Collector: "Wang"})
	require.NoError(t, err)
	assert.Equal(t, day(2024, 5, 10), undated.CollectionDate)
	assert.Contains(t, undated.Code, "-20240510-")

	id, err := f.ledger.FindByCode(ctx, domain.EntityCollection, c.Code)
	require.NoError(t, err)
	assert.Equal(t, c.ID, id)

	_, err = f.ledger.FindByCode(ctx, domain.EntityCollection, "COL-19990101-XXXXXX")
	var nf domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.FindByCode(ctx, domain.EntityImage, "x")
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestPresetDuplicateCodeIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, domain.Taxon{})

	_, err := f.ledger.CreateCollection(ctx, domain.Collection{Code: c.Code, Location: "x", Collector: "y"})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
}

func TestAssignCodeRetriesCollisions(t *testing.T) {
	attempts := 0
	code, err := assignCode(5, "", domain.PrefixSeedBatch, day(2024, 1, 2), func(code string) (string, error) {
		attempts++
		if attempts < 3 {
			return "", fmt.Errorf("%w: %s", domain.ErrDuplicateCode, code)
		}
		return code, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, code, "SEED-20240102-")

	attempts = 0
	_, err = assignCode(2, "", domain.PrefixSeedBatch, day(2024, 1, 2), func(string) (string, error) {
		attempts++
		return "", domain.ErrDuplicateCode
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)
	assert.Equal(t, 2, attempts)

	boom := errors.New("boom")
	_, err = assignCode(5, "", domain.PrefixSeedBatch, day(2024, 1, 2), func(string) (string, error) {
		return "", boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestIdentifyCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, domain.Taxon{Family: "Rosaceae", Genus: "Rosa"})

	notes, err := f.ledger.IdentifyCollection(ctx, c.ID, domain.Identification{Notes: "leaf only"}, domain.Taxon{})
	require.NoError(t, err)
	assert.False(t, notes.Identification.Identified)
	assert.Equal(t, "leaf only", notes.Identification.Notes)

	identified, err := f.ledger.IdentifyCollection(ctx, c.ID,
		domain.Identification{IdentifiedBy: "Dr. Chen"},
		domain.Taxon{SpeciesLatin: "Rosa chinensis", SpeciesLocal: "月季"})
	require.NoError(t, err)
	assert.True(t, identified.Identification.Identified)
	require.NotNil(t, identified.Identification.IdentifiedDate)
	assert.Equal(t, day(2024, 5, 10), *identified.Identification.IdentifiedDate)
	assert.Equal(t, "Dr. Chen", identified.Identification.IdentifiedBy)
	assert.Equal(t, "Rosaceae", identified.Taxon.Family)
	assert.Equal(t, "Rosa chinensis", identified.Taxon.SpeciesLatin)

	_, err = f.ledger.IdentifyCollection(ctx, "missing", domain.Identification{}, domain.Taxon{})
	var nf domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestUpdateCollectionValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.collection(t, domain.Taxon{})

	updated, err := f.ledger.UpdateCollection(ctx, c.ID, func(col *domain.Collection) error {
		col.Habitat = "limestone forest"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "limestone forest", updated.Habitat)
	assert.Equal(t, c.Code, updated.Code)

	_, err = f.ledger.UpdateCollection(ctx, c.ID, func(col *domain.Collection) error {
		col.Location = ""
		return nil
	})
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := f.ledger.GetCollection(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Xishuangbanna", got.Location)
}

func TestCreateSeedBatchProvenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{Family: "Magnoliaceae", Genus: "Magnolia"})
	cul := f.cultivation(t, 3)

	fromCol := f.batch(t, 100, &col.ID)
	assert.Equal(t, domain.SourceFieldCollection, fromCol.Source)
	assert.Equal(t, "Magnoliaceae", fromCol.Taxon.Family)
	assert.Regexp(t, regexp.MustCompile(`^SEED-20240310-[0-9A-F]{6}$`), fromCol.Code)

	manual := f.batch(t, 5, nil)
	assert.Equal(t, domain.SourceOther, manual.Source)

	_, err := f.ledger.CreateSeedBatch(ctx, domain.SeedBatch{CollectionID: &col.ID, ParentCultivationID: &cul.ID})
	var conflict domain.ProvenanceConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, domain.EntitySeedBatch, conflict.Entity)

	_, err = f.ledger.CreateSeedBatch(ctx, domain.SeedBatch{CollectionID: strPtr("nope")})
	var nf domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.EntityCollection, nf.Entity)

	viability := 1.5
	_, err = f.ledger.CreateSeedBatch(ctx, domain.SeedBatch{Viability: &viability})
	var verr domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "viability", verr.Field)

	_, err = f.ledger.CreateSeedBatch(ctx, domain.SeedBatch{TotalQuantity: -1})
	require.ErrorAs(t, err, &verr)
}

func TestSeedBatchTaxonIsASnapshotUntilSynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{Family: "Rosaceae"})
	b := f.batch(t, 10, &col.ID)

	_, err := f.ledger.UpdateCollection(ctx, col.ID, func(c *domain.Collection) error {
		c.Taxon.Family = "Theaceae"
		return nil
	})
	require.NoError(t, err)

	got, err := f.ledger.GetSeedBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosaceae", got.Taxon.Family)

	synced, err := f.ledger.SyncSeedBatchFromOrigin(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Theaceae", synced.Taxon.Family)

	manual := f.batch(t, 1, nil)
	before := f.store.Version()
	same, err := f.ledger.SyncSeedBatchFromOrigin(ctx, manual.ID)
	require.NoError(t, err)
	assert.Equal(t, manual.Taxon, same.Taxon)
	assert.Equal(t, before, f.store.Version())
}

func TestUpdateSeedBatchKeepsProvenanceAndUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{})
	b := f.batch(t, 100, &col.ID)
	_, err := f.ledger.CreateGerminationRecord(ctx, domain.GerminationRecord{SeedBatchID: b.ID, QuantityUsed: 40})
	require.NoError(t, err)

	updated, err := f.ledger.UpdateSeedBatch(ctx, b.ID, func(sb *domain.SeedBatch) error {
		sb.StorageLocation = "Vault B"
		sb.CollectionID = nil
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Vault B", updated.StorageLocation)
	require.NotNil(t, updated.CollectionID)
	assert.Equal(t, col.ID, *updated.CollectionID)

	_, err = f.ledger.UpdateSeedBatch(ctx, b.ID, func(sb *domain.SeedBatch) error {
		sb.TotalQuantity = 39
		return nil
	})
	var insufficient domain.InsufficientQuantityError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 40, insufficient.Requested)
	assert.Equal(t, 39, insufficient.Available)

	_, err = f.ledger.UpdateSeedBatch(ctx, b.ID, func(sb *domain.SeedBatch) error {
		sb.TotalQuantity = 40
		return nil
	})
	require.NoError(t, err)
	available, err := f.ledger.AvailableSeedQuantity(ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, available)
}

func TestCreateCultivationOriginMustMatchReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{})
	b := f.batch(t, 10, &col.ID)

	cases := []struct {
		name string
		in   domain.CultivationRecord
	}{
		{"seed origin without batch", domain.CultivationRecord{Quantity: 1, Origin: domain.OriginSeedBatch}},
		{"collection origin with batch", domain.CultivationRecord{Quantity: 1, Origin: domain.OriginFieldCollection, SeedBatchID: &b.ID}},
		{"two references", domain.CultivationRecord{Quantity: 1, SeedBatchID: &b.ID, CollectionID: &col.ID}},
		{"other with reference", domain.CultivationRecord{Quantity: 1, Origin: domain.OriginOther, CollectionID: &col.ID}},
		{"unknown origin", domain.CultivationRecord{Quantity: 1, Origin: "cutting"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.CreateCultivationRecord(ctx, tc.in)
			var conflict domain.ProvenanceConflictError
			assert.ErrorAs(t, err, &conflict)
		})
	}

	_, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 0})
	var verr domain.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 1, ParentCultivationID: strPtr("ghost")})
	var nf domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, domain.EntityCultivationRecord, nf.Entity)
}

func TestCultivationTaxonCopiedFromCollection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{Family: "Rosaceae", Genus: "Prunus"})

	rec, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{
		Quantity:     4,
		CollectionID: &col.ID,
		Taxon:        domain.Taxon{Genus: "Malus"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginFieldCollection, rec.Origin)
	assert.Equal(t, "Rosaceae", rec.Taxon.Family)
	assert.Equal(t, "Malus", rec.Taxon.Genus)
	assert.Equal(t, domain.CultivationAlive, rec.Status)
	assert.Regexp(t, regexp.MustCompile(`^CUL-20240510-[0-9A-F]{6}$`), rec.Code)

	_, err = f.ledger.UpdateCollection(ctx, col.ID, func(c *domain.Collection) error {
		c.Taxon.Family = "Fagaceae"
		return nil
	})
	require.NoError(t, err)
	got, err := f.ledger.GetCultivationRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rosaceae", got.Taxon.Family)
}

func TestCultivationFromParentAndSeedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{Family: "Orchidaceae"})
	b := f.batch(t, 20, &col.ID)

	seedling, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 8, SeedBatchID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.OriginSeedBatch, seedling.Origin)
	assert.Equal(t, "Orchidaceae", seedling.Taxon.Family)

	division, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{
		Quantity:            2,
		Origin:              domain.OriginExistingCultivation,
		ParentCultivationID: &seedling.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Orchidaceae", division.Taxon.Family)

	available, err := f.ledger.AvailableSeedQuantity(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 12, available, "division draws no seed")
}

func TestCreateHarvestedSeedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	col := f.collection(t, domain.Taxon{Family: "Rosaceae", SpeciesLatin: "Rosa rugosa"})
	parent, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{Quantity: 3, CollectionID: &col.ID})
	require.NoError(t, err)

	harvested, err := f.ledger.CreateHarvestedSeedBatch(ctx, parent.ID, domain.SeedBatch{TotalQuantity: 200})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceHarvest, harvested.Source)
	require.NotNil(t, harvested.ParentCultivationID)
	assert.Equal(t, parent.ID, *harvested.ParentCultivationID)
	assert.Equal(t, "Rosa rugosa", harvested.Taxon.SpeciesLatin)
	assert.Contains(t, f.logs.String(), "not fruiting")

	f.logs.Reset()
	_, err = f.ledger.ApplyCultivationStatus(ctx, parent.ID, domain.TransitionFruiting, day(2024, 5, 1), "")
	require.NoError(t, err)
	_, err = f.ledger.CreateHarvestedSeedBatch(ctx, parent.ID, domain.SeedBatch{TotalQuantity: 5})
	require.NoError(t, err)
	assert.NotContains(t, f.logs.String(), "not fruiting")

	_, err = f.ledger.CreateHarvestedSeedBatch(ctx, "ghost", domain.SeedBatch{TotalQuantity: 5})
	var nf domain.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = f.ledger.CreateHarvestedSeedBatch(ctx, parent.ID, domain.SeedBatch{CollectionID: &col.ID})
	var conflict domain.ProvenanceConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGettersReportNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var nf domain.NotFoundError

	_, err := f.ledger.GetCollection(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.GetSeedBatch(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.GetGerminationRecord(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.GetCultivationRecord(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.GerminationEvents(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.CultivationEvents(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.Subgroups(ctx, "x")
	assert.ErrorAs(t, err, &nf)
	_, err = f.ledger.AvailableSeedQuantity(ctx, "x")
	assert.ErrorAs(t, err, &nf)
}
