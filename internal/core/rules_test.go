package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plantledger/pkg/domain"
)

// commitDirect bypasses the ledger so the rules engine is the only guard.
func commitDirect(t *testing.T, f fixture, fn func(tx domain.Transaction) error) domain.RuleViolationError {
	t.Helper()
	_, err := f.store.RunInTransaction(context.Background(), fn)
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	return violation
}

func blockedBy(v domain.RuleViolationError) []string {
	var rules []string
	for _, violation := range v.Result.Violations {
		if violation.Severity == domain.SeverityBlock {
			rules = append(rules, violation.Rule)
		}
	}
	return rules
}

func TestDefaultRulesEngineOrder(t *testing.T) {
	assert.Equal(t, []string{
		"seed_availability",
		"germination_progress",
		"provenance",
		"lineage_integrity",
		"terminal_state",
	}, NewDefaultRulesEngine().Rules())
}

func TestSeedAvailabilityRuleBlocksOverdraw(t *testing.T) {
	f := newFixture(t)
	b := f.batch(t, 10, nil)

	v := commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateGerminationRecord(domain.GerminationRecord{
			Code:         "GER-20240510-AAAAAA",
			SeedBatchID:  b.ID,
			QuantityUsed: 11,
			StartDate:    testToday,
			Status:       domain.GerminationInProgress,
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "seed_availability")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateSeedBatch(b.ID, func(sb *domain.SeedBatch) error {
			sb.TotalQuantity = -1
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "seed_availability")
}

func TestGerminationProgressRuleChecksCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.batch(t, 20, nil)
	g, err := f.ledger.CreateGerminationRecord(ctx, domain.GerminationRecord{SeedBatchID: b.ID, QuantityUsed: 10})
	require.NoError(t, err)
	_, err = f.ledger.AppendGerminationEvent(ctx, g.ID, day(2024, 5, 1), 4, "")
	require.NoError(t, err)

	v := commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateGerminationRecord(g.ID, func(r *domain.GerminationRecord) error {
			r.GerminatedCount = 9
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "germination_progress")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateGerminationEvent(domain.GerminationEvent{
			GerminationRecordID: g.ID,
			EventDate:           day(2024, 5, 2),
			Count:               7,
			CumulativeCount:     11,
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "germination_progress")
}

func TestProvenanceRuleRejectsTwoOrigins(t *testing.T) {
	f := newFixture(t)
	c := f.collection(t, domain.Taxon{})
	parent := f.cultivation(t, 3)

	v := commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateSeedBatch(domain.SeedBatch{
			Code:                "SEED-20240510-AAAAAA",
			TotalQuantity:       5,
			Source:              domain.SourceOther,
			CollectionID:        &c.ID,
			ParentCultivationID: &parent.ID,
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "provenance")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateCultivationRecord(domain.CultivationRecord{
			Code:         "CUL-20240510-AAAAAA",
			Quantity:     1,
			Status:       domain.CultivationAlive,
			Origin:       domain.OriginFieldCollection,
			CollectionID: strPtr("ghost"),
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "provenance")
}

func TestLineageIntegrityRuleRejectsCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.cultivation(t, 2)
	child, err := f.ledger.CreateCultivationRecord(ctx, domain.CultivationRecord{
		Quantity:            1,
		Origin:              domain.OriginExistingCultivation,
		ParentCultivationID: &root.ID,
	})
	require.NoError(t, err)

	v := commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateCultivationRecord(root.ID, func(r *domain.CultivationRecord) error {
			r.Origin = domain.OriginExistingCultivation
			r.ParentCultivationID = &child.ID
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "lineage_integrity")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateCultivationRecord(root.ID, func(r *domain.CultivationRecord) error {
			r.Origin = domain.OriginExistingCultivation
			r.ParentCultivationID = &root.ID
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "lineage_integrity")
}

func TestTerminalStateRuleKeepsTransitionsOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.batch(t, 10, nil)
	g, err := f.ledger.CreateGerminationRecord(ctx, domain.GerminationRecord{SeedBatchID: b.ID, QuantityUsed: 5})
	require.NoError(t, err)
	_, err = f.ledger.CompleteGermination(ctx, g.ID)
	require.NoError(t, err)
	rec := f.cultivation(t, 1)
	_, err = f.ledger.ApplyCultivationStatus(ctx, rec.ID, domain.TransitionDead, day(2024, 5, 1), "")
	require.NoError(t, err)

	v := commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateGerminationRecord(g.ID, func(r *domain.GerminationRecord) error {
			r.Status = domain.GerminationInProgress
			r.CompletedDate = nil
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "terminal_state")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateGerminationEvent(domain.GerminationEvent{GerminationRecordID: g.ID, EventDate: day(2024, 5, 11)})
		return err
	})
	assert.Contains(t, blockedBy(v), "terminal_state")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.UpdateCultivationRecord(rec.ID, func(r *domain.CultivationRecord) error {
			r.Status = domain.CultivationAlive
			return nil
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "terminal_state")

	v = commitDirect(t, f, func(tx domain.Transaction) error {
		_, err := tx.CreateCultivationEvent(domain.CultivationEvent{
			CultivationRecordID: rec.ID,
			EventDate:           day(2024, 5, 2),
			EventType:           domain.EventWatering,
		})
		return err
	})
	assert.Contains(t, blockedBy(v), "terminal_state")
}
