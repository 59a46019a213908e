package core

import (
	"context"
	"fmt"
	"sort"

	"plantledger/pkg/domain"
)

// SeedAvailabilityRule blocks any commit that leaves a touched seed batch with
// a negative available quantity.
func SeedAvailabilityRule() domain.Rule {
	return seedAvailabilityRule{}
}

type seedAvailabilityRule struct{}

func (seedAvailabilityRule) Name() string { return "seed_availability" }

func (r seedAvailabilityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		for _, payload := range []any{change.Before, change.After} {
			switch v := payload.(type) {
			case domain.SeedBatch:
				touched[v.ID] = struct{}{}
			case domain.GerminationRecord:
				touched[v.SeedBatchID] = struct{}{}
			case domain.CultivationRecord:
				if v.SeedBatchID != nil {
					touched[*v.SeedBatchID] = struct{}{}
				}
			}
		}
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}

	used := domain.CommittedUsage(view.ListGerminationRecords(), view.ListCultivationRecords())
	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		batch, ok := view.FindSeedBatch(id)
		if !ok {
			if used[id] > 0 {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntitySeedBatch, id,
					fmt.Sprintf("seed batch %s is referenced but does not exist", id)))
			}
			continue
		}
		if batch.TotalQuantity < 0 {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntitySeedBatch, id,
				fmt.Sprintf("seed batch %s has negative total quantity %d", batch.Code, batch.TotalQuantity)))
			continue
		}
		if available := batch.TotalQuantity - used[id]; available < 0 {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntitySeedBatch, id,
				fmt.Sprintf("seed batch %s over-committed: total %d, used %d", batch.Code, batch.TotalQuantity, used[id])))
		}
	}
	return res, nil
}
