package core

import (
	"context"
	"fmt"

	"plantledger/pkg/domain"
)

// LineageIntegrityRule rejects provenance graphs that loop back on
// themselves. Seed batches point at their parent cultivation; cultivation
// records point at their seed batch or parent cultivation.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

type lineageNode struct {
	kind domain.EntityType
	id   string
}

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}

	var starts []lineageNode
	for _, change := range changes {
		switch v := change.After.(type) {
		case domain.SeedBatch:
			if v.ParentCultivationID != nil {
				starts = append(starts, lineageNode{domain.EntitySeedBatch, v.ID})
			}
		case domain.CultivationRecord:
			if v.SeedBatchID != nil || v.ParentCultivationID != nil {
				starts = append(starts, lineageNode{domain.EntityCultivationRecord, v.ID})
			}
		}
	}
	if len(starts) == 0 {
		return res, nil
	}

	parentOf := func(n lineageNode) (lineageNode, bool) {
		switch n.kind {
		case domain.EntitySeedBatch:
			b, ok := view.FindSeedBatch(n.id)
			if ok && b.ParentCultivationID != nil {
				return lineageNode{domain.EntityCultivationRecord, *b.ParentCultivationID}, true
			}
		case domain.EntityCultivationRecord:
			c, ok := view.FindCultivationRecord(n.id)
			if !ok {
				break
			}
			if c.ParentCultivationID != nil {
				return lineageNode{domain.EntityCultivationRecord, *c.ParentCultivationID}, true
			}
			if c.SeedBatchID != nil {
				return lineageNode{domain.EntitySeedBatch, *c.SeedBatchID}, true
			}
		}
		return lineageNode{}, false
	}

	reported := make(map[lineageNode]struct{})
	for _, start := range starts {
		if _, done := reported[start]; done {
			continue
		}
		seen := map[lineageNode]struct{}{start: {}}
		for cur, ok := parentOf(start); ok; cur, ok = parentOf(cur) {
			if cur == start {
				reported[start] = struct{}{}
				res.Violations = append(res.Violations, blockViolation("lineage_integrity", start.kind, start.id,
					fmt.Sprintf("%s %s is its own ancestor", start.kind, start.id)))
				break
			}
			if _, loop := seen[cur]; loop {
				break
			}
			seen[cur] = struct{}{}
		}
	}
	return res, nil
}
