package core

import (
	"context"
	"fmt"

	"plantledger/pkg/domain"
)

// ProvenanceRule enforces the single-origin contract for seed batches and
// cultivation records and checks that every referenced origin exists.
func ProvenanceRule() domain.Rule {
	return provenanceRule{}
}

type provenanceRule struct{}

func (provenanceRule) Name() string { return "provenance" }

func (r provenanceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch v := change.After.(type) {
		case domain.SeedBatch:
			r.checkSeedBatch(&res, view, v)
		case domain.CultivationRecord:
			r.checkCultivation(&res, view, v)
		case domain.GerminationRecord:
			if _, ok := view.FindSeedBatch(v.SeedBatchID); !ok {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityGerminationRecord, v.ID,
					fmt.Sprintf("germination %s references missing seed batch %s", v.Code, v.SeedBatchID)))
			}
		case domain.Image:
			if !imageOwnerExists(view, v.OwnerKind, v.OwnerID) {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityImage, v.ID,
					fmt.Sprintf("image %s attached to missing %s %s", v.ID, v.OwnerKind, v.OwnerID)))
			}
		}
	}
	return res, nil
}

func (r provenanceRule) checkSeedBatch(res *domain.Result, view domain.RuleView, b domain.SeedBatch) {
	violate := func(msg string) {
		res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntitySeedBatch, b.ID, msg))
	}
	if b.CollectionID != nil && b.ParentCultivationID != nil {
		violate(fmt.Sprintf("seed batch %s references both a collection and a parent cultivation", b.Code))
		return
	}
	if b.CollectionID != nil {
		if _, ok := view.FindCollection(*b.CollectionID); !ok {
			violate(fmt.Sprintf("seed batch %s references missing collection %s", b.Code, *b.CollectionID))
		}
	}
	if b.ParentCultivationID != nil {
		if _, ok := view.FindCultivationRecord(*b.ParentCultivationID); !ok {
			violate(fmt.Sprintf("seed batch %s references missing cultivation %s", b.Code, *b.ParentCultivationID))
		}
	}
}

func (r provenanceRule) checkCultivation(res *domain.Result, view domain.RuleView, c domain.CultivationRecord) {
	violate := func(msg string) {
		res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivationRecord, c.ID, msg))
	}
	if err := checkCultivationOrigin(c); err != nil {
		violate(err.Error())
		return
	}
	switch {
	case c.SeedBatchID != nil:
		if _, ok := view.FindSeedBatch(*c.SeedBatchID); !ok {
			violate(fmt.Sprintf("cultivation %s references missing seed batch %s", c.Code, *c.SeedBatchID))
		}
	case c.CollectionID != nil:
		if _, ok := view.FindCollection(*c.CollectionID); !ok {
			violate(fmt.Sprintf("cultivation %s references missing collection %s", c.Code, *c.CollectionID))
		}
	case c.ParentCultivationID != nil:
		if _, ok := view.FindCultivationRecord(*c.ParentCultivationID); !ok {
			violate(fmt.Sprintf("cultivation %s references missing parent cultivation %s", c.Code, *c.ParentCultivationID))
		}
	}
}

// checkCultivationOrigin verifies that exactly the reference implied by the
// declared origin is set.
func checkCultivationOrigin(c domain.CultivationRecord) error {
	set := 0
	for _, ref := range []*string{c.SeedBatchID, c.CollectionID, c.ParentCultivationID} {
		if ref != nil {
			set++
		}
	}
	conflict := func(reason string) error {
		return domain.ProvenanceConflictError{Entity: domain.EntityCultivationRecord, Reason: reason}
	}
	if set > 1 {
		return conflict("at most one of seed batch, collection or parent cultivation may be set")
	}
	switch c.Origin {
	case domain.OriginSeedBatch:
		if c.SeedBatchID == nil {
			return conflict("origin seed_batch requires a seed batch reference")
		}
	case domain.OriginFieldCollection:
		if c.CollectionID == nil {
			return conflict("origin field_collection requires a collection reference")
		}
	case domain.OriginExistingCultivation:
		if c.ParentCultivationID == nil {
			return conflict("origin existing_cultivation requires a parent cultivation reference")
		}
	case domain.OriginOther:
		if set != 0 {
			return conflict("origin other must not carry an upstream reference")
		}
	default:
		return conflict(fmt.Sprintf("unknown origin %q", c.Origin))
	}
	return nil
}

func imageOwnerExists(view domain.RuleView, kind domain.ImageOwner, id string) bool {
	var ok bool
	switch kind {
	case domain.ImageOwnerCollection:
		_, ok = view.FindCollection(id)
	case domain.ImageOwnerSeedBatch:
		_, ok = view.FindSeedBatch(id)
	case domain.ImageOwnerGermination:
		_, ok = view.FindGerminationRecord(id)
	case domain.ImageOwnerCultivation:
		_, ok = view.FindCultivationRecord(id)
	}
	return ok
}
