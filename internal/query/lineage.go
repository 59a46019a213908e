package query

import (
	"sort"
	"strings"

	"plantledger/pkg/domain"
)

// LineageStep is one record of an upstream chain.
type LineageStep struct {
	Kind  domain.EntityType `json:"kind" yaml:"kind"`
	ID    string            `json:"id" yaml:"id"`
	Code  string            `json:"code" yaml:"code"`
	Taxon domain.Taxon      `json:"taxon" yaml:"taxon"`
}

// upstream returns the direct parent of a record, or false at a root.
func upstream(view domain.TransactionView, step LineageStep) (LineageStep, bool) {
	switch step.Kind {
	case domain.EntityGerminationRecord:
		if g, ok := view.FindGerminationRecord(step.ID); ok {
			return batchStep(view, g.SeedBatchID)
		}
	case domain.EntitySeedBatch:
		b, ok := view.FindSeedBatch(step.ID)
		if !ok {
			return LineageStep{}, false
		}
		if b.CollectionID != nil {
			return collectionStep(view, *b.CollectionID)
		}
		if b.ParentCultivationID != nil {
			return cultivationStep(view, *b.ParentCultivationID)
		}
	case domain.EntityCultivationRecord:
		r, ok := view.FindCultivationRecord(step.ID)
		if !ok {
			return LineageStep{}, false
		}
		switch {
		case r.ParentCultivationID != nil:
			return cultivationStep(view, *r.ParentCultivationID)
		case r.SeedBatchID != nil:
			return batchStep(view, *r.SeedBatchID)
		case r.CollectionID != nil:
			return collectionStep(view, *r.CollectionID)
		}
	}
	return LineageStep{}, false
}

func collectionStep(view domain.TransactionView, id string) (LineageStep, bool) {
	c, ok := view.FindCollection(id)
	return LineageStep{Kind: domain.EntityCollection, ID: c.ID, Code: c.Code, Taxon: c.Taxon}, ok
}

func batchStep(view domain.TransactionView, id string) (LineageStep, bool) {
	b, ok := view.FindSeedBatch(id)
	return LineageStep{Kind: domain.EntitySeedBatch, ID: b.ID, Code: b.Code, Taxon: b.Taxon}, ok
}

func cultivationStep(view domain.TransactionView, id string) (LineageStep, bool) {
	r, ok := view.FindCultivationRecord(id)
	return LineageStep{Kind: domain.EntityCultivationRecord, ID: r.ID, Code: r.Code, Taxon: r.Taxon}, ok
}

func germinationStep(view domain.TransactionView, id string) (LineageStep, bool) {
	g, ok := view.FindGerminationRecord(id)
	return LineageStep{Kind: domain.EntityGerminationRecord, ID: g.ID, Code: g.Code}, ok
}

// chain walks upstream from start until a root. A revisited record stops the
// walk.
func chain(view domain.TransactionView, start LineageStep) []LineageStep {
	steps := []LineageStep{start}
	seen := map[string]struct{}{start.ID: {}}
	for cur := start; ; {
		next, ok := upstream(view, cur)
		if !ok {
			return steps
		}
		if _, dup := seen[next.ID]; dup {
			return steps
		}
		seen[next.ID] = struct{}{}
		steps = append(steps, next)
		cur = next
	}
}

// KindForCode infers the record kind from a code prefix such as SEED- or CUL-.
func KindForCode(code string) (domain.EntityType, bool) {
	prefix, _, _ := strings.Cut(strings.TrimSpace(code), "-")
	for _, kind := range []domain.EntityType{
		domain.EntityCollection,
		domain.EntitySeedBatch,
		domain.EntityGerminationRecord,
		domain.EntityCultivationRecord,
	} {
		if p, _ := domain.CodePrefix(kind); strings.EqualFold(p, prefix) {
			return kind, true
		}
	}
	return "", false
}

// LineageOf resolves code and returns the record followed by every upstream
// record down to its root, usually the field collection.
func LineageOf(view domain.TransactionView, code string) ([]LineageStep, error) {
	kind, ok := KindForCode(code)
	if !ok {
		return nil, domain.ValidationError{Field: "code", Reason: "unrecognised code prefix in " + code}
	}
	id, ok := view.FindByCode(kind, strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		return nil, domain.NotFoundError{Entity: kind, ID: code}
	}
	var start LineageStep
	switch kind {
	case domain.EntityCollection:
		start, _ = collectionStep(view, id)
	case domain.EntitySeedBatch:
		start, _ = batchStep(view, id)
	case domain.EntityGerminationRecord:
		start, _ = germinationStep(view, id)
	default:
		start, _ = cultivationStep(view, id)
	}
	return chain(view, start), nil
}

// CultivationAncestors returns the cultivation records upstream of id,
// nearest first, following parent records and harvested seed batches.
func CultivationAncestors(view domain.TransactionView, id string) ([]domain.CultivationRecord, error) {
	start, ok := cultivationStep(view, id)
	if !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
	}
	var out []domain.CultivationRecord
	for _, step := range chain(view, start)[1:] {
		if step.Kind != domain.EntityCultivationRecord {
			continue
		}
		if r, ok := view.FindCultivationRecord(step.ID); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// HarvestedSeedBatches lists the batches harvested from a cultivation record.
func HarvestedSeedBatches(view domain.TransactionView, id string) []domain.SeedBatch {
	var out []domain.SeedBatch
	for _, b := range view.ListSeedBatches() {
		if b.ParentCultivationID != nil && *b.ParentCultivationID == id {
			out = append(out, b)
		}
	}
	return out
}

// CultivationDescendants returns every cultivation record grown from id,
// directly or through harvested seed, in breadth-first order.
func CultivationDescendants(view domain.TransactionView, id string) ([]domain.CultivationRecord, error) {
	if _, ok := view.FindCultivationRecord(id); !ok {
		return nil, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
	}
	records := view.ListCultivationRecords()
	children := func(parent string) []domain.CultivationRecord {
		harvested := make(map[string]struct{})
		for _, b := range HarvestedSeedBatches(view, parent) {
			harvested[b.ID] = struct{}{}
		}
		var out []domain.CultivationRecord
		for _, r := range records {
			_, fromSeed := harvested[derefOr(r.SeedBatchID)]
			if derefOr(r.ParentCultivationID) == parent || fromSeed {
				out = append(out, r)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
		return out
	}

	var out []domain.CultivationRecord
	seen := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children(parent) {
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
