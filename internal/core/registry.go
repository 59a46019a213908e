package core

import (
	"context"
	"strings"

	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

func validateCollection(c domain.Collection) error {
	if strings.TrimSpace(c.Location) == "" {
		return domain.ValidationError{Field: "location", Reason: "required"}
	}
	if strings.TrimSpace(c.Collector) == "" {
		return domain.ValidationError{Field: "collector", Reason: "required"}
	}
	return nil
}

// CreateCollection registers a field collection. Location and collector are
// required; the code is derived from the collection date.
func (l *Ledger) CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	if err := validateCollection(c); err != nil {
		return domain.Collection{}, err
	}
	c.CollectionDate = l.dayOr(c.CollectionDate)
	var created domain.Collection
	err := l.run(ctx, "create_collection", func(tx domain.Transaction) error {
		var err error
		created, err = assignCode(l.opts.codeRetries, c.Code, domain.PrefixCollection, c.CollectionDate,
			func(code string) (domain.Collection, error) {
				c.Code = code
				return tx.CreateCollection(c)
			})
		return err
	})
	return created, err
}

// UpdateCollection edits a collection. Descendant records keep their own
// taxon copies.
func (l *Ledger) UpdateCollection(ctx context.Context, id string, mutator func(*domain.Collection) error) (domain.Collection, error) {
	var updated domain.Collection
	err := l.run(ctx, "update_collection", func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCollection(id, func(c *domain.Collection) error {
			if err := mutator(c); err != nil {
				return err
			}
			c.CollectionDate = domain.Day(c.CollectionDate)
			return validateCollection(*c)
		})
		return err
	})
	return updated, err
}

// IdentifyCollection completes the identification of a collection. Non-empty
// taxon fields overwrite the stored ones. Supplying a Latin species name marks
// the collection identified, dated today unless a date is given.
func (l *Ledger) IdentifyCollection(ctx context.Context, id string, ident domain.Identification, taxon domain.Taxon) (domain.Collection, error) {
	today := l.today()
	var updated domain.Collection
	err := l.run(ctx, "identify_collection", func(tx domain.Transaction) error {
		var err error
		updated, err = tx.UpdateCollection(id, func(c *domain.Collection) error {
			c.Taxon.Overlay(taxon)
			if ident.IdentifiedBy != "" {
				c.Identification.IdentifiedBy = ident.IdentifiedBy
			}
			if ident.Notes != "" {
				c.Identification.Notes = ident.Notes
			}
			if ident.Identified || taxon.SpeciesLatin != "" {
				c.Identification.Identified = true
				date := today
				if ident.IdentifiedDate != nil {
					date = domain.Day(*ident.IdentifiedDate)
				}
				c.Identification.IdentifiedDate = &date
			}
			return nil
		})
		return err
	})
	return updated, err
}

func validateSeedBatchFields(b domain.SeedBatch) error {
	if b.TotalQuantity < 0 {
		return domain.ValidationError{Field: "total_quantity", Reason: "must not be negative"}
	}
	if b.Viability != nil && (*b.Viability < 0 || *b.Viability > 1) {
		return domain.ValidationError{Field: "viability", Reason: "must be within [0,1]"}
	}
	if b.Weight != nil && *b.Weight < 0 {
		return domain.ValidationError{Field: "weight", Reason: "must not be negative"}
	}
	switch b.Source {
	case "", domain.SourceFieldCollection, domain.SourceHarvest, domain.SourceOther:
	default:
		return domain.ValidationError{Field: "source", Reason: "unknown source " + string(b.Source)}
	}
	return nil
}

// CreateSeedBatch registers a seed batch. At most one origin may be given;
// the batch takes a copy of the origin's taxon for fields it leaves empty.
func (l *Ledger) CreateSeedBatch(ctx context.Context, b domain.SeedBatch) (domain.SeedBatch, error) {
	if err := validateSeedBatchFields(b); err != nil {
		return domain.SeedBatch{}, err
	}
	b.StorageDate = l.dayOr(b.StorageDate)
	var created domain.SeedBatch
	err := l.run(ctx, "create_seed_batch", func(tx domain.Transaction) error {
		var err error
		created, err = l.insertSeedBatch(tx, b)
		return err
	})
	return created, err
}

// insertSeedBatch resolves provenance and writes the batch inside tx.
func (l *Ledger) insertSeedBatch(tx domain.Transaction, b domain.SeedBatch) (domain.SeedBatch, error) {
	if b.CollectionID != nil && b.ParentCultivationID != nil {
		return domain.SeedBatch{}, domain.ProvenanceConflictError{
			Entity: domain.EntitySeedBatch,
			Reason: "a seed batch derives from a collection or a cultivation, not both",
		}
	}
	view := tx.Snapshot()
	switch {
	case b.CollectionID != nil:
		origin, ok := view.FindCollection(*b.CollectionID)
		if !ok {
			return domain.SeedBatch{}, domain.NotFoundError{Entity: domain.EntityCollection, ID: *b.CollectionID}
		}
		b.Taxon.FillFrom(origin.Taxon)
		if b.Source == "" {
			b.Source = domain.SourceFieldCollection
		}
	case b.ParentCultivationID != nil:
		origin, ok := view.FindCultivationRecord(*b.ParentCultivationID)
		if !ok {
			return domain.SeedBatch{}, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: *b.ParentCultivationID}
		}
		b.Taxon.FillFrom(origin.Taxon)
		if b.Source == "" {
			b.Source = domain.SourceHarvest
		}
	default:
		if b.Source == "" {
			b.Source = domain.SourceOther
		}
	}
	return assignCode(l.opts.codeRetries, b.Code, domain.PrefixSeedBatch, b.StorageDate,
		func(code string) (domain.SeedBatch, error) {
			b.Code = code
			return tx.CreateSeedBatch(b)
		})
}

// seedBatchOriginTaxon returns the current taxon of a batch's origin.
func seedBatchOriginTaxon(view domain.TransactionView, b domain.SeedBatch) (domain.Taxon, bool) {
	switch {
	case b.CollectionID != nil:
		if c, ok := view.FindCollection(*b.CollectionID); ok {
			return c.Taxon, true
		}
	case b.ParentCultivationID != nil:
		if c, ok := view.FindCultivationRecord(*b.ParentCultivationID); ok {
			return c.Taxon, true
		}
	}
	return domain.Taxon{}, false
}

// SyncSeedBatchFromOrigin re-copies the taxon of the batch's current origin
// over its own. Manually entered batches are returned unchanged.
func (l *Ledger) SyncSeedBatchFromOrigin(ctx context.Context, id string) (domain.SeedBatch, error) {
	var out domain.SeedBatch
	err := l.run(ctx, "sync_seed_batch", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		current, ok := view.FindSeedBatch(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: id}
		}
		taxon, ok := seedBatchOriginTaxon(view, current)
		if !ok {
			out = current
			return nil
		}
		var err error
		out, err = tx.UpdateSeedBatch(id, func(b *domain.SeedBatch) error {
			b.Taxon.Overlay(taxon)
			return nil
		})
		return err
	})
	return out, err
}

// UpdateSeedBatch edits a seed batch. Provenance references cannot change and
// the total may not fall below what has already been committed downstream.
func (l *Ledger) UpdateSeedBatch(ctx context.Context, id string, mutator func(*domain.SeedBatch) error) (domain.SeedBatch, error) {
	var updated domain.SeedBatch
	err := l.run(ctx, "update_seed_batch", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		var err error
		updated, err = tx.UpdateSeedBatch(id, func(b *domain.SeedBatch) error {
			collectionID, parentID, source := b.CollectionID, b.ParentCultivationID, b.Source
			if err := mutator(b); err != nil {
				return err
			}
			b.CollectionID, b.ParentCultivationID, b.Source = collectionID, parentID, source
			b.StorageDate = domain.Day(b.StorageDate)
			if err := validateSeedBatchFields(*b); err != nil {
				return err
			}
			used := domain.CommittedUsage(view.ListGerminationRecords(), view.ListCultivationRecords())[id]
			if b.TotalQuantity < used {
				return domain.InsufficientQuantityError{BatchID: id, Requested: used, Available: b.TotalQuantity}
			}
			return nil
		})
		return err
	})
	return updated, err
}

// inferOrigin fills an empty origin tag from whichever reference is set.
func inferOrigin(r *domain.CultivationRecord) {
	if r.Origin != "" {
		return
	}
	switch {
	case r.SeedBatchID != nil:
		r.Origin = domain.OriginSeedBatch
	case r.CollectionID != nil:
		r.Origin = domain.OriginFieldCollection
	case r.ParentCultivationID != nil:
		r.Origin = domain.OriginExistingCultivation
	default:
		r.Origin = domain.OriginOther
	}
}

// CreateCultivationRecord registers a cultivated lot. The declared origin must
// match the single reference supplied. Drawing from a seed batch commits the
// quantity against its available stock.
func (l *Ledger) CreateCultivationRecord(ctx context.Context, r domain.CultivationRecord) (domain.CultivationRecord, error) {
	if r.Quantity <= 0 {
		return domain.CultivationRecord{}, domain.ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	inferOrigin(&r)
	if err := checkCultivationOrigin(r); err != nil {
		return domain.CultivationRecord{}, err
	}
	r.StartDate = l.dayOr(r.StartDate)
	r.Status = domain.CultivationAlive
	r.DeathDate = nil
	r.DeathReason = ""

	var created domain.CultivationRecord
	err := l.run(ctx, "create_cultivation", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		switch r.Origin {
		case domain.OriginSeedBatch:
			batch, ok := view.FindSeedBatch(*r.SeedBatchID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: *r.SeedBatchID}
			}
			if err := recordCultivationUsage(view, batch, r.Quantity); err != nil {
				return err
			}
			r.Taxon.FillFrom(batch.Taxon)
		case domain.OriginFieldCollection:
			col, ok := view.FindCollection(*r.CollectionID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityCollection, ID: *r.CollectionID}
			}
			r.Taxon.FillFrom(col.Taxon)
		case domain.OriginExistingCultivation:
			parent, ok := view.FindCultivationRecord(*r.ParentCultivationID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: *r.ParentCultivationID}
			}
			r.Taxon.FillFrom(parent.Taxon)
		}
		var err error
		created, err = assignCode(l.opts.codeRetries, r.Code, domain.PrefixCultivation, r.StartDate,
			func(code string) (domain.CultivationRecord, error) {
				r.Code = code
				return tx.CreateCultivationRecord(r)
			})
		return err
	})
	return created, err
}

// CreateHarvestedSeedBatch registers seed harvested from a cultivation record.
// Harvesting from a record that is not fruiting is allowed but logged.
func (l *Ledger) CreateHarvestedSeedBatch(ctx context.Context, parentCultivationID string, b domain.SeedBatch) (domain.SeedBatch, error) {
	if b.CollectionID != nil {
		return domain.SeedBatch{}, domain.ProvenanceConflictError{
			Entity: domain.EntitySeedBatch,
			Reason: "a harvested batch cannot also reference a collection",
		}
	}
	b.ParentCultivationID = &parentCultivationID
	b.Source = domain.SourceHarvest
	if err := validateSeedBatchFields(b); err != nil {
		return domain.SeedBatch{}, err
	}
	b.StorageDate = l.dayOr(b.StorageDate)

	var (
		created domain.SeedBatch
		parent  domain.CultivationRecord
	)
	err := l.run(ctx, "create_harvested_seed_batch", func(tx domain.Transaction) error {
		var ok bool
		parent, ok = tx.Snapshot().FindCultivationRecord(parentCultivationID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: parentCultivationID}
		}
		var err error
		created, err = l.insertSeedBatch(tx, b)
		return err
	})
	if err != nil {
		return domain.SeedBatch{}, err
	}
	if !parent.Fruiting {
		l.log.WithContext(ctx).Warn("seed harvested from cultivation that is not fruiting",
			logger.String("cultivation", parent.Code),
			logger.String("seed_batch", created.Code))
	}
	return created, nil
}
