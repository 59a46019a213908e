package relational

import (
	"fmt"

	"plantledger/internal/infra/persistence/memory"
	"plantledger/pkg/domain"
)

func collectionToRow(c domain.Collection) *collectionRow {
	return &collectionRow{
		ID: c.ID, Code: c.Code, CollectionDate: c.CollectionDate, Location: c.Location,
		Country: c.Country, Latitude: c.Latitude, Longitude: c.Longitude, Altitude: c.Altitude,
		Collector: c.Collector, Habitat: c.Habitat, Taxon: c.Taxon, Identification: c.Identification,
		OriginalID: c.OriginalID, SpecimenNumber: c.SpecimenNumber, Site: c.Site, Seed: c.Seed,
		Notes: c.Notes, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (r collectionRow) toDomain() domain.Collection {
	return domain.Collection{
		Base: domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Code: r.Code, CollectionDate: r.CollectionDate, Location: r.Location,
		Country: r.Country, Latitude: r.Latitude, Longitude: r.Longitude, Altitude: r.Altitude,
		Collector: r.Collector, Habitat: r.Habitat, Taxon: r.Taxon, Identification: r.Identification,
		OriginalID: r.OriginalID, SpecimenNumber: r.SpecimenNumber, Site: r.Site, Seed: r.Seed,
		Notes: r.Notes,
	}
}

func seedBatchToRow(b domain.SeedBatch) *seedBatchRow {
	return &seedBatchRow{
		ID: b.ID, Code: b.Code, SeedCode: b.SeedCode, TotalQuantity: b.TotalQuantity,
		StorageLocation: b.StorageLocation, StorageDate: b.StorageDate, Viability: b.Viability,
		Weight: b.Weight, Taxon: b.Taxon, Source: b.Source, CollectionID: b.CollectionID,
		ParentCultivationID: b.ParentCultivationID, Notes: b.Notes,
		CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func (r seedBatchRow) toDomain() domain.SeedBatch {
	return domain.SeedBatch{
		Base: domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Code: r.Code, SeedCode: r.SeedCode, TotalQuantity: r.TotalQuantity,
		StorageLocation: r.StorageLocation, StorageDate: r.StorageDate, Viability: r.Viability,
		Weight: r.Weight, Taxon: r.Taxon, Source: r.Source, CollectionID: r.CollectionID,
		ParentCultivationID: r.ParentCultivationID, Notes: r.Notes,
	}
}

func germinationToRow(g domain.GerminationRecord) *germinationRow {
	return &germinationRow{
		ID: g.ID, Code: g.Code, SeedBatchID: g.SeedBatchID, StartDate: g.StartDate,
		Treatment: g.Treatment, QuantityUsed: g.QuantityUsed, GerminatedCount: g.GerminatedCount,
		GerminationRate: g.GerminationRate, Status: g.Status, CompletedDate: g.CompletedDate,
		Notes: g.Notes, CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (r germinationRow) toDomain() domain.GerminationRecord {
	return domain.GerminationRecord{
		Base: domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Code: r.Code, SeedBatchID: r.SeedBatchID, StartDate: r.StartDate,
		Treatment: r.Treatment, QuantityUsed: r.QuantityUsed, GerminatedCount: r.GerminatedCount,
		GerminationRate: r.GerminationRate, Status: r.Status, CompletedDate: r.CompletedDate,
		Notes: r.Notes,
	}
}

func germinationEventToRow(e domain.GerminationEvent) *germinationEventRow {
	return &germinationEventRow{
		ID: e.ID, GerminationRecordID: e.GerminationRecordID, EventDate: e.EventDate,
		Count: e.Count, CumulativeCount: e.CumulativeCount, Sequence: e.Sequence,
		Notes: e.Notes, CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func (r germinationEventRow) toDomain() domain.GerminationEvent {
	return domain.GerminationEvent{
		Base:                domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		GerminationRecordID: r.GerminationRecordID, EventDate: r.EventDate,
		Count: r.Count, CumulativeCount: r.CumulativeCount, Sequence: r.Sequence, Notes: r.Notes,
	}
}

func cultivationToRow(c domain.CultivationRecord) *cultivationRow {
	return &cultivationRow{
		ID: c.ID, Code: c.Code, StartDate: c.StartDate, Location: c.Location,
		Quantity: c.Quantity, Status: c.Status, Flowering: c.Flowering,
		FloweringDate: c.FloweringDate, Fruiting: c.Fruiting, FruitingDate: c.FruitingDate,
		DeathDate: c.DeathDate, DeathReason: c.DeathReason, Taxon: c.Taxon, Origin: c.Origin,
		OriginDetails: c.OriginDetails, SeedBatchID: c.SeedBatchID, CollectionID: c.CollectionID,
		ParentCultivationID: c.ParentCultivationID, Conditions: c.Conditions, Notes: c.Notes,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
}

func (r cultivationRow) toDomain() domain.CultivationRecord {
	return domain.CultivationRecord{
		Base: domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		Code: r.Code, StartDate: r.StartDate, Location: r.Location,
		Quantity: r.Quantity, Status: r.Status, Flowering: r.Flowering,
		FloweringDate: r.FloweringDate, Fruiting: r.Fruiting, FruitingDate: r.FruitingDate,
		DeathDate: r.DeathDate, DeathReason: r.DeathReason, Taxon: r.Taxon, Origin: r.Origin,
		OriginDetails: r.OriginDetails, SeedBatchID: r.SeedBatchID, CollectionID: r.CollectionID,
		ParentCultivationID: r.ParentCultivationID, Conditions: r.Conditions, Notes: r.Notes,
	}
}

func cultivationEventToRow(e domain.CultivationEvent) *cultivationEventRow {
	return &cultivationEventRow{
		ID: e.ID, CultivationRecordID: e.CultivationRecordID, EventDate: e.EventDate,
		EventType: e.EventType, Description: e.Description,
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
	}
}

func (r cultivationEventRow) toDomain() domain.CultivationEvent {
	return domain.CultivationEvent{
		Base:                domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		CultivationRecordID: r.CultivationRecordID, EventDate: r.EventDate,
		EventType: r.EventType, Description: r.Description,
	}
}

func subgroupToRow(g domain.CultivationSubgroup) *subgroupRow {
	return &subgroupRow{
		ID: g.ID, CultivationRecordID: g.CultivationRecordID, Status: g.Status,
		Quantity: g.Quantity, StatusDate: g.StatusDate, Notes: g.Notes,
		CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
	}
}

func (r subgroupRow) toDomain() domain.CultivationSubgroup {
	return domain.CultivationSubgroup{
		Base:                domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		CultivationRecordID: r.CultivationRecordID, Status: r.Status,
		Quantity: r.Quantity, StatusDate: r.StatusDate, Notes: r.Notes,
	}
}

func imageToRow(img domain.Image) *imageRow {
	return &imageRow{
		ID: img.ID, OwnerKind: img.OwnerKind, OwnerID: img.OwnerID, BlobKey: img.BlobKey,
		FileName: img.FileName, ContentType: img.ContentType, Size: img.Size,
		Description: img.Description, UploadDate: img.UploadDate,
		CreatedAt: img.CreatedAt, UpdatedAt: img.UpdatedAt,
	}
}

func (r imageRow) toDomain() domain.Image {
	return domain.Image{
		Base:      domain.Base{ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt},
		OwnerKind: r.OwnerKind, OwnerID: r.OwnerID, BlobKey: r.BlobKey,
		FileName: r.FileName, ContentType: r.ContentType, Size: r.Size,
		Description: r.Description, UploadDate: r.UploadDate,
	}
}

// rowFor converts the post-change payload of a change into its row model.
func rowFor(change domain.Change) (any, error) {
	switch v := change.After.(type) {
	case domain.Collection:
		return collectionToRow(v), nil
	case domain.SeedBatch:
		return seedBatchToRow(v), nil
	case domain.GerminationRecord:
		return germinationToRow(v), nil
	case domain.GerminationEvent:
		return germinationEventToRow(v), nil
	case domain.CultivationRecord:
		return cultivationToRow(v), nil
	case domain.CultivationEvent:
		return cultivationEventToRow(v), nil
	case domain.CultivationSubgroup:
		return subgroupToRow(v), nil
	case domain.Image:
		return imageToRow(v), nil
	default:
		return nil, fmt.Errorf("unsupported %s payload %T", change.Entity, change.After)
	}
}

// snapshotFromRows assembles a memory snapshot from loaded table contents.
func snapshotFromRows(t tables) memory.Snapshot {
	snap := memory.Snapshot{
		Collections:       make(map[string]domain.Collection, len(t.collections)),
		SeedBatches:       make(map[string]domain.SeedBatch, len(t.seedBatches)),
		Germinations:      make(map[string]domain.GerminationRecord, len(t.germinations)),
		GerminationEvents: make(map[string]domain.GerminationEvent, len(t.germinationEvents)),
		Cultivations:      make(map[string]domain.CultivationRecord, len(t.cultivations)),
		CultivationEvents: make(map[string]domain.CultivationEvent, len(t.cultivationEvents)),
		Subgroups:         make(map[string]domain.CultivationSubgroup, len(t.subgroups)),
		Images:            make(map[string]domain.Image, len(t.images)),
	}
	for _, r := range t.collections {
		snap.Collections[r.ID] = r.toDomain()
	}
	for _, r := range t.seedBatches {
		snap.SeedBatches[r.ID] = r.toDomain()
	}
	for _, r := range t.germinations {
		snap.Germinations[r.ID] = r.toDomain()
	}
	for _, r := range t.germinationEvents {
		snap.GerminationEvents[r.ID] = r.toDomain()
	}
	for _, r := range t.cultivations {
		snap.Cultivations[r.ID] = r.toDomain()
	}
	for _, r := range t.cultivationEvents {
		snap.CultivationEvents[r.ID] = r.toDomain()
	}
	for _, r := range t.subgroups {
		snap.Subgroups[r.ID] = r.toDomain()
	}
	for _, r := range t.images {
		snap.Images[r.ID] = r.toDomain()
	}
	return snap
}
