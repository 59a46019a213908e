package domain

import "context"

// Transaction exposes the ledger operations that a persistence implementation
// must support within an atomic scope. Records are never deleted except images.
type Transaction interface {
	Snapshot() TransactionView
	CreateCollection(Collection) (Collection, error)
	UpdateCollection(id string, mutator func(*Collection) error) (Collection, error)
	CreateSeedBatch(SeedBatch) (SeedBatch, error)
	UpdateSeedBatch(id string, mutator func(*SeedBatch) error) (SeedBatch, error)
	CreateGerminationRecord(GerminationRecord) (GerminationRecord, error)
	UpdateGerminationRecord(id string, mutator func(*GerminationRecord) error) (GerminationRecord, error)
	CreateGerminationEvent(GerminationEvent) (GerminationEvent, error)
	UpdateGerminationEvent(id string, mutator func(*GerminationEvent) error) (GerminationEvent, error)
	CreateCultivationRecord(CultivationRecord) (CultivationRecord, error)
	UpdateCultivationRecord(id string, mutator func(*CultivationRecord) error) (CultivationRecord, error)
	CreateCultivationEvent(CultivationEvent) (CultivationEvent, error)
	CreateCultivationSubgroup(CultivationSubgroup) (CultivationSubgroup, error)
	CreateImage(Image) (Image, error)
	UpdateImage(id string, mutator func(*Image) error) (Image, error)
	DeleteImage(id string) error
}

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	// FindByCode resolves a human-readable code to the record's surrogate key.
	FindByCode(kind EntityType, code string) (string, bool)
	GerminationEventsFor(recordID string) []GerminationEvent
	CultivationEventsFor(recordID string) []CultivationEvent
	SubgroupsFor(recordID string) []CultivationSubgroup
	ImagesFor(kind ImageOwner, ownerID string) []Image
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	// Version increases with every committed transaction.
	Version() uint64
	Close() error
}
