package relational

import (
	"time"

	"plantledger/pkg/domain"
)

// Row types mirror the ledger entities one table each. Taxonomic and
// descriptive value groups are flattened into prefixed columns.

type collectionRow struct {
	ID             string                `gorm:"primaryKey;type:varchar(36)"`
	Code           string                `gorm:"type:varchar(32);not null;uniqueIndex"`
	CollectionDate time.Time             `gorm:"index"`
	Location       string                `gorm:"type:varchar(255);not null;index"`
	Country        string                `gorm:"type:varchar(100)"`
	Latitude       *float64
	Longitude      *float64
	Altitude       *float64
	Collector      string                `gorm:"type:varchar(100);not null"`
	Habitat        string                `gorm:"type:text"`
	Taxon          domain.Taxon          `gorm:"embedded"`
	Identification domain.Identification `gorm:"embedded;embeddedPrefix:identification_"`
	OriginalID     string                `gorm:"type:varchar(100)"`
	SpecimenNumber string                `gorm:"type:varchar(100)"`
	Site           domain.SiteDetails    `gorm:"embedded;embeddedPrefix:site_"`
	Seed           domain.SeedDetails    `gorm:"embedded;embeddedPrefix:seed_"`
	Notes          string                `gorm:"type:text"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName returns the table name for GORM.
func (collectionRow) TableName() string { return "collections" }

type seedBatchRow struct {
	ID                  string            `gorm:"primaryKey;type:varchar(36)"`
	Code                string            `gorm:"type:varchar(32);not null;uniqueIndex"`
	SeedCode            string            `gorm:"type:varchar(100)"`
	TotalQuantity       int               `gorm:"not null"`
	StorageLocation     string            `gorm:"type:varchar(255)"`
	StorageDate         time.Time         `gorm:"index"`
	Viability           *float64
	Weight              *float64
	Taxon               domain.Taxon      `gorm:"embedded"`
	Source              domain.SeedSource `gorm:"type:varchar(32);not null"`
	CollectionID        *string           `gorm:"type:varchar(36);index"`
	Collection          *collectionRow    `gorm:"foreignKey:CollectionID;constraint:OnDelete:RESTRICT"`
	ParentCultivationID *string           `gorm:"type:varchar(36);index"`
	Notes               string            `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM.
func (seedBatchRow) TableName() string { return "seed_batches" }

type cultivationRow struct {
	ID                  string                   `gorm:"primaryKey;type:varchar(36)"`
	Code                string                   `gorm:"type:varchar(32);not null;uniqueIndex"`
	StartDate           time.Time                `gorm:"index"`
	Location            string                   `gorm:"type:varchar(255);index"`
	Quantity            int                      `gorm:"not null"`
	Status              domain.CultivationStatus `gorm:"type:varchar(16);not null;index"`
	Flowering           bool
	FloweringDate       *time.Time
	Fruiting            bool
	FruitingDate        *time.Time
	DeathDate           *time.Time
	DeathReason         string                   `gorm:"type:text"`
	Taxon               domain.Taxon             `gorm:"embedded"`
	Origin              domain.CultivationOrigin `gorm:"type:varchar(32);not null"`
	OriginDetails       string                   `gorm:"type:text"`
	SeedBatchID         *string                  `gorm:"type:varchar(36);index"`
	SeedBatch           *seedBatchRow            `gorm:"foreignKey:SeedBatchID;constraint:OnDelete:RESTRICT"`
	CollectionID        *string                  `gorm:"type:varchar(36);index"`
	Collection          *collectionRow           `gorm:"foreignKey:CollectionID;constraint:OnDelete:RESTRICT"`
	ParentCultivationID *string                  `gorm:"type:varchar(36);index"`
	Parent              *cultivationRow          `gorm:"foreignKey:ParentCultivationID;constraint:OnDelete:RESTRICT"`
	Conditions          domain.GrowingConditions `gorm:"embedded"`
	Notes               string                   `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM.
func (cultivationRow) TableName() string { return "cultivation_records" }

type germinationRow struct {
	ID              string                   `gorm:"primaryKey;type:varchar(36)"`
	Code            string                   `gorm:"type:varchar(32);not null;uniqueIndex"`
	SeedBatchID     string                   `gorm:"type:varchar(36);not null;index"`
	SeedBatch       *seedBatchRow            `gorm:"foreignKey:SeedBatchID;constraint:OnDelete:RESTRICT"`
	StartDate       time.Time                `gorm:"index"`
	Treatment       string                   `gorm:"type:varchar(255);index"`
	QuantityUsed    int                      `gorm:"not null"`
	GerminatedCount int
	GerminationRate float64
	Status          domain.GerminationStatus `gorm:"type:varchar(16);not null;index"`
	CompletedDate   *time.Time
	Notes           string                   `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName returns the table name for GORM.
func (germinationRow) TableName() string { return "germination_records" }

type germinationEventRow struct {
	ID                  string          `gorm:"primaryKey;type:varchar(36)"`
	GerminationRecordID string          `gorm:"type:varchar(36);not null;index"`
	GerminationRecord   *germinationRow `gorm:"foreignKey:GerminationRecordID;constraint:OnDelete:CASCADE"`
	EventDate           time.Time
	Count               int
	CumulativeCount     int
	Sequence            int
	Notes               string          `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM.
func (germinationEventRow) TableName() string { return "germination_events" }

type cultivationEventRow struct {
	ID                  string           `gorm:"primaryKey;type:varchar(36)"`
	CultivationRecordID string           `gorm:"type:varchar(36);not null;index"`
	CultivationRecord   *cultivationRow  `gorm:"foreignKey:CultivationRecordID;constraint:OnDelete:CASCADE"`
	EventDate           time.Time        `gorm:"index"`
	EventType           domain.EventType `gorm:"type:varchar(32);index"`
	Description         string           `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM.
func (cultivationEventRow) TableName() string { return "cultivation_events" }

type subgroupRow struct {
	ID                  string            `gorm:"primaryKey;type:varchar(36)"`
	CultivationRecordID string            `gorm:"type:varchar(36);not null;index"`
	CultivationRecord   *cultivationRow   `gorm:"foreignKey:CultivationRecordID;constraint:OnDelete:CASCADE"`
	Status              domain.Transition `gorm:"type:varchar(16);not null"`
	Quantity            int               `gorm:"not null"`
	StatusDate          time.Time
	Notes               string            `gorm:"type:text"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// TableName returns the table name for GORM.
func (subgroupRow) TableName() string { return "cultivation_subgroups" }

// imageRow is polymorphic over its owner so it carries no foreign key.
type imageRow struct {
	ID          string            `gorm:"primaryKey;type:varchar(36)"`
	OwnerKind   domain.ImageOwner `gorm:"type:varchar(32);not null;index:idx_image_owner,priority:1"`
	OwnerID     string            `gorm:"type:varchar(36);not null;index:idx_image_owner,priority:2"`
	BlobKey     string            `gorm:"type:varchar(500);not null"`
	FileName    string            `gorm:"type:varchar(255)"`
	ContentType string            `gorm:"type:varchar(100)"`
	Size        int64
	Description string            `gorm:"type:text"`
	UploadDate  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName returns the table name for GORM.
func (imageRow) TableName() string { return "images" }

// models lists row types in foreign-key dependency order.
func models() []any {
	return []any{
		&collectionRow{},
		&seedBatchRow{},
		&cultivationRow{},
		&germinationRow{},
		&germinationEventRow{},
		&cultivationEventRow{},
		&subgroupRow{},
		&imageRow{},
	}
}
