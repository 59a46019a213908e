// Package domain defines the ledger entities, value types, and rule
// evaluation primitives used by plantledger.
package domain

import (
	"strings"
	"time"
)

// EntityType identifies the type of record stored in the ledger.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityCollection identifies a field collection event.
	EntityCollection EntityType = "collection"
	// EntitySeedBatch identifies a stored seed batch.
	EntitySeedBatch EntityType = "seed_batch"
	// EntityGerminationRecord identifies a germination trial.
	EntityGerminationRecord EntityType = "germination_record"
	// EntityGerminationEvent identifies a dated germination observation.
	EntityGerminationEvent EntityType = "germination_event"
	// EntityCultivationRecord identifies a cultivated plant or lot.
	EntityCultivationRecord EntityType = "cultivation_record"
	// EntityCultivationEvent identifies a cultivation log entry.
	EntityCultivationEvent EntityType = "cultivation_event"
	// EntityCultivationSubgroup identifies a partial status change.
	EntityCultivationSubgroup EntityType = "cultivation_subgroup"
	// EntityImage identifies an attached image.
	EntityImage EntityType = "image"
)

// SeedSource tags where a seed batch came from.
type SeedSource string

// Seed batch sources.
const (
	SourceFieldCollection SeedSource = "field_collection"
	SourceHarvest         SeedSource = "harvest"
	SourceOther           SeedSource = "other"
)

// GerminationStatus enumerates germination trial states.
type GerminationStatus string

// Germination trial states. Completion is one-way.
const (
	GerminationInProgress GerminationStatus = "in_progress"
	GerminationCompleted  GerminationStatus = "completed"
)

// CultivationStatus enumerates the life state of a cultivation record.
type CultivationStatus string

// Cultivation life states. Dead is terminal.
const (
	CultivationAlive CultivationStatus = "alive"
	CultivationDead  CultivationStatus = "dead"
)

// CultivationOrigin declares which upstream reference a cultivation record carries.
type CultivationOrigin string

// Cultivation origins.
const (
	OriginSeedBatch           CultivationOrigin = "seed_batch"
	OriginExistingCultivation CultivationOrigin = "existing_cultivation"
	OriginFieldCollection     CultivationOrigin = "field_collection"
	OriginOther               CultivationOrigin = "other"
)

// Transition is a forward-only state change applied to a cultivation record
// or to a subgroup of its plants.
type Transition string

// Supported transitions.
const (
	TransitionFlowering Transition = "flowering"
	TransitionFruiting  Transition = "fruiting"
	TransitionDead      Transition = "dead"
)

var transitionAliases = map[string]Transition{
	"flowering": TransitionFlowering,
	"fruiting":  TransitionFruiting,
	"dead":      TransitionDead,
	"death":     TransitionDead,
	"开花":        TransitionFlowering,
	"结果":        TransitionFruiting,
	"死亡":        TransitionDead,
}

// ParseTransition accepts the canonical transition names and the local-language
// labels used by field staff.
func ParseTransition(raw string) (Transition, error) {
	if t, ok := transitionAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t, nil
	}
	return "", ValidationError{Field: "status", Reason: "unknown transition " + raw}
}

// EventType classifies cultivation log entries.
type EventType string

// Cultivation event types. Flowering, fruiting and death entries are appended
// automatically by whole-record and partial status operations.
const (
	EventWatering    EventType = "watering"
	EventFertilizing EventType = "fertilizing"
	EventPruning     EventType = "pruning"
	EventObservation EventType = "observation"
	EventFlowering   EventType = "flowering"
	EventFruiting    EventType = "fruiting"
	EventDeath       EventType = "death"
	EventOther       EventType = "other"
)

var eventTypeAliases = map[string]EventType{
	"watering":    EventWatering,
	"fertilizing": EventFertilizing,
	"pruning":     EventPruning,
	"observation": EventObservation,
	"flowering":   EventFlowering,
	"fruiting":    EventFruiting,
	"death":       EventDeath,
	"other":       EventOther,
	"浇水":          EventWatering,
	"施肥":          EventFertilizing,
	"修剪":          EventPruning,
	"观察":          EventObservation,
	"开花":          EventFlowering,
	"结果":          EventFruiting,
	"死亡":          EventDeath,
	"其他":          EventOther,
}

// NormalizeEventType maps free-form or local-language event labels onto the
// canonical set. Unknown labels fold into EventOther.
func NormalizeEventType(raw string) EventType {
	if t, ok := eventTypeAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return EventOther
}

// ImageOwner identifies which kind of record an image is attached to.
type ImageOwner string

// Image owner kinds.
const (
	ImageOwnerCollection  ImageOwner = "collection"
	ImageOwnerSeedBatch   ImageOwner = "seed_batch"
	ImageOwnerGermination ImageOwner = "germination"
	ImageOwnerCultivation ImageOwner = "cultivation"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all ledger records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Taxon holds the taxonomic names of a record. Local fields carry the
// local-language alias of the scientific name.
type Taxon struct {
	Family       string `json:"family,omitempty"`
	FamilyLocal  string `json:"family_local,omitempty"`
	Genus        string `json:"genus,omitempty"`
	GenusLocal   string `json:"genus_local,omitempty"`
	SpeciesLatin string `json:"species_latin,omitempty"`
	SpeciesLocal string `json:"species_local,omitempty"`
	CommonName   string `json:"common_name,omitempty"`
}

// FillFrom copies every field of src into t that t leaves empty.
func (t *Taxon) FillFrom(src Taxon) {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&t.Family, src.Family)
	fill(&t.FamilyLocal, src.FamilyLocal)
	fill(&t.Genus, src.Genus)
	fill(&t.GenusLocal, src.GenusLocal)
	fill(&t.SpeciesLatin, src.SpeciesLatin)
	fill(&t.SpeciesLocal, src.SpeciesLocal)
	fill(&t.CommonName, src.CommonName)
}

// Overlay replaces fields of t with the non-empty fields of src.
func (t *Taxon) Overlay(src Taxon) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&t.Family, src.Family)
	set(&t.FamilyLocal, src.FamilyLocal)
	set(&t.Genus, src.Genus)
	set(&t.GenusLocal, src.GenusLocal)
	set(&t.SpeciesLatin, src.SpeciesLatin)
	set(&t.SpeciesLocal, src.SpeciesLocal)
	set(&t.CommonName, src.CommonName)
}

// IsZero reports whether no taxonomic field is set.
func (t Taxon) IsZero() bool {
	return t == Taxon{}
}

// Identification records whether a collection has been identified to species.
type Identification struct {
	Identified     bool       `json:"identified"`
	IdentifiedBy   string     `json:"identified_by,omitempty"`
	IdentifiedDate *time.Time `json:"identified_date,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Collection is a field collection event.
type Collection struct {
	Base
	Code           string         `json:"code"`
	CollectionDate time.Time      `json:"collection_date"`
	Location       string         `json:"location"`
	Country        string         `json:"country,omitempty"`
	Latitude       *float64       `json:"latitude,omitempty"`
	Longitude      *float64       `json:"longitude,omitempty"`
	Altitude       *float64       `json:"altitude,omitempty"`
	Collector      string         `json:"collector"`
	Habitat        string         `json:"habitat,omitempty"`
	Taxon          Taxon          `json:"taxon"`
	Identification Identification `json:"identification"`
	OriginalID     string         `json:"original_id,omitempty"`
	SpecimenNumber string         `json:"specimen_number,omitempty"`
	Site           SiteDetails    `json:"site"`
	Seed           SeedDetails    `json:"seed"`
	Notes          string         `json:"notes,omitempty"`
}

// SiteDetails describes the terrain at a collection site.
type SiteDetails struct {
	Terrain            string `json:"terrain,omitempty"`
	LandUse            string `json:"land_use,omitempty"`
	SoilParentMaterial string `json:"soil_parent_material,omitempty"`
	SoilTexture        string `json:"soil_texture,omitempty"`
}

// SeedDetails describes the seed material observed at collection time.
type SeedDetails struct {
	HarvestPeriod  string `json:"harvest_period,omitempty"`
	CollectionPart string `json:"collection_part,omitempty"`
	Quantity       string `json:"quantity,omitempty"`
	Condition      string `json:"condition,omitempty"`
	FruitSize      string `json:"fruit_size,omitempty"`
	FruitColor     string `json:"fruit_color,omitempty"`
}

// SeedBatch is a quantity of seed in storage. Available quantity is derived
// from downstream usage and never stored.
type SeedBatch struct {
	Base
	Code                string     `json:"code"`
	SeedCode            string     `json:"seed_code,omitempty"`
	TotalQuantity       int        `json:"total_quantity"`
	StorageLocation     string     `json:"storage_location,omitempty"`
	StorageDate         time.Time  `json:"storage_date"`
	Viability           *float64   `json:"viability,omitempty"`
	Weight              *float64   `json:"weight,omitempty"`
	Taxon               Taxon      `json:"taxon"`
	Source              SeedSource `json:"source"`
	CollectionID        *string    `json:"collection_id,omitempty"`
	ParentCultivationID *string    `json:"parent_cultivation_id,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

// GerminationRecord is one germination trial drawing seed from a batch.
type GerminationRecord struct {
	Base
	Code            string            `json:"code"`
	SeedBatchID     string            `json:"seed_batch_id"`
	StartDate       time.Time         `json:"start_date"`
	Treatment       string            `json:"treatment,omitempty"`
	QuantityUsed    int               `json:"quantity_used"`
	GerminatedCount int               `json:"germinated_count"`
	GerminationRate float64           `json:"germination_rate"`
	Status          GerminationStatus `json:"status"`
	CompletedDate   *time.Time        `json:"completed_date,omitempty"`
	Notes           string            `json:"notes,omitempty"`
}

// GerminationEvent is one dated observation within a germination trial.
type GerminationEvent struct {
	Base
	GerminationRecordID string    `json:"germination_record_id"`
	EventDate           time.Time `json:"event_date"`
	Count               int       `json:"count"`
	CumulativeCount     int       `json:"cumulative_count"`
	Sequence            int       `json:"sequence"`
	Notes               string    `json:"notes,omitempty"`
}

// GrowingConditions describes how a cultivation lot is kept.
type GrowingConditions struct {
	Substrate      string `json:"substrate,omitempty"`
	Container      string `json:"container,omitempty"`
	LightCondition string `json:"light_condition,omitempty"`
	Temperature    string `json:"temperature,omitempty"`
	WateringRegime string `json:"watering_regime,omitempty"`
	Fertilizer     string `json:"fertilizer,omitempty"`
}

// CultivationRecord is a cultivated plant or lot of plants.
type CultivationRecord struct {
	Base
	Code                string            `json:"code"`
	StartDate           time.Time         `json:"start_date"`
	Location            string            `json:"location,omitempty"`
	Quantity            int               `json:"quantity"`
	Status              CultivationStatus `json:"status"`
	Flowering           bool              `json:"flowering"`
	FloweringDate       *time.Time        `json:"flowering_date,omitempty"`
	Fruiting            bool              `json:"fruiting"`
	FruitingDate        *time.Time        `json:"fruiting_date,omitempty"`
	DeathDate           *time.Time        `json:"death_date,omitempty"`
	DeathReason         string            `json:"death_reason,omitempty"`
	Taxon               Taxon             `json:"taxon"`
	Origin              CultivationOrigin `json:"origin"`
	OriginDetails       string            `json:"origin_details,omitempty"`
	SeedBatchID         *string           `json:"seed_batch_id,omitempty"`
	CollectionID        *string           `json:"collection_id,omitempty"`
	ParentCultivationID *string           `json:"parent_cultivation_id,omitempty"`
	Conditions          GrowingConditions `json:"conditions"`
	Notes               string            `json:"notes,omitempty"`
}

// IsDead reports whether the record reached its terminal state.
func (c CultivationRecord) IsDead() bool { return c.Status == CultivationDead }

// CultivationEvent is a dated log entry against a cultivation record.
type CultivationEvent struct {
	Base
	CultivationRecordID string    `json:"cultivation_record_id"`
	EventDate           time.Time `json:"event_date"`
	EventType           EventType `json:"event_type"`
	Description         string    `json:"description,omitempty"`
}

// CultivationSubgroup records that part of a lot changed state.
type CultivationSubgroup struct {
	Base
	CultivationRecordID string     `json:"cultivation_record_id"`
	Status              Transition `json:"status"`
	Quantity            int        `json:"quantity"`
	StatusDate          time.Time  `json:"status_date"`
	Notes               string     `json:"notes,omitempty"`
}

// Image references a stored file attached to a ledger record.
type Image struct {
	Base
	OwnerKind   ImageOwner `json:"owner_kind"`
	OwnerID     string     `json:"owner_id"`
	BlobKey     string     `json:"blob_key"`
	FileName    string     `json:"file_name,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Size        int64      `json:"size"`
	Description string     `json:"description,omitempty"`
	UploadDate  time.Time  `json:"upload_date"`
}

// DateLayout is the calendar date format used for input and codes.
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Reason: "malformed date " + raw}
	}
	return t, nil
}
