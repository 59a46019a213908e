package memory

import (
	"time"

	"plantledger/pkg/domain"
)

type memoryState struct {
	collections       map[string]Collection
	seedBatches       map[string]SeedBatch
	germinations      map[string]GerminationRecord
	germinationEvents map[string]GerminationEvent
	cultivations      map[string]CultivationRecord
	cultivationEvents map[string]CultivationEvent
	subgroups         map[string]CultivationSubgroup
	images            map[string]Image
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Collections       map[string]Collection          `json:"collections" yaml:"collections"`
	SeedBatches       map[string]SeedBatch           `json:"seed_batches" yaml:"seed_batches"`
	Germinations      map[string]GerminationRecord   `json:"germinations" yaml:"germinations"`
	GerminationEvents map[string]GerminationEvent    `json:"germination_events" yaml:"germination_events"`
	Cultivations      map[string]CultivationRecord   `json:"cultivations" yaml:"cultivations"`
	CultivationEvents map[string]CultivationEvent    `json:"cultivation_events" yaml:"cultivation_events"`
	Subgroups         map[string]CultivationSubgroup `json:"subgroups" yaml:"subgroups"`
	Images            map[string]Image               `json:"images" yaml:"images"`
}

func newMemoryState() memoryState {
	return memoryState{
		collections:       make(map[string]Collection),
		seedBatches:       make(map[string]SeedBatch),
		germinations:      make(map[string]GerminationRecord),
		germinationEvents: make(map[string]GerminationEvent),
		cultivations:      make(map[string]CultivationRecord),
		cultivationEvents: make(map[string]CultivationEvent),
		subgroups:         make(map[string]CultivationSubgroup),
		images:            make(map[string]Image),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	cp := state.clone()
	return Snapshot{
		Collections:       cp.collections,
		SeedBatches:       cp.seedBatches,
		Germinations:      cp.germinations,
		GerminationEvents: cp.germinationEvents,
		Cultivations:      cp.cultivations,
		CultivationEvents: cp.cultivationEvents,
		Subgroups:         cp.subgroups,
		Images:            cp.images,
	}
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		collections:       s.Collections,
		seedBatches:       s.SeedBatches,
		germinations:      s.Germinations,
		germinationEvents: s.GerminationEvents,
		cultivations:      s.Cultivations,
		cultivationEvents: s.CultivationEvents,
		subgroups:         s.Subgroups,
		images:            s.Images,
	}
	return state.clone()
}

// migrateSnapshot initialises missing buckets and drops child records whose
// owning record is absent.
func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Collections == nil {
		snapshot.Collections = map[string]Collection{}
	}
	if snapshot.SeedBatches == nil {
		snapshot.SeedBatches = map[string]SeedBatch{}
	}
	if snapshot.Germinations == nil {
		snapshot.Germinations = map[string]GerminationRecord{}
	}
	if snapshot.GerminationEvents == nil {
		snapshot.GerminationEvents = map[string]GerminationEvent{}
	}
	if snapshot.Cultivations == nil {
		snapshot.Cultivations = map[string]CultivationRecord{}
	}
	if snapshot.CultivationEvents == nil {
		snapshot.CultivationEvents = map[string]CultivationEvent{}
	}
	if snapshot.Subgroups == nil {
		snapshot.Subgroups = map[string]CultivationSubgroup{}
	}
	if snapshot.Images == nil {
		snapshot.Images = map[string]Image{}
	}

	for id, e := range snapshot.GerminationEvents {
		if _, ok := snapshot.Germinations[e.GerminationRecordID]; !ok {
			delete(snapshot.GerminationEvents, id)
		}
	}
	for id, e := range snapshot.CultivationEvents {
		if _, ok := snapshot.Cultivations[e.CultivationRecordID]; !ok {
			delete(snapshot.CultivationEvents, id)
		}
	}
	for id, g := range snapshot.Subgroups {
		if _, ok := snapshot.Cultivations[g.CultivationRecordID]; !ok {
			delete(snapshot.Subgroups, id)
		}
	}
	for id, img := range snapshot.Images {
		if !ownerExists(snapshot, img.OwnerKind, img.OwnerID) {
			delete(snapshot.Images, id)
		}
	}
	return snapshot
}

func ownerExists(s Snapshot, kind domain.ImageOwner, id string) bool {
	var ok bool
	switch kind {
	case domain.ImageOwnerCollection:
		_, ok = s.Collections[id]
	case domain.ImageOwnerSeedBatch:
		_, ok = s.SeedBatches[id]
	case domain.ImageOwnerGermination:
		_, ok = s.Germinations[id]
	case domain.ImageOwnerCultivation:
		_, ok = s.Cultivations[id]
	}
	return ok
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.collections {
		cloned.collections[k] = cloneCollection(v)
	}
	for k, v := range s.seedBatches {
		cloned.seedBatches[k] = cloneSeedBatch(v)
	}
	for k, v := range s.germinations {
		cloned.germinations[k] = cloneGermination(v)
	}
	for k, v := range s.germinationEvents {
		cloned.germinationEvents[k] = v
	}
	for k, v := range s.cultivations {
		cloned.cultivations[k] = cloneCultivation(v)
	}
	for k, v := range s.cultivationEvents {
		cloned.cultivationEvents[k] = v
	}
	for k, v := range s.subgroups {
		cloned.subgroups[k] = v
	}
	for k, v := range s.images {
		cloned.images[k] = v
	}
	return cloned
}

// codeTaken reports whether another record of kind already uses code.
func (s memoryState) codeTaken(kind domain.EntityType, code, selfID string) bool {
	id, ok := s.lookupCode(kind, code)
	return ok && id != selfID
}

func (s memoryState) lookupCode(kind domain.EntityType, code string) (string, bool) {
	switch kind {
	case domain.EntityCollection:
		for id, c := range s.collections {
			if c.Code == code {
				return id, true
			}
		}
	case domain.EntitySeedBatch:
		for id, b := range s.seedBatches {
			if b.Code == code {
				return id, true
			}
		}
	case domain.EntityGerminationRecord:
		for id, r := range s.germinations {
			if r.Code == code {
				return id, true
			}
		}
	case domain.EntityCultivationRecord:
		for id, r := range s.cultivations {
			if r.Code == code {
				return id, true
			}
		}
	}
	return "", false
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCollection(c Collection) Collection {
	cp := c
	cp.Latitude = cloneFloat(c.Latitude)
	cp.Longitude = cloneFloat(c.Longitude)
	cp.Altitude = cloneFloat(c.Altitude)
	cp.Identification.IdentifiedDate = cloneTime(c.Identification.IdentifiedDate)
	return cp
}

func cloneSeedBatch(b SeedBatch) SeedBatch {
	cp := b
	cp.Viability = cloneFloat(b.Viability)
	cp.Weight = cloneFloat(b.Weight)
	cp.CollectionID = cloneString(b.CollectionID)
	cp.ParentCultivationID = cloneString(b.ParentCultivationID)
	return cp
}

func cloneGermination(r GerminationRecord) GerminationRecord {
	cp := r
	cp.CompletedDate = cloneTime(r.CompletedDate)
	return cp
}

func cloneCultivation(r CultivationRecord) CultivationRecord {
	cp := r
	cp.FloweringDate = cloneTime(r.FloweringDate)
	cp.FruitingDate = cloneTime(r.FruitingDate)
	cp.DeathDate = cloneTime(r.DeathDate)
	cp.SeedBatchID = cloneString(r.SeedBatchID)
	cp.CollectionID = cloneString(r.CollectionID)
	cp.ParentCultivationID = cloneString(r.ParentCultivationID)
	return cp
}
