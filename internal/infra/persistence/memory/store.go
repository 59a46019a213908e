// Package memory provides an in-memory implementation of the ledger
// persistence store used for tests, ephemeral environments, and as the
// transactional core of the snapshotting durable backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"plantledger/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Collection aliases domain.Collection for in-memory persistence operations.
	Collection = domain.Collection
	// SeedBatch aliases domain.SeedBatch.
	SeedBatch = domain.SeedBatch
	// GerminationRecord aliases domain.GerminationRecord.
	GerminationRecord = domain.GerminationRecord
	// GerminationEvent aliases domain.GerminationEvent.
	GerminationEvent = domain.GerminationEvent
	// CultivationRecord aliases domain.CultivationRecord.
	CultivationRecord = domain.CultivationRecord
	// CultivationEvent aliases domain.CultivationEvent.
	CultivationEvent = domain.CultivationEvent
	// CultivationSubgroup aliases domain.CultivationSubgroup.
	CultivationSubgroup = domain.CultivationSubgroup
	// Image aliases domain.Image.
	Image = domain.Image
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
)

// CommitHook runs under the store's write lock after rules pass and before the
// new state becomes visible. A hook error aborts the commit.
type CommitHook func(ctx context.Context, snapshot Snapshot, changes []Change) error

// Store provides an in-memory transactional store for the ledger.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	engine  *domain.RulesEngine
	nowFn   func() time.Time
	version uint64
	hooks   []CommitHook
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine, opts ...Option) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	s := &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnCommit registers a hook invoked for every transaction about to commit.
func (s *Store) OnCommit(hook CommitHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
	s.version++
}

// RulesEngine exposes the configured engine.
func (s *Store) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// Version returns the number of state replacements applied so far.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a cloned state, evaluates rules over the
// recorded changes and swaps the clone in only if nothing blocks.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 && len(s.hooks) > 0 {
		snapshot := snapshotFromMemoryState(tx.state)
		for _, hook := range s.hooks {
			if err := hook(ctx, snapshot, tx.changes); err != nil {
				return result, fmt.Errorf("commit hook: %w", err)
			}
		}
	}

	s.state = tx.state
	if len(tx.changes) > 0 {
		s.version++
	}
	return result, nil
}

// View runs fn against a read-only clone of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot exposes the in-flight state of the transaction.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) stamp(base *domain.Base) error {
	if base.ID == "" {
		base.ID = domain.NewID()
	}
	base.CreatedAt = tx.now
	base.UpdatedAt = tx.now
	return nil
}

func duplicateCode(kind domain.EntityType, code string) error {
	return fmt.Errorf("%w: %s %s", domain.ErrDuplicateCode, kind, code)
}

// CreateCollection stores a new collection.
func (tx *transaction) CreateCollection(c Collection) (Collection, error) {
	_ = tx.stamp(&c.Base)
	if _, exists := tx.state.collections[c.ID]; exists {
		return Collection{}, fmt.Errorf("collection %q already exists", c.ID)
	}
	if c.Code != "" && tx.state.codeTaken(domain.EntityCollection, c.Code, c.ID) {
		return Collection{}, duplicateCode(domain.EntityCollection, c.Code)
	}
	tx.state.collections[c.ID] = cloneCollection(c)
	tx.recordChange(Change{Entity: domain.EntityCollection, Action: domain.ActionCreate, After: cloneCollection(c)})
	return cloneCollection(c), nil
}

// UpdateCollection mutates a collection using the provided mutator function.
func (tx *transaction) UpdateCollection(id string, mutator func(*Collection) error) (Collection, error) {
	current, ok := tx.state.collections[id]
	if !ok {
		return Collection{}, domain.NotFoundError{Entity: domain.EntityCollection, ID: id}
	}
	before := cloneCollection(current)
	if err := mutator(&current); err != nil {
		return Collection{}, err
	}
	current.ID = id
	current.Code = before.Code
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.collections[id] = cloneCollection(current)
	tx.recordChange(Change{Entity: domain.EntityCollection, Action: domain.ActionUpdate, Before: before, After: cloneCollection(current)})
	return cloneCollection(current), nil
}

// CreateSeedBatch stores a new seed batch.
func (tx *transaction) CreateSeedBatch(b SeedBatch) (SeedBatch, error) {
	_ = tx.stamp(&b.Base)
	if _, exists := tx.state.seedBatches[b.ID]; exists {
		return SeedBatch{}, fmt.Errorf("seed batch %q already exists", b.ID)
	}
	if b.Code != "" && tx.state.codeTaken(domain.EntitySeedBatch, b.Code, b.ID) {
		return SeedBatch{}, duplicateCode(domain.EntitySeedBatch, b.Code)
	}
	tx.state.seedBatches[b.ID] = cloneSeedBatch(b)
	tx.recordChange(Change{Entity: domain.EntitySeedBatch, Action: domain.ActionCreate, After: cloneSeedBatch(b)})
	return cloneSeedBatch(b), nil
}

// UpdateSeedBatch mutates a seed batch.
func (tx *transaction) UpdateSeedBatch(id string, mutator func(*SeedBatch) error) (SeedBatch, error) {
	current, ok := tx.state.seedBatches[id]
	if !ok {
		return SeedBatch{}, domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: id}
	}
	before := cloneSeedBatch(current)
	if err := mutator(&current); err != nil {
		return SeedBatch{}, err
	}
	current.ID = id
	current.Code = before.Code
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.seedBatches[id] = cloneSeedBatch(current)
	tx.recordChange(Change{Entity: domain.EntitySeedBatch, Action: domain.ActionUpdate, Before: before, After: cloneSeedBatch(current)})
	return cloneSeedBatch(current), nil
}

// CreateGerminationRecord stores a new germination trial.
func (tx *transaction) CreateGerminationRecord(r GerminationRecord) (GerminationRecord, error) {
	_ = tx.stamp(&r.Base)
	if _, exists := tx.state.germinations[r.ID]; exists {
		return GerminationRecord{}, fmt.Errorf("germination record %q already exists", r.ID)
	}
	if r.Code != "" && tx.state.codeTaken(domain.EntityGerminationRecord, r.Code, r.ID) {
		return GerminationRecord{}, duplicateCode(domain.EntityGerminationRecord, r.Code)
	}
	tx.state.germinations[r.ID] = cloneGermination(r)
	tx.recordChange(Change{Entity: domain.EntityGerminationRecord, Action: domain.ActionCreate, After: cloneGermination(r)})
	return cloneGermination(r), nil
}

// UpdateGerminationRecord mutates a germination trial.
func (tx *transaction) UpdateGerminationRecord(id string, mutator func(*GerminationRecord) error) (GerminationRecord, error) {
	current, ok := tx.state.germinations[id]
	if !ok {
		return GerminationRecord{}, domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: id}
	}
	before := cloneGermination(current)
	if err := mutator(&current); err != nil {
		return GerminationRecord{}, err
	}
	current.ID = id
	current.Code = before.Code
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.germinations[id] = cloneGermination(current)
	tx.recordChange(Change{Entity: domain.EntityGerminationRecord, Action: domain.ActionUpdate, Before: before, After: cloneGermination(current)})
	return cloneGermination(current), nil
}

// CreateGerminationEvent stores an observation. Sequence is assigned in
// insertion order when unset.
func (tx *transaction) CreateGerminationEvent(e GerminationEvent) (GerminationEvent, error) {
	if _, ok := tx.state.germinations[e.GerminationRecordID]; !ok {
		return GerminationEvent{}, domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: e.GerminationRecordID}
	}
	_ = tx.stamp(&e.Base)
	if _, exists := tx.state.germinationEvents[e.ID]; exists {
		return GerminationEvent{}, fmt.Errorf("germination event %q already exists", e.ID)
	}
	if e.Sequence == 0 {
		for _, existing := range tx.state.germinationEvents {
			if existing.GerminationRecordID == e.GerminationRecordID && existing.Sequence > e.Sequence {
				e.Sequence = existing.Sequence
			}
		}
		e.Sequence++
	}
	tx.state.germinationEvents[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityGerminationEvent, Action: domain.ActionCreate, After: e})
	return e, nil
}

// UpdateGerminationEvent mutates an observation.
func (tx *transaction) UpdateGerminationEvent(id string, mutator func(*GerminationEvent) error) (GerminationEvent, error) {
	current, ok := tx.state.germinationEvents[id]
	if !ok {
		return GerminationEvent{}, domain.NotFoundError{Entity: domain.EntityGerminationEvent, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return GerminationEvent{}, err
	}
	current.ID = id
	current.GerminationRecordID = before.GerminationRecordID
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.germinationEvents[id] = current
	tx.recordChange(Change{Entity: domain.EntityGerminationEvent, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateCultivationRecord stores a new cultivation record.
func (tx *transaction) CreateCultivationRecord(r CultivationRecord) (CultivationRecord, error) {
	_ = tx.stamp(&r.Base)
	if _, exists := tx.state.cultivations[r.ID]; exists {
		return CultivationRecord{}, fmt.Errorf("cultivation record %q already exists", r.ID)
	}
	if r.Code != "" && tx.state.codeTaken(domain.EntityCultivationRecord, r.Code, r.ID) {
		return CultivationRecord{}, duplicateCode(domain.EntityCultivationRecord, r.Code)
	}
	tx.state.cultivations[r.ID] = cloneCultivation(r)
	tx.recordChange(Change{Entity: domain.EntityCultivationRecord, Action: domain.ActionCreate, After: cloneCultivation(r)})
	return cloneCultivation(r), nil
}

// UpdateCultivationRecord mutates a cultivation record.
func (tx *transaction) UpdateCultivationRecord(id string, mutator func(*CultivationRecord) error) (CultivationRecord, error) {
	current, ok := tx.state.cultivations[id]
	if !ok {
		return CultivationRecord{}, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
	}
	before := cloneCultivation(current)
	if err := mutator(&current); err != nil {
		return CultivationRecord{}, err
	}
	current.ID = id
	current.Code = before.Code
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cultivations[id] = cloneCultivation(current)
	tx.recordChange(Change{Entity: domain.EntityCultivationRecord, Action: domain.ActionUpdate, Before: before, After: cloneCultivation(current)})
	return cloneCultivation(current), nil
}

// CreateCultivationEvent appends a log entry to a cultivation record.
func (tx *transaction) CreateCultivationEvent(e CultivationEvent) (CultivationEvent, error) {
	if _, ok := tx.state.cultivations[e.CultivationRecordID]; !ok {
		return CultivationEvent{}, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: e.CultivationRecordID}
	}
	_ = tx.stamp(&e.Base)
	if _, exists := tx.state.cultivationEvents[e.ID]; exists {
		return CultivationEvent{}, fmt.Errorf("cultivation event %q already exists", e.ID)
	}
	tx.state.cultivationEvents[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityCultivationEvent, Action: domain.ActionCreate, After: e})
	return e, nil
}

// CreateCultivationSubgroup records a partial status change.
func (tx *transaction) CreateCultivationSubgroup(g CultivationSubgroup) (CultivationSubgroup, error) {
	if _, ok := tx.state.cultivations[g.CultivationRecordID]; !ok {
		return CultivationSubgroup{}, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: g.CultivationRecordID}
	}
	_ = tx.stamp(&g.Base)
	if _, exists := tx.state.subgroups[g.ID]; exists {
		return CultivationSubgroup{}, fmt.Errorf("cultivation subgroup %q already exists", g.ID)
	}
	tx.state.subgroups[g.ID] = g
	tx.recordChange(Change{Entity: domain.EntityCultivationSubgroup, Action: domain.ActionCreate, After: g})
	return g, nil
}

// CreateImage stores an image reference.
func (tx *transaction) CreateImage(img Image) (Image, error) {
	_ = tx.stamp(&img.Base)
	if _, exists := tx.state.images[img.ID]; exists {
		return Image{}, fmt.Errorf("image %q already exists", img.ID)
	}
	tx.state.images[img.ID] = img
	tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionCreate, After: img})
	return img, nil
}

// UpdateImage mutates an image reference. Owner and blob key are fixed.
func (tx *transaction) UpdateImage(id string, mutator func(*Image) error) (Image, error) {
	current, ok := tx.state.images[id]
	if !ok {
		return Image{}, domain.NotFoundError{Entity: domain.EntityImage, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Image{}, err
	}
	current.ID = id
	current.OwnerKind = before.OwnerKind
	current.OwnerID = before.OwnerID
	current.BlobKey = before.BlobKey
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.images[id] = current
	tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteImage removes an image reference.
func (tx *transaction) DeleteImage(id string) error {
	current, ok := tx.state.images[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityImage, ID: id}
	}
	delete(tx.state.images, id)
	tx.recordChange(Change{Entity: domain.EntityImage, Action: domain.ActionDelete, Before: current})
	return nil
}

// transactionView exposes a read-only snapshot of the state to rules and queries.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func sortByCreation[T any](items []T, base func(T) domain.Base) []T {
	sort.Slice(items, func(i, j int) bool {
		a, b := base(items[i]), base(items[j])
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return items
}

// ListCollections returns all collections ordered by creation.
func (v transactionView) ListCollections() []Collection {
	out := make([]Collection, 0, len(v.state.collections))
	for _, c := range v.state.collections {
		out = append(out, cloneCollection(c))
	}
	return sortByCreation(out, func(c Collection) domain.Base { return c.Base })
}

// ListSeedBatches returns all seed batches ordered by creation.
func (v transactionView) ListSeedBatches() []SeedBatch {
	out := make([]SeedBatch, 0, len(v.state.seedBatches))
	for _, b := range v.state.seedBatches {
		out = append(out, cloneSeedBatch(b))
	}
	return sortByCreation(out, func(b SeedBatch) domain.Base { return b.Base })
}

// ListGerminationRecords returns all germination trials ordered by creation.
func (v transactionView) ListGerminationRecords() []GerminationRecord {
	out := make([]GerminationRecord, 0, len(v.state.germinations))
	for _, r := range v.state.germinations {
		out = append(out, cloneGermination(r))
	}
	return sortByCreation(out, func(r GerminationRecord) domain.Base { return r.Base })
}

// ListGerminationEvents returns every germination event in date order.
func (v transactionView) ListGerminationEvents() []GerminationEvent {
	out := make([]GerminationEvent, 0, len(v.state.germinationEvents))
	for _, e := range v.state.germinationEvents {
		out = append(out, e)
	}
	domain.SortGerminationEvents(out)
	return out
}

// ListCultivationRecords returns all cultivation records ordered by creation.
func (v transactionView) ListCultivationRecords() []CultivationRecord {
	out := make([]CultivationRecord, 0, len(v.state.cultivations))
	for _, r := range v.state.cultivations {
		out = append(out, cloneCultivation(r))
	}
	return sortByCreation(out, func(r CultivationRecord) domain.Base { return r.Base })
}

// ListCultivationEvents returns every cultivation event in date order.
func (v transactionView) ListCultivationEvents() []CultivationEvent {
	out := make([]CultivationEvent, 0, len(v.state.cultivationEvents))
	for _, e := range v.state.cultivationEvents {
		out = append(out, e)
	}
	sortCultivationEvents(out)
	return out
}

// ListCultivationSubgroups returns all subgroups ordered by creation.
func (v transactionView) ListCultivationSubgroups() []CultivationSubgroup {
	out := make([]CultivationSubgroup, 0, len(v.state.subgroups))
	for _, g := range v.state.subgroups {
		out = append(out, g)
	}
	return sortByCreation(out, func(g CultivationSubgroup) domain.Base { return g.Base })
}

// ListImages returns all image references ordered by creation.
func (v transactionView) ListImages() []Image {
	out := make([]Image, 0, len(v.state.images))
	for _, img := range v.state.images {
		out = append(out, img)
	}
	return sortByCreation(out, func(i Image) domain.Base { return i.Base })
}

// FindCollection retrieves a collection by ID.
func (v transactionView) FindCollection(id string) (Collection, bool) {
	c, ok := v.state.collections[id]
	if !ok {
		return Collection{}, false
	}
	return cloneCollection(c), true
}

// FindSeedBatch retrieves a seed batch by ID.
func (v transactionView) FindSeedBatch(id string) (SeedBatch, bool) {
	b, ok := v.state.seedBatches[id]
	if !ok {
		return SeedBatch{}, false
	}
	return cloneSeedBatch(b), true
}

// FindGerminationRecord retrieves a germination trial by ID.
func (v transactionView) FindGerminationRecord(id string) (GerminationRecord, bool) {
	r, ok := v.state.germinations[id]
	if !ok {
		return GerminationRecord{}, false
	}
	return cloneGermination(r), true
}

// FindCultivationRecord retrieves a cultivation record by ID.
func (v transactionView) FindCultivationRecord(id string) (CultivationRecord, bool) {
	r, ok := v.state.cultivations[id]
	if !ok {
		return CultivationRecord{}, false
	}
	return cloneCultivation(r), true
}

// FindImage retrieves an image reference by ID.
func (v transactionView) FindImage(id string) (Image, bool) {
	img, ok := v.state.images[id]
	return img, ok
}

// FindByCode resolves a code for kinds that carry one.
func (v transactionView) FindByCode(kind domain.EntityType, code string) (string, bool) {
	return v.state.lookupCode(kind, code)
}

// GerminationEventsFor returns the events of one trial in date order.
func (v transactionView) GerminationEventsFor(recordID string) []GerminationEvent {
	var out []GerminationEvent
	for _, e := range v.state.germinationEvents {
		if e.GerminationRecordID == recordID {
			out = append(out, e)
		}
	}
	domain.SortGerminationEvents(out)
	return out
}

// CultivationEventsFor returns the log of one cultivation record in date order.
func (v transactionView) CultivationEventsFor(recordID string) []CultivationEvent {
	var out []CultivationEvent
	for _, e := range v.state.cultivationEvents {
		if e.CultivationRecordID == recordID {
			out = append(out, e)
		}
	}
	sortCultivationEvents(out)
	return out
}

// SubgroupsFor returns the partial status changes of one cultivation record.
func (v transactionView) SubgroupsFor(recordID string) []CultivationSubgroup {
	var out []CultivationSubgroup
	for _, g := range v.state.subgroups {
		if g.CultivationRecordID == recordID {
			out = append(out, g)
		}
	}
	return sortByCreation(out, func(g CultivationSubgroup) domain.Base { return g.Base })
}

// ImagesFor returns the images attached to one record.
func (v transactionView) ImagesFor(kind domain.ImageOwner, ownerID string) []Image {
	var out []Image
	for _, img := range v.state.images {
		if img.OwnerKind == kind && img.OwnerID == ownerID {
			out = append(out, img)
		}
	}
	return sortByCreation(out, func(i Image) domain.Base { return i.Base })
}

func sortCultivationEvents(events []CultivationEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		if !events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].CreatedAt.Before(events[j].CreatedAt)
		}
		return events[i].ID < events[j].ID
	})
}
