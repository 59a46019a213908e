// Package core implements the lineage and quantity ledger: record creation
// with provenance checks, seed accounting, germination and cultivation
// progress, image attachment, and the invariant rules evaluated on commit.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

// Ledger runs every operation as one unit of work against a persistent store.
type Ledger struct {
	store domain.PersistentStore
	opts  ledgerOptions
	log   logger.Logger
}

// NewLedger constructs a ledger over store.
func NewLedger(store domain.PersistentStore, opts ...Option) *Ledger {
	o := defaultLedgerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Ledger{
		store: store,
		opts:  o,
		log:   o.logger.Module("ledger"),
	}
}

// Store returns the underlying persistence implementation.
func (l *Ledger) Store() domain.PersistentStore {
	return l.store
}

// Close releases the store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

func (l *Ledger) today() time.Time {
	return domain.Day(l.opts.clock.Now())
}

func (l *Ledger) dayOr(t time.Time) time.Time {
	if t.IsZero() {
		return l.today()
	}
	return domain.Day(t)
}

// run executes fn in a transaction and reports the outcome to the tracer,
// the metrics recorder and the log.
func (l *Ledger) run(ctx context.Context, op string, fn func(domain.Transaction) error) error {
	ctx, span := l.opts.tracer.Start(ctx, op)
	started := time.Now()
	res, err := l.store.RunInTransaction(ctx, fn)
	l.opts.metrics.Observe(ctx, op, err == nil, time.Since(started))
	span.End(err)

	log := l.log.WithContext(ctx)
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		log.Warn("rule reported violation",
			logger.String("operation", op),
			logger.String("rule", v.Rule),
			logger.String("entity_id", v.EntityID),
			logger.String("message", v.Message))
	}
	if err != nil {
		log.Debug("operation rejected", logger.String("operation", op), logger.Error(err))
		return err
	}
	log.Debug("operation committed", logger.String("operation", op))
	return nil
}

func (l *Ledger) view(ctx context.Context, fn func(domain.TransactionView) error) error {
	return l.store.View(ctx, fn)
}

// assignCode calls create with freshly generated codes until the store stops
// reporting a collision. A caller-supplied code is tried once.
func assignCode[T any](retries int, preset, prefix string, date time.Time, create func(code string) (T, error)) (T, error) {
	if preset != "" {
		return create(preset)
	}
	var (
		zero T
		err  error
	)
	for attempt := 0; attempt < retries; attempt++ {
		var out T
		out, err = create(domain.NewCode(prefix, date))
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, domain.ErrDuplicateCode) {
			return zero, err
		}
	}
	return zero, fmt.Errorf("assign %s code after %d attempts: %w", prefix, retries, err)
}

// GetCollection returns a collection by id.
func (l *Ledger) GetCollection(ctx context.Context, id string) (domain.Collection, error) {
	var out domain.Collection
	err := l.view(ctx, func(v domain.TransactionView) error {
		c, ok := v.FindCollection(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCollection, ID: id}
		}
		out = c
		return nil
	})
	return out, err
}

// GetSeedBatch returns a seed batch by id.
func (l *Ledger) GetSeedBatch(ctx context.Context, id string) (domain.SeedBatch, error) {
	var out domain.SeedBatch
	err := l.view(ctx, func(v domain.TransactionView) error {
		b, ok := v.FindSeedBatch(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: id}
		}
		out = b
		return nil
	})
	return out, err
}

// GetGerminationRecord returns a germination trial by id.
func (l *Ledger) GetGerminationRecord(ctx context.Context, id string) (domain.GerminationRecord, error) {
	var out domain.GerminationRecord
	err := l.view(ctx, func(v domain.TransactionView) error {
		r, ok := v.FindGerminationRecord(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: id}
		}
		out = r
		return nil
	})
	return out, err
}

// GetCultivationRecord returns a cultivation record by id.
func (l *Ledger) GetCultivationRecord(ctx context.Context, id string) (domain.CultivationRecord, error) {
	var out domain.CultivationRecord
	err := l.view(ctx, func(v domain.TransactionView) error {
		r, ok := v.FindCultivationRecord(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
		}
		out = r
		return nil
	})
	return out, err
}

// GerminationEvents returns the observations of a trial in date order.
func (l *Ledger) GerminationEvents(ctx context.Context, recordID string) ([]domain.GerminationEvent, error) {
	var out []domain.GerminationEvent
	err := l.view(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindGerminationRecord(recordID); !ok {
			return domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: recordID}
		}
		out = v.GerminationEventsFor(recordID)
		return nil
	})
	return out, err
}

// CultivationEvents returns the log of a cultivation record in date order.
func (l *Ledger) CultivationEvents(ctx context.Context, recordID string) ([]domain.CultivationEvent, error) {
	var out []domain.CultivationEvent
	err := l.view(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindCultivationRecord(recordID); !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: recordID}
		}
		out = v.CultivationEventsFor(recordID)
		return nil
	})
	return out, err
}

// Subgroups returns the partial status changes of a cultivation record.
func (l *Ledger) Subgroups(ctx context.Context, recordID string) ([]domain.CultivationSubgroup, error) {
	var out []domain.CultivationSubgroup
	err := l.view(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindCultivationRecord(recordID); !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: recordID}
		}
		out = v.SubgroupsFor(recordID)
		return nil
	})
	return out, err
}

// FindByCode resolves a human-readable code to a surrogate key.
func (l *Ledger) FindByCode(ctx context.Context, kind domain.EntityType, code string) (string, error) {
	if _, ok := domain.CodePrefix(kind); !ok {
		return "", domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("%s records carry no code", kind)}
	}
	var id string
	err := l.view(ctx, func(v domain.TransactionView) error {
		found, ok := v.FindByCode(kind, code)
		if !ok {
			return domain.NotFoundError{Entity: kind, ID: code}
		}
		id = found
		return nil
	})
	return id, err
}
