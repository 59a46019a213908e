package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

func availableIn(view domain.RuleView, batch domain.SeedBatch) int {
	return domain.AvailableQuantity(batch, view.ListGerminationRecords(), view.ListCultivationRecords())
}

// recordGerminationUsage checks that a trial may draw quantity seeds from batch.
func recordGerminationUsage(view domain.RuleView, batch domain.SeedBatch, quantity int) error {
	if available := availableIn(view, batch); quantity > available {
		return domain.InsufficientQuantityError{BatchID: batch.ID, Requested: quantity, Available: available}
	}
	return nil
}

// recordCultivationUsage checks that a cultivation lot may draw quantity seeds
// from batch.
func recordCultivationUsage(view domain.RuleView, batch domain.SeedBatch, quantity int) error {
	if available := availableIn(view, batch); quantity > available {
		return domain.InsufficientQuantityError{BatchID: batch.ID, Requested: quantity, Available: available}
	}
	return nil
}

// AvailableSeedQuantity returns the batch total minus every quantity
// committed to germination trials and cultivation lots drawn from it.
func (l *Ledger) AvailableSeedQuantity(ctx context.Context, batchID string) (int, error) {
	var available int
	err := l.view(ctx, func(v domain.TransactionView) error {
		batch, ok := v.FindSeedBatch(batchID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: batchID}
		}
		available = availableIn(v, batch)
		return nil
	})
	return available, err
}

// CreateGerminationRecord starts a germination trial, committing QuantityUsed
// seeds from the batch.
func (l *Ledger) CreateGerminationRecord(ctx context.Context, g domain.GerminationRecord) (domain.GerminationRecord, error) {
	if strings.TrimSpace(g.SeedBatchID) == "" {
		return domain.GerminationRecord{}, domain.ValidationError{Field: "seed_batch_id", Reason: "required"}
	}
	if g.QuantityUsed <= 0 {
		return domain.GerminationRecord{}, domain.ValidationError{Field: "quantity_used", Reason: "must be positive"}
	}
	g.StartDate = l.dayOr(g.StartDate)
	g.Status = domain.GerminationInProgress
	g.GerminatedCount = 0
	g.GerminationRate = 0
	g.CompletedDate = nil

	var created domain.GerminationRecord
	err := l.run(ctx, "create_germination", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		batch, ok := view.FindSeedBatch(g.SeedBatchID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntitySeedBatch, ID: g.SeedBatchID}
		}
		if err := recordGerminationUsage(view, batch, g.QuantityUsed); err != nil {
			return err
		}
		var err error
		created, err = assignCode(l.opts.codeRetries, g.Code, domain.PrefixGermination, g.StartDate,
			func(code string) (domain.GerminationRecord, error) {
				g.Code = code
				return tx.CreateGerminationRecord(g)
			})
		return err
	})
	return created, err
}

// AppendGerminationEvent records newly germinated seeds. All events of the
// trial are re-sorted by date and their cumulative counts recomputed, so an
// observation entered late lands in its chronological place. The trial's
// germinated count and rate follow the last cumulative value.
func (l *Ledger) AppendGerminationEvent(ctx context.Context, recordID string, date time.Time, count int, notes string) (domain.GerminationEvent, error) {
	if count < 0 {
		return domain.GerminationEvent{}, domain.ValidationError{Field: "count", Reason: "must not be negative"}
	}
	date = l.dayOr(date)

	var appended domain.GerminationEvent
	err := l.run(ctx, "append_germination_event", func(tx domain.Transaction) error {
		view := tx.Snapshot()
		record, ok := view.FindGerminationRecord(recordID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: recordID}
		}
		if record.Status == domain.GerminationCompleted {
			return domain.StateError{Entity: domain.EntityGerminationRecord, ID: recordID, Reason: "trial is completed"}
		}
		existing := view.GerminationEventsFor(recordID)
		total := count
		for _, e := range existing {
			total += e.Count
		}
		if total > record.QuantityUsed {
			return domain.ValidationError{
				Field:  "count",
				Reason: fmt.Sprintf("cumulative %d would exceed %d seeds used", total, record.QuantityUsed),
			}
		}

		created, err := tx.CreateGerminationEvent(domain.GerminationEvent{
			GerminationRecordID: recordID,
			EventDate:           date,
			Count:               count,
			Notes:               notes,
		})
		if err != nil {
			return err
		}

		stored := make(map[string]int, len(existing))
		for _, e := range existing {
			stored[e.ID] = e.CumulativeCount
		}
		stored[created.ID] = created.CumulativeCount
		events := append(existing, created)
		germinated := domain.RecomputeCumulative(events)
		for _, e := range events {
			if e.ID == created.ID {
				appended = e
			}
			if stored[e.ID] == e.CumulativeCount {
				continue
			}
			cumulative := e.CumulativeCount
			if _, err := tx.UpdateGerminationEvent(e.ID, func(ev *domain.GerminationEvent) error {
				ev.CumulativeCount = cumulative
				return nil
			}); err != nil {
				return err
			}
		}

		_, err = tx.UpdateGerminationRecord(recordID, func(r *domain.GerminationRecord) error {
			r.GerminatedCount = germinated
			r.GerminationRate = domain.GerminationRate(germinated, r.QuantityUsed)
			return nil
		})
		return err
	})
	return appended, err
}

// CompleteGermination closes a trial. Completing a closed trial is a no-op.
func (l *Ledger) CompleteGermination(ctx context.Context, recordID string) (domain.GerminationRecord, error) {
	today := l.today()
	var out domain.GerminationRecord
	err := l.run(ctx, "complete_germination", func(tx domain.Transaction) error {
		record, ok := tx.Snapshot().FindGerminationRecord(recordID)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityGerminationRecord, ID: recordID}
		}
		if record.Status == domain.GerminationCompleted {
			l.log.Debug("germination already completed", logger.String("germination", record.Code))
			out = record
			return nil
		}
		var err error
		out, err = tx.UpdateGerminationRecord(recordID, func(r *domain.GerminationRecord) error {
			r.Status = domain.GerminationCompleted
			r.CompletedDate = &today
			return nil
		})
		return err
	})
	return out, err
}

func transitionDescription(t domain.Transition, reason string) string {
	switch t {
	case domain.TransitionFlowering:
		return "plant started flowering"
	case domain.TransitionFruiting:
		return "plant started fruiting"
	default:
		if strings.TrimSpace(reason) == "" {
			reason = "unknown"
		}
		return "plant died, reason: " + reason
	}
}

func transitionEventType(t domain.Transition) domain.EventType {
	switch t {
	case domain.TransitionFlowering:
		return domain.EventFlowering
	case domain.TransitionFruiting:
		return domain.EventFruiting
	default:
		return domain.EventDeath
	}
}

// flipFlag sets the flowering or fruiting flag and date of r unless already
// set. It reports whether anything changed.
func flipFlag(r *domain.CultivationRecord, t domain.Transition, date time.Time) bool {
	switch t {
	case domain.TransitionFlowering:
		if r.Flowering {
			return false
		}
		r.Flowering = true
		r.FloweringDate = &date
		return true
	case domain.TransitionFruiting:
		if r.Fruiting {
			return false
		}
		r.Fruiting = true
		r.FruitingDate = &date
		return true
	}
	return false
}

// applyStatus performs one whole-record transition inside tx.
func (l *Ledger) applyStatus(tx domain.Transaction, id string, status domain.Transition, date time.Time, reason string) (domain.CultivationRecord, error) {
	record, ok := tx.Snapshot().FindCultivationRecord(id)
	if !ok {
		return domain.CultivationRecord{}, domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
	}
	if record.IsDead() {
		return domain.CultivationRecord{}, domain.StateError{Entity: domain.EntityCultivationRecord, ID: id, Reason: "record is dead"}
	}

	next := record
	if status != domain.TransitionDead && !flipFlag(&next, status, date) {
		l.log.Debug("cultivation status already set",
			logger.String("cultivation", record.Code),
			logger.String("status", string(status)))
		return record, nil
	}
	updated, err := tx.UpdateCultivationRecord(id, func(r *domain.CultivationRecord) error {
		if status == domain.TransitionDead {
			r.Status = domain.CultivationDead
			r.DeathDate = &date
			r.DeathReason = reason
			return nil
		}
		flipFlag(r, status, date)
		return nil
	})
	if err != nil {
		return domain.CultivationRecord{}, err
	}
	_, err = tx.CreateCultivationEvent(domain.CultivationEvent{
		CultivationRecordID: id,
		EventDate:           date,
		EventType:           transitionEventType(status),
		Description:         transitionDescription(status, reason),
	})
	return updated, err
}

// ApplyCultivationStatus moves a record to flowering, fruiting or dead. The
// flowering and fruiting flags are set once; repeating them changes nothing.
// Dead records accept no further transitions.
func (l *Ledger) ApplyCultivationStatus(ctx context.Context, id string, status domain.Transition, date time.Time, reason string) (domain.CultivationRecord, error) {
	status, err := domain.ParseTransition(string(status))
	if err != nil {
		return domain.CultivationRecord{}, err
	}
	date = l.dayOr(date)
	var out domain.CultivationRecord
	err = l.run(ctx, "apply_cultivation_status", func(tx domain.Transaction) error {
		var err error
		out, err = l.applyStatus(tx, id, status, date, reason)
		return err
	})
	return out, err
}

// BatchFailure pairs a record id with the error that stopped it.
type BatchFailure struct {
	ID  string
	Err error
}

// BatchResult reports the outcome of a multi-record status update.
type BatchResult struct {
	Updated  []domain.CultivationRecord
	Failures []BatchFailure
}

// Err summarizes the failures, or returns nil when every id succeeded.
func (r BatchResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	parts := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.ID, f.Err))
	}
	return fmt.Errorf("%d of %d status updates failed: %s",
		len(r.Failures), len(r.Failures)+len(r.Updated), strings.Join(parts, "; "))
}

// ApplyCultivationStatusBatch applies the same transition to each id in its
// own unit of work. A failing id does not undo the others.
func (l *Ledger) ApplyCultivationStatusBatch(ctx context.Context, ids []string, status domain.Transition, date time.Time, reason string) BatchResult {
	var result BatchResult
	for _, id := range ids {
		updated, err := l.ApplyCultivationStatus(ctx, id, status, date, reason)
		if err != nil {
			result.Failures = append(result.Failures, BatchFailure{ID: id, Err: err})
			continue
		}
		result.Updated = append(result.Updated, updated)
	}
	if len(result.Failures) > 0 {
		l.log.WithContext(ctx).Warn("batch status update had failures",
			logger.Int("failed", len(result.Failures)),
			logger.Int("updated", len(result.Updated)))
	}
	return result
}

// RecordPartialCultivationStatus logs that quantity plants of a lot reached
// status. The first flowering or fruiting subgroup also flips the record's
// flag; a dead subgroup leaves the record alive.
func (l *Ledger) RecordPartialCultivationStatus(ctx context.Context, id string, status domain.Transition, quantity int, date time.Time, notes string) (domain.CultivationSubgroup, error) {
	status, err := domain.ParseTransition(string(status))
	if err != nil {
		return domain.CultivationSubgroup{}, err
	}
	if quantity < 1 {
		return domain.CultivationSubgroup{}, domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	date = l.dayOr(date)

	var subgroup domain.CultivationSubgroup
	err = l.run(ctx, "record_partial_status", func(tx domain.Transaction) error {
		record, ok := tx.Snapshot().FindCultivationRecord(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
		}
		if record.IsDead() {
			return domain.StateError{Entity: domain.EntityCultivationRecord, ID: id, Reason: "record is dead"}
		}
		if quantity > record.Quantity {
			return domain.ValidationError{
				Field:  "quantity",
				Reason: fmt.Sprintf("%d exceeds the %d plants of the record", quantity, record.Quantity),
			}
		}
		var err error
		subgroup, err = tx.CreateCultivationSubgroup(domain.CultivationSubgroup{
			CultivationRecordID: id,
			Status:              status,
			Quantity:            quantity,
			StatusDate:          date,
			Notes:               notes,
		})
		if err != nil {
			return err
		}
		if _, err := tx.CreateCultivationEvent(domain.CultivationEvent{
			CultivationRecordID: id,
			EventDate:           date,
			EventType:           transitionEventType(status),
			Description:         fmt.Sprintf("%d plants %s: %s", quantity, status, notes),
		}); err != nil {
			return err
		}
		if status == domain.TransitionDead || (status == domain.TransitionFlowering && record.Flowering) ||
			(status == domain.TransitionFruiting && record.Fruiting) {
			return nil
		}
		_, err = tx.UpdateCultivationRecord(id, func(r *domain.CultivationRecord) error {
			flipFlag(r, status, date)
			return nil
		})
		return err
	})
	return subgroup, err
}

// AddCultivationEvent appends a routine log entry. Unknown event types are
// filed as "other". Dead records accept no new entries.
func (l *Ledger) AddCultivationEvent(ctx context.Context, id string, date time.Time, eventType string, description string) (domain.CultivationEvent, error) {
	date = l.dayOr(date)
	var created domain.CultivationEvent
	err := l.run(ctx, "add_cultivation_event", func(tx domain.Transaction) error {
		record, ok := tx.Snapshot().FindCultivationRecord(id)
		if !ok {
			return domain.NotFoundError{Entity: domain.EntityCultivationRecord, ID: id}
		}
		if record.IsDead() {
			return domain.StateError{Entity: domain.EntityCultivationRecord, ID: id, Reason: "record is dead"}
		}
		var err error
		created, err = tx.CreateCultivationEvent(domain.CultivationEvent{
			CultivationRecordID: id,
			EventDate:           date,
			EventType:           domain.NormalizeEventType(eventType),
			Description:         description,
		})
		return err
	})
	return created, err
}
