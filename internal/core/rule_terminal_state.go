package core

import (
	"context"
	"fmt"

	"plantledger/pkg/domain"
)

// TerminalStateRule keeps one-way transitions one-way: completed germination
// trials stay completed and accept no new events, dead cultivation records
// stay dead and accept no new log entries.
func TerminalStateRule() domain.Rule {
	return terminalStateRule{}
}

type terminalStateRule struct{}

func (terminalStateRule) Name() string { return "terminal_state" }

func (r terminalStateRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		switch after := change.After.(type) {
		case domain.GerminationRecord:
			before, ok := change.Before.(domain.GerminationRecord)
			if ok && before.Status == domain.GerminationCompleted && after.Status != domain.GerminationCompleted {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityGerminationRecord, after.ID,
					fmt.Sprintf("germination %s cannot reopen after completion", after.Code)))
			}
		case domain.GerminationEvent:
			if change.Action != domain.ActionCreate {
				continue
			}
			record, ok := view.FindGerminationRecord(after.GerminationRecordID)
			if ok && record.Status == domain.GerminationCompleted && !createdInSameCommit(changes, record.ID) {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityGerminationRecord, record.ID,
					fmt.Sprintf("germination %s is completed and accepts no events", record.Code)))
			}
		case domain.CultivationEvent:
			if change.Action != domain.ActionCreate {
				continue
			}
			record, ok := view.FindCultivationRecord(after.CultivationRecordID)
			if ok && record.IsDead() && !diedInSameCommit(changes, record.ID) {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivationRecord, record.ID,
					fmt.Sprintf("cultivation %s is dead and accepts no events", record.Code)))
			}
		case domain.CultivationRecord:
			before, ok := change.Before.(domain.CultivationRecord)
			if !ok || !before.IsDead() {
				continue
			}
			if !after.IsDead() || after.Flowering != before.Flowering || after.Fruiting != before.Fruiting {
				res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityCultivationRecord, after.ID,
					fmt.Sprintf("cultivation %s is dead and cannot change state", after.Code)))
			}
		}
	}
	return res, nil
}

// createdInSameCommit lets a trial be imported already completed together
// with its events.
func createdInSameCommit(changes []domain.Change, recordID string) bool {
	for _, c := range changes {
		if r, ok := c.After.(domain.GerminationRecord); ok && r.ID == recordID && c.Action == domain.ActionCreate {
			return true
		}
	}
	return false
}

// diedInSameCommit lets the death entry be written in the commit that kills
// the record.
func diedInSameCommit(changes []domain.Change, recordID string) bool {
	for _, c := range changes {
		after, ok := c.After.(domain.CultivationRecord)
		if !ok || after.ID != recordID || !after.IsDead() {
			continue
		}
		if before, ok := c.Before.(domain.CultivationRecord); !ok || !before.IsDead() {
			return true
		}
	}
	return false
}
