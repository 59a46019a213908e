package core

import (
	"context"
	"fmt"
	"math"
	"sort"

	"plantledger/pkg/domain"
)

// GerminationProgressRule checks that the cached counts of every touched trial
// agree with its events and never exceed the seed used.
func GerminationProgressRule() domain.Rule {
	return germinationProgressRule{}
}

type germinationProgressRule struct{}

func (germinationProgressRule) Name() string { return "germination_progress" }

func (r germinationProgressRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, change := range changes {
		switch v := change.After.(type) {
		case domain.GerminationRecord:
			touched[v.ID] = struct{}{}
		case domain.GerminationEvent:
			touched[v.GerminationRecordID] = struct{}{}
		}
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}

	events := make(map[string][]domain.GerminationEvent)
	for _, e := range view.ListGerminationEvents() {
		if _, ok := touched[e.GerminationRecordID]; ok {
			events[e.GerminationRecordID] = append(events[e.GerminationRecordID], e)
		}
	}

	ids := make([]string, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		record, ok := view.FindGerminationRecord(id)
		if !ok {
			continue
		}
		violate := func(format string, args ...any) {
			res.Violations = append(res.Violations, blockViolation(r.Name(), domain.EntityGerminationRecord, id, fmt.Sprintf(format, args...)))
		}
		if record.QuantityUsed <= 0 {
			violate("germination %s must use a positive quantity", record.Code)
			continue
		}
		running := 0
		for _, e := range events[id] {
			if e.Count < 0 {
				violate("germination %s has negative event count %d", record.Code, e.Count)
			}
			running += e.Count
			if e.CumulativeCount != running {
				violate("germination %s event on %s has cumulative %d, expected %d",
					record.Code, e.EventDate.Format(domain.DateLayout), e.CumulativeCount, running)
			}
		}
		if running > record.QuantityUsed {
			violate("germination %s counted %d germinated from %d seeds", record.Code, running, record.QuantityUsed)
		}
		if record.GerminatedCount != running {
			violate("germination %s caches %d germinated, events sum to %d", record.Code, record.GerminatedCount, running)
		}
		if want := domain.GerminationRate(running, record.QuantityUsed); math.Abs(record.GerminationRate-want) > 1e-9 {
			violate("germination %s caches rate %.4f, expected %.4f", record.Code, record.GerminationRate, want)
		}
	}
	return res, nil
}
