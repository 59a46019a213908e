package domain

import "sort"

// CommittedUsage sums the seed committed downstream of each batch by
// germination trials and by cultivation records drawing from it.
func CommittedUsage(germinations []GerminationRecord, cultivations []CultivationRecord) map[string]int {
	used := make(map[string]int)
	for _, g := range germinations {
		used[g.SeedBatchID] += g.QuantityUsed
	}
	for _, c := range cultivations {
		if c.SeedBatchID != nil {
			used[*c.SeedBatchID] += c.Quantity
		}
	}
	return used
}

// AvailableQuantity returns the batch total minus every quantity committed
// against it.
func AvailableQuantity(batch SeedBatch, germinations []GerminationRecord, cultivations []CultivationRecord) int {
	available := batch.TotalQuantity
	for _, g := range germinations {
		if g.SeedBatchID == batch.ID {
			available -= g.QuantityUsed
		}
	}
	for _, c := range cultivations {
		if c.SeedBatchID != nil && *c.SeedBatchID == batch.ID {
			available -= c.Quantity
		}
	}
	return available
}

// GerminationRate returns germinated/used, or 0 when nothing was used.
func GerminationRate(germinated, used int) float64 {
	if used <= 0 {
		return 0
	}
	return float64(germinated) / float64(used)
}

// SortGerminationEvents orders events by date, breaking ties by insertion sequence.
func SortGerminationEvents(events []GerminationEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].EventDate.Equal(events[j].EventDate) {
			return events[i].EventDate.Before(events[j].EventDate)
		}
		return events[i].Sequence < events[j].Sequence
	})
}

// RecomputeCumulative sorts events chronologically and rewrites each
// CumulativeCount as the running sum of counts. It returns the final
// cumulative count, which is the record's germinated count.
func RecomputeCumulative(events []GerminationEvent) int {
	SortGerminationEvents(events)
	total := 0
	for i := range events {
		total += events[i].Count
		events[i].CumulativeCount = total
	}
	return total
}
