// Package query answers read-only questions about the ledger: which seed is
// still available, where a plant came from, and how collections, trials and
// cultivation lots add up. Functions take a domain.TransactionView and have
// no side effects; Reporter adds caching on top of a store.
package query

import (
	"sort"

	"plantledger/pkg/domain"
)

// BatchAvailability pairs a seed batch with its derived available quantity.
type BatchAvailability struct {
	Batch     domain.SeedBatch `json:"batch" yaml:"batch"`
	Available int              `json:"available" yaml:"available"`
}

func withAvailability(view domain.TransactionView, keep func(domain.SeedBatch) bool) []BatchAvailability {
	germinations := view.ListGerminationRecords()
	cultivations := view.ListCultivationRecords()
	var out []BatchAvailability
	for _, b := range view.ListSeedBatches() {
		if !keep(b) {
			continue
		}
		out = append(out, BatchAvailability{
			Batch:     b,
			Available: domain.AvailableQuantity(b, germinations, cultivations),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Batch, out[j].Batch
		if !a.StorageDate.Equal(b.StorageDate) {
			return a.StorageDate.After(b.StorageDate)
		}
		return a.Code < b.Code
	})
	return out
}

// ListSeedBatchesWithAvailability returns batches that still hold seed,
// newest storage date first.
func ListSeedBatchesWithAvailability(view domain.TransactionView) []BatchAvailability {
	all := withAvailability(view, func(domain.SeedBatch) bool { return true })
	out := all[:0]
	for _, b := range all {
		if b.Available > 0 {
			out = append(out, b)
		}
	}
	return out
}

// SeedBatchesByCollection returns every batch stored from a collection,
// including exhausted ones.
func SeedBatchesByCollection(view domain.TransactionView, collectionID string) []BatchAvailability {
	return withAvailability(view, func(b domain.SeedBatch) bool {
		return b.CollectionID != nil && *b.CollectionID == collectionID
	})
}
