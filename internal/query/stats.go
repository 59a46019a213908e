package query

import (
	"sort"
	"strings"
	"time"

	"plantledger/pkg/domain"
)

// Defaults for SurvivalByLocation.
const (
	DefaultSurvivalAgeDays    = 90
	DefaultSurvivalMinRecords = 5
)

// HistogramBins is the number of equal-width germination rate bins over [0,1].
const HistogramBins = 10

// OverviewStats counts the records held by the ledger.
type OverviewStats struct {
	Collections             int `json:"collections" yaml:"collections"`
	UnidentifiedCollections int `json:"unidentified_collections" yaml:"unidentified_collections"`
	SeedBatches             int `json:"seed_batches" yaml:"seed_batches"`
	SeedsAvailable          int `json:"seeds_available" yaml:"seeds_available"`
	GerminationTrials       int `json:"germination_trials" yaml:"germination_trials"`
	GerminationsInProgress  int `json:"germinations_in_progress" yaml:"germinations_in_progress"`
	Cultivations            int `json:"cultivations" yaml:"cultivations"`
	Alive                   int `json:"alive" yaml:"alive"`
	Flowering               int `json:"flowering" yaml:"flowering"`
	Fruiting                int `json:"fruiting" yaml:"fruiting"`
	Dead                    int `json:"dead" yaml:"dead"`
	Images                  int `json:"images" yaml:"images"`
}

// Overview summarizes the whole ledger.
func Overview(view domain.TransactionView) OverviewStats {
	var s OverviewStats
	for _, c := range view.ListCollections() {
		s.Collections++
		if !c.Identification.Identified {
			s.UnidentifiedCollections++
		}
	}
	germinations := view.ListGerminationRecords()
	cultivations := view.ListCultivationRecords()
	for _, b := range view.ListSeedBatches() {
		s.SeedBatches++
		if available := domain.AvailableQuantity(b, germinations, cultivations); available > 0 {
			s.SeedsAvailable += available
		}
	}
	for _, g := range germinations {
		s.GerminationTrials++
		if g.Status == domain.GerminationInProgress {
			s.GerminationsInProgress++
		}
	}
	for _, r := range cultivations {
		s.Cultivations++
		if r.IsDead() {
			s.Dead++
		} else {
			s.Alive++
		}
		if r.Flowering {
			s.Flowering++
		}
		if r.Fruiting {
			s.Fruiting++
		}
	}
	s.Images = len(view.ListImages())
	return s
}

// TreatmentRate is the mean germination rate of completed trials sharing a
// pre-treatment.
type TreatmentRate struct {
	Treatment string  `json:"treatment" yaml:"treatment"`
	Trials    int     `json:"trials" yaml:"trials"`
	MeanRate  float64 `json:"mean_rate" yaml:"mean_rate"`
}

// GerminationSummary describes the rate distribution of completed trials.
type GerminationSummary struct {
	Trials      int                `json:"trials" yaml:"trials"`
	MeanRate    float64            `json:"mean_rate" yaml:"mean_rate"`
	MinRate     float64            `json:"min_rate" yaml:"min_rate"`
	MaxRate     float64            `json:"max_rate" yaml:"max_rate"`
	Histogram   [HistogramBins]int `json:"histogram" yaml:"histogram"`
	ByTreatment []TreatmentRate    `json:"by_treatment" yaml:"by_treatment"`
}

// NoTreatment labels trials recorded without a pre-treatment.
const NoTreatment = "none"

// GerminationStats aggregates completed trials. In-progress trials are left
// out because their rates are still moving.
func GerminationStats(view domain.TransactionView) GerminationSummary {
	var s GerminationSummary
	sums := make(map[string]float64)
	counts := make(map[string]int)
	total := 0.0
	for _, g := range view.ListGerminationRecords() {
		if g.Status != domain.GerminationCompleted {
			continue
		}
		rate := g.GerminationRate
		if s.Trials == 0 || rate < s.MinRate {
			s.MinRate = rate
		}
		if s.Trials == 0 || rate > s.MaxRate {
			s.MaxRate = rate
		}
		s.Trials++
		total += rate
		s.Histogram[rateBin(rate)]++

		treatment := strings.TrimSpace(g.Treatment)
		if treatment == "" {
			treatment = NoTreatment
		}
		sums[treatment] += rate
		counts[treatment]++
	}
	if s.Trials == 0 {
		return s
	}
	s.MeanRate = total / float64(s.Trials)
	for treatment, n := range counts {
		s.ByTreatment = append(s.ByTreatment, TreatmentRate{
			Treatment: treatment,
			Trials:    n,
			MeanRate:  sums[treatment] / float64(n),
		})
	}
	sort.Slice(s.ByTreatment, func(i, j int) bool { return s.ByTreatment[i].Treatment < s.ByTreatment[j].Treatment })
	return s
}

// rateBin maps a rate to its histogram bin. The last bin is closed so a rate
// of exactly 1 lands in it.
func rateBin(rate float64) int {
	switch {
	case rate <= 0:
		return 0
	case rate >= 1:
		return HistogramBins - 1
	}
	return int(rate * HistogramBins)
}

// NameCount is a label with its frequency.
type NameCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// TaxonomySummary ranks families and genera across collections and
// cultivation records.
type TaxonomySummary struct {
	CollectionFamilies  []NameCount `json:"collection_families" yaml:"collection_families"`
	CollectionGenera    []NameCount `json:"collection_genera" yaml:"collection_genera"`
	CultivationFamilies []NameCount `json:"cultivation_families" yaml:"cultivation_families"`
	CultivationGenera   []NameCount `json:"cultivation_genera" yaml:"cultivation_genera"`
}

func topN(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, c := range counts {
		out = append(out, NameCount{Name: name, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TaxonCounts returns the n most frequent families and genera (all when n
// is not positive). A cultivation record without its own family or genus is
// counted under the collection behind its seed batch.
func TaxonCounts(view domain.TransactionView, n int) TaxonomySummary {
	colFamilies, colGenera := make(map[string]int), make(map[string]int)
	for _, c := range view.ListCollections() {
		if c.Taxon.Family != "" {
			colFamilies[c.Taxon.Family]++
		}
		if c.Taxon.Genus != "" {
			colGenera[c.Taxon.Genus]++
		}
	}

	culFamilies, culGenera := make(map[string]int), make(map[string]int)
	for _, r := range view.ListCultivationRecords() {
		taxon := r.Taxon
		if r.SeedBatchID != nil && (taxon.Family == "" || taxon.Genus == "") {
			if b, ok := view.FindSeedBatch(*r.SeedBatchID); ok && b.CollectionID != nil {
				if c, ok := view.FindCollection(*b.CollectionID); ok {
					taxon.FillFrom(domain.Taxon{Family: c.Taxon.Family, Genus: c.Taxon.Genus})
				}
			}
		}
		if taxon.Family != "" {
			culFamilies[taxon.Family]++
		}
		if taxon.Genus != "" {
			culGenera[taxon.Genus]++
		}
	}

	return TaxonomySummary{
		CollectionFamilies:  topN(colFamilies, n),
		CollectionGenera:    topN(colGenera, n),
		CultivationFamilies: topN(culFamilies, n),
		CultivationGenera:   topN(culGenera, n),
	}
}

// MonthEvents counts the cultivation events of one calendar month by type.
type MonthEvents struct {
	Month  string                   `json:"month" yaml:"month"`
	Counts map[domain.EventType]int `json:"counts" yaml:"counts"`
	Total  int                      `json:"total" yaml:"total"`
}

// EventCountsByMonth buckets cultivation events by YYYY-MM, oldest month
// first. Unknown event types count as other.
func EventCountsByMonth(view domain.TransactionView) []MonthEvents {
	byMonth := make(map[string]*MonthEvents)
	for _, e := range view.ListCultivationEvents() {
		key := e.EventDate.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &MonthEvents{Month: key, Counts: make(map[domain.EventType]int)}
			byMonth[key] = m
		}
		m.Counts[domain.NormalizeEventType(string(e.EventType))]++
		m.Total++
	}
	out := make([]MonthEvents, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// LocationSurvival is the share of established records still alive at one
// location.
type LocationSurvival struct {
	Location string  `json:"location" yaml:"location"`
	Total    int     `json:"total" yaml:"total"`
	Alive    int     `json:"alive" yaml:"alive"`
	Rate     float64 `json:"rate" yaml:"rate"`
}

// SurvivalByLocation considers cultivation records started more than
// minAgeDays before now and reports locations holding at least minRecords
// of them, sorted by location. Non-positive thresholds use the defaults.
func SurvivalByLocation(view domain.TransactionView, now time.Time, minAgeDays, minRecords int) []LocationSurvival {
	if minAgeDays <= 0 {
		minAgeDays = DefaultSurvivalAgeDays
	}
	if minRecords <= 0 {
		minRecords = DefaultSurvivalMinRecords
	}
	cutoff := domain.Day(now).AddDate(0, 0, -minAgeDays)

	byLocation := make(map[string]*LocationSurvival)
	for _, r := range view.ListCultivationRecords() {
		if !r.StartDate.Before(cutoff) {
			continue
		}
		loc, ok := byLocation[r.Location]
		if !ok {
			loc = &LocationSurvival{Location: r.Location}
			byLocation[r.Location] = loc
		}
		loc.Total++
		if !r.IsDead() {
			loc.Alive++
		}
	}

	var out []LocationSurvival
	for _, loc := range byLocation {
		if loc.Total < minRecords {
			continue
		}
		loc.Rate = float64(loc.Alive) / float64(loc.Total)
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}
