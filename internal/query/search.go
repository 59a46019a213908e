package query

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/cases"

	"plantledger/pkg/domain"
)

// CollectionFilter narrows a collection search. Zero fields do not filter.
type CollectionFilter struct {
	// Text matches scientific and local names, family, genus, common name
	// and code. Local names also match by pinyin or pinyin initials.
	Text       string
	Family     string
	Genus      string
	Identified *bool
	Location   string
	Collector  string
	// From and To bound the collection date, inclusive.
	From, To time.Time
}

// CultivationFilter narrows a cultivation search. Zero fields do not filter.
type CultivationFilter struct {
	Text     string
	Family   string
	Status   domain.CultivationStatus
	Location string
	From, To time.Time
}

// SeedBatchFilter narrows a seed batch search by storage.
type SeedBatchFilter struct {
	StorageLocation string
	From, To        time.Time
}

// GerminationFilter narrows a germination trial search.
type GerminationFilter struct {
	Status    domain.GerminationStatus
	Treatment string
	From, To  time.Time
}

// matcher folds case once per search. cases.Caser is stateful, so each
// search builds its own.
type matcher struct {
	caser cases.Caser
}

func newMatcher() *matcher {
	return &matcher{caser: cases.Fold()}
}

func (m *matcher) fold(s string) string {
	return m.caser.String(strings.TrimSpace(s))
}

// contains reports whether needle occurs in haystack ignoring case. An empty
// needle matches everything.
func (m *matcher) contains(haystack, needle string) bool {
	needle = m.fold(needle)
	return needle == "" || strings.Contains(m.fold(haystack), needle)
}

// text reports whether query occurs in any of plain, or in any of local
// directly, as full pinyin or as pinyin initials.
func (m *matcher) text(query string, plain []string, local []string) bool {
	q := m.fold(query)
	if q == "" {
		return true
	}
	for _, s := range plain {
		if strings.Contains(m.fold(s), q) {
			return true
		}
	}
	compact := strings.ReplaceAll(q, " ", "")
	for _, s := range local {
		if s == "" {
			continue
		}
		if strings.Contains(m.fold(s), q) ||
			strings.Contains(romanize(s, pinyin.Normal), compact) ||
			strings.Contains(romanize(s, pinyin.FirstLetter), compact) {
			return true
		}
	}
	return false
}

// romanize spells the Han characters of s in pinyin using style, keeping
// other characters, lower-cased with spaces removed.
func romanize(s string, style int) string {
	a := pinyin.NewArgs()
	a.Style = style
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			if p := pinyin.SinglePinyin(r, a); len(p) > 0 {
				b.WriteString(p[0])
				continue
			}
		}
		if !unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(domain.Day(from)) {
		return false
	}
	if !to.IsZero() && t.After(domain.Day(to)) {
		return false
	}
	return true
}

func taxonNames(t domain.Taxon) (plain, local []string) {
	return []string{t.SpeciesLatin, t.Family, t.Genus, t.CommonName},
		[]string{t.SpeciesLocal, t.FamilyLocal, t.GenusLocal}
}

// SearchCollections returns the collections matching f, ordered by
// collection date then code.
func SearchCollections(view domain.TransactionView, f CollectionFilter) []domain.Collection {
	m := newMatcher()
	var out []domain.Collection
	for _, c := range view.ListCollections() {
		if f.Identified != nil && c.Identification.Identified != *f.Identified {
			continue
		}
		if !inRange(c.CollectionDate, f.From, f.To) ||
			!m.contains(c.Location, f.Location) ||
			!m.contains(c.Collector, f.Collector) ||
			!m.contains(c.Taxon.Family, f.Family) ||
			!m.contains(c.Taxon.Genus, f.Genus) {
			continue
		}
		plain, local := taxonNames(c.Taxon)
		if !m.text(f.Text, append(plain, c.Code), local) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CollectionDate.Equal(out[j].CollectionDate) {
			return out[i].CollectionDate.Before(out[j].CollectionDate)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// SearchCultivations returns the cultivation records matching f, ordered by
// start date then code.
func SearchCultivations(view domain.TransactionView, f CultivationFilter) []domain.CultivationRecord {
	m := newMatcher()
	var out []domain.CultivationRecord
	for _, r := range view.ListCultivationRecords() {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if !inRange(r.StartDate, f.From, f.To) ||
			!m.contains(r.Location, f.Location) ||
			!m.contains(r.Taxon.Family, f.Family) {
			continue
		}
		plain, local := taxonNames(r.Taxon)
		if !m.text(f.Text, append(plain, r.Code), local) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// SearchSeedBatches filters batches by storage date and location.
func SearchSeedBatches(view domain.TransactionView, f SeedBatchFilter) []BatchAvailability {
	m := newMatcher()
	return withAvailability(view, func(b domain.SeedBatch) bool {
		return inRange(b.StorageDate, f.From, f.To) && m.contains(b.StorageLocation, f.StorageLocation)
	})
}

// SearchGerminationRecords filters trials by start date, status and
// treatment.
func SearchGerminationRecords(view domain.TransactionView, f GerminationFilter) []domain.GerminationRecord {
	m := newMatcher()
	var out []domain.GerminationRecord
	for _, g := range view.ListGerminationRecords() {
		if f.Status != "" && g.Status != f.Status {
			continue
		}
		if inRange(g.StartDate, f.From, f.To) && m.contains(g.Treatment, f.Treatment) {
			out = append(out, g)
		}
	}
	return out
}

// UnidentifiedCollections lists collections not yet identified to species.
func UnidentifiedCollections(view domain.TransactionView) []domain.Collection {
	no := false
	return SearchCollections(view, CollectionFilter{Identified: &no})
}

func distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Families returns the distinct families recorded on collections.
func Families(view domain.TransactionView) []string {
	var names []string
	for _, c := range view.ListCollections() {
		names = append(names, c.Taxon.Family)
	}
	return distinct(names)
}

// Genera returns the distinct genera recorded on collections.
func Genera(view domain.TransactionView) []string {
	var names []string
	for _, c := range view.ListCollections() {
		names = append(names, c.Taxon.Genus)
	}
	return distinct(names)
}

// FruitingAlive lists living cultivation records that have fruited, the
// candidates for seed harvest.
func FruitingAlive(view domain.TransactionView) []domain.CultivationRecord {
	var out []domain.CultivationRecord
	for _, r := range view.ListCultivationRecords() {
		if r.Fruiting && !r.IsDead() {
			out = append(out, r)
		}
	}
	return out
}
