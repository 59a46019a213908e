package query

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"plantledger/internal/config"
	"plantledger/internal/logger"
	"plantledger/pkg/domain"
)

// Reporter serves reports over a store. Results are cached per store
// version, so a commit invalidates them without explicit eviction, and
// concurrent requests for the same report share one computation.
type Reporter struct {
	store              domain.PersistentStore
	cache              *cache.Cache
	group              singleflight.Group
	now                func() time.Time
	log                logger.Logger
	survivalAgeDays    int
	survivalMinRecords int
}

// ReporterOption customizes a Reporter.
type ReporterOption func(*Reporter)

// WithClock sets the time source used for age-based reports.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *Reporter) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger; the reporter logs under the "query" module.
func WithLogger(log logger.Logger) ReporterOption {
	return func(r *Reporter) {
		if log != nil {
			r.log = log
		}
	}
}

// NewReporter builds a reporter over store tuned by cfg. A zero
// ReportCacheTTL falls back to one minute.
func NewReporter(store domain.PersistentStore, cfg config.LedgerConfig, opts ...ReporterOption) *Reporter {
	ttl := cfg.ReportCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	r := &Reporter{
		store:              store,
		cache:              cache.New(ttl, ttl*2),
		now:                time.Now,
		log:                logger.NewDiscard(),
		survivalAgeDays:    cfg.SurvivalAgeDays,
		survivalMinRecords: cfg.SurvivalMinRecords,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Module("query")
	return r
}

// cached returns the report named key for the current store version,
// computing it at most once per version.
func cached[T any](ctx context.Context, r *Reporter, key string, compute func(domain.TransactionView) (T, error)) (T, error) {
	cacheKey := fmt.Sprintf("%s@%d", key, r.store.Version())
	if v, found := r.cache.Get(cacheKey); found {
		if out, ok := v.(T); ok {
			r.log.Debug("report cache hit", logger.String("report", cacheKey))
			return out, nil
		}
	}

	v, err, shared := r.group.Do(cacheKey, func() (any, error) {
		var out T
		err := r.store.View(ctx, func(view domain.TransactionView) error {
			var err error
			out, err = compute(view)
			return err
		})
		if err != nil {
			return nil, err
		}
		r.cache.Set(cacheKey, out, cache.DefaultExpiration)
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, fmt.Errorf("report %s: %w", key, err)
	}
	r.log.Debug("report computed", logger.String("report", cacheKey), logger.Bool("shared", shared))
	return v.(T), nil
}

func plain[T any](fn func(domain.TransactionView) T) func(domain.TransactionView) (T, error) {
	return func(view domain.TransactionView) (T, error) { return fn(view), nil }
}

// Overview returns record counts.
func (r *Reporter) Overview(ctx context.Context) (OverviewStats, error) {
	return cached(ctx, r, "overview", plain(Overview))
}

// AvailableBatches returns batches with seed left.
func (r *Reporter) AvailableBatches(ctx context.Context) ([]BatchAvailability, error) {
	return cached(ctx, r, "available", plain(ListSeedBatchesWithAvailability))
}

// GerminationStats returns the completed-trial rate distribution.
func (r *Reporter) GerminationStats(ctx context.Context) (GerminationSummary, error) {
	return cached(ctx, r, "germination", plain(GerminationStats))
}

// TaxonCounts returns the top n families and genera.
func (r *Reporter) TaxonCounts(ctx context.Context, n int) (TaxonomySummary, error) {
	return cached(ctx, r, fmt.Sprintf("taxa:%d", n), plain(func(v domain.TransactionView) TaxonomySummary {
		return TaxonCounts(v, n)
	}))
}

// EventCountsByMonth returns cultivation events per month and type.
func (r *Reporter) EventCountsByMonth(ctx context.Context) ([]MonthEvents, error) {
	return cached(ctx, r, "events", plain(EventCountsByMonth))
}

// SurvivalByLocation applies the configured age and record thresholds as of
// today.
func (r *Reporter) SurvivalByLocation(ctx context.Context) ([]LocationSurvival, error) {
	now := r.now()
	key := "survival:" + domain.Day(now).Format(domain.DateLayout)
	return cached(ctx, r, key, plain(func(v domain.TransactionView) []LocationSurvival {
		return SurvivalByLocation(v, now, r.survivalAgeDays, r.survivalMinRecords)
	}))
}

// Lineage returns the upstream chain of the record with code. Lineage is not
// cached.
func (r *Reporter) Lineage(ctx context.Context, code string) ([]LineageStep, error) {
	var out []LineageStep
	err := r.store.View(ctx, func(view domain.TransactionView) error {
		var err error
		out, err = LineageOf(view, code)
		return err
	})
	return out, err
}

// SearchCollections runs an uncached collection search.
func (r *Reporter) SearchCollections(ctx context.Context, f CollectionFilter) ([]domain.Collection, error) {
	var out []domain.Collection
	err := r.store.View(ctx, func(view domain.TransactionView) error {
		out = SearchCollections(view, f)
		return nil
	})
	return out, err
}

// SearchCultivations runs an uncached cultivation search.
func (r *Reporter) SearchCultivations(ctx context.Context, f CultivationFilter) ([]domain.CultivationRecord, error) {
	var out []domain.CultivationRecord
	err := r.store.View(ctx, func(view domain.TransactionView) error {
		out = SearchCultivations(view, f)
		return nil
	})
	return out, err
}

// Flush drops every cached report.
func (r *Reporter) Flush() {
	r.cache.Flush()
}
