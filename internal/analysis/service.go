package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"muniquery/internal/cache"
	"muniquery/internal/config"
	"muniquery/internal/datasource"
	apperrors "muniquery/internal/errors"
	"muniquery/internal/fallback"
	"muniquery/internal/filter"
	"muniquery/internal/query"
	"muniquery/pkg/contracts/domain"
)

// Source names the data path serving a result.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Result is one executed analysis: the generated SQL, the rows, and
// the path that produced them.
type Result struct {
	ID      ID                `json:"id"`
	Title   string            `json:"title"`
	SQL     string            `json:"sql"`
	Source  Source            `json:"source"`
	Data    *domain.ResultSet `json:"data"`
	Elapsed time.Duration     `json:"elapsed_ns"`
}

// Service resolves filters to analysis results. The choice between
// the live executor and the fallback store is made once at
// construction and never changes per query.
type Service struct {
	builder         *query.Builder
	executor        datasource.Executor
	store           *fallback.Store
	live            bool
	defaultRowLimit int

	resultCache   *cache.Cache
	metadataCache *cache.Cache

	logger *slog.Logger
}

// NewLive creates a service backed by the live data source.
func NewLive(executor datasource.Executor, cfg config.Config, logger *slog.Logger) *Service {
	return newService(executor, nil, true, cfg, logger)
}

// NewFallback creates a service backed by the in-memory CSV store.
func NewFallback(store *fallback.Store, cfg config.Config, logger *slog.Logger) *Service {
	return newService(nil, store, false, cfg, logger)
}

func newService(executor datasource.Executor, store *fallback.Store, live bool, cfg config.Config, logger *slog.Logger) *Service {
	return &Service{
		builder:         query.NewBuilder(cfg.Analysis.HotspotMinQuantity, cfg.Analysis.SpreadMinTrades),
		executor:        executor,
		store:           store,
		live:            live,
		defaultRowLimit: cfg.Analysis.DefaultRowLimit,
		resultCache:     cache.New(cfg.Cache.ResultTTL, cfg.Cache.MaxEntries),
		metadataCache:   cache.New(cfg.Cache.MetadataTTL, cfg.Cache.MaxEntries),
		logger:          logger.With(slog.String("component", "analysis")),
	}
}

// Live reports which path the service was wired to at startup. The
// capability is fixed for the process lifetime; callers needing live
// data must not expect silent failover.
func (s *Service) Live() bool {
	return s.live
}

// Run executes one analysis for the given raw filter selections.
func (s *Service) Run(ctx context.Context, id ID, params filter.Params) (*Result, error) {
	def, ok := Lookup(id)
	if !ok {
		return nil, apperrors.NewInvalidFilterSet(fmt.Sprintf("unknown analysis %q", id), nil)
	}

	bounds, err := s.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	f, err := filter.New(params, bounds)
	if err != nil {
		return nil, err
	}

	sql := def.BuildSQL(s.builder, f)

	start := time.Now()
	data, err := s.cached(s.resultCache, sql, func() (*domain.ResultSet, error) {
		if s.live {
			return s.executor.Execute(ctx, sql)
		}
		return def.Compute(s.store, f), nil
	})
	if err != nil {
		executionErrorsTotal.WithLabelValues(string(def.ID)).Inc()
		return nil, err
	}
	executionsTotal.WithLabelValues(string(def.ID), string(s.source())).Inc()

	elapsed := time.Since(start)
	s.logger.InfoContext(ctx, "analysis executed",
		slog.String("analysis", string(def.ID)),
		slog.String("source", string(s.source())),
		slog.Int("rows", data.Len()),
		slog.Duration("elapsed", elapsed))

	return &Result{
		ID:      def.ID,
		Title:   def.Title,
		SQL:     sql,
		Source:  s.source(),
		Data:    data,
		Elapsed: elapsed,
	}, nil
}

// Bounds returns the observed dataset extent the filter model needs,
// cached under the longer metadata window.
func (s *Service) Bounds(ctx context.Context) (filter.Bounds, error) {
	dates, err := s.cached(s.metadataCache, query.TradeDateBoundsKey, func() (*domain.ResultSet, error) {
		if s.live {
			return s.executor.Execute(ctx, query.TradeDateBounds())
		}
		return s.store.TradeDateBounds(), nil
	})
	if err != nil {
		return filter.Bounds{}, err
	}

	states, err := s.cached(s.metadataCache, query.DistinctStatesKey, func() (*domain.ResultSet, error) {
		if s.live {
			return s.executor.Execute(ctx, query.DistinctStates())
		}
		return s.store.DistinctStates(), nil
	})
	if err != nil {
		return filter.Bounds{}, err
	}

	bounds := filter.Bounds{DefaultRowLimit: s.defaultRowLimit}
	if !dates.Empty() {
		bounds.MinDate = asTime(dates.Rows[0]["min_date"])
		bounds.MaxDate = asTime(dates.Rows[0]["max_date"])
	}
	for _, row := range states.Rows {
		if state, ok := row["state_code"].(string); ok && state != "" {
			bounds.KnownStates = append(bounds.KnownStates, state)
		}
	}
	return bounds, nil
}

// MaturityProfile serves the derived per-trade maturity table. Only
// the fallback path computes it; the live queries never select this
// field and the asymmetry is intentional.
func (s *Service) MaturityProfile(ctx context.Context, params filter.Params) (*domain.ResultSet, error) {
	if s.live {
		return nil, apperrors.NewQueryExecutionFailed("maturity profile is derived only by the fallback data path", nil)
	}

	bounds, err := s.Bounds(ctx)
	if err != nil {
		return nil, err
	}
	f, err := filter.New(params, bounds)
	if err != nil {
		return nil, err
	}
	return s.cached(s.resultCache, maturityProfileKey(f), func() (*domain.ResultSet, error) {
		return s.store.MaturityProfile(f), nil
	})
}

// cached runs compute through the given cache, recording hit/miss
// metrics. Duplicate concurrent misses share one computation.
func (s *Service) cached(c *cache.Cache, key string, compute func() (*domain.ResultSet, error)) (*domain.ResultSet, error) {
	computed := false
	result, err := c.GetOrCompute(key, func() (*domain.ResultSet, error) {
		computed = true
		return compute()
	})
	if err != nil {
		return nil, err
	}
	if computed {
		cacheMissesTotal.Inc()
	} else {
		cacheHitsTotal.Inc()
	}
	return result, nil
}

func (s *Service) source() Source {
	if s.live {
		return SourceLive
	}
	return SourceFallback
}

// maturityProfileKey keys the derived table by its filter, since no
// query text exists for the fallback-only computation.
func maturityProfileKey(f *filter.Set) string {
	return fmt.Sprintf("fallback:maturity_profile:%s:%s:%v:%d",
		f.DateFrom.Format(domain.DateLayout), f.DateTo.Format(domain.DateLayout), f.States, f.RowLimit)
}

func asTime(v interface{}) time.Time {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return time.Time{}
}
