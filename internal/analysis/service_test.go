package analysis

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muniquery/internal/config"
	"muniquery/internal/datasource"
	apperrors "muniquery/internal/errors"
	"muniquery/internal/fallback"
	"muniquery/internal/filter"
	"muniquery/internal/query"
	"muniquery/pkg/contracts/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		Analysis: config.AnalysisConfig{
			HotspotMinQuantity: 100,
			SpreadMinTrades:    1,
			DefaultRowLimit:    20,
		},
		Cache: config.CacheConfig{
			ResultTTL:   5 * time.Minute,
			MetadataTTL: 30 * time.Minute,
			MaxEntries:  64,
		},
	}
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func newTestStore(t *testing.T) *fallback.Store {
	t.Helper()
	dir := t.TempDir()

	writeCSV(t, dir, config.IssuersFile,
		"issuer_id,name,state_code\nI1,Gator City,FL\nI2,Empire Authority,NY\n")
	writeCSV(t, dir, config.BondPurposesFile,
		"purpose_id,code\nP1,SCHOOL\n")
	writeCSV(t, dir, config.BondsFile,
		"bond_id,issuer_id,purpose_id,coupon_rate,issue_date,maturity_date\n"+
			"B1,I1,P1,4.0,2015-01-01,2035-01-01\n"+
			"B2,I2,,5.0,2010-06-01,2030-06-01\n")
	writeCSV(t, dir, config.TradesFile,
		"bond_id,trade_date,price,quantity\n"+
			"B1,2024-01-10,99.5,100\n"+
			"B1,2024-01-15,100.0,150\n"+
			"B2,2024-02-05,98.0,80\n")
	writeCSV(t, dir, config.CreditRatingsFile,
		"bond_id,rating_code,rating_date\n"+
			"B1,A,2020-01-01\n"+
			"B1,BBB,2023-06-01\n")
	writeCSV(t, dir, config.EconomicIndicatorsFile,
		"indicator_name,geo_code,period_start_date,value\n"+
			"TREASURY_10YR,FL,2024-01-01,3.5\n"+
			"TREASURY_10YR,NY,2024-02-01,3.4\n")

	store, err := fallback.Load(&config.Paths{DataDir: dir}, testConfig().Analysis, testLogger())
	require.NoError(t, err)
	return store
}

func newFallbackService(t *testing.T) *Service {
	t.Helper()
	return NewFallback(newTestStore(t), testConfig(), testLogger())
}

// stubExecutor scripts the live path: metadata queries answer from
// canned results, everything else returns a fixed result or error.
type stubExecutor struct {
	results map[string]*domain.ResultSet
	fall    *domain.ResultSet
	err     error
	calls   int
}

func (s *stubExecutor) Execute(_ context.Context, sql string) (*domain.ResultSet, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.results[sql]; ok {
		return r, nil
	}
	return s.fall, nil
}

func (s *stubExecutor) Close() {}

func newStubExecutor() *stubExecutor {
	dates := domain.NewResultSet("min_date", "max_date")
	dates.Append(domain.Row{
		"min_date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		"max_date": time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	states := domain.NewResultSet("state_code")
	states.Append(domain.Row{"state_code": "FL"})
	states.Append(domain.Row{"state_code": "NY"})

	answer := domain.NewResultSet("bond_id")
	answer.Append(domain.Row{"bond_id": "B1"})

	return &stubExecutor{
		results: map[string]*domain.ResultSet{
			query.TradeDateBounds(): dates,
			query.DistinctStates():  states,
		},
		fall: answer,
	}
}

func TestRunFallback(t *testing.T) {
	svc := newFallbackService(t)
	require.False(t, svc.Live())

	result, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.NoError(t, err)

	assert.Equal(t, TopTraded, result.ID)
	assert.Equal(t, SourceFallback, result.Source)
	assert.NotEmpty(t, result.SQL)
	require.Equal(t, 2, result.Data.Len())
	assert.Equal(t, "B1", result.Data.Rows[0]["bond_id"])
	assert.Equal(t, int64(250), result.Data.Rows[0]["total_quantity"])
}

func TestRunOnEmptyStore(t *testing.T) {
	// A freshly provisioned dataset has no trades, so no observed date
	// bounds exist. Every analysis must still answer with an empty
	// result set instead of rejecting the default filter.
	dir := t.TempDir()
	writeCSV(t, dir, config.IssuersFile, "issuer_id,name,state_code\n")
	writeCSV(t, dir, config.BondPurposesFile, "purpose_id,code\n")
	writeCSV(t, dir, config.BondsFile, "bond_id,issuer_id,purpose_id,coupon_rate,issue_date,maturity_date\n")
	writeCSV(t, dir, config.TradesFile, "bond_id,trade_date,price,quantity\n")
	writeCSV(t, dir, config.CreditRatingsFile, "bond_id,rating_code,rating_date\n")
	writeCSV(t, dir, config.EconomicIndicatorsFile, "indicator_name,geo_code,period_start_date,value\n")

	store, err := fallback.Load(&config.Paths{DataDir: dir}, testConfig().Analysis, testLogger())
	require.NoError(t, err)
	svc := NewFallback(store, testConfig(), testLogger())

	for _, def := range Definitions() {
		result, err := svc.Run(context.Background(), def.ID, filter.Params{})
		require.NoError(t, err, def.ID)
		assert.Equal(t, 0, result.Data.Len(), def.ID)
		assert.Equal(t, def.Columns, result.Data.Columns, def.ID)
	}
}

func TestRunUsesConfiguredRowLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.DefaultRowLimit = 50
	svc := NewFallback(newTestStore(t), cfg, testLogger())

	result, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "LIMIT 50;")

	// An explicit limit in the request still wins.
	result, err = svc.Run(context.Background(), TopTraded, filter.Params{RowLimit: 15})
	require.NoError(t, err)
	assert.Contains(t, result.SQL, "LIMIT 15;")
}

func TestRunEveryDefinition(t *testing.T) {
	svc := newFallbackService(t)
	for _, def := range Definitions() {
		result, err := svc.Run(context.Background(), def.ID, filter.Params{})
		require.NoError(t, err, def.ID)
		assert.Equal(t, def.Columns, result.Data.Columns, def.ID)
	}
}

func TestRunUnknownAnalysis(t *testing.T) {
	svc := newFallbackService(t)

	_, err := svc.Run(context.Background(), ID("bogus"), filter.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidFilterSet(err))
}

func TestRunInvalidFilter(t *testing.T) {
	svc := newFallbackService(t)

	_, err := svc.Run(context.Background(), TopTraded, filter.Params{RowLimit: 7})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidFilterSet(err))
}

func TestRunCachesIdenticalRequests(t *testing.T) {
	svc := newFallbackService(t)

	first, err := svc.Run(context.Background(), MonthlyTrend, filter.Params{})
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), MonthlyTrend, filter.Params{})
	require.NoError(t, err)

	assert.Same(t, first.Data, second.Data)
}

func TestBoundsFromFallbackStore(t *testing.T) {
	svc := newFallbackService(t)

	bounds, err := svc.Bounds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", bounds.MinDate.Format("2006-01-02"))
	assert.Equal(t, "2024-02-05", bounds.MaxDate.Format("2006-01-02"))
	assert.Equal(t, []string{"FL", "NY"}, bounds.KnownStates)
}

func TestMaturityProfileFallbackOnly(t *testing.T) {
	svc := newFallbackService(t)

	profile, err := svc.MaturityProfile(context.Background(), filter.Params{})
	require.NoError(t, err)
	assert.Equal(t, 3, profile.Len())

	live := NewLive(newStubExecutor(), testConfig(), testLogger())
	_, err = live.MaturityProfile(context.Background(), filter.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.IsQueryExecutionFailed(err))
}

func TestRunLive(t *testing.T) {
	exec := newStubExecutor()
	svc := NewLive(exec, testConfig(), testLogger())
	require.True(t, svc.Live())

	result, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.NoError(t, err)
	assert.Equal(t, SourceLive, result.Source)
	assert.Equal(t, "B1", result.Data.Rows[0]["bond_id"])
}

func TestRunLiveCachesMetadata(t *testing.T) {
	exec := newStubExecutor()
	svc := NewLive(exec, testConfig(), testLogger())

	_, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.NoError(t, err)
	after := exec.calls

	// The second run reuses the cached metadata and the cached result;
	// no further executor round trips happen.
	_, err = svc.Run(context.Background(), TopTraded, filter.Params{})
	require.NoError(t, err)
	assert.Equal(t, after, exec.calls)
}

func TestRunLiveExecutionFailure(t *testing.T) {
	exec := &stubExecutor{err: apperrors.NewQueryExecutionFailed("source rejected query", nil)}
	svc := NewLive(exec, testConfig(), testLogger())

	_, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.IsQueryExecutionFailed(err))
}

func TestRunLiveUnavailableSource(t *testing.T) {
	svc := NewLive(&datasource.Unavailable{}, testConfig(), testLogger())

	_, err := svc.Run(context.Background(), TopTraded, filter.Params{})
	require.Error(t, err)
	assert.True(t, apperrors.IsDataSourceUnavailable(err))
}

func TestLookup(t *testing.T) {
	def, ok := Lookup(CouponSpread)
	require.True(t, ok)
	assert.Equal(t, CouponSpread, def.ID)
	assert.NotNil(t, def.BuildSQL)
	assert.NotNil(t, def.Compute)

	_, ok = Lookup(ID("nope"))
	assert.False(t, ok)
}

func TestDefinitionsOrder(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, 5)
	assert.Equal(t, TopTraded, defs[0].ID)
	assert.Equal(t, CouponSpread, defs[4].ID)
}
