package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muniquery/internal/analysis"
	"muniquery/internal/config"
	"muniquery/internal/fallback"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{
			RateLimitRPS:   1000,
			RateLimitBurst: 1000,
		},
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

func newTestService(t *testing.T) *analysis.Service {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	write(config.IssuersFile, "issuer_id,name,state_code\nI1,Gator City,FL\n")
	write(config.BondPurposesFile, "purpose_id,code\nP1,SCHOOL\n")
	write(config.BondsFile,
		"bond_id,issuer_id,purpose_id,coupon_rate,issue_date,maturity_date\n"+
			"B1,I1,P1,4.0,2015-01-01,2035-01-01\n")
	write(config.TradesFile,
		"bond_id,trade_date,price,quantity\n"+
			"B1,2024-01-10,99.5,100\n"+
			"B1,2024-01-15,100.0,150\n")
	write(config.CreditRatingsFile,
		"bond_id,rating_code,rating_date\nB1,A,2020-01-01\nB1,BBB,2023-06-01\n")
	write(config.EconomicIndicatorsFile,
		"indicator_name,geo_code,period_start_date,value\nTREASURY_10YR,FL,2024-01-01,3.5\n")

	cfg := testConfig()
	store, err := fallback.Load(&config.Paths{DataDir: dir}, cfg.Analysis, testLogger())
	require.NoError(t, err)
	return analysis.NewFallback(store, cfg, testLogger())
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(newTestService(t), testConfig().Server, testLogger())
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestListAnalyses(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses")
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []analysisSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 5)
	assert.Equal(t, analysis.TopTraded, summaries[0].ID)
	assert.NotEmpty(t, summaries[0].Columns)
}

func TestRunAnalysis(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/top_traded")
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, analysis.TopTraded, result.ID)
	assert.Equal(t, analysis.SourceFallback, result.Source)
	assert.Contains(t, result.SQL, "SELECT")
	require.Equal(t, 1, result.Data.Len())
	assert.Equal(t, "B1", result.Data.Rows[0]["bond_id"])
}

func TestRunAnalysisWithFilters(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/monthly_trend?from=2024-01-10&to=2024-01-15&states=fl&limit=50")
	require.Equal(t, http.StatusOK, w.Code)

	var result analysis.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Contains(t, result.SQL, "BETWEEN '2024-01-10' AND '2024-01-15'")
	assert.Contains(t, result.SQL, "LIMIT 50;")
}

func TestRunAnalysisUnknownID(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/bogus")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_FILTER_SET")
}

func TestRunAnalysisMalformedDate(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/top_traded?from=01-10-2024&to=2024-12-31")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"from"`)
}

func TestRunAnalysisMalformedLimit(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/top_traded?limit=all")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"limit"`)
}

func TestDownloadCSV(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses/top_traded/csv")
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="top_traded.csv"`)

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "bond_id,issuer_name,state,purpose_category,avg_trade_price,total_quantity", lines[0])
	assert.Equal(t, "B1,Gator City,FL,SCHOOL,99.75,250", lines[1])
}

func TestGetMetadata(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/metadata")
	require.Equal(t, http.StatusOK, w.Code)

	var resp metadataResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Live)
	assert.Equal(t, "2024-01-10", resp.MinDate)
	assert.Equal(t, "2024-01-15", resp.MaxDate)
	assert.Equal(t, []string{"FL"}, resp.States)
	assert.Equal(t, 10, resp.RowLimit.Min)
	assert.Equal(t, 200, resp.RowLimit.Max)
	assert.Equal(t, 20, resp.RowLimit.Default)
}

func TestGetMaturityProfile(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/maturity-profile")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "years_to_maturity")
}

func TestHealthz(t *testing.T) {
	w := get(t, newTestRouter(t), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","source":"fallback"}`, w.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	w := get(t, newTestRouter(t), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRequestIDPropagation(t *testing.T) {
	w := get(t, newTestRouter(t), "/api/analyses")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
