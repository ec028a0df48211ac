package query

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muniquery/internal/filter"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testBuilder() *Builder {
	return NewBuilder(500, 10)
}

func openFilter() *filter.Set {
	return &filter.Set{RowLimit: 20}
}

func windowFilter() *filter.Set {
	return &filter.Set{
		DateFrom: day("2024-01-01"),
		DateTo:   day("2024-06-30"),
		States:   []string{"FL", "NY"},
		RowLimit: 50,
	}
}

// allQueries runs every builder against the same filter.
func allQueries(b *Builder, f *filter.Set) map[string]string {
	return map[string]string{
		"top_traded":             b.TopTradedBonds(f),
		"state_purpose_hotspots": b.StatePurposeHotspots(f),
		"rating_migration":       b.RatingMigration(f),
		"monthly_trend":          b.MonthlyTrend(f),
		"coupon_spread":          b.CouponSpread(f),
	}
}

func TestEveryQueryEndsWithLimit(t *testing.T) {
	b := testBuilder()
	for name, sql := range allQueries(b, windowFilter()) {
		assert.True(t, strings.HasSuffix(sql, "LIMIT 50;"), "%s: %q", name, sql)
	}
	for name, sql := range allQueries(b, openFilter()) {
		assert.True(t, strings.HasSuffix(sql, "LIMIT 20;"), name)
	}
}

func TestOpenFilterHasNoPredicates(t *testing.T) {
	b := testBuilder()
	for name, sql := range allQueries(b, openFilter()) {
		if name == "coupon_spread" {
			// The coupon query always filters out NULL coupons and the
			// indicator series name.
			assert.Contains(t, sql, "b.coupon_rate IS NOT NULL", name)
			continue
		}
		assert.NotContains(t, sql, "WHERE", name)
		assert.NotContains(t, sql, "BETWEEN", name)
	}
}

func TestDatePredicateRendering(t *testing.T) {
	b := testBuilder()
	f := windowFilter()

	sql := b.TopTradedBonds(f)
	assert.Contains(t, sql, "t.trade_date BETWEEN '2024-01-01' AND '2024-06-30'")

	// The migration query bounds rating dates, not trade dates.
	migration := b.RatingMigration(f)
	assert.Contains(t, migration, "cr.rating_date BETWEEN '2024-01-01' AND '2024-06-30'")
	assert.NotContains(t, migration, "t.trade_date")
}

func TestStatePredicateRendering(t *testing.T) {
	b := testBuilder()
	sql := b.TopTradedBonds(windowFilter())
	assert.Contains(t, sql, "i.state_code IN ('FL', 'NY')")
}

func TestIdenticalFiltersYieldIdenticalText(t *testing.T) {
	b := testBuilder()
	first := allQueries(b, windowFilter())
	second := allQueries(b, windowFilter())
	for name := range first {
		assert.Equal(t, first[name], second[name], name)
	}
}

func TestTopTradedBondsShape(t *testing.T) {
	sql := testBuilder().TopTradedBonds(openFilter())

	assert.Contains(t, sql, "COALESCE(p.code, 'UNSPEC') AS purpose_category")
	assert.Contains(t, sql, "ROUND(AVG(t.price), 2)")
	assert.Contains(t, sql, "SUM(t.quantity)")
	assert.Contains(t, sql, "LEFT JOIN bond_purposes p")
	assert.Contains(t, sql, "ORDER BY total_quantity DESC, avg_trade_price DESC")
}

func TestHotspotsThreshold(t *testing.T) {
	sql := testBuilder().StatePurposeHotspots(openFilter())
	assert.Contains(t, sql, "HAVING SUM(t.quantity) >= 500")
	assert.Contains(t, sql, "COUNT(DISTINCT b.bond_id)")

	custom := NewBuilder(750, 10).StatePurposeHotspots(openFilter())
	assert.Contains(t, custom, "HAVING SUM(t.quantity) >= 750")
}

func TestRatingMigrationShape(t *testing.T) {
	sql := testBuilder().RatingMigration(openFilter())

	// Both window ranks break date ties by rating code so the pick is
	// deterministic.
	assert.Contains(t, sql, "ORDER BY cr.rating_date DESC, cr.rating_code ASC")
	assert.Contains(t, sql, "ORDER BY cr.rating_date ASC, cr.rating_code ASC")

	// The HAVING clause repeats the full aggregate expressions; aliases
	// are not visible there.
	assert.Contains(t, sql, "HAVING MAX(CASE WHEN rn_desc = 1 THEN rating_code END) <> MAX(CASE WHEN rn_asc = 1 THEN rating_code END)")

	// Migrations order by bond id so the rows surviving the limit match
	// the fallback computation.
	assert.Contains(t, sql, "ORDER BY bond_id\nLIMIT")
}

func TestMonthlyTrendJoinsOnlyWhenStateFiltered(t *testing.T) {
	b := testBuilder()

	plain := b.MonthlyTrend(openFilter())
	assert.NotContains(t, plain, "JOIN")
	assert.Contains(t, plain, "TO_CHAR(t.trade_date, 'YYYY-MM')")
	assert.Contains(t, plain, "ORDER BY trade_month")

	filtered := b.MonthlyTrend(&filter.Set{States: []string{"FL"}, RowLimit: 20})
	assert.Contains(t, filtered, "JOIN issuers i")
	assert.Contains(t, filtered, "i.state_code IN ('FL')")
}

func TestCouponSpreadShape(t *testing.T) {
	sql := testBuilder().CouponSpread(openFilter())

	assert.Contains(t, sql, "WHERE indicator_name = 'TREASURY_10YR'")
	assert.Contains(t, sql, "DATE_TRUNC('MONTH', period_start_date)")
	assert.Contains(t, sql, "ten_yr.period_month = DATE_TRUNC('MONTH', t.trade_date)")
	assert.Contains(t, sql, "HAVING COUNT(*) >= 10")
	assert.Contains(t, sql, "ORDER BY avg_coupon_spread DESC")

	custom := NewBuilder(500, 25).CouponSpread(openFilter())
	assert.Contains(t, custom, "HAVING COUNT(*) >= 25")
}

func TestMetadataQueries(t *testing.T) {
	bounds := TradeDateBounds()
	assert.Contains(t, bounds, "MIN(trade_date)")
	assert.Contains(t, bounds, "MAX(trade_date)")

	states := DistinctStates()
	assert.Contains(t, states, "DISTINCT state_code")
	assert.Contains(t, states, "ORDER BY state_code")
}

func TestSingleStatementPerQuery(t *testing.T) {
	b := testBuilder()
	for name, sql := range allQueries(b, windowFilter()) {
		require.Equal(t, 1, strings.Count(sql, ";"), name)
		assert.True(t, strings.HasSuffix(sql, ";"), name)
	}
}

func ExampleBuilder_MonthlyTrend() {
	b := NewBuilder(500, 10)
	sql := b.MonthlyTrend(&filter.Set{RowLimit: 20})
	fmt.Println(strings.Split(sql, "\n")[0])
	// Output: SELECT
}
