// Package analysis orchestrates the five bond market analyses:
// filter → query text → (live execution or fallback aggregation) →
// cached result. Each analysis has exactly one definition shared by
// both paths, so the live SQL and the in-memory aggregation cannot
// drift apart silently.
package analysis

import (
	"muniquery/internal/fallback"
	"muniquery/internal/filter"
	"muniquery/internal/query"
	"muniquery/pkg/contracts/domain"
)

// ID identifies one of the five analyses.
type ID string

const (
	TopTraded       ID = "top_traded"
	Hotspots        ID = "state_purpose_hotspots"
	RatingMigration ID = "rating_migration"
	MonthlyTrend    ID = "monthly_trend"
	CouponSpread    ID = "coupon_spread"
)

// Definition is the single shared specification of one analysis: its
// identity, result columns, SQL builder for the live path and
// aggregator for the fallback path.
type Definition struct {
	ID      ID
	Title   string
	Columns []string

	BuildSQL func(*query.Builder, *filter.Set) string
	Compute  func(*fallback.Store, *filter.Set) *domain.ResultSet
}

// Definitions returns the five analyses in presentation order.
func Definitions() []Definition {
	return []Definition{
		{
			ID:       TopTraded,
			Title:    "Top traded bonds with issuer & purpose",
			Columns:  query.TopTradedColumns,
			BuildSQL: (*query.Builder).TopTradedBonds,
			Compute:  (*fallback.Store).TopTradedBonds,
		},
		{
			ID:       Hotspots,
			Title:    "State-purpose hotspots",
			Columns:  query.HotspotColumns,
			BuildSQL: (*query.Builder).StatePurposeHotspots,
			Compute:  (*fallback.Store).StatePurposeHotspots,
		},
		{
			ID:       RatingMigration,
			Title:    "Rating migration monitor",
			Columns:  query.RatingColumns,
			BuildSQL: (*query.Builder).RatingMigration,
			Compute:  (*fallback.Store).RatingMigration,
		},
		{
			ID:       MonthlyTrend,
			Title:    "Monthly trade trendline",
			Columns:  query.MonthlyTrendColumns,
			BuildSQL: (*query.Builder).MonthlyTrend,
			Compute:  (*fallback.Store).MonthlyTrend,
		},
		{
			ID:       CouponSpread,
			Title:    "Coupon spread vs 10Y Treasury",
			Columns:  query.CouponSpreadColumns,
			BuildSQL: (*query.Builder).CouponSpread,
			Compute:  (*fallback.Store).CouponSpread,
		},
	}
}

// Lookup returns the definition for id, or false when unknown.
func Lookup(id ID) (Definition, bool) {
	for _, def := range Definitions() {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}
