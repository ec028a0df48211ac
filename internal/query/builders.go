// Package query builds the parameterized SQL text for the five bond
// market analyses. Each builder is a pure function of a filter set.
// Filter values are interpolated only after allow-list validation by
// the filter package: state codes match ^[A-Z]{2}$ and the known-state
// set, dates are rendered from time.Time values, limits are bounded
// integers. Free-form user text never reaches the query string.
package query

import (
	"fmt"
	"strings"

	"muniquery/internal/filter"
	"muniquery/pkg/contracts/domain"
)

// Builder produces the SQL text for each analysis. Thresholds are
// fixed at construction so identical filters always yield identical
// query text.
type Builder struct {
	// HotspotMinQuantity is the HAVING floor on summed quantity for
	// the state-purpose hotspot analysis.
	HotspotMinQuantity int64
	// SpreadMinTrades is the HAVING floor on trade count for the
	// coupon spread analysis.
	SpreadMinTrades int
}

// NewBuilder creates a Builder with the given thresholds.
func NewBuilder(hotspotMinQuantity int64, spreadMinTrades int) *Builder {
	return &Builder{
		HotspotMinQuantity: hotspotMinQuantity,
		SpreadMinTrades:    spreadMinTrades,
	}
}

// TopTradedBonds builds the top traded bonds query: per-bond summed
// quantity and rounded mean price with issuer and purpose context,
// heaviest flow first.
func (b *Builder) TopTradedBonds(f *filter.Set) string {
	var sb strings.Builder
	sb.WriteString(`SELECT
  b.bond_id,
  i.name        AS issuer_name,
  i.state_code  AS state,
  COALESCE(p.code, 'UNSPEC') AS purpose_category,
  ROUND(AVG(t.price), 2)     AS avg_trade_price,
  SUM(t.quantity)            AS total_quantity
FROM trades t
JOIN bonds b          ON t.bond_id  = b.bond_id
JOIN issuers i        ON b.issuer_id = i.issuer_id
LEFT JOIN bond_purposes p ON b.purpose_id = p.purpose_id
`)
	writeWhere(&sb, tradeDatePredicate(f), statePredicate(f))
	sb.WriteString(`GROUP BY b.bond_id, issuer_name, state, purpose_category
ORDER BY total_quantity DESC, avg_trade_price DESC
`)
	writeLimit(&sb, f)
	return sb.String()
}

// StatePurposeHotspots builds the state-purpose hotspot query. Groups
// with summed quantity below HotspotMinQuantity are dropped.
func (b *Builder) StatePurposeHotspots(f *filter.Set) string {
	var sb strings.Builder
	sb.WriteString(`SELECT
  i.state_code                       AS state,
  COALESCE(p.code, 'UNSPEC')         AS purpose_category,
  COUNT(DISTINCT b.bond_id)          AS bonds_traded,
  SUM(t.quantity)                    AS total_quantity,
  ROUND(AVG(t.price), 2)             AS avg_trade_price
FROM trades t
JOIN bonds b          ON t.bond_id  = b.bond_id
JOIN issuers i        ON b.issuer_id = i.issuer_id
LEFT JOIN bond_purposes p ON b.purpose_id = p.purpose_id
`)
	writeWhere(&sb, tradeDatePredicate(f), statePredicate(f))
	fmt.Fprintf(&sb, `GROUP BY state, purpose_category
HAVING SUM(t.quantity) >= %d
ORDER BY total_quantity DESC
`, b.HotspotMinQuantity)
	writeLimit(&sb, f)
	return sb.String()
}

// RatingMigration builds the rating migration query: bonds whose
// latest rating code differs from their first. Ratings are ranked by
// date within each bond in both directions; ratings sharing an extreme
// date are ordered by rating_code ascending so the pick is
// deterministic.
func (b *Builder) RatingMigration(f *filter.Set) string {
	var sb strings.Builder
	sb.WriteString(`WITH ranked AS (
  SELECT
    b.bond_id,
    i.name AS issuer_name,
    cr.rating_code,
    cr.rating_date,
    ROW_NUMBER() OVER (PARTITION BY b.bond_id ORDER BY cr.rating_date DESC, cr.rating_code ASC) AS rn_desc,
    ROW_NUMBER() OVER (PARTITION BY b.bond_id ORDER BY cr.rating_date ASC, cr.rating_code ASC)  AS rn_asc
  FROM bonds b
  JOIN issuers i        ON b.issuer_id = i.issuer_id
  JOIN credit_ratings cr ON cr.bond_id = b.bond_id
`)
	writeWhere(&sb, ratingDatePredicate(f), statePredicate(f))
	sb.WriteString(`)
SELECT
  bond_id,
  issuer_name,
  MAX(CASE WHEN rn_desc = 1 THEN rating_code END) AS latest_rating,
  MAX(CASE WHEN rn_asc  = 1 THEN rating_code END) AS first_rating,
  MAX(CASE WHEN rn_desc = 1 THEN rating_date END) AS latest_rating_date
FROM ranked
GROUP BY bond_id, issuer_name
HAVING MAX(CASE WHEN rn_desc = 1 THEN rating_code END) <> MAX(CASE WHEN rn_asc = 1 THEN rating_code END)
ORDER BY bond_id
`)
	writeLimit(&sb, f)
	return sb.String()
}

// MonthlyTrend builds the monthly trade trendline query, bucketing
// trades by calendar month in chronological order. The issuer joins
// appear only when a state filter is present, keeping the unfiltered
// query the plain single-table scan.
func (b *Builder) MonthlyTrend(f *filter.Set) string {
	var sb strings.Builder
	sb.WriteString(`SELECT
  TO_CHAR(t.trade_date, 'YYYY-MM') AS trade_month,
  COUNT(*)                         AS trades_count,
  SUM(t.quantity)                  AS total_quantity,
  ROUND(AVG(t.price), 2)           AS avg_trade_price
FROM trades t
`)
	if f.HasStateFilter() {
		sb.WriteString(`JOIN bonds b   ON t.bond_id = b.bond_id
JOIN issuers i ON b.issuer_id = i.issuer_id
`)
	}
	writeWhere(&sb, tradeDatePredicate(f), statePredicate(f))
	sb.WriteString(`GROUP BY trade_month
ORDER BY trade_month
`)
	writeLimit(&sb, f)
	return sb.String()
}

// CouponSpread builds the coupon spread query: mean coupon rate versus
// the monthly 10Y treasury yield for the same state and month, widest
// spread first. Groups need at least SpreadMinTrades trades.
func (b *Builder) CouponSpread(f *filter.Set) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `WITH ten_yr AS (
  SELECT
    geo_code,
    DATE_TRUNC('MONTH', period_start_date) AS period_month,
    value AS treasury_10yr
  FROM economic_indicators
  WHERE indicator_name = '%s'
)
`, domain.TreasuryTenYear)
	sb.WriteString(`SELECT
  i.state_code                               AS state,
  TO_CHAR(t.trade_date, 'YYYY-MM')           AS trade_month,
  ROUND(AVG(b.coupon_rate), 2)               AS avg_coupon_rate,
  ROUND(AVG(ten_yr.treasury_10yr), 2)        AS avg_treasury_10yr,
  ROUND(AVG(b.coupon_rate - ten_yr.treasury_10yr), 2) AS avg_coupon_spread
FROM trades t
JOIN bonds b   ON t.bond_id = b.bond_id
JOIN issuers i ON b.issuer_id = i.issuer_id
JOIN ten_yr    ON ten_yr.geo_code = i.state_code
              AND ten_yr.period_month = DATE_TRUNC('MONTH', t.trade_date)
`)
	writeWhere(&sb, "b.coupon_rate IS NOT NULL", tradeDatePredicate(f), statePredicate(f))
	fmt.Fprintf(&sb, `GROUP BY state, trade_month
HAVING COUNT(*) >= %d
ORDER BY avg_coupon_spread DESC
`, b.SpreadMinTrades)
	writeLimit(&sb, f)
	return sb.String()
}

// Column orders of each analysis result, shared by the live and
// fallback paths so both emit identical tables.
var (
	TopTradedColumns     = []string{"bond_id", "issuer_name", "state", "purpose_category", "avg_trade_price", "total_quantity"}
	HotspotColumns       = []string{"state", "purpose_category", "bonds_traded", "total_quantity", "avg_trade_price"}
	RatingColumns        = []string{"bond_id", "issuer_name", "latest_rating", "first_rating", "latest_rating_date"}
	MonthlyTrendColumns  = []string{"trade_month", "trades_count", "total_quantity", "avg_trade_price"}
	CouponSpreadColumns  = []string{"state", "trade_month", "avg_coupon_rate", "avg_treasury_10yr", "avg_coupon_spread"}
	DateBoundsColumns    = []string{"min_date", "max_date"}
	DistinctStateColumns = []string{"state_code"}
)
