package fallback

import (
	"math"
	"sort"
	"time"

	"muniquery/internal/filter"
	"muniquery/internal/query"
	"muniquery/pkg/contracts/domain"
)

// joinedTrade is one trade after the trades→bonds→issuers join with
// the purpose code coalesced to UNSPEC, mirroring the SQL join keys.
type joinedTrade struct {
	trade   *domain.Trade
	bond    *domain.Bond
	issuer  *domain.Issuer
	purpose string
}

// joinedTrades applies the filter and the inner joins. Trades whose
// bond or issuer is missing drop out, exactly as under the SQL JOINs.
func (s *Store) joinedTrades(f *filter.Set) []joinedTrade {
	stateSet := stateFilter(f)

	joined := make([]joinedTrade, 0, len(s.trades))
	for i := range s.trades {
		trade := &s.trades[i]
		if !inDateRange(f, trade.TradeDate) {
			continue
		}
		bond, ok := s.bonds[trade.BondID]
		if !ok {
			continue
		}
		issuer, ok := s.issuers[bond.IssuerID]
		if !ok {
			continue
		}
		if stateSet != nil {
			if _, ok := stateSet[issuer.StateCode]; !ok {
				continue
			}
		}
		joined = append(joined, joinedTrade{
			trade:   trade,
			bond:    bond,
			issuer:  issuer,
			purpose: s.purposeCode(bond),
		})
	}
	return joined
}

// purposeCode coalesces a bond's purpose to UNSPEC when the purpose
// reference or its code is missing, matching COALESCE(p.code, 'UNSPEC').
func (s *Store) purposeCode(bond *domain.Bond) string {
	if bond.PurposeID == "" {
		return domain.UnspecifiedPurpose
	}
	purpose, ok := s.purposes[bond.PurposeID]
	if !ok || purpose.Code == "" {
		return domain.UnspecifiedPurpose
	}
	return purpose.Code
}

// TopTradedBonds reproduces the top traded bonds analysis: group by
// bond with issuer and purpose context, order by summed quantity then
// mean price, both descending, truncated to the row limit.
func (s *Store) TopTradedBonds(f *filter.Set) *domain.ResultSet {
	type group struct {
		bondID   string
		issuer   string
		state    string
		purpose  string
		quantity int64
		priceSum float64
		count    int64
	}

	groups := make(map[string]*group)
	for _, jt := range s.joinedTrades(f) {
		g, ok := groups[jt.bond.BondID]
		if !ok {
			g = &group{
				bondID:  jt.bond.BondID,
				issuer:  jt.issuer.Name,
				state:   jt.issuer.StateCode,
				purpose: jt.purpose,
			}
			groups[jt.bond.BondID] = g
		}
		g.quantity += jt.trade.Quantity
		g.priceSum += jt.trade.Price
		g.count++
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].quantity != ordered[j].quantity {
			return ordered[i].quantity > ordered[j].quantity
		}
		avgI := round2(ordered[i].priceSum / float64(ordered[i].count))
		avgJ := round2(ordered[j].priceSum / float64(ordered[j].count))
		if avgI != avgJ {
			return avgI > avgJ
		}
		return ordered[i].bondID < ordered[j].bondID
	})

	result := domain.NewResultSet(query.TopTradedColumns...)
	for _, g := range truncate(ordered, f.RowLimit) {
		result.Append(domain.Row{
			"bond_id":          g.bondID,
			"issuer_name":      g.issuer,
			"state":            g.state,
			"purpose_category": g.purpose,
			"avg_trade_price":  round2(g.priceSum / float64(g.count)),
			"total_quantity":   g.quantity,
		})
	}
	return result
}

// StatePurposeHotspots reproduces the hotspot analysis: group by state
// and purpose, drop groups below the quantity threshold, order by
// summed quantity descending.
func (s *Store) StatePurposeHotspots(f *filter.Set) *domain.ResultSet {
	type key struct {
		state   string
		purpose string
	}
	type group struct {
		key      key
		bonds    map[string]struct{}
		quantity int64
		priceSum float64
		count    int64
	}

	groups := make(map[key]*group)
	for _, jt := range s.joinedTrades(f) {
		k := key{state: jt.issuer.StateCode, purpose: jt.purpose}
		g, ok := groups[k]
		if !ok {
			g = &group{key: k, bonds: make(map[string]struct{})}
			groups[k] = g
		}
		g.bonds[jt.bond.BondID] = struct{}{}
		g.quantity += jt.trade.Quantity
		g.priceSum += jt.trade.Price
		g.count++
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		if g.quantity >= s.hotspotMinQuantity {
			ordered = append(ordered, g)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].quantity != ordered[j].quantity {
			return ordered[i].quantity > ordered[j].quantity
		}
		if ordered[i].key.state != ordered[j].key.state {
			return ordered[i].key.state < ordered[j].key.state
		}
		return ordered[i].key.purpose < ordered[j].key.purpose
	})

	result := domain.NewResultSet(query.HotspotColumns...)
	for _, g := range truncate(ordered, f.RowLimit) {
		result.Append(domain.Row{
			"state":            g.key.state,
			"purpose_category": g.key.purpose,
			"bonds_traded":     int64(len(g.bonds)),
			"total_quantity":   g.quantity,
			"avg_trade_price":  round2(g.priceSum / float64(g.count)),
		})
	}
	return result
}

// RatingMigration reproduces the rating migration analysis: for each
// bond, the rating at the maximum date and at the minimum date, kept
// only when the codes differ. Ratings sharing an extreme date are
// resolved by rating_code ascending, the same secondary key the SQL
// rank uses. Bonds with a single rating can never migrate.
func (s *Store) RatingMigration(f *filter.Set) *domain.ResultSet {
	stateSet := stateFilter(f)

	type migration struct {
		bondID string
		issuer string
		first  domain.CreditRating
		latest domain.CreditRating
	}

	byBond := make(map[string][]domain.CreditRating)
	for _, rating := range s.ratings {
		if !inDateRange(f, rating.RatingDate) {
			continue
		}
		bond, ok := s.bonds[rating.BondID]
		if !ok {
			continue
		}
		issuer, ok := s.issuers[bond.IssuerID]
		if !ok {
			continue
		}
		if stateSet != nil {
			if _, ok := stateSet[issuer.StateCode]; !ok {
				continue
			}
		}
		byBond[rating.BondID] = append(byBond[rating.BondID], rating)
	}

	migrations := make([]migration, 0)
	for bondID, ratings := range byBond {
		first := pickFirst(ratings)
		latest := pickLatest(ratings)
		if first.RatingCode == latest.RatingCode {
			continue
		}
		migrations = append(migrations, migration{
			bondID: bondID,
			issuer: s.issuers[s.bonds[bondID].IssuerID].Name,
			first:  first,
			latest: latest,
		})
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].bondID < migrations[j].bondID
	})

	result := domain.NewResultSet(query.RatingColumns...)
	for _, m := range truncate(migrations, f.RowLimit) {
		result.Append(domain.Row{
			"bond_id":            m.bondID,
			"issuer_name":        m.issuer,
			"latest_rating":      m.latest.RatingCode,
			"first_rating":       m.first.RatingCode,
			"latest_rating_date": m.latest.RatingDate,
		})
	}
	return result
}

// pickFirst returns the rating with the minimum date, ties resolved by
// rating_code ascending.
func pickFirst(ratings []domain.CreditRating) domain.CreditRating {
	pick := ratings[0]
	for _, r := range ratings[1:] {
		if r.RatingDate.Before(pick.RatingDate) ||
			(r.RatingDate.Equal(pick.RatingDate) && r.RatingCode < pick.RatingCode) {
			pick = r
		}
	}
	return pick
}

// pickLatest returns the rating with the maximum date, ties resolved
// by rating_code ascending.
func pickLatest(ratings []domain.CreditRating) domain.CreditRating {
	pick := ratings[0]
	for _, r := range ratings[1:] {
		if r.RatingDate.After(pick.RatingDate) ||
			(r.RatingDate.Equal(pick.RatingDate) && r.RatingCode < pick.RatingCode) {
			pick = r
		}
	}
	return pick
}

// MonthlyTrend reproduces the monthly trendline: trades bucketed by
// calendar month in chronological order. Without a state filter the
// bucket covers every stored trade, matching the single-table SQL
// scan; with one, the issuer join applies first.
func (s *Store) MonthlyTrend(f *filter.Set) *domain.ResultSet {
	type group struct {
		month    string
		count    int64
		quantity int64
		priceSum float64
	}

	groups := make(map[string]*group)
	bucket := func(t *domain.Trade) {
		month := t.TradeDate.Format(domain.MonthLayout)
		g, ok := groups[month]
		if !ok {
			g = &group{month: month}
			groups[month] = g
		}
		g.count++
		g.quantity += t.Quantity
		g.priceSum += t.Price
	}

	if f.HasStateFilter() {
		for _, jt := range s.joinedTrades(f) {
			bucket(jt.trade)
		}
	} else {
		for i := range s.trades {
			if inDateRange(f, s.trades[i].TradeDate) {
				bucket(&s.trades[i])
			}
		}
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].month < ordered[j].month
	})

	result := domain.NewResultSet(query.MonthlyTrendColumns...)
	for _, g := range truncate(ordered, f.RowLimit) {
		result.Append(domain.Row{
			"trade_month":     g.month,
			"trades_count":    g.count,
			"total_quantity":  g.quantity,
			"avg_trade_price": round2(g.priceSum / float64(g.count)),
		})
	}
	return result
}

// CouponSpread reproduces the coupon spread analysis: per-trade coupon
// minus the monthly 10Y treasury yield for the trade's state and
// month, averaged per (state, month) group with at least
// spreadMinTrades trades, widest spread first.
func (s *Store) CouponSpread(f *filter.Set) *domain.ResultSet {
	yields := s.treasuryByStateMonth()

	type group struct {
		key       stateMonth
		couponSum float64
		yieldSum  float64
		spreadSum float64
		count     int64
	}

	groups := make(map[stateMonth]*group)
	for _, jt := range s.joinedTrades(f) {
		if jt.bond.CouponRate == nil {
			continue
		}
		month := jt.trade.TradeDate.Format(domain.MonthLayout)
		k := stateMonth{state: jt.issuer.StateCode, month: month}
		yield, ok := yields[k]
		if !ok {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &group{key: k}
			groups[k] = g
		}
		coupon := *jt.bond.CouponRate
		g.couponSum += coupon
		g.yieldSum += yield
		g.spreadSum += coupon - yield
		g.count++
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		if g.count >= int64(s.spreadMinTrades) {
			ordered = append(ordered, g)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		spreadI := round2(ordered[i].spreadSum / float64(ordered[i].count))
		spreadJ := round2(ordered[j].spreadSum / float64(ordered[j].count))
		if spreadI != spreadJ {
			return spreadI > spreadJ
		}
		if ordered[i].key.state != ordered[j].key.state {
			return ordered[i].key.state < ordered[j].key.state
		}
		return ordered[i].key.month < ordered[j].key.month
	})

	result := domain.NewResultSet(query.CouponSpreadColumns...)
	for _, g := range truncate(ordered, f.RowLimit) {
		result.Append(domain.Row{
			"state":             g.key.state,
			"trade_month":       g.key.month,
			"avg_coupon_rate":   round2(g.couponSum / float64(g.count)),
			"avg_treasury_10yr": round2(g.yieldSum / float64(g.count)),
			"avg_coupon_spread": round2(g.spreadSum / float64(g.count)),
		})
	}
	return result
}

// stateMonth is the join key of the treasury series: issuer state and
// month-truncated date.
type stateMonth struct {
	state string
	month string
}

// treasuryByStateMonth indexes the TREASURY_10YR series by state and
// month-truncated period start, the same join key the SQL CTE uses.
func (s *Store) treasuryByStateMonth() map[stateMonth]float64 {
	yields := make(map[stateMonth]float64)
	for _, ind := range s.indicators {
		if ind.IndicatorName != domain.TreasuryTenYear {
			continue
		}
		k := stateMonth{
			state: ind.GeoCode,
			month: ind.PeriodStartDate.Format(domain.MonthLayout),
		}
		yields[k] = ind.Value
	}
	return yields
}

func stateFilter(f *filter.Set) map[string]struct{} {
	if !f.HasStateFilter() {
		return nil
	}
	set := make(map[string]struct{}, len(f.States))
	for _, s := range f.States {
		set[s] = struct{}{}
	}
	return set
}

func inDateRange(f *filter.Set, t time.Time) bool {
	if !f.HasDateFilter() {
		return true
	}
	return !t.Before(f.DateFrom) && !t.After(f.DateTo)
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// round2 rounds to two decimals, matching ROUND(x, 2).
func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
