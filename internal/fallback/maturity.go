package fallback

import (
	"sort"

	"muniquery/internal/filter"
	"muniquery/pkg/contracts/domain"
)

// MaturityProfileColumns orders the derived per-trade maturity table.
var MaturityProfileColumns = []string{"bond_id", "state", "trade_date", "price", "quantity", "years_to_maturity"}

// Clip bounds for the derived time-to-maturity field, in years.
const (
	minYearsToMaturity = 0
	maxYearsToMaturity = 40
)

const daysPerYear = 365.25

// MaturityProfile derives per-trade time-to-maturity in years,
// (maturity_date − trade_date) in days over 365.25, clipped to
// [0, 40]. Only the fallback path computes this field; the auxiliary
// visual layer needs it and the live queries never select it. That
// asymmetry is intentional.
func (s *Store) MaturityProfile(f *filter.Set) *domain.ResultSet {
	joined := s.joinedTrades(f)
	sort.SliceStable(joined, func(i, j int) bool {
		if !joined[i].trade.TradeDate.Equal(joined[j].trade.TradeDate) {
			return joined[i].trade.TradeDate.Before(joined[j].trade.TradeDate)
		}
		return joined[i].bond.BondID < joined[j].bond.BondID
	})

	result := domain.NewResultSet(MaturityProfileColumns...)
	for _, jt := range joined {
		if jt.bond.MaturityDate.IsZero() {
			continue
		}
		days := jt.bond.MaturityDate.Sub(jt.trade.TradeDate).Hours() / 24
		years := days / daysPerYear
		if years < minYearsToMaturity {
			years = minYearsToMaturity
		}
		if years > maxYearsToMaturity {
			years = maxYearsToMaturity
		}
		result.Append(domain.Row{
			"bond_id":           jt.bond.BondID,
			"state":             jt.issuer.StateCode,
			"trade_date":        jt.trade.TradeDate,
			"price":             jt.trade.Price,
			"quantity":          jt.trade.Quantity,
			"years_to_maturity": round2(years),
		})
	}
	return result
}
