package fallback

import (
	"sort"

	"muniquery/internal/query"
	"muniquery/pkg/contracts/domain"
)

// TradeDateBounds returns the observed min and max trade dates in the
// same tabular shape the live metadata query produces. The result is
// empty when no trades are loaded.
func (s *Store) TradeDateBounds() *domain.ResultSet {
	result := domain.NewResultSet(query.DateBoundsColumns...)
	if len(s.trades) == 0 {
		return result
	}

	minDate, maxDate := s.trades[0].TradeDate, s.trades[0].TradeDate
	for _, t := range s.trades[1:] {
		if t.TradeDate.Before(minDate) {
			minDate = t.TradeDate
		}
		if t.TradeDate.After(maxDate) {
			maxDate = t.TradeDate
		}
	}
	result.Append(domain.Row{"min_date": minDate, "max_date": maxDate})
	return result
}

// DistinctStates returns the full set of issuer states, sorted, with
// stateless issuers excluded, matching the live metadata query.
func (s *Store) DistinctStates() *domain.ResultSet {
	seen := make(map[string]struct{})
	for _, issuer := range s.issuers {
		if issuer.StateCode != "" {
			seen[issuer.StateCode] = struct{}{}
		}
	}

	states := make([]string, 0, len(seen))
	for state := range seen {
		states = append(states, state)
	}
	sort.Strings(states)

	result := domain.NewResultSet(query.DistinctStateColumns...)
	for _, state := range states {
		result.Append(domain.Row{"state_code": state})
	}
	return result
}
