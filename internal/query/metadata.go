package query

// Metadata queries back the filter model: the observed trade date
// extent and the known issuer states. They take no filter and are
// cached under the longer metadata window.

// TradeDateBoundsKey and DistinctStatesKey identify the metadata
// queries in the cache; the query text itself would work as a key but
// a fixed identifier keeps metadata entries recognizable.
const (
	TradeDateBoundsKey = "metadata:trade_date_bounds"
	DistinctStatesKey  = "metadata:distinct_states"
)

// TradeDateBounds returns the query for the min and max trade dates.
func TradeDateBounds() string {
	return `SELECT
  MIN(trade_date) AS min_date,
  MAX(trade_date) AS max_date
FROM trades;`
}

// DistinctStates returns the query for the full set of issuer states.
func DistinctStates() string {
	return `SELECT DISTINCT state_code
FROM issuers
WHERE state_code IS NOT NULL
ORDER BY state_code;`
}
