package domain

// Row is a single result row mapping column name to value.
type Row map[string]interface{}

// ResultSet is an ordered tabular result. Columns preserves the column
// order of the query that produced it; Rows preserve result order.
// A ResultSet with zero rows is a valid outcome, distinct from failure.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewResultSet creates an empty result set with the given column order.
func NewResultSet(columns ...string) *ResultSet {
	return &ResultSet{
		Columns: columns,
		Rows:    make([]Row, 0),
	}
}

// Append adds a row to the result set.
func (rs *ResultSet) Append(row Row) {
	rs.Rows = append(rs.Rows, row)
}

// Len returns the number of rows.
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Empty reports whether the result set has no rows.
func (rs *ResultSet) Empty() bool {
	return len(rs.Rows) == 0
}

// Records converts the result set into string records suitable for CSV
// serialization, in column order. Nil values render as empty strings.
func (rs *ResultSet) Records() [][]string {
	records := make([][]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		record := make([]string, len(rs.Columns))
		for i, col := range rs.Columns {
			record[i] = formatValue(row[col])
		}
		records = append(records, record)
	}
	return records
}
