package query

import (
	"fmt"
	"strings"

	"muniquery/internal/filter"
	"muniquery/pkg/contracts/domain"
)

// tradeDatePredicate renders the trade date range predicate, or ""
// when the filter spans the whole dataset.
func tradeDatePredicate(f *filter.Set) string {
	return datePredicate(f, "t.trade_date")
}

// ratingDatePredicate bounds rating observations to the filter window.
func ratingDatePredicate(f *filter.Set) string {
	return datePredicate(f, "cr.rating_date")
}

func datePredicate(f *filter.Set, column string) string {
	if !f.HasDateFilter() {
		return ""
	}
	return fmt.Sprintf("%s BETWEEN '%s' AND '%s'",
		column, f.DateFrom.Format(domain.DateLayout), f.DateTo.Format(domain.DateLayout))
}

// statePredicate renders the issuer state inclusion list. State codes
// reached allow-list validation in the filter package before this
// point, so quoting them directly is safe.
func statePredicate(f *filter.Set) string {
	if !f.HasStateFilter() {
		return ""
	}
	quoted := make([]string, len(f.States))
	for i, s := range f.States {
		quoted[i] = "'" + s + "'"
	}
	return fmt.Sprintf("i.state_code IN (%s)", strings.Join(quoted, ", "))
}

// writeWhere writes a WHERE clause joining the non-empty predicates
// with AND. Nothing is written when every predicate is empty.
func writeWhere(sb *strings.Builder, predicates ...string) {
	active := predicates[:0:0]
	for _, p := range predicates {
		if p != "" {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return
	}
	sb.WriteString("WHERE ")
	sb.WriteString(strings.Join(active, "\n  AND "))
	sb.WriteString("\n")
}

// writeLimit writes the row limit clause from the filter.
func writeLimit(sb *strings.Builder, f *filter.Set) {
	fmt.Fprintf(sb, "LIMIT %d;", f.RowLimit)
}
