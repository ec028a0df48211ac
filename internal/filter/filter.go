// Package filter normalizes user-chosen date range, state subset and
// row limit into the canonical filter set driving all five analyses.
package filter

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	apperrors "muniquery/internal/errors"
)

// Row limit bounds for any analysis.
const (
	MinRowLimit = 10
	MaxRowLimit = 200
)

var stateCodePattern = regexp.MustCompile(`^[A-Z]{2}$`)

var validate = validator.New()

// Bounds describes the observed dataset extent the filter must respect:
// the min/max trade dates and the full set of known issuer states.
// DefaultRowLimit, when positive, replaces the package default for
// requests that leave the row limit unset.
type Bounds struct {
	MinDate         time.Time
	MaxDate         time.Time
	KnownStates     []string
	DefaultRowLimit int
}

// Set is the canonical, immutable filter driving a query execution.
// An empty States slice means "no state filter": either the user
// selected nothing or selected the full known set. Zero dates mean "no
// date filter"; they stay zero when the dataset itself is empty and no
// bounds exist to default to.
type Set struct {
	DateFrom time.Time
	DateTo   time.Time `validate:"gtefield=DateFrom"`
	States   []string  `validate:"dive,len=2,uppercase"`
	RowLimit int       `validate:"min=10,max=200"`
}

// Params carries the raw user selections before normalization.
type Params struct {
	DateFrom time.Time
	DateTo   time.Time
	States   []string
	RowLimit int
}

// New validates and normalizes raw selections into a Set.
// It fails with an InvalidFilterSet error when the date interval
// degenerates to a single unpaired value, lies outside the observed
// trade dates, the row limit is out of [MinRowLimit, MaxRowLimit], or
// a state code is not in the known set.
func New(p Params, bounds Bounds) (*Set, error) {
	if p.DateFrom.IsZero() != p.DateTo.IsZero() {
		return nil, apperrors.NewInvalidFilterSet("date range needs both bounds or neither", nil)
	}

	from, to := p.DateFrom, p.DateTo
	if from.IsZero() {
		from, to = bounds.MinDate, bounds.MaxDate
	}
	if to.Before(from) {
		return nil, apperrors.NewInvalidFilterSet(
			fmt.Sprintf("date range end %s precedes start %s", to.Format(time.DateOnly), from.Format(time.DateOnly)), nil)
	}
	if !bounds.MinDate.IsZero() && from.Before(bounds.MinDate) || !bounds.MaxDate.IsZero() && to.After(bounds.MaxDate) {
		return nil, apperrors.NewInvalidFilterSet(
			fmt.Sprintf("date range [%s, %s] outside observed trade dates [%s, %s]",
				from.Format(time.DateOnly), to.Format(time.DateOnly),
				bounds.MinDate.Format(time.DateOnly), bounds.MaxDate.Format(time.DateOnly)), nil)
	}

	limit := p.RowLimit
	if limit == 0 {
		limit = bounds.DefaultRowLimit
	}
	if limit == 0 {
		limit = DefaultRowLimit
	}
	if limit < MinRowLimit || limit > MaxRowLimit {
		return nil, apperrors.NewInvalidFilterSet(
			fmt.Sprintf("row limit %d out of bounds [%d, %d]", limit, MinRowLimit, MaxRowLimit), nil)
	}

	states, err := normalizeStates(p.States, bounds.KnownStates)
	if err != nil {
		return nil, err
	}

	set := &Set{
		DateFrom: from,
		DateTo:   to,
		States:   states,
		RowLimit: limit,
	}
	if err := validate.Struct(set); err != nil {
		return nil, apperrors.NewInvalidFilterSet("filter failed validation", err)
	}
	return set, nil
}

// DefaultRowLimit matches the LIMIT the original analysis shipped with.
const DefaultRowLimit = 20

// normalizeStates dedupes and sorts the state subset, validates each
// code against the two-letter format and the known allow-list, and
// collapses a subset equal to the full known set into the canonical
// "no filter" representation. State codes are never interpolated into
// query text unless they pass this allow-list check.
func normalizeStates(states, known []string) ([]string, error) {
	if len(states) == 0 {
		return nil, nil
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, s := range known {
		knownSet[s] = struct{}{}
	}

	seen := make(map[string]struct{}, len(states))
	normalized := make([]string, 0, len(states))
	for _, s := range states {
		if !stateCodePattern.MatchString(s) {
			return nil, apperrors.NewInvalidFilterSet(fmt.Sprintf("malformed state code %q", s), nil)
		}
		if len(known) > 0 {
			if _, ok := knownSet[s]; !ok {
				return nil, apperrors.NewInvalidFilterSet(fmt.Sprintf("unknown state code %q", s), nil)
			}
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		normalized = append(normalized, s)
	}
	sort.Strings(normalized)

	// Selecting every known state is the same as no filter; collapsing
	// it avoids rendering a redundant predicate.
	if len(known) > 0 && len(normalized) == len(known) {
		return nil, nil
	}
	return normalized, nil
}

// HasStateFilter reports whether the set restricts issuer states.
func (s *Set) HasStateFilter() bool {
	return len(s.States) > 0
}

// HasDateFilter reports whether the set restricts trade dates.
func (s *Set) HasDateFilter() bool {
	return !s.DateFrom.IsZero() && !s.DateTo.IsZero()
}
