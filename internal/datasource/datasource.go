// Package datasource executes query text against the live relational
// store. Whether the live store is used at all is decided once at
// startup; this package never substitutes fallback data on its own.
package datasource

import (
	"context"

	apperrors "muniquery/internal/errors"
	"muniquery/pkg/contracts/domain"
)

// Executor runs a query and returns its tabular result. A zero-row
// ResultSet is a valid outcome, distinct from an error.
type Executor interface {
	Execute(ctx context.Context, sql string) (*domain.ResultSet, error)
	Close()
}

// Unavailable is an Executor for processes that start without a live
// connection. Every call fails with DataSourceUnavailable so a wiring
// mistake surfaces as a clear error instead of silent fallback data.
type Unavailable struct {
	// Reason is the startup probe failure, attached as the cause.
	Reason error
}

// Execute implements Executor.
func (u *Unavailable) Execute(ctx context.Context, sql string) (*domain.ResultSet, error) {
	return nil, apperrors.NewDataSourceUnavailable(u.Reason)
}

// Close implements Executor.
func (u *Unavailable) Close() {}
