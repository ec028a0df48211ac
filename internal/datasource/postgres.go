package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"

	"muniquery/internal/config"
	apperrors "muniquery/internal/errors"
	"muniquery/pkg/contracts/domain"
)

// Postgres executes queries against a live Postgres data source.
type Postgres struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	queryTimeout time.Duration
}

// Connect opens and probes the live data source. It fails with
// DataSourceUnavailable when no DSN is configured or the probe fails;
// the caller then chooses the fallback path for the process lifetime.
func Connect(ctx context.Context, cfg config.DataSourceConfig, logger *slog.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, apperrors.NewDataSourceUnavailable(fmt.Errorf("no data source DSN configured"))
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()

	pool, err := pgxpool.Connect(probeCtx, cfg.DSN)
	if err != nil {
		return nil, apperrors.NewDataSourceUnavailable(fmt.Errorf("failed to connect: %w", err))
	}

	if err := pool.Ping(probeCtx); err != nil {
		pool.Close()
		return nil, apperrors.NewDataSourceUnavailable(fmt.Errorf("connection probe failed: %w", err))
	}

	logger.Info("connected to live data source")

	return &Postgres{
		pool:         pool,
		logger:       logger.With(slog.String("component", "datasource")),
		queryTimeout: cfg.QueryTimeout,
	}, nil
}

// Execute runs the query and materializes the ordered result. Errors
// from the data source propagate with the cause attached; they are
// never retried here.
func (p *Postgres) Execute(ctx context.Context, sql string) (*domain.ResultSet, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.queryTimeout)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(queryCtx, sql)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailed("data source rejected query", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	result := domain.NewResultSet(columns...)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailed("failed to read result row", err)
		}
		row := make(domain.Row, len(columns))
		for i, col := range columns {
			row[col] = normalizeValue(values[i])
		}
		result.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailed("query execution failed", err)
	}

	p.logger.Debug("executed query",
		slog.Int("rows", result.Len()),
		slog.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// normalizeValue maps driver values onto the plain Go types the result
// contract uses. Numeric aggregates arrive as driver-specific types
// depending on column declarations.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, int64, float64, bool, time.Time:
		return val
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case pgtype.Numeric:
		var f float64
		if err := val.AssignTo(&f); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return f
	default:
		return fmt.Sprintf("%v", val)
	}
}
