package datasource

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muniquery/internal/config"
	apperrors "muniquery/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnectWithoutDSN(t *testing.T) {
	_, err := Connect(context.Background(), config.DataSourceConfig{
		ProbeTimeout: time.Second,
	}, testLogger())

	require.Error(t, err)
	assert.True(t, apperrors.IsDataSourceUnavailable(err))
}

func TestConnectUnreachableHost(t *testing.T) {
	_, err := Connect(context.Background(), config.DataSourceConfig{
		DSN:          "postgres://nobody@127.0.0.1:1/muni",
		ProbeTimeout: 500 * time.Millisecond,
	}, testLogger())

	require.Error(t, err)
	assert.True(t, apperrors.IsDataSourceUnavailable(err))
}

func TestUnavailableExecutor(t *testing.T) {
	reason := errors.New("probe failed")
	u := &Unavailable{Reason: reason}

	_, err := u.Execute(context.Background(), "SELECT 1;")
	require.Error(t, err)
	assert.True(t, apperrors.IsDataSourceUnavailable(err))
	assert.ErrorIs(t, err, reason)

	u.Close()
}

func TestNormalizeValue(t *testing.T) {
	now := time.Now()
	cases := []struct {
		in   interface{}
		want interface{}
	}{
		{nil, nil},
		{"FL", "FL"},
		{int64(300), int64(300)},
		{int32(300), int64(300)},
		{float64(99.17), float64(99.17)},
		{float32(1.5), float64(1.5)},
		{true, true},
		{now, now},
		{[]byte("2024-01"), "2024-01"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, normalizeValue(tc.in))
	}

	// Postgres returns numeric for SUM/AVG/ROUND aggregates; those must
	// land as float64 like the fallback path's values.
	var n pgtype.Numeric
	require.NoError(t, n.Set(99.17))
	assert.Equal(t, float64(99.17), normalizeValue(n))
}
