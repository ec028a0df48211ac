// Command muniquery-report runs the five bond market analyses for a
// filter window and writes each result as a CSV report plus one
// combined Excel workbook.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"muniquery/internal/analysis"
	"muniquery/internal/config"
	"muniquery/internal/datasource"
	"muniquery/internal/exporter"
	"muniquery/internal/fallback"
	"muniquery/internal/filter"
	"muniquery/internal/infrastructure"
	"muniquery/pkg/contracts/domain"
)

func main() {
	from := flag.String("from", "", "start of the trade date range (YYYY-MM-DD, defaults to the observed minimum)")
	to := flag.String("to", "", "end of the trade date range (YYYY-MM-DD, defaults to the observed maximum)")
	states := flag.String("states", "", "comma-separated state codes to include (defaults to all)")
	limit := flag.Int("limit", 0, "row limit per analysis (10-200, defaults to 20)")
	workbook := flag.String("workbook", "muni_analyses.xlsx", "file name of the combined Excel workbook")
	flag.Parse()

	if err := run(*from, *to, *states, *limit, *workbook); err != nil {
		slog.Error("report generation failed", "error", err)
		os.Exit(1)
	}
}

func run(from, to, states string, limit int, workbook string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	paths, err := config.ResolvePaths(cfg.Paths)
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	params, err := parseParams(from, to, states, limit)
	if err != nil {
		return err
	}

	ctx := context.Background()
	service, cleanup, err := buildService(ctx, cfg, paths, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	writer := exporter.NewCSVWriter(paths)
	sheets := make([]exporter.Sheet, 0, len(analysis.Definitions()))

	for _, def := range analysis.Definitions() {
		result, err := service.Run(ctx, def.ID, params)
		if err != nil {
			return fmt.Errorf("analysis %s failed: %w", def.ID, err)
		}

		filename := fmt.Sprintf("%s.csv", def.ID)
		if err := writer.WriteResult(filename, result.Data); err != nil {
			return fmt.Errorf("failed to write %s: %w", filename, err)
		}
		sheets = append(sheets, exporter.Sheet{Name: result.Title, Data: result.Data})

		logger.Info("report written",
			slog.String("analysis", string(def.ID)),
			slog.String("file", filename),
			slog.Int("rows", result.Data.Len()))
	}

	if err := writer.WriteWorkbook(workbook, sheets); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	logger.Info("all reports written", slog.String("workbook", workbook))
	return nil
}

// parseParams turns the flag values into raw filter selections.
func parseParams(from, to, states string, limit int) (filter.Params, error) {
	var params filter.Params

	if from != "" {
		t, err := time.Parse(domain.DateLayout, from)
		if err != nil {
			return params, fmt.Errorf("malformed -from date %q: %w", from, err)
		}
		params.DateFrom = t
	}
	if to != "" {
		t, err := time.Parse(domain.DateLayout, to)
		if err != nil {
			return params, fmt.Errorf("malformed -to date %q: %w", to, err)
		}
		params.DateTo = t
	}
	if states != "" {
		for _, s := range strings.Split(states, ",") {
			if s = strings.TrimSpace(s); s != "" {
				params.States = append(params.States, strings.ToUpper(s))
			}
		}
	}
	params.RowLimit = limit
	return params, nil
}

// buildService probes the live data source once and wires the service
// to whichever path is available.
func buildService(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) (*analysis.Service, func(), error) {
	executor, err := datasource.Connect(ctx, cfg.DataSource, logger)
	if err == nil {
		return analysis.NewLive(executor, *cfg, logger), executor.Close, nil
	}

	logger.Warn("live data source unavailable, using fallback CSV tables", "error", err)

	store, err := fallback.Load(paths, cfg.Analysis, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fallback tables: %w", err)
	}
	return analysis.NewFallback(store, *cfg, logger), func() {}, nil
}
