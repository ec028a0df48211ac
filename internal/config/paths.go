package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the resolved application paths.
// This is the single source of truth for file paths in the application.
type Paths struct {
	ExecutableDir string
	DataDir       string
	ReportsDir    string
	LogsDir       string
}

// Fallback table file names inside DataDir. Each CSV carries the same
// logical columns as its relational counterpart.
const (
	BondsFile              = "bonds.csv"
	TradesFile             = "trades.csv"
	IssuersFile            = "issuers.csv"
	BondPurposesFile       = "bond_purposes.csv"
	CreditRatingsFile      = "credit_ratings.csv"
	EconomicIndicatorsFile = "economic_indicators.csv"
)

// ResolvePaths resolves the configured directories relative to the
// executable location, never the current working directory.
func ResolvePaths(cfg PathsConfig) (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	exeDir := filepath.Dir(exe)

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       resolveDir(exeDir, cfg.DataDir),
		ReportsDir:    resolveDir(exeDir, cfg.ReportsDir),
		LogsDir:       resolveDir(exeDir, cfg.LogsDir),
	}, nil
}

// resolveDir makes dir absolute relative to base unless it already is.
func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}

// EnsureDirectories creates the writable directories if missing. The
// data directory is read-only input and is not created here.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// TablePath returns the full path of a fallback table file.
func (p *Paths) TablePath(filename string) string {
	return filepath.Join(p.DataDir, filename)
}

// ReportPath returns the full path of a generated report file.
func (p *Paths) ReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}
