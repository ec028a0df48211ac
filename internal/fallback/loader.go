// Package fallback reproduces the five analyses from local CSV tables
// when no live data source exists. It loads whole tables into memory
// and performs the equivalent joins, group-bys and rank logic locally,
// matching the live query semantics: same join keys, same coalesce to
// UNSPEC, same latest/first rating policy, same month bucketing.
package fallback

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"muniquery/internal/config"
	apperrors "muniquery/internal/errors"
	"muniquery/pkg/contracts/domain"
)

// Store holds the six tables in memory, indexed for the joins the
// analyses need. A Store is immutable once loaded.
type Store struct {
	bonds      map[string]*domain.Bond
	issuers    map[string]*domain.Issuer
	purposes   map[string]*domain.Purpose
	trades     []domain.Trade
	ratings    []domain.CreditRating
	indicators []domain.EconomicIndicator

	hotspotMinQuantity int64
	spreadMinTrades    int

	logger *slog.Logger
}

// Load reads the six CSV tables from the data directory. Rows that
// violate the documented invariants (non-positive price or quantity,
// maturity before issue) are dropped with a warning rather than
// poisoning every aggregate.
func Load(paths *config.Paths, cfg config.AnalysisConfig, logger *slog.Logger) (*Store, error) {
	s := &Store{
		bonds:              make(map[string]*domain.Bond),
		issuers:            make(map[string]*domain.Issuer),
		purposes:           make(map[string]*domain.Purpose),
		hotspotMinQuantity: cfg.HotspotMinQuantity,
		spreadMinTrades:    cfg.SpreadMinTrades,
		logger:             logger.With(slog.String("component", "fallback")),
	}

	loaders := []struct {
		file string
		load func(*table) error
	}{
		{config.IssuersFile, s.loadIssuers},
		{config.BondPurposesFile, s.loadPurposes},
		{config.BondsFile, s.loadBonds},
		{config.TradesFile, s.loadTrades},
		{config.CreditRatingsFile, s.loadRatings},
		{config.EconomicIndicatorsFile, s.loadIndicators},
	}

	for _, l := range loaders {
		tbl, err := readTable(paths.TablePath(l.file))
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeStorage,
				fmt.Sprintf("failed to load fallback table %s", l.file), err)
		}
		if err := l.load(tbl); err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeParsing,
				fmt.Sprintf("failed to parse fallback table %s", l.file), err)
		}
	}

	s.logger.Info("loaded fallback tables",
		slog.Int("bonds", len(s.bonds)),
		slog.Int("issuers", len(s.issuers)),
		slog.Int("trades", len(s.trades)),
		slog.Int("ratings", len(s.ratings)),
		slog.Int("indicators", len(s.indicators)))

	return s, nil
}

// table is a parsed CSV file with case-insensitive column lookup.
type table struct {
	header  []string
	index   map[string]int
	records [][]string
}

// readTable parses one CSV file, stripping a UTF-8 BOM if present and
// normalizing header names to lower case for alias lookup.
func readTable(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file content: %w", err)
	}
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		content = content[3:]
	}

	reader := csv.NewReader(strings.NewReader(string(content)))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV has no header row")
	}

	tbl := &table{
		header:  records[0],
		index:   make(map[string]int, len(records[0])),
		records: records[1:],
	}
	for i, col := range records[0] {
		clean := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\uFEFF")))
		tbl.index[clean] = i
	}
	return tbl, nil
}

// column resolves a logical column through its accepted aliases,
// e.g. "state" for "state_code". Returns -1 when absent.
func (t *table) column(aliases ...string) int {
	for _, alias := range aliases {
		if i, ok := t.index[alias]; ok {
			return i
		}
	}
	return -1
}

// cell returns the trimmed value at (record, column), or "" when the
// column is absent or the record is short.
func (t *table) cell(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}

func (s *Store) loadIssuers(tbl *table) error {
	idCol := tbl.column("issuer_id", "issuer")
	nameCol := tbl.column("name", "issuer_name")
	stateCol := tbl.column("state_code", "state")
	if idCol == -1 {
		return fmt.Errorf("required column issuer_id not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		id := tbl.cell(record, idCol)
		if id == "" {
			continue
		}
		s.issuers[id] = &domain.Issuer{
			IssuerID:  id,
			Name:      tbl.cell(record, nameCol),
			StateCode: strings.ToUpper(tbl.cell(record, stateCol)),
		}
	}
	return nil
}

func (s *Store) loadPurposes(tbl *table) error {
	idCol := tbl.column("purpose_id", "purpose")
	codeCol := tbl.column("code", "purpose_code")
	if idCol == -1 {
		return fmt.Errorf("required column purpose_id not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		id := tbl.cell(record, idCol)
		if id == "" {
			continue
		}
		s.purposes[id] = &domain.Purpose{
			PurposeID: id,
			Code:      tbl.cell(record, codeCol),
		}
	}
	return nil
}

func (s *Store) loadBonds(tbl *table) error {
	idCol := tbl.column("bond_id", "bond")
	issuerCol := tbl.column("issuer_id", "issuer")
	purposeCol := tbl.column("purpose_id", "purpose")
	couponCol := tbl.column("coupon_rate", "coupon")
	issueCol := tbl.column("issue_date", "issued")
	maturityCol := tbl.column("maturity_date", "maturity")
	if idCol == -1 || issuerCol == -1 {
		return fmt.Errorf("required columns bond_id/issuer_id not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		id := tbl.cell(record, idCol)
		if id == "" {
			continue
		}

		bond := &domain.Bond{
			BondID:    id,
			IssuerID:  tbl.cell(record, issuerCol),
			PurposeID: tbl.cell(record, purposeCol),
		}
		if raw := tbl.cell(record, couponCol); raw != "" {
			coupon, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				s.logger.Warn("skipping bond with bad coupon rate",
					slog.String("bond_id", id), slog.String("coupon_rate", raw))
				continue
			}
			bond.CouponRate = &coupon
		}
		bond.IssueDate, _ = parseDate(tbl.cell(record, issueCol))
		bond.MaturityDate, _ = parseDate(tbl.cell(record, maturityCol))

		if !bond.IssueDate.IsZero() && !bond.MaturityDate.IsZero() && bond.MaturityDate.Before(bond.IssueDate) {
			s.logger.Warn("skipping bond maturing before issue", slog.String("bond_id", id))
			continue
		}
		s.bonds[id] = bond
	}
	return nil
}

func (s *Store) loadTrades(tbl *table) error {
	bondCol := tbl.column("bond_id", "bond")
	dateCol := tbl.column("trade_date", "date")
	priceCol := tbl.column("price", "trade_price")
	qtyCol := tbl.column("quantity", "qty")
	buyerCol := tbl.column("buyer_type", "buyer")
	if bondCol == -1 || dateCol == -1 || priceCol == -1 || qtyCol == -1 {
		return fmt.Errorf("required columns bond_id/trade_date/price/quantity not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		bondID := tbl.cell(record, bondCol)
		if bondID == "" {
			continue
		}
		date, err := parseDate(tbl.cell(record, dateCol))
		if err != nil {
			s.logger.Warn("skipping trade with bad date",
				slog.String("bond_id", bondID), slog.String("trade_date", tbl.cell(record, dateCol)))
			continue
		}
		price, err := strconv.ParseFloat(tbl.cell(record, priceCol), 64)
		if err != nil || price <= 0 {
			s.logger.Warn("skipping trade with non-positive price", slog.String("bond_id", bondID))
			continue
		}
		qty, err := strconv.ParseInt(tbl.cell(record, qtyCol), 10, 64)
		if err != nil || qty <= 0 {
			s.logger.Warn("skipping trade with non-positive quantity", slog.String("bond_id", bondID))
			continue
		}

		s.trades = append(s.trades, domain.Trade{
			BondID:    bondID,
			TradeDate: date,
			Price:     price,
			Quantity:  qty,
			BuyerType: tbl.cell(record, buyerCol),
		})
	}
	return nil
}

func (s *Store) loadRatings(tbl *table) error {
	bondCol := tbl.column("bond_id", "bond")
	codeCol := tbl.column("rating_code", "rating")
	dateCol := tbl.column("rating_date", "date")
	if bondCol == -1 || codeCol == -1 || dateCol == -1 {
		return fmt.Errorf("required columns bond_id/rating_code/rating_date not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		bondID := tbl.cell(record, bondCol)
		code := tbl.cell(record, codeCol)
		if bondID == "" || code == "" {
			continue
		}
		date, err := parseDate(tbl.cell(record, dateCol))
		if err != nil {
			s.logger.Warn("skipping rating with bad date", slog.String("bond_id", bondID))
			continue
		}
		s.ratings = append(s.ratings, domain.CreditRating{
			BondID:     bondID,
			RatingCode: code,
			RatingDate: date,
		})
	}
	return nil
}

func (s *Store) loadIndicators(tbl *table) error {
	nameCol := tbl.column("indicator_name", "indicator", "series")
	geoCol := tbl.column("geo_code", "geo", "state_code", "state")
	dateCol := tbl.column("period_start_date", "period_start", "date")
	valueCol := tbl.column("value")
	if nameCol == -1 || dateCol == -1 || valueCol == -1 {
		return fmt.Errorf("required columns indicator_name/period_start_date/value not found in header %v", tbl.header)
	}

	for _, record := range tbl.records {
		name := tbl.cell(record, nameCol)
		if name == "" {
			continue
		}
		date, err := parseDate(tbl.cell(record, dateCol))
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(tbl.cell(record, valueCol), 64)
		if err != nil {
			continue
		}
		s.indicators = append(s.indicators, domain.EconomicIndicator{
			IndicatorName:   name,
			GeoCode:         strings.ToUpper(tbl.cell(record, geoCol)),
			PeriodStartDate: date,
			Value:           value,
		})
	}
	return nil
}

// dateLayouts are the accepted date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
