package domain

import (
	"time"
)

// Bond represents a municipal bond issue. Bonds are externally owned
// reference data; this layer only reads them.
type Bond struct {
	BondID       string    `json:"bond_id" validate:"required"`
	IssuerID     string    `json:"issuer_id" validate:"required"`
	PurposeID    string    `json:"purpose_id,omitempty"`
	CouponRate   *float64  `json:"coupon_rate,omitempty"`
	IssueDate    time.Time `json:"issue_date"`
	MaturityDate time.Time `json:"maturity_date"`
}

// Issuer represents a municipal issuer. StateCode is a two-letter US
// state code and may be empty for issuers without a recorded state.
type Issuer struct {
	IssuerID  string `json:"issuer_id" validate:"required"`
	Name      string `json:"name"`
	StateCode string `json:"state_code,omitempty" validate:"omitempty,len=2,uppercase"`
}

// UnspecifiedPurpose is the category used for bonds whose purpose is
// missing, matching the COALESCE in the live queries.
const UnspecifiedPurpose = "UNSPEC"

// Purpose represents a bond purpose category.
type Purpose struct {
	PurposeID string `json:"purpose_id" validate:"required"`
	Code      string `json:"code,omitempty"`
}

// Trade represents a single executed trade of a bond.
// Invariants: Quantity > 0, Price > 0.
type Trade struct {
	BondID    string    `json:"bond_id" validate:"required"`
	TradeDate time.Time `json:"trade_date"`
	Price     float64   `json:"price" validate:"gt=0"`
	Quantity  int64     `json:"quantity" validate:"gt=0"`
	BuyerType string    `json:"buyer_type,omitempty"`
}

// CreditRating represents one rating observation for a bond. A bond
// carries an ordered sequence of ratings over time; "first" is the
// earliest RatingDate and "latest" the most recent.
type CreditRating struct {
	BondID     string    `json:"bond_id" validate:"required"`
	RatingCode string    `json:"rating_code" validate:"required"`
	RatingDate time.Time `json:"rating_date"`
}

// TreasuryTenYear is the only indicator series this layer consumes.
const TreasuryTenYear = "TREASURY_10YR"

// EconomicIndicator represents one observation of a named economic
// series for a geography. TREASURY_10YR is read as a monthly series
// keyed by state.
type EconomicIndicator struct {
	IndicatorName   string    `json:"indicator_name" validate:"required"`
	GeoCode         string    `json:"geo_code"`
	PeriodStartDate time.Time `json:"period_start_date"`
	Value           float64   `json:"value"`
}
