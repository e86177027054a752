package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Instrument approval states. New instruments start PENDING and are
// only investable once APPROVED.
const (
	InstrumentStatusPending  = "PENDING"
	InstrumentStatusApproved = "APPROVED"
	InstrumentStatusRejected = "REJECTED"
	InstrumentStatusClosed   = "CLOSED"
)

// Scheme investment states. MATURED is terminal.
const (
	InvestmentStatusActive  = "ACTIVE"
	InvestmentStatusMatured = "MATURED"
)

// Scheme is a fixed-deposit style instrument defined by a business
// user. Its terms are snapshotted onto each SchemeInvestment at
// subscription time, so later edits never change a running holding.
type Scheme struct {
	ID              int64                  `json:"-"`
	SchemeID        string                 `json:"scheme_id"`
	CreatorID       string                 `json:"creator_id"`
	ProjectID       string                 `json:"project_id,omitempty"`
	Title           string                 `json:"title"`
	InterestPercent float64                `json:"interest_percent"`
	MaturityDays    int                    `json:"maturity_days"`
	ScheduleDays    int                    `json:"schedule_days"`
	MinAmount       int64                  `json:"min_amount"`
	Status          string                 `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	MetaData        map[string]interface{} `json:"meta_data,omitempty"`
}

// SchemeInvestment is one fixed-deposit holding. Principal is int64
// minor units; accumulated interest is kept as an exact decimal in
// minor units so daily accruals never lose precision, and is only
// rounded when a payout entry is posted.
type SchemeInvestment struct {
	ID                  int64                  `json:"-"`
	InvestmentID        string                 `json:"investment_id"`
	SchemeID            string                 `json:"scheme_id"`
	OwnerID             string                 `json:"owner_id"`
	CreatorID           string                 `json:"creator_id"`
	ProjectID           string                 `json:"project_id,omitempty"`
	Principal           int64                  `json:"principal"`
	InterestPercent     float64                `json:"interest_percent"`
	MaturityDays        int                    `json:"maturity_days"`
	ScheduleDays        int                    `json:"schedule_days"`
	StartDate           time.Time              `json:"start_date"`
	MaturityDate        time.Time              `json:"maturity_date"`
	Status              string                 `json:"status"`
	AccumulatedInterest decimal.Decimal        `json:"accumulated_interest"`
	TotalInterestPaid   decimal.Decimal        `json:"total_interest_paid"`
	LastAccruedAt       *time.Time             `json:"last_interest_calculation_date,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	MetaData            map[string]interface{} `json:"meta_data,omitempty"`
}

// DailyInterest returns the simple (non-compounding) interest accrued
// per calendar day, in minor units: principal * percent / (100 * 365).
// A 365-day year is used regardless of leap years.
func (si *SchemeInvestment) DailyInterest() decimal.Decimal {
	return decimal.NewFromInt(si.Principal).
		Mul(decimal.NewFromFloat(si.InterestPercent)).
		Div(decimal.NewFromInt(36500))
}

// IsMatured reports whether the investment has reached its maturity
// date as of the given day.
func (si *SchemeInvestment) IsMatured(asOf time.Time) bool {
	return !si.MaturityDate.After(asOf)
}

// AccruedToday reports whether interest was already accrued on the
// calendar day of asOf. This is the re-run guard for the daily job:
// accrual marks each investment as it goes, so a crashed batch can be
// retried without double-accruing.
func (si *SchemeInvestment) AccruedToday(asOf time.Time) bool {
	if si.LastAccruedAt == nil {
		return false
	}
	y1, m1, d1 := si.LastAccruedAt.In(asOf.Location()).Date()
	y2, m2, d2 := asOf.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// DaysSinceStart is the whole number of days between the start date and
// asOf, used for the periodic payout schedule check.
func (si *SchemeInvestment) DaysSinceStart(asOf time.Time) int {
	return int(asOf.Sub(si.StartDate).Hours() / 24)
}

// PayoutDue reports whether a periodic payout fires on asOf:
// day > 0, the day lands on the schedule, and there is uncommitted
// interest to pay.
func (si *SchemeInvestment) PayoutDue(asOf time.Time) bool {
	if si.ScheduleDays <= 0 {
		return false
	}
	days := si.DaysSinceStart(asOf)
	return days > 0 && days%si.ScheduleDays == 0 && si.AccumulatedInterest.IsPositive()
}

// RoundToMinor rounds a decimal minor-unit amount to whole minor units
// for posting to the ledger.
func RoundToMinor(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
