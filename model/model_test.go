package model

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("wal")
	assert.Contains(t, id, "wal_")
}

func TestInt64ToBigInt(t *testing.T) {
	value := int64(123456789)
	assert.Equal(t, big.NewInt(value), Int64ToBigInt(value))
}

func TestWallet_ApplyCredit(t *testing.T) {
	wallet := &Wallet{}
	wallet.ApplyCredit(50000)
	assert.Equal(t, big.NewInt(50000), wallet.CreditBalance)
	assert.Equal(t, big.NewInt(50000), wallet.Balance)
}

func TestWallet_ApplyDebit(t *testing.T) {
	wallet := &Wallet{}
	wallet.ApplyCredit(50000)
	wallet.ApplyDebit(20000)
	assert.Equal(t, big.NewInt(20000), wallet.DebitBalance)
	assert.Equal(t, big.NewInt(30000), wallet.Balance)
}

func TestWallet_BalanceInvariant(t *testing.T) {
	wallet := &Wallet{}
	credits := []int64{100, 250000, 1}
	debits := []int64{50, 100000}
	var creditSum, debitSum int64
	for _, c := range credits {
		wallet.ApplyCredit(c)
		creditSum += c
	}
	for _, d := range debits {
		wallet.ApplyDebit(d)
		debitSum += d
	}
	assert.Equal(t, big.NewInt(creditSum-debitSum), wallet.Balance)
}

func TestWallet_CanDebit(t *testing.T) {
	wallet := &Wallet{}
	wallet.ApplyCredit(50000) // 500.00
	assert.True(t, wallet.CanDebit(50000))
	assert.False(t, wallet.CanDebit(60000))
}

func TestSchemeInvestment_DailyInterest(t *testing.T) {
	// principal 100,000.00 at 12% -> 100000*12/36500 = 32.876712.. per day
	si := &SchemeInvestment{
		Principal:       10000000,
		InterestPercent: 12,
	}
	daily := si.DailyInterest()
	expected := decimal.NewFromInt(10000000).Mul(decimal.NewFromInt(12)).Div(decimal.NewFromInt(36500))
	assert.True(t, daily.Equal(expected))

	// thirty days of accrual lands at ~986.30 major units
	total := daily.Mul(decimal.NewFromInt(30))
	assert.Equal(t, int64(98630), RoundToMinor(total))
}

func TestSchemeInvestment_AccruedToday(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	si := &SchemeInvestment{}
	assert.False(t, si.AccruedToday(now))

	earlier := now.Add(-3 * time.Hour)
	si.LastAccruedAt = &earlier
	assert.True(t, si.AccruedToday(now))

	yesterday := now.AddDate(0, 0, -1)
	si.LastAccruedAt = &yesterday
	assert.False(t, si.AccruedToday(now))

	// an accrual shortly before midnight belongs to the previous
	// calendar day even when only minutes have passed
	crossed := time.Date(2025, 6, 10, 0, 30, 0, 0, time.UTC)
	beforeMidnight := crossed.Add(-1 * time.Hour)
	si.LastAccruedAt = &beforeMidnight
	assert.False(t, si.AccruedToday(crossed))
}

func TestSchemeInvestment_PayoutDue(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	si := &SchemeInvestment{
		StartDate:           start,
		ScheduleDays:        30,
		AccumulatedInterest: decimal.NewFromInt(98630),
	}

	assert.False(t, si.PayoutDue(start))                    // day 0 never pays
	assert.False(t, si.PayoutDue(start.AddDate(0, 0, 29))) // off schedule
	assert.True(t, si.PayoutDue(start.AddDate(0, 0, 30)))
	assert.True(t, si.PayoutDue(start.AddDate(0, 0, 60)))

	si.AccumulatedInterest = decimal.Zero
	assert.False(t, si.PayoutDue(start.AddDate(0, 0, 30))) // nothing to pay
}

func TestSchemeInvestment_IsMatured(t *testing.T) {
	maturity := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	si := &SchemeInvestment{MaturityDate: maturity}
	assert.False(t, si.IsMatured(maturity.AddDate(0, 0, -1)))
	assert.True(t, si.IsMatured(maturity))
	assert.True(t, si.IsMatured(maturity.AddDate(0, 0, 5)))
}

func TestRoundToMinor(t *testing.T) {
	assert.Equal(t, int64(98630), RoundToMinor(decimal.RequireFromString("98630.1369863")))
	assert.Equal(t, int64(98631), RoundToMinor(decimal.RequireFromString("98630.5")))
}

func TestBigIntToDisplay(t *testing.T) {
	assert.Equal(t, 500.0, BigIntToDisplay(big.NewInt(50000)))
	assert.Equal(t, 0.0, BigIntToDisplay(nil))
}
