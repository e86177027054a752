package model

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID prefixed with a module tag
// (e.g. "wal_", "len_"). This keeps identifiers self-describing across
// the ledger, settlement and scheme records.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	return fmt.Sprintf("%s_%s", module, id.String())
}

// Int64ToBigInt converts an int64 minor-unit amount to a *big.Int for
// balance arithmetic.
func Int64ToBigInt(value int64) *big.Int {
	return big.NewInt(value)
}

// MinorToDisplay converts a minor-unit amount to a major-unit float for
// presentation. All internal arithmetic stays in minor units; this is
// the only place precision is allowed to drop.
func MinorToDisplay(minor int64) float64 {
	return float64(minor) / 100
}

// BigIntToDisplay converts a minor-unit big.Int balance to a major-unit
// float for presentation.
func BigIntToDisplay(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(value), big.NewFloat(100)).Float64()
	return f
}
