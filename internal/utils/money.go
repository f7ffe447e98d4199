// internal/utils/money.go
package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// All money arithmetic in this module is integer cents with floor
// rounding. One policy everywhere keeps financial reconciliation
// deterministic.

// ApplyPct adjusts an amount by a whole-percent delta, flooring toward
// zero. ApplyPct(10000, -10) == 9000.
func ApplyPct(amountCents int64, pct int) int64 {
	return amountCents * int64(100+pct) / 100
}

// PctChange returns the whole-percent change from base to value, floored.
// Returns 0 for a zero base.
func PctChange(base, value int64) int {
	if base == 0 {
		return 0
	}
	return int((value - base) * 100 / base)
}

// ClampToPctRange bounds value to [base*(1-maxDecreasePct), base*(1+maxIncreasePct)].
func ClampToPctRange(base, value int64, maxIncreasePct, maxDecreasePct int) int64 {
	upper := ApplyPct(base, maxIncreasePct)
	lower := ApplyPct(base, -maxDecreasePct)
	if value > upper {
		return upper
	}
	if value < lower {
		return lower
	}
	return value
}

// GenerateReferenceNumber produces a human-readable unique license
// reference of the form LIC-YYYYMM-XXXXXX.
func GenerateReferenceNumber(now time.Time) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	suffix := make([]byte, 6)
	max := big.NewInt(int64(len(alphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failure is unrecoverable in practice
			panic(err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("LIC-%s-%s", now.UTC().Format("200601"), string(suffix))
}
