// internal/utils/money_test.go
package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyPct(t *testing.T) {
	tests := []struct {
		amount int64
		pct    int
		want   int64
	}{
		{10_000, 5, 10_500},
		{10_000, -10, 9_000},
		{10_000, 0, 10_000},
		{999, 5, 1_048}, // 1048.95 floors
		{999, -5, 949},  // 949.05 floors
		{0, 50, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ApplyPct(tt.amount, tt.pct), "ApplyPct(%d, %d)", tt.amount, tt.pct)
	}
}

func TestPctChange(t *testing.T) {
	assert.Equal(t, 25, PctChange(100, 125))
	assert.Equal(t, -50, PctChange(100, 50))
	assert.Equal(t, 0, PctChange(100, 100))
	assert.Equal(t, 0, PctChange(0, 500))
	assert.Equal(t, 19, PctChange(1000, 1199)) // floors toward zero
}

func TestClampToPctRange(t *testing.T) {
	assert.Equal(t, int64(125), ClampToPctRange(100, 300, 25, 25))
	assert.Equal(t, int64(75), ClampToPctRange(100, 10, 25, 25))
	assert.Equal(t, int64(110), ClampToPctRange(100, 110, 25, 25))
}

func TestGenerateReferenceNumber(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^LIC-202608-[ABCDEFGHJKLMNPQRSTUVWXYZ23456789]{6}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := GenerateReferenceNumber(now)
		assert.Regexp(t, pattern, ref)
		seen[ref] = true
	}
	assert.Greater(t, len(seen), 90, "references should be effectively unique")
}
