// internal/services/renewal_pricing_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensecore/internal/models"
)

func renewableLicense() *models.License {
	l := proposedLicense()
	l.StartDate = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.EndDate = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	l.FeeCents = 100_000
	return l
}

func adjustmentNames(adjustments models.PricingAdjustments) []string {
	names := make([]string, len(adjustments))
	for i, a := range adjustments {
		names[i] = a.Name
	}
	return names
}

func TestComputeRenewalPricingPipeline(t *testing.T) {
	cfg := testLicensingConfig()
	license := renewableLicense()
	license.RenewalCount = 2 // pricing the third renewal

	// More than 60 days before expiry qualifies for the early discount.
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	fee, adjustments, confidence := ComputeRenewalPricing(license, models.PricingFlatRenewal, UsageMetrics{}, now, cfg)

	// 100000 +5% inflation = 105000, -10% loyalty = 94500, -5% early = 89775
	assert.Equal(t, int64(89_775), fee)
	assert.Equal(t, []string{"inflation", "loyalty", "early_renewal"}, adjustmentNames(adjustments))
	assert.InDelta(t, 0.9, confidence, 0.001)
}

func TestComputeRenewalPricingNoDiscounts(t *testing.T) {
	cfg := testLicensingConfig()
	license := renewableLicense()

	// Inside the early-renewal cutoff, first renewal: inflation only.
	now := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)

	fee, adjustments, _ := ComputeRenewalPricing(license, models.PricingFlatRenewal, UsageMetrics{}, now, cfg)
	assert.Equal(t, int64(105_000), fee)
	assert.Equal(t, []string{"inflation"}, adjustmentNames(adjustments))
}

func TestComputeRenewalPricingLoyaltyTiers(t *testing.T) {
	tests := []struct {
		renewalNumber int
		wantPct       int
	}{
		{1, 0},
		{2, -5},
		{3, -10},
		{4, -10},
		{5, -15},
		{9, -15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantPct, loyaltyDiscountPct(tt.renewalNumber), "renewal %d", tt.renewalNumber)
	}
}

func TestComputeRenewalPricingUsageStrategy(t *testing.T) {
	cfg := testLicensingConfig()
	license := renewableLicense()
	now := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)

	fee, adjustments, confidence := ComputeRenewalPricing(license, models.PricingUsageBased,
		UsageMetrics{UtilizationPct: 85}, now, cfg)

	// 105000 after inflation, +10% usage = 115500
	assert.Equal(t, int64(115_500), fee)
	assert.Contains(t, adjustmentNames(adjustments), "usage")
	assert.InDelta(t, 0.8, confidence, 0.001)
}

func TestComputeRenewalPricingCap(t *testing.T) {
	cfg := testLicensingConfig()
	license := renewableLicense()
	now := time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC)

	// +5% inflation then +15% performance would land at 120750; with a
	// tighter cap the amount clamps to +10% of the original fee.
	cfg.MaxIncreasePct = 10
	fee, adjustments, _ := ComputeRenewalPricing(license, models.PricingPerformanceBased,
		UsageMetrics{PerformanceScore: 95}, now, cfg)

	assert.Equal(t, int64(110_000), fee)
	assert.Contains(t, adjustmentNames(adjustments), "cap")
}

func TestComputeRenewalPricingMinimumFloor(t *testing.T) {
	cfg := testLicensingConfig()
	cfg.MaxDecreasePct = 90
	license := renewableLicense()
	license.FeeCents = 6_000
	license.RenewalCount = 10
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	fee, adjustments, _ := ComputeRenewalPricing(license, models.PricingFlatRenewal, UsageMetrics{}, now, cfg)
	// 6000 +5% = 6300, -15% = 5355, -5% = 5087, above the 5000 floor.
	require.GreaterOrEqual(t, fee, cfg.MinimumFeeCents)

	license.FeeCents = 5_100
	fee, adjustments, _ = ComputeRenewalPricing(license, models.PricingFlatRenewal, UsageMetrics{}, now, cfg)
	assert.Equal(t, cfg.MinimumFeeCents, fee)
	assert.Contains(t, adjustmentNames(adjustments), "minimum_fee")
}

func TestComputeRenewalPricingAutomaticStrategy(t *testing.T) {
	assert.Equal(t, models.PricingPerformanceBased, pickStrategy(UsageMetrics{PerformanceScore: 80}))
	assert.Equal(t, models.PricingUsageBased, pickStrategy(UsageMetrics{UtilizationPct: 40}))
	assert.Equal(t, models.PricingMarketRate, pickStrategy(UsageMetrics{MarketDeltaPct: -3}))
	assert.Equal(t, models.PricingFlatRenewal, pickStrategy(UsageMetrics{}))
}

func TestComputeRenewalPricingMultiYearInflation(t *testing.T) {
	cfg := testLicensingConfig()
	license := renewableLicense()
	license.EndDate = license.StartDate.AddDate(2, 0, 0)
	now := time.Date(2027, 12, 15, 0, 0, 0, 0, time.UTC)

	fee, _, _ := ComputeRenewalPricing(license, models.PricingFlatRenewal, UsageMetrics{}, now, cfg)
	// Two-year term compounds as a single +10% step: 110000.
	assert.Equal(t, int64(110_000), fee)
}
