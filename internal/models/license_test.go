// internal/models/license_test.go
package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validLicense() *License {
	return &License{
		AssetID:     uuid.New(),
		BrandID:     uuid.New(),
		LicenseType: LicenseTypeNonExclusive,
		Scope:       digitalSocialScope("US"),
		StartDate:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		FeeCents:    100_000,
		RevShareBps: 500,
	}
}

func TestLicenseValidate(t *testing.T) {
	assert.NoError(t, validLicense().Validate())

	tests := []struct {
		name   string
		mutate func(*License)
	}{
		{"end before start", func(l *License) { l.EndDate = l.StartDate.AddDate(0, 0, -1) }},
		{"end equals start", func(l *License) { l.EndDate = l.StartDate }},
		{"negative fee", func(l *License) { l.FeeCents = -1 }},
		{"rev share above 100%", func(l *License) { l.RevShareBps = BpsDenominator + 1 }},
		{"negative rev share", func(l *License) { l.RevShareBps = -1 }},
		{"no media rights", func(l *License) { l.Scope.MediaDigital = false }},
		{"no placement rights", func(l *License) { l.Scope.PlacementSocial = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := validLicense()
			tt.mutate(l)
			assert.Error(t, l.Validate())
		})
	}
}

func TestDurationDays(t *testing.T) {
	l := validLicense()
	assert.Equal(t, 365, l.DurationDays())
}

func TestDatesOverlap(t *testing.T) {
	jan := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	jun := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	sep := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, DatesOverlap(jan, jun, mar, sep))
	assert.True(t, DatesOverlap(mar, sep, jan, jun))
	assert.False(t, DatesOverlap(jan, mar, jun, sep))

	// Half-open windows: one ending exactly when the other starts is clear.
	assert.False(t, DatesOverlap(jan, mar, mar, jun))
}

func TestTermsHashStableAndSensitive(t *testing.T) {
	l := validLicense()
	h1 := l.TermsHash()
	require.Len(t, h1, 64)
	assert.Equal(t, h1, l.TermsHash())

	l.FeeCents++
	assert.NotEqual(t, h1, l.TermsHash())
}

func TestSignedBy(t *testing.T) {
	l := validLicense()
	party := uuid.New()
	assert.False(t, l.SignedBy(party))

	l.Signatures = append(l.Signatures, Signature{PartyID: party, TermsHash: l.TermsHash()})
	assert.True(t, l.SignedBy(party))

	// A term change invalidates prior signatures.
	l.EndDate = l.EndDate.AddDate(0, 1, 0)
	assert.False(t, l.SignedBy(party))
}

func TestHybridPricing(t *testing.T) {
	l := validLicense()
	assert.True(t, l.HybridPricing())

	l.RevShareBps = 0
	assert.False(t, l.HybridPricing())

	l.RevShareBps = 500
	l.FeeCents = 0
	assert.False(t, l.HybridPricing())
}
