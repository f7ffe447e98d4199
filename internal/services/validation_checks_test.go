// internal/services/validation_checks_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

func testLicensingConfig() *config.LicensingConfig {
	return &config.LicensingConfig{
		ExpiringSoonDays:         30,
		UnverifiedBudgetCapCents: 1_000_000,
		HighValueThresholdCents:  500_000,
		MinimumFeeCents:          5_000,
		InflationPctPerYear:      5,
		MaxIncreasePct:           25,
		MaxDecreasePct:           25,
		EarlyRenewalDays:         60,
		LongTermDays:             365,
	}
}

func proposedLicense() *models.License {
	return &models.License{
		AssetID:     uuid.New(),
		BrandID:     uuid.New(),
		LicenseType: models.LicenseTypeNonExclusive,
		Scope: models.Scope{
			MediaDigital:    true,
			PlacementSocial: true,
			Territories:     []string{"US"},
		},
		StartDate:   time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2027, 10, 1, 0, 0, 0, 0, time.UTC),
		FeeCents:    100_000,
		RevShareBps: 0,
	}
}

func existingLicense(assetID uuid.UUID, lt models.LicenseType) models.License {
	l := models.License{
		ReferenceNumber: "LIC-202601-ABCDEF",
		AssetID:         assetID,
		BrandID:         uuid.New(),
		LicenseType:     lt,
		Scope: models.Scope{
			MediaDigital:    true,
			PlacementSocial: true,
			Territories:     []string{"US"},
		},
		StartDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.StatusActive,
	}
	l.ID = uuid.New()
	return l
}

func TestCheckDateRange(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid range passes", func(t *testing.T) {
		result := CheckDateRange(proposedLicense(), nil, now)
		assert.True(t, result.Passed)
		assert.Empty(t, result.Warnings)
	})

	t.Run("inverted range fails", func(t *testing.T) {
		p := proposedLicense()
		p.EndDate = p.StartDate.AddDate(0, 0, -1)
		result := CheckDateRange(p, nil, now)
		assert.False(t, result.Passed)
	})

	t.Run("past start warns without failing", func(t *testing.T) {
		p := proposedLicense()
		p.StartDate = now.AddDate(0, -1, 0)
		result := CheckDateRange(p, nil, now)
		assert.True(t, result.Passed)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("overlapping window reports info conflict", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		result := CheckDateRange(p, []models.License{other}, now)
		assert.True(t, result.Passed)
		require.Len(t, result.Conflicts, 1)
		assert.Equal(t, models.ConflictDateOverlap, result.Conflicts[0].Type)
		assert.Equal(t, models.SeverityInfo, result.Conflicts[0].Severity)
	})
}

func TestCheckExclusivity(t *testing.T) {
	t.Run("existing exclusive blocks everything", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeExclusive)
		result := CheckExclusivity(p, []models.License{other})
		assert.False(t, result.Passed)
		require.NotEmpty(t, result.Conflicts)
		assert.Equal(t, models.ConflictExclusiveOverlap, result.Conflicts[0].Type)
		assert.Equal(t, models.SeverityCritical, result.Conflicts[0].Severity)
	})

	t.Run("territory exclusive blocks only overlapping territory", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeExclusiveTerritory)

		result := CheckExclusivity(p, []models.License{other})
		assert.False(t, result.Passed, "US vs US must conflict")

		p.Scope.Territories = []string{"JP"}
		result = CheckExclusivity(p, []models.License{other})
		assert.True(t, result.Passed, "JP vs US must not conflict")
	})

	t.Run("global territory overlaps everything", func(t *testing.T) {
		p := proposedLicense()
		p.Scope.Territories = []string{models.TerritoryGlobal}
		other := existingLicense(p.AssetID, models.LicenseTypeExclusiveTerritory)
		result := CheckExclusivity(p, []models.License{other})
		assert.False(t, result.Passed)
	})

	t.Run("proposed exclusivity blocked by existing grant", func(t *testing.T) {
		p := proposedLicense()
		p.LicenseType = models.LicenseTypeExclusive
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		result := CheckExclusivity(p, []models.License{other})
		assert.False(t, result.Passed)
	})

	t.Run("non-exclusive overlap only warns", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		result := CheckExclusivity(p, []models.License{other})
		assert.True(t, result.Passed)
		assert.NotEmpty(t, result.Warnings)
	})

	t.Run("blocked competitor fails", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		other.Scope.BlockedCompetitorIDs = []string{p.BrandID.String()}
		result := CheckExclusivity(p, []models.License{other})
		assert.False(t, result.Passed)
	})

	t.Run("disjoint window ignores existing exclusive", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeExclusive)
		other.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		other.EndDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		result := CheckExclusivity(p, []models.License{other})
		assert.True(t, result.Passed)
	})
}

func TestCheckScopeConflict(t *testing.T) {
	t.Run("empty media fails", func(t *testing.T) {
		p := proposedLicense()
		p.Scope.MediaDigital = false
		result := CheckScopeConflict(p, nil)
		assert.False(t, result.Passed)
	})

	t.Run("identical scope fails", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		other.Scope = p.Scope
		result := CheckScopeConflict(p, []models.License{other})
		assert.False(t, result.Passed)
		require.NotEmpty(t, result.Conflicts)
		assert.Equal(t, models.SeverityCritical, result.Conflicts[0].Severity)
	})

	t.Run("partial intersection warns", func(t *testing.T) {
		p := proposedLicense()
		other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
		other.Scope.PlacementSocial = false
		other.Scope.PlacementWeb = true
		result := CheckScopeConflict(p, []models.License{other})
		assert.True(t, result.Passed)
		assert.NotEmpty(t, result.Warnings)
	})
}

func TestCheckBudgetAvailability(t *testing.T) {
	cfg := testLicensingConfig()

	t.Run("unverified brand over cap fails", func(t *testing.T) {
		p := proposedLicense()
		p.FeeCents = 300_000
		standing := &BrandStanding{Verified: false}
		result := CheckBudgetAvailability(p, 800_000, standing, cfg)
		assert.False(t, result.Passed)
		require.NotEmpty(t, result.Conflicts)
		assert.Equal(t, models.ConflictRevenueCapacity, result.Conflicts[0].Type)
	})

	t.Run("unverified brand under cap passes", func(t *testing.T) {
		p := proposedLicense()
		standing := &BrandStanding{Verified: false}
		result := CheckBudgetAvailability(p, 500_000, standing, cfg)
		assert.True(t, result.Passed)
	})

	t.Run("verified brand over threshold only warns", func(t *testing.T) {
		p := proposedLicense()
		p.FeeCents = 2_000_000
		standing := &BrandStanding{Verified: true}
		result := CheckBudgetAvailability(p, 0, standing, cfg)
		assert.True(t, result.Passed)
		assert.NotEmpty(t, result.Warnings)
	})
}

func TestCheckOwnershipVerification(t *testing.T) {
	cfg := testLicensingConfig()
	asset := &models.Asset{Status: models.AssetStatusLicensable}

	fullOwnership := []models.OwnershipRecord{
		{OwnerID: uuid.New(), ShareBps: 6000, IsPrimary: true, Status: models.OwnershipStatusActive, OwnerActive: true},
		{OwnerID: uuid.New(), ShareBps: 4000, Status: models.OwnershipStatusActive, OwnerActive: true},
	}

	t.Run("complete ownership passes", func(t *testing.T) {
		result := CheckOwnershipVerification(proposedLicense(), asset, fullOwnership, true, cfg)
		assert.True(t, result.Passed)
	})

	t.Run("shares not summing to 100% fail", func(t *testing.T) {
		records := []models.OwnershipRecord{
			{OwnerID: uuid.New(), ShareBps: 9500, IsPrimary: true, Status: models.OwnershipStatusActive, OwnerActive: true},
		}
		result := CheckOwnershipVerification(proposedLicense(), asset, records, true, cfg)
		assert.False(t, result.Passed)
		assert.Contains(t, result.Errors[0], "9500")
	})

	t.Run("disputed record fails", func(t *testing.T) {
		records := append([]models.OwnershipRecord{}, fullOwnership...)
		records = append(records, models.OwnershipRecord{Status: models.OwnershipStatusDisputed})
		result := CheckOwnershipVerification(proposedLicense(), asset, records, true, cfg)
		assert.False(t, result.Passed)
	})

	t.Run("inactive owner fails", func(t *testing.T) {
		records := []models.OwnershipRecord{
			{OwnerID: uuid.New(), ShareBps: 10000, IsPrimary: true, Status: models.OwnershipStatusActive, OwnerActive: false},
		}
		result := CheckOwnershipVerification(proposedLicense(), asset, records, true, cfg)
		assert.False(t, result.Passed)
	})

	t.Run("missing primary owner fails", func(t *testing.T) {
		records := []models.OwnershipRecord{
			{OwnerID: uuid.New(), ShareBps: 10000, Status: models.OwnershipStatusActive, OwnerActive: true},
		}
		result := CheckOwnershipVerification(proposedLicense(), asset, records, true, cfg)
		assert.False(t, result.Passed)
	})

	t.Run("non-licensable asset fails", func(t *testing.T) {
		withdrawn := &models.Asset{Status: models.AssetStatusWithdrawn}
		result := CheckOwnershipVerification(proposedLicense(), withdrawn, fullOwnership, true, cfg)
		assert.False(t, result.Passed)
	})

	t.Run("high value without documentation fails", func(t *testing.T) {
		p := proposedLicense()
		p.FeeCents = 600_000
		result := CheckOwnershipVerification(p, asset, fullOwnership, false, cfg)
		assert.False(t, result.Passed)
	})
}

func TestRequiredApproverRoles(t *testing.T) {
	cfg := testLicensingConfig()

	t.Run("plain proposal needs nobody", func(t *testing.T) {
		roles := RequiredApproverRoles(proposedLicense(), true, cfg)
		assert.Empty(t, roles)
	})

	t.Run("high value needs creator and admin", func(t *testing.T) {
		p := proposedLicense()
		p.FeeCents = 600_000
		roles := RequiredApproverRoles(p, true, cfg)
		assert.Contains(t, roles, models.ApproverRoleCreator)
		assert.Contains(t, roles, models.ApproverRoleAdmin)
	})

	t.Run("exclusivity needs creator", func(t *testing.T) {
		p := proposedLicense()
		p.LicenseType = models.LicenseTypeExclusive
		roles := RequiredApproverRoles(p, true, cfg)
		assert.Contains(t, roles, models.ApproverRoleCreator)
		assert.NotContains(t, roles, models.ApproverRoleAdmin)
	})

	t.Run("unverified brand needs admin", func(t *testing.T) {
		roles := RequiredApproverRoles(proposedLicense(), false, cfg)
		assert.Contains(t, roles, models.ApproverRoleAdmin)
	})

	t.Run("long term needs creator", func(t *testing.T) {
		p := proposedLicense()
		p.EndDate = p.StartDate.AddDate(2, 0, 0)
		roles := RequiredApproverRoles(p, true, cfg)
		assert.Contains(t, roles, models.ApproverRoleCreator)
	})

	t.Run("hybrid pricing needs admin", func(t *testing.T) {
		p := proposedLicense()
		p.RevShareBps = 500
		roles := RequiredApproverRoles(p, true, cfg)
		assert.Contains(t, roles, models.ApproverRoleAdmin)
	})
}
