// internal/services/conflict_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensecore/internal/models"
)

func conflictsOfType(conflicts []models.Conflict, t models.ConflictType) []models.Conflict {
	var out []models.Conflict
	for _, c := range conflicts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

func TestDetectConflictsExclusive(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeExclusive)

	conflicts := DetectConflicts(p, []models.License{other})
	require.NotEmpty(t, conflicts)
	assert.Equal(t, models.ConflictExclusiveOverlap, conflicts[0].Type)
	assert.Equal(t, models.SeverityCritical, conflicts[0].Severity)
	assert.Equal(t, other.ID, conflicts[0].ConflictingLicenseID)
	assert.True(t, HasCritical(conflicts))
}

func TestDetectConflictsTerritoryExclusive(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeExclusiveTerritory)

	conflicts := DetectConflicts(p, []models.License{other})
	assert.NotEmpty(t, conflictsOfType(conflicts, models.ConflictTerritoryOverlap))

	p.Scope.Territories = []string{"JP"}
	conflicts = DetectConflicts(p, []models.License{other})
	assert.Empty(t, conflictsOfType(conflicts, models.ConflictTerritoryOverlap))
	assert.False(t, HasCritical(conflicts))
}

func TestDetectConflictsSymmetricExclusivity(t *testing.T) {
	p := proposedLicense()
	p.LicenseType = models.LicenseTypeExclusive
	other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)

	conflicts := DetectConflicts(p, []models.License{other})
	assert.NotEmpty(t, conflictsOfType(conflicts, models.ConflictExclusiveOverlap))
	assert.True(t, HasCritical(conflicts))
}

func TestDetectConflictsNonExclusivePair(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
	other.Scope.PlacementSocial = false
	other.Scope.PlacementWeb = true

	conflicts := DetectConflicts(p, []models.License{other})
	assert.NotEmpty(t, conflictsOfType(conflicts, models.ConflictDateOverlap))
	assert.False(t, HasCritical(conflicts))
}

func TestDetectConflictsIdenticalScope(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
	other.Scope = p.Scope

	conflicts := DetectConflicts(p, []models.License{other})
	scope := conflictsOfType(conflicts, models.ConflictScopeOverlap)
	require.NotEmpty(t, scope)
	assert.Equal(t, models.SeverityCritical, scope[0].Severity)
}

func TestDetectConflictsCompetitorBlocked(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeNonExclusive)
	other.Scope.BlockedCompetitorIDs = []string{p.BrandID.String()}

	conflicts := DetectConflicts(p, []models.License{other})
	assert.NotEmpty(t, conflictsOfType(conflicts, models.ConflictCompetitorBlocked))
	assert.True(t, HasCritical(conflicts))
}

func TestDetectConflictsDisjointWindows(t *testing.T) {
	p := proposedLicense()
	other := existingLicense(p.AssetID, models.LicenseTypeExclusive)
	other.StartDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	other.EndDate = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	conflicts := DetectConflicts(p, []models.License{other})
	assert.Empty(t, conflicts)
}

func TestDetectConflictsNoExisting(t *testing.T) {
	assert.Empty(t, DetectConflicts(proposedLicense(), nil))
}
