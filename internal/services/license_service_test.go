// internal/services/license_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

func guardTestService() *LicenseService {
	cfg := &config.Config{}
	cfg.Licensing = *testLicensingConfig()
	cfg.Licensing.MaxDirectFinancialDeltaPct = 20
	return &LicenseService{config: cfg}
}

func activeLicense() *models.License {
	l := proposedLicense()
	l.Status = models.StatusActive
	return l
}

func TestGuardDirectUpdateAllowsAnythingOnDrafts(t *testing.T) {
	s := guardTestService()
	current := proposedLicense()
	current.Status = models.StatusDraft

	updated := *current
	updated.FeeCents = current.FeeCents * 10
	updated.Scope.MediaPrint = true

	assert.NoError(t, s.GuardDirectUpdate(current, &updated))
}

func TestGuardDirectUpdateBlocksScopeChanges(t *testing.T) {
	s := guardTestService()
	current := activeLicense()

	updated := *current
	updated.Scope.MediaPrint = true

	assert.Error(t, s.GuardDirectUpdate(current, &updated))
}

func TestGuardDirectUpdateBlocksDateChanges(t *testing.T) {
	s := guardTestService()
	current := activeLicense()

	updated := *current
	updated.EndDate = current.EndDate.AddDate(0, 1, 0)

	assert.Error(t, s.GuardDirectUpdate(current, &updated))
}

func TestGuardDirectUpdateFinancialThreshold(t *testing.T) {
	s := guardTestService()
	current := activeLicense()
	current.FeeCents = 100_000

	updated := *current
	updated.FeeCents = 115_000 // +15%, inside the 20% limit
	assert.NoError(t, s.GuardDirectUpdate(current, &updated))

	updated.FeeCents = 130_000 // +30%
	assert.Error(t, s.GuardDirectUpdate(current, &updated))

	updated.FeeCents = 70_000 // -30%
	assert.Error(t, s.GuardDirectUpdate(current, &updated))
}
