// internal/services/amendment_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/licensecore/internal/models"
)

func TestApplyDeltas(t *testing.T) {
	license := proposedLicense()

	deltas := models.FieldDeltas{
		{Field: "fee_cents", ProposedValue: float64(150_000)}, // JSON numbers decode as float64
		{Field: "rev_share_bps", ProposedValue: 750},
		{Field: "end_date", ProposedValue: "2028-01-01T00:00:00Z"},
		{Field: "territories", ProposedValue: []interface{}{"US", "CA"}},
		{Field: "auto_renew", ProposedValue: true},
	}

	require.NoError(t, applyDeltas(license, deltas))
	assert.Equal(t, int64(150_000), license.FeeCents)
	assert.Equal(t, 750, license.RevShareBps)
	assert.Equal(t, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), license.EndDate.UTC())
	assert.Equal(t, []string{"US", "CA"}, []string(license.Scope.Territories))
	assert.True(t, license.AutoRenew)
}

func TestApplyDeltasRejectsUnknownField(t *testing.T) {
	license := proposedLicense()
	err := applyDeltas(license, models.FieldDeltas{{Field: "status", ProposedValue: "ACTIVE"}})
	assert.Error(t, err, "status is never amendable")
}

func TestApplyDeltasRejectsBadValues(t *testing.T) {
	license := proposedLicense()

	assert.Error(t, applyDeltas(license, models.FieldDeltas{
		{Field: "fee_cents", ProposedValue: "lots"},
	}))
	assert.Error(t, applyDeltas(license, models.FieldDeltas{
		{Field: "end_date", ProposedValue: "tomorrow"},
	}))
	assert.Error(t, applyDeltas(license, models.FieldDeltas{
		{Field: "territories", ProposedValue: []interface{}{1, 2}},
	}))
}

func TestAmendmentNeedsRevalidation(t *testing.T) {
	assert.True(t, amendmentNeedsRevalidation(models.AmendmentTypeFinancial))
	assert.True(t, amendmentNeedsRevalidation(models.AmendmentTypeScope))
	assert.True(t, amendmentNeedsRevalidation(models.AmendmentTypeDates))
	assert.False(t, amendmentNeedsRevalidation(models.AmendmentTypeOther))
}
