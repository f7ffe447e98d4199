// internal/services/validation_checks.go
package services

import (
	"fmt"
	"time"

	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

// The six validation checks. Each is a pure function over prefetched data
// so the rules are testable without a database.

const (
	CheckNameDateRange   = "date_range"
	CheckNameExclusivity = "exclusivity"
	CheckNameScope       = "scope_conflict"
	CheckNameBudget      = "budget_availability"
	CheckNameOwnership   = "ownership_verification"
	CheckNameApprovals   = "approval_requirements"
)

func (c *CheckResult) fail(msg string) {
	c.Passed = false
	c.Errors = append(c.Errors, msg)
}

func (c *CheckResult) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

// CheckDateRange enforces the term invariant and reports date overlaps
// with competing licenses. A start date in the past is a warning, not an
// error: backdated agreements are legal, just unusual.
func CheckDateRange(proposed *models.License, existing []models.License, now time.Time) CheckResult {
	result := CheckResult{Name: CheckNameDateRange, Passed: true}

	if !proposed.EndDate.After(proposed.StartDate) {
		result.fail("end date must be after start date")
		return result
	}

	if proposed.StartDate.Before(now.Truncate(24 * time.Hour)) {
		result.warn("start date is in the past")
	}

	for i := range existing {
		other := &existing[i]
		if other.OverlapsWindow(proposed.StartDate, proposed.EndDate) {
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictDateOverlap,
				Severity:             models.SeverityInfo,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("window overlaps license %s", other.ReferenceNumber),
			})
		}
	}

	return result
}

// CheckExclusivity blocks the proposal when it collides with an exclusive
// grant in either direction. Two non-exclusive licenses may coexist but
// the overlapping scope is surfaced as a warning.
func CheckExclusivity(proposed *models.License, existing []models.License) CheckResult {
	result := CheckResult{Name: CheckNameExclusivity, Passed: true}

	for i := range existing {
		other := &existing[i]
		if !other.OverlapsWindow(proposed.StartDate, proposed.EndDate) {
			continue
		}

		overlap := proposed.Scope.Overlaps(other.Scope)

		switch {
		case other.LicenseType == models.LicenseTypeExclusive:
			result.fail(fmt.Sprintf("asset is exclusively licensed under %s for the requested window", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictExclusiveOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "existing exclusive license blocks all new grants",
			})

		case other.LicenseType == models.LicenseTypeExclusiveTerritory && overlap.Territory:
			result.fail(fmt.Sprintf("territory conflicts with territory-exclusive license %s", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictTerritoryOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "existing territory-exclusive license covers an overlapping territory",
			})

		case proposed.LicenseType == models.LicenseTypeExclusive:
			result.fail(fmt.Sprintf("cannot grant exclusivity while license %s is active in the window", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictExclusiveOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "requested exclusivity collides with an existing grant",
			})

		case proposed.LicenseType == models.LicenseTypeExclusiveTerritory && overlap.Territory:
			result.fail(fmt.Sprintf("cannot grant territory exclusivity over license %s", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictTerritoryOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "requested territory exclusivity collides with an existing grant",
			})

		default:
			if overlap.Any() {
				result.warn(fmt.Sprintf("non-exclusive overlap with license %s: %s",
					other.ReferenceNumber, describeOverlap(overlap)))
			}
		}

		if other.Scope.BlocksCompetitor(proposed.BrandID.String()) {
			result.fail(fmt.Sprintf("brand is blocked as a competitor by license %s", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictCompetitorBlocked,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "existing license blocks this brand as a competitor",
			})
		}
	}

	return result
}

func describeOverlap(o models.ScopeOverlap) string {
	var dims []string
	if o.Media {
		dims = append(dims, "media")
	}
	if o.Placement {
		dims = append(dims, "placement")
	}
	if o.Territory {
		dims = append(dims, "territory")
	}
	if len(dims) == 0 {
		return "dates only"
	}
	out := dims[0]
	for _, d := range dims[1:] {
		out += ", " + d
	}
	return out
}

// CheckScopeConflict rejects structurally empty scopes and exact duplicate
// grants; partial media/placement intersections are warnings.
func CheckScopeConflict(proposed *models.License, existing []models.License) CheckResult {
	result := CheckResult{Name: CheckNameScope, Passed: true}

	if !proposed.Scope.HasMedia() {
		result.fail("scope must grant at least one media right")
	}
	if !proposed.Scope.HasPlacement() {
		result.fail("scope must grant at least one placement right")
	}
	if !result.Passed {
		return result
	}

	for i := range existing {
		other := &existing[i]
		if !other.OverlapsWindow(proposed.StartDate, proposed.EndDate) {
			continue
		}

		overlap := proposed.Scope.Overlaps(other.Scope)
		if overlap.Identical {
			result.fail(fmt.Sprintf("scope duplicates license %s exactly", other.ReferenceNumber))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictScopeOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              "duplicate grant of an identical scope",
			})
			continue
		}

		if overlap.Media || overlap.Placement {
			result.warn(fmt.Sprintf("scope intersects license %s on %s",
				other.ReferenceNumber, describeOverlap(overlap)))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:                 models.ConflictScopeOverlap,
				Severity:             models.SeverityWarning,
				ConflictingLicenseID: other.ID,
				Message:              "partial scope intersection",
			})
		}
	}

	return result
}

// CheckBudgetAvailability caps unverified brands at a hard aggregate
// ceiling; verified brands only get a warning above the high-value
// threshold.
func CheckBudgetAvailability(proposed *models.License, committedCents int64, standing *BrandStanding, cfg *config.LicensingConfig) CheckResult {
	result := CheckResult{Name: CheckNameBudget, Passed: true}

	total := committedCents + proposed.FeeCents

	if !standing.Verified {
		if total > cfg.UnverifiedBudgetCapCents {
			result.fail(fmt.Sprintf("unverified brand aggregate commitment %d exceeds cap %d cents",
				total, cfg.UnverifiedBudgetCapCents))
			result.Conflicts = append(result.Conflicts, models.Conflict{
				Type:     models.ConflictRevenueCapacity,
				Severity: models.SeverityCritical,
				Message:  "unverified brand budget cap exceeded",
			})
		}
		return result
	}

	if total > cfg.HighValueThresholdCents {
		result.warn(fmt.Sprintf("aggregate commitment %d cents exceeds high-value threshold", total))
	}

	return result
}

// CheckOwnershipVerification enforces integrity of the asset's ownership:
// licensable status, shares summing to exactly 100%, a primary owner, no
// disputes, active owner accounts, and documentation for high-value
// licenses.
func CheckOwnershipVerification(proposed *models.License, asset *models.Asset, records []models.OwnershipRecord, docsPresent bool, cfg *config.LicensingConfig) CheckResult {
	result := CheckResult{Name: CheckNameOwnership, Passed: true}

	if asset.Status != models.AssetStatusLicensable {
		result.fail(fmt.Sprintf("asset is not licensable (status %s)", asset.Status))
	}

	var shareSum int
	var hasPrimary bool
	for _, r := range records {
		switch r.Status {
		case models.OwnershipStatusDisputed:
			result.fail("asset has a disputed ownership record")
		case models.OwnershipStatusActive:
			shareSum += r.ShareBps
			if r.IsPrimary {
				hasPrimary = true
			}
			if !r.OwnerActive {
				result.fail("an owner account is not active")
			}
		}
	}

	if shareSum != models.BpsDenominator {
		result.fail(fmt.Sprintf("ownership shares sum to %d bps, must equal 100%%", shareSum))
	}
	if !hasPrimary {
		result.fail("asset has no primary owner")
	}

	if proposed.FeeCents >= cfg.HighValueThresholdCents && !docsPresent {
		result.fail("high-value license requires ownership documentation on file")
	}

	return result
}

// CheckApprovalRequirements is informational and always passes: it
// reports which sign-offs the proposal will need.
func CheckApprovalRequirements(proposed *models.License, brandVerified bool, cfg *config.LicensingConfig) CheckResult {
	result := CheckResult{Name: CheckNameApprovals, Passed: true}

	roles := RequiredApproverRoles(proposed, brandVerified, cfg)
	for _, role := range roles {
		result.warn(fmt.Sprintf("requires %s approval", role))
	}

	return result
}

// RequiredApproverRoles computes the mandatory sign-offs for a proposal.
// Fee size, exclusivity, unverified brands, global territory, multi-year
// terms, and hybrid pricing each escalate the approval requirements.
func RequiredApproverRoles(proposed *models.License, brandVerified bool, cfg *config.LicensingConfig) []models.ApproverRole {
	needsAdmin := false
	needsCreator := false

	if proposed.FeeCents >= cfg.HighValueThresholdCents {
		needsAdmin = true
		needsCreator = true
	}
	if proposed.LicenseType != models.LicenseTypeNonExclusive {
		needsCreator = true
	}
	if !brandVerified {
		needsAdmin = true
	}
	if proposed.Scope.IsGlobal() {
		needsCreator = true
	}
	if proposed.DurationDays() > cfg.LongTermDays {
		needsCreator = true
	}
	if proposed.HybridPricing() {
		needsAdmin = true
	}

	var roles []models.ApproverRole
	if needsCreator {
		roles = append(roles, models.ApproverRoleCreator)
	}
	if needsAdmin {
		roles = append(roles, models.ApproverRoleAdmin)
	}
	return roles
}
