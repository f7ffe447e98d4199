// internal/services/conflict_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/models"
)

// ConflictService finds overlaps between a proposed grant and the existing
// licenses on the same asset. It feeds the validation engine and is also
// exposed standalone for preview queries.
type ConflictService struct {
	db *gorm.DB
}

func NewConflictService(db *gorm.DB) *ConflictService {
	return &ConflictService{db: db}
}

// competingLicenses returns the asset's licenses that still hold or may
// come to hold a grant in the window, excluding the license being mutated.
func (s *ConflictService) competingLicenses(assetID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) ([]models.License, error) {
	query := s.db.Where("asset_id = ? AND status IN ? AND start_date < ? AND end_date > ?",
		assetID, models.ActiveStatuses, end, start)
	if excludeID != nil {
		query = query.Where("id != ?", *excludeID)
	}

	var existing []models.License
	if err := query.Find(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to query competing licenses: %w", err)
	}
	return existing, nil
}

// DetectConflicts runs the full overlap search for a proposed license.
// Pass the proposal's own id in exclude when re-checking an existing row.
func (s *ConflictService) DetectConflicts(proposed *models.License, excludeID *uuid.UUID) ([]models.Conflict, error) {
	existing, err := s.competingLicenses(proposed.AssetID, proposed.StartDate, proposed.EndDate, excludeID)
	if err != nil {
		return nil, err
	}
	return DetectConflicts(proposed, existing), nil
}

// CheckWindow reports conflicts a license would hit if its term covered
// [start, end); used before approving extensions.
func (s *ConflictService) CheckWindow(license *models.License, start, end time.Time) ([]models.Conflict, error) {
	probe := *license
	probe.StartDate = start
	probe.EndDate = end
	return s.DetectConflicts(&probe, &license.ID)
}

// DetectConflicts is the pure overlap search over an already-fetched set of
// competing licenses. Only date-overlapping licenses conflict at all; the
// conflict type then depends on exclusivity, territory, scope, and
// competitor blocks.
func DetectConflicts(proposed *models.License, existing []models.License) []models.Conflict {
	var conflicts []models.Conflict

	for i := range existing {
		other := &existing[i]
		if !other.OverlapsWindow(proposed.StartDate, proposed.EndDate) {
			continue
		}

		overlap := proposed.Scope.Overlaps(other.Scope)

		switch {
		// An existing full-exclusive grant blocks everything in its window.
		case other.LicenseType == models.LicenseTypeExclusive:
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictExclusiveOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("exclusive license %s covers the requested window", other.ReferenceNumber),
			})

		case other.LicenseType == models.LicenseTypeExclusiveTerritory && overlap.Territory:
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictTerritoryOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("territory-exclusive license %s covers an overlapping territory", other.ReferenceNumber),
			})

		// The proposal excludes others just as much as others exclude it.
		case proposed.LicenseType == models.LicenseTypeExclusive:
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictExclusiveOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("requested exclusivity collides with existing license %s", other.ReferenceNumber),
			})

		case proposed.LicenseType == models.LicenseTypeExclusiveTerritory && overlap.Territory:
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictTerritoryOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("requested territory exclusivity collides with existing license %s", other.ReferenceNumber),
			})

		default:
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictDateOverlap,
				Severity:             models.SeverityInfo,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("non-exclusive license %s overlaps the requested window", other.ReferenceNumber),
			})
		}

		if other.Scope.BlocksCompetitor(proposed.BrandID.String()) {
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictCompetitorBlocked,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("license %s blocks this brand as a competitor", other.ReferenceNumber),
			})
		}

		if overlap.Identical {
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictScopeOverlap,
				Severity:             models.SeverityCritical,
				ConflictingLicenseID: other.ID,
				Message:              fmt.Sprintf("scope duplicates existing license %s exactly", other.ReferenceNumber),
			})
		} else if overlap.Media || overlap.Placement {
			conflicts = append(conflicts, models.Conflict{
				Type:                 models.ConflictScopeOverlap,
				Severity:             models.SeverityWarning,
				ConflictingLicenseID: other.ID,
				Message:              scopeOverlapMessage(other.ReferenceNumber, overlap),
			})
		}
	}

	return conflicts
}

func scopeOverlapMessage(ref string, overlap models.ScopeOverlap) string {
	switch {
	case overlap.Media && overlap.Placement:
		return fmt.Sprintf("media and placement rights overlap with license %s", ref)
	case overlap.Media:
		return fmt.Sprintf("media rights overlap with license %s", ref)
	default:
		return fmt.Sprintf("placement rights overlap with license %s", ref)
	}
}

// HasCritical reports whether any conflict is blocking.
func HasCritical(conflicts []models.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}
