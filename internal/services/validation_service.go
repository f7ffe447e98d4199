// internal/services/validation_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/apperrors"
	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/models"
)

// ValidationMode selects between collecting every failure for full caller
// feedback and stopping at the first failing check.
type ValidationMode int

const (
	ValidateAll ValidationMode = iota
	FailFast
)

// CheckResult is the outcome of one validation check.
type CheckResult struct {
	Name      string            `json:"name"`
	Passed    bool              `json:"passed"`
	Errors    []string          `json:"errors,omitempty"`
	Warnings  []string          `json:"warnings,omitempty"`
	Conflicts []models.Conflict `json:"conflicts,omitempty"`
}

// ValidationResult aggregates the six checks.
type ValidationResult struct {
	Passed            bool                  `json:"passed"`
	Checks            []CheckResult         `json:"checks"`
	Errors            []string              `json:"errors,omitempty"`
	Warnings          []string              `json:"warnings,omitempty"`
	Conflicts         []models.Conflict     `json:"conflicts,omitempty"`
	RequiredApprovers []models.ApproverRole `json:"required_approvers,omitempty"`
}

// Err converts a failed result into a ValidationError; nil when passed.
func (r *ValidationResult) Err() error {
	if r.Passed {
		return nil
	}
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return &apperrors.ValidationError{
		FailedChecks: failed,
		Messages:     r.Errors,
		Warnings:     r.Warnings,
		Conflicts:    r.Conflicts,
	}
}

// ValidationService runs the six checks against a proposed license or
// mutation. Check bodies are pure functions over prefetched rows; this
// service only assembles their inputs.
type ValidationService struct {
	db        *gorm.DB
	config    *config.Config
	conflicts *ConflictService
	ownership *OwnershipService
	billing   *BillingService
	storage   *StorageService
}

func NewValidationService(db *gorm.DB, cfg *config.Config, conflicts *ConflictService,
	ownership *OwnershipService, billing *BillingService, storage *StorageService) *ValidationService {
	return &ValidationService{
		db:        db,
		config:    cfg,
		conflicts: conflicts,
		ownership: ownership,
		billing:   billing,
		storage:   storage,
	}
}

// ValidateLicense runs all six checks for a proposed license. The
// proposal's own id is excluded from overlap queries when re-validating an
// existing row.
func (s *ValidationService) ValidateLicense(proposed *models.License, mode ValidationMode) (*ValidationResult, error) {
	now := time.Now()

	existing, err := s.conflicts.competingLicenses(proposed.AssetID, proposed.StartDate, proposed.EndDate, idOrNil(proposed))
	if err != nil {
		return nil, err
	}

	brandTotal, err := s.brandCommittedCents(proposed)
	if err != nil {
		return nil, err
	}

	standing, err := s.billing.GetBrandStanding(proposed.BrandID)
	if err != nil {
		return nil, err
	}

	asset, err := s.ownership.GetAsset(proposed.AssetID)
	if err != nil {
		return nil, err
	}

	records, err := s.ownership.GetOwnershipRecords(proposed.AssetID)
	if err != nil {
		return nil, err
	}

	docsPresent := s.storage.HasOwnershipDocumentation(asset)

	checks := []func() CheckResult{
		func() CheckResult { return CheckDateRange(proposed, existing, now) },
		func() CheckResult { return CheckExclusivity(proposed, existing) },
		func() CheckResult { return CheckScopeConflict(proposed, existing) },
		func() CheckResult {
			return CheckBudgetAvailability(proposed, brandTotal, standing, &s.config.Licensing)
		},
		func() CheckResult {
			return CheckOwnershipVerification(proposed, asset, records, docsPresent, &s.config.Licensing)
		},
		func() CheckResult {
			return CheckApprovalRequirements(proposed, standing.Verified, &s.config.Licensing)
		},
	}

	result := &ValidationResult{Passed: true}
	for _, run := range checks {
		check := run()
		result.Checks = append(result.Checks, check)
		result.Errors = append(result.Errors, check.Errors...)
		result.Warnings = append(result.Warnings, check.Warnings...)
		result.Conflicts = append(result.Conflicts, check.Conflicts...)
		if !check.Passed {
			result.Passed = false
			if mode == FailFast {
				break
			}
		}
	}

	result.RequiredApprovers = RequiredApproverRoles(proposed, standing.Verified, &s.config.Licensing)
	return result, nil
}

func idOrNil(l *models.License) *uuid.UUID {
	if l.ID == uuid.Nil {
		return nil
	}
	id := l.ID
	return &id
}

// brandCommittedCents sums the fees of the brand's licenses that still
// count against its budget.
func (s *ValidationService) brandCommittedCents(proposed *models.License) (int64, error) {
	var total int64
	query := s.db.Model(&models.License{}).
		Where("brand_id = ? AND status IN ?", proposed.BrandID, models.ActiveStatuses)
	if proposed.ID != uuid.Nil {
		query = query.Where("id != ?", proposed.ID)
	}
	if err := query.Select("COALESCE(SUM(fee_cents), 0)").Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to sum brand commitments: %w", err)
	}
	return total, nil
}
