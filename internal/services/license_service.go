// internal/services/license_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/javajoker/licensecore/internal/apperrors"
	"github.com/javajoker/licensecore/internal/config"
	"github.com/javajoker/licensecore/internal/locks"
	"github.com/javajoker/licensecore/internal/models"
	"github.com/javajoker/licensecore/internal/utils"
)

// LicenseService owns the license lifecycle: creation, the single status
// transition entry point, signing, and the guard on direct updates. Status
// is never written outside Transition.
type LicenseService struct {
	db         *gorm.DB
	config     *config.Config
	locks      *locks.Manager
	validation *ValidationService
	ownership  *OwnershipService
	notifier   Notifier
	audit      AuditRecorder
}

func NewLicenseService(db *gorm.DB, cfg *config.Config, lockMgr *locks.Manager,
	validation *ValidationService, ownership *OwnershipService,
	notifier Notifier, audit AuditRecorder) *LicenseService {
	return &LicenseService{
		db:         db,
		config:     cfg,
		locks:      lockMgr,
		validation: validation,
		ownership:  ownership,
		notifier:   notifier,
		audit:      audit,
	}
}

// GetLicense loads a license with its history collections.
func (s *LicenseService) GetLicense(licenseID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("StatusTransitions").Preload("Signatures").
		First(&license, licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "license", EntityID: licenseID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// CreateLicense validates a proposal and persists it as a DRAFT. The
// per-asset lock serializes conflict-check-then-create so two concurrent
// proposals on the same asset cannot both pass exclusivity validation.
func (s *LicenseService) CreateLicense(ctx context.Context, license *models.License, actorID uuid.UUID) (*ValidationResult, error) {
	if license.GracePeriodDays < 0 || license.GracePeriodDays > s.config.Licensing.MaxGracePeriodDays {
		return nil, fmt.Errorf("grace period must be between 0 and %d days", s.config.Licensing.MaxGracePeriodDays)
	}
	if err := license.Validate(); err != nil {
		return nil, err
	}

	lock, err := s.locks.AcquireAssetLock(ctx, license.AssetID, time.Duration(s.config.Sweep.LockTTLSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logrus.WithError(err).WithField("asset_id", license.AssetID).Warn("Failed to release asset lock")
		}
	}()

	result, err := s.validation.ValidateLicense(license, ValidateAll)
	if err != nil {
		return nil, err
	}
	if !result.Passed {
		return result, result.Err()
	}

	license.ReferenceNumber = utils.GenerateReferenceNumber(time.Now())
	license.Status = models.StatusDraft
	license.Version = 1

	if err := s.db.Create(license).Error; err != nil {
		return nil, fmt.Errorf("failed to create license: %w", err)
	}

	s.audit.Record("license", license.ID, "create", nil,
		models.JSONB{"reference_number": license.ReferenceNumber, "status": string(license.Status)}, &actorID)

	logrus.WithFields(logrus.Fields{
		"license_id":       license.ID,
		"reference_number": license.ReferenceNumber,
		"asset_id":         license.AssetID,
		"brand_id":         license.BrandID,
	}).Info("License created")

	return result, nil
}

// Transition is the single authority for status writes. It checks the
// transition table, takes the optimistic lock on the version column,
// appends the history entry, and notifies the parties. A lost version race
// returns VersionConflictError and writes nothing.
func (s *LicenseService) Transition(ctx context.Context, licenseID uuid.UUID, to models.LicenseStatus, actorID *uuid.UUID, reason string) (*models.License, error) {
	license, err := s.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}

	from := license.Status
	if !models.CanTransition(from, to) {
		return nil, &apperrors.StateTransitionError{LicenseID: licenseID, From: from, To: to}
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.License{}).
			Where("id = ? AND version = ?", licenseID, license.Version).
			Updates(map[string]interface{}{
				"status":  to,
				"version": license.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to update license status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &apperrors.VersionConflictError{LicenseID: licenseID}
		}

		entry := &models.StatusTransition{
			LicenseID:  licenseID,
			FromStatus: from,
			ToStatus:   to,
			ActorID:    actorID,
			Reason:     reason,
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("failed to record status transition: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	license.Status = to
	license.Version++

	s.audit.Record("license", licenseID, "transition",
		models.JSONB{"status": string(from)},
		models.JSONB{"status": string(to), "reason": reason}, actorID)

	go s.notifyStatusChange(license, from, to, reason)

	logrus.WithFields(logrus.Fields{
		"license_id": licenseID,
		"from":       from,
		"to":         to,
		"reason":     reason,
	}).Info("License status changed")

	return license, nil
}

func (s *LicenseService) notifyStatusChange(license *models.License, from, to models.LicenseStatus, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipients := s.partyAddresses(license)
	if len(recipients) == 0 {
		return
	}

	_, err := s.notifier.Send(ctx, "license_status_changed", recipients, map[string]interface{}{
		"ReferenceNumber": license.ReferenceNumber,
		"OldStatus":       string(from),
		"NewStatus":       string(to),
		"Reason":          reason,
	})
	if err != nil {
		logrus.WithError(err).WithField("license_id", license.ID).Warn("Status change notification failed")
	}
}

// partyAddresses resolves the notification recipients for a license: the
// brand contact plus every active owner contact.
func (s *LicenseService) partyAddresses(license *models.License) []string {
	var addresses []string

	var brand models.Brand
	if err := s.db.First(&brand, license.BrandID).Error; err == nil && brand.ContactEmail != "" {
		addresses = append(addresses, brand.ContactEmail)
	}

	records, err := s.ownership.GetOwnershipRecords(license.AssetID)
	if err != nil {
		logrus.WithError(err).WithField("asset_id", license.AssetID).Warn("Failed to resolve owner recipients")
		return addresses
	}
	for _, r := range records {
		if r.Status == models.OwnershipStatusActive && r.OwnerEmail != "" {
			addresses = append(addresses, r.OwnerEmail)
		}
	}
	return addresses
}

// SubmitForApproval re-validates a draft and moves it to PENDING_APPROVAL.
func (s *LicenseService) SubmitForApproval(ctx context.Context, licenseID uuid.UUID, actorID uuid.UUID) (*models.License, error) {
	license, err := s.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	if license.Status != models.StatusDraft {
		return nil, &apperrors.StateTransitionError{LicenseID: licenseID, From: license.Status, To: models.StatusPendingApproval}
	}

	result, err := s.validation.ValidateLicense(license, ValidateAll)
	if err != nil {
		return nil, err
	}
	if !result.Passed {
		return nil, result.Err()
	}

	return s.Transition(ctx, licenseID, models.StatusPendingApproval, &actorID, "submitted for approval")
}

// Approve moves an approved proposal into the signing stage.
func (s *LicenseService) Approve(ctx context.Context, licenseID uuid.UUID, actorID uuid.UUID) (*models.License, error) {
	return s.Transition(ctx, licenseID, models.StatusPendingSignature, &actorID, "approved")
}

// SignLicense records a party's signature over the current terms hash.
// Only the brand and the asset's primary owner may sign; when both have
// signed the license activates.
func (s *LicenseService) SignLicense(ctx context.Context, licenseID uuid.UUID, partyID uuid.UUID) (*models.License, error) {
	license, err := s.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	if license.Status != models.StatusPendingSignature {
		return nil, fmt.Errorf("license %s is not awaiting signatures (status %s)", licenseID, license.Status)
	}

	primaryOwner, err := s.ownership.PrimaryOwnerID(license.AssetID)
	if err != nil {
		return nil, err
	}

	var role models.ApproverRole
	switch partyID {
	case license.BrandID:
		role = models.ApproverRoleBrand
	case primaryOwner:
		role = models.ApproverRoleCreator
	default:
		return nil, &apperrors.PermissionError{ActorID: partyID, Action: "sign license"}
	}

	if license.SignedBy(partyID) {
		return license, nil
	}

	sig := &models.Signature{
		LicenseID: licenseID,
		PartyID:   partyID,
		Role:      role,
		TermsHash: license.TermsHash(),
		SignedAt:  time.Now(),
	}
	if err := s.db.Create(sig).Error; err != nil {
		return nil, fmt.Errorf("failed to record signature: %w", err)
	}
	license.Signatures = append(license.Signatures, *sig)

	s.audit.Record("license", licenseID, "sign", nil,
		models.JSONB{"party_id": partyID.String(), "role": string(role)}, &partyID)

	if license.SignedBy(license.BrandID) && license.SignedBy(primaryOwner) {
		return s.Transition(ctx, licenseID, models.StatusActive, &partyID, "all parties signed")
	}
	return license, nil
}

// UpdateDraft applies direct field changes to a DRAFT license. Post-draft
// changes must go through the amendment workflow; GuardDirectUpdate
// enforces that.
func (s *LicenseService) UpdateDraft(ctx context.Context, licenseID uuid.UUID, updated *models.License, actorID uuid.UUID) (*models.License, error) {
	license, err := s.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}

	if err := s.GuardDirectUpdate(license, updated); err != nil {
		return nil, err
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}

	before := models.JSONB{"fee_cents": license.FeeCents, "rev_share_bps": license.RevShareBps}

	license.LicenseType = updated.LicenseType
	license.Scope = updated.Scope
	license.StartDate = updated.StartDate
	license.EndDate = updated.EndDate
	license.FeeCents = updated.FeeCents
	license.RevShareBps = updated.RevShareBps
	license.BillingFrequency = updated.BillingFrequency
	license.AutoRenew = updated.AutoRenew
	license.GracePeriodDays = updated.GracePeriodDays

	oldVersion := license.Version
	license.Version++
	res := s.db.Model(license).Where("version = ?", oldVersion).Select("*").
		Omit("id", "created_at", "reference_number", "status").Updates(license)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update draft: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, &apperrors.VersionConflictError{LicenseID: licenseID}
	}

	s.audit.Record("license", licenseID, "update_draft", before,
		models.JSONB{"fee_cents": license.FeeCents, "rev_share_bps": license.RevShareBps}, &actorID)

	return license, nil
}

// GuardDirectUpdate rejects direct changes that must flow through the
// amendment workflow: any change on a non-DRAFT license that touches the
// scope, the dates, or moves the financials by more than the configured
// threshold.
func (s *LicenseService) GuardDirectUpdate(current, updated *models.License) error {
	if current.Status == models.StatusDraft {
		return nil
	}

	if !current.Scope.Equal(updated.Scope) {
		return fmt.Errorf("scope changes on a %s license require an amendment", current.Status)
	}
	if !current.StartDate.Equal(updated.StartDate) || !current.EndDate.Equal(updated.EndDate) {
		return fmt.Errorf("date changes on a %s license require an amendment or extension", current.Status)
	}

	maxPct := s.config.Licensing.MaxDirectFinancialDeltaPct
	feeDelta := utils.PctChange(current.FeeCents, updated.FeeCents)
	if feeDelta > maxPct || feeDelta < -maxPct {
		return fmt.Errorf("fee change of %d%% exceeds the %d%% direct-update limit; use an amendment", feeDelta, maxPct)
	}
	if current.RevShareBps > 0 {
		bpsPct := utils.PctChange(int64(current.RevShareBps), int64(updated.RevShareBps))
		if bpsPct > maxPct || bpsPct < -maxPct {
			return fmt.Errorf("revenue share change of %d%% exceeds the %d%% direct-update limit; use an amendment", bpsPct, maxPct)
		}
	} else if updated.RevShareBps != 0 {
		return fmt.Errorf("introducing a revenue share on a %s license requires an amendment", current.Status)
	}
	return nil
}

// LicenseStatistics summarizes the portfolio for operators.
type LicenseStatistics struct {
	ByStatus         map[models.LicenseStatus]int64 `json:"by_status"`
	TotalFeeCents    int64                          `json:"total_fee_cents"`
	ActiveFeeCents   int64                          `json:"active_fee_cents"`
	ExpiringIn30Days int64                          `json:"expiring_in_30_days"`
	AutoRenewEnabled int64                          `json:"auto_renew_enabled"`
}

// GetStatistics aggregates portfolio-level counts and committed fees.
func (s *LicenseService) GetStatistics() (*LicenseStatistics, error) {
	stats := &LicenseStatistics{ByStatus: make(map[models.LicenseStatus]int64)}

	type statusCount struct {
		Status models.LicenseStatus
		Count  int64
	}
	var counts []statusCount
	if err := s.db.Model(&models.License{}).
		Select("status, COUNT(*) as count").Group("status").Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count licenses by status: %w", err)
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
	}

	if err := s.db.Model(&models.License{}).
		Select("COALESCE(SUM(fee_cents), 0)").Scan(&stats.TotalFeeCents).Error; err != nil {
		return nil, fmt.Errorf("failed to sum fees: %w", err)
	}
	if err := s.db.Model(&models.License{}).
		Where("status IN ?", []models.LicenseStatus{models.StatusActive, models.StatusExpiringSoon}).
		Select("COALESCE(SUM(fee_cents), 0)").Scan(&stats.ActiveFeeCents).Error; err != nil {
		return nil, fmt.Errorf("failed to sum active fees: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, 30)
	if err := s.db.Model(&models.License{}).
		Where("status IN ? AND end_date <= ?", []models.LicenseStatus{models.StatusActive, models.StatusExpiringSoon}, cutoff).
		Count(&stats.ExpiringIn30Days).Error; err != nil {
		return nil, fmt.Errorf("failed to count expiring licenses: %w", err)
	}
	if err := s.db.Model(&models.License{}).
		Where("auto_renew = ? AND status IN ?", true, models.ActiveStatuses).
		Count(&stats.AutoRenewEnabled).Error; err != nil {
		return nil, fmt.Errorf("failed to count auto-renew licenses: %w", err)
	}

	return stats, nil
}
