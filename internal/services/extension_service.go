// internal/services/extension_service.go
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
	"github.com/javajoker/licensecore/internal/models"
)

// ExtensionService runs the term-extension workflow: pro-rated fee,
// conflict confirmation over the extended window, and either auto-approval
// for short extensions or the multi-party approval flow.
type ExtensionService struct {
	db        *gorm.DB
	config    *config.Config
	licenses  *LicenseService
	conflicts *ConflictService
	ownership *OwnershipService
	notifier  Notifier
	audit     AuditRecorder
}

func NewExtensionService(db *gorm.DB, cfg *config.Config, licenses *LicenseService,
	conflicts *ConflictService, ownership *OwnershipService,
	notifier Notifier, audit AuditRecorder) *ExtensionService {
	return &ExtensionService{
		db:        db,
		config:    cfg,
		licenses:  licenses,
		conflicts: conflicts,
		ownership: ownership,
		notifier:  notifier,
		audit:     audit,
	}
}

// GetExtension loads an extension with its approvers and decisions.
func (s *ExtensionService) GetExtension(extensionID uuid.UUID) (*models.Extension, error) {
	var extension models.Extension
	if err := s.db.Preload("Approvers").Preload("Decisions").
		First(&extension, extensionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "extension", EntityID: extensionID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &extension, nil
}

// CreateExtension proposes adding days to an ACTIVE or EXPIRING_SOON
// license. The extended window must be conflict-free before the proposal
// is even recorded. Extensions at or under the auto-approve threshold
// apply immediately.
func (s *ExtensionService) CreateExtension(ctx context.Context, licenseID uuid.UUID,
	extensionDays int, justification string, proposedBy uuid.UUID) (*models.Extension, error) {

	if extensionDays < 1 || extensionDays > models.MaxExtensionDays {
		return nil, fmt.Errorf("extension must be between 1 and %d days", models.MaxExtensionDays)
	}

	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	if license.Status != models.StatusActive && license.Status != models.StatusExpiringSoon {
		return nil, fmt.Errorf("only ACTIVE or EXPIRING_SOON licenses can be extended (status %s)", license.Status)
	}

	if err := s.requireParty(license, proposedBy); err != nil {
		return nil, err
	}

	newEndDate := license.EndDate.AddDate(0, 0, extensionDays)
	conflicts, err := s.conflicts.CheckWindow(license, license.StartDate, newEndDate)
	if err != nil {
		return nil, err
	}
	if HasCritical(conflicts) {
		return nil, &apperrors.ConflictError{Conflicts: conflicts}
	}

	extension := &models.Extension{
		LicenseID:     licenseID,
		ExtensionDays: extensionDays,
		ProRatedFee:   models.ProRatedExtensionFee(license.FeeCents, license.DurationDays(), extensionDays),
		NewEndDate:    newEndDate,
		Justification: justification,
		Deadline:      time.Now().AddDate(0, 0, s.config.Licensing.ExtensionDeadlineDays),
		Status:        models.ApprovalStatusPending,
		ProposedBy:    proposedBy,
	}

	if extensionDays <= s.config.Licensing.AutoApproveExtensionDays {
		now := time.Now()
		extension.Status = models.ApprovalStatusApproved
		extension.AutoApproved = true
		extension.ResolvedAt = &now
		if err := s.db.Create(extension).Error; err != nil {
			return nil, fmt.Errorf("failed to create extension: %w", err)
		}

		s.audit.Record("extension", extension.ID, "auto_approve", nil,
			models.JSONB{"license_id": licenseID.String(), "days": extensionDays}, &proposedBy)

		if _, err := s.Apply(ctx, extension.ID, proposedBy); err != nil {
			return nil, err
		}
		return s.GetExtension(extension.ID)
	}

	approvers := []models.RequiredApprover{
		{ApproverID: license.BrandID, Role: models.ApproverRoleBrand},
	}
	ownerIDs, err := s.ownership.ActiveOwnerIDs(license.AssetID)
	if err != nil {
		return nil, err
	}
	for _, id := range ownerIDs {
		approvers = append(approvers, models.RequiredApprover{
			ApproverID: id, Role: models.ApproverRoleCreator,
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(extension).Error; err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
		for i := range approvers {
			approvers[i].ExtensionID = &extension.ID
		}
		if err := tx.Create(&approvers).Error; err != nil {
			return fmt.Errorf("failed to record required approvers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	extension.Approvers = approvers

	s.audit.Record("extension", extension.ID, "create", nil,
		models.JSONB{"license_id": licenseID.String(), "days": extensionDays}, &proposedBy)

	go s.notifyRequested(license, extension)

	return extension, nil
}

func (s *ExtensionService) requireParty(license *models.License, actorID uuid.UUID) error {
	if actorID == license.BrandID {
		return nil
	}
	isOwner, err := s.ownership.IsOwner(license.AssetID, actorID)
	if err != nil {
		return err
	}
	if !isOwner {
		return &apperrors.PermissionError{ActorID: actorID, Action: "propose extension"}
	}
	return nil
}

// Decide records one approver's decision on a pending extension.
func (s *ExtensionService) Decide(ctx context.Context, extensionID uuid.UUID,
	approverID uuid.UUID, decision models.DecisionType, comment string) (*models.Extension, error) {

	extension, err := s.GetExtension(extensionID)
	if err != nil {
		return nil, err
	}
	if extension.Status != models.ApprovalStatusPending {
		return nil, fmt.Errorf("extension %s is already resolved (%s)", extensionID, extension.Status)
	}

	now := time.Now()
	if now.After(extension.Deadline) {
		return nil, &apperrors.DeadlineExpiredError{Entity: "extension", EntityID: extensionID, Deadline: extension.Deadline}
	}

	var required *models.RequiredApprover
	for i := range extension.Approvers {
		if extension.Approvers[i].ApproverID == approverID {
			required = &extension.Approvers[i]
			break
		}
	}
	if required == nil {
		return nil, &apperrors.PermissionError{ActorID: approverID, Action: "decide extension"}
	}

	if _, decided := models.DecisionsByApprover(extension.Decisions)[approverID]; decided {
		return nil, fmt.Errorf("approver %s already decided on extension %s", approverID, extensionID)
	}

	record := models.ApprovalDecision{
		ExtensionID: &extension.ID,
		ApproverID:  approverID,
		Role:        required.Role,
		Decision:    decision,
		Comment:     comment,
		DecidedAt:   now,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	extension.Decisions = append(extension.Decisions, record)

	outcome := models.ResolveApproval(extension.Approvers, extension.Decisions, extension.Deadline, now)
	if outcome != models.ApprovalStatusPending {
		res := s.db.Model(&models.Extension{}).
			Where("id = ? AND status = ?", extensionID, models.ApprovalStatusPending).
			Updates(map[string]interface{}{"status": outcome, "resolved_at": now})
		if res.Error != nil {
			return nil, fmt.Errorf("failed to resolve extension: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			extension.Status = outcome
			extension.ResolvedAt = &now
		}
	}

	s.audit.Record("extension", extensionID, "decide", nil,
		models.JSONB{"decision": string(decision), "outcome": string(extension.Status)}, &approverID)

	if extension.Status == models.ApprovalStatusApproved {
		if _, err := s.Apply(ctx, extensionID, approverID); err != nil {
			return nil, err
		}
		return s.GetExtension(extensionID)
	}

	return extension, nil
}

// Apply pushes an APPROVED extension's new end date onto the license. The
// window is re-checked for conflicts that appeared since the proposal.
func (s *ExtensionService) Apply(ctx context.Context, extensionID uuid.UUID, actorID uuid.UUID) (*models.License, error) {
	extension, err := s.GetExtension(extensionID)
	if err != nil {
		return nil, err
	}
	if extension.Status != models.ApprovalStatusApproved {
		return nil, fmt.Errorf("extension %s is not approved (status %s)", extensionID, extension.Status)
	}
	if extension.AppliedAt != nil {
		return s.licenses.GetLicense(extension.LicenseID)
	}

	license, err := s.licenses.GetLicense(extension.LicenseID)
	if err != nil {
		return nil, err
	}

	conflicts, err := s.conflicts.CheckWindow(license, license.StartDate, extension.NewEndDate)
	if err != nil {
		return nil, err
	}
	if HasCritical(conflicts) {
		return nil, &apperrors.ConflictError{Conflicts: conflicts}
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.License{}).
			Where("id = ? AND version = ?", license.ID, license.Version).
			Updates(map[string]interface{}{
				"end_date":        extension.NewEndDate,
				"extension_count": license.ExtensionCount + 1,
				"version":         license.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to apply extension: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &apperrors.VersionConflictError{LicenseID: license.ID}
		}

		if err := tx.Model(&models.Extension{}).Where("id = ?", extensionID).
			Update("applied_at", now).Error; err != nil {
			return fmt.Errorf("failed to mark extension applied: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	license.EndDate = extension.NewEndDate
	license.ExtensionCount++
	license.Version++

	s.audit.Record("license", license.ID, "extend",
		models.JSONB{"end_date": extension.NewEndDate.AddDate(0, 0, -extension.ExtensionDays).Format("2006-01-02")},
		models.JSONB{"end_date": extension.NewEndDate.Format("2006-01-02"), "extension_id": extensionID.String()}, &actorID)

	logrus.WithFields(logrus.Fields{
		"license_id":   license.ID,
		"extension_id": extensionID,
		"days":         extension.ExtensionDays,
		"new_end_date": extension.NewEndDate,
	}).Info("Extension applied")

	return license, nil
}

func (s *ExtensionService) notifyRequested(license *models.License, extension *models.Extension) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipients := s.licenses.partyAddresses(license)
	if len(recipients) == 0 {
		return
	}
	_, err := s.notifier.Send(ctx, "extension_requested", recipients, map[string]interface{}{
		"ReferenceNumber": license.ReferenceNumber,
		"ExtensionDays":   extension.ExtensionDays,
		"ProRatedFee":     extension.ProRatedFee,
		"Deadline":        extension.Deadline.Format("2006-01-02"),
	})
	if err != nil {
		logrus.WithError(err).WithField("extension_id", extension.ID).Warn("Extension request notification failed")
	}
}
