// internal/services/amendment_service.go
package services

import (
	"context"
	"encoding/json"
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

// AmendmentService runs the propose / decide / apply workflow for in-place
// changes to active licenses. Nothing touches the license row until an
// approved amendment is applied.
type AmendmentService struct {
	db         *gorm.DB
	config     *config.Config
	licenses   *LicenseService
	validation *ValidationService
	ownership  *OwnershipService
	notifier   Notifier
	audit      AuditRecorder
}

func NewAmendmentService(db *gorm.DB, cfg *config.Config, licenses *LicenseService,
	validation *ValidationService, ownership *OwnershipService,
	notifier Notifier, audit AuditRecorder) *AmendmentService {
	return &AmendmentService{
		db:         db,
		config:     cfg,
		licenses:   licenses,
		validation: validation,
		ownership:  ownership,
		notifier:   notifier,
		audit:      audit,
	}
}

// GetAmendment loads an amendment with its approvers and decisions.
func (s *AmendmentService) GetAmendment(amendmentID uuid.UUID) (*models.Amendment, error) {
	var amendment models.Amendment
	if err := s.db.Preload("Approvers").Preload("Decisions").
		First(&amendment, amendmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "amendment", EntityID: amendmentID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &amendment, nil
}

// CreateAmendment proposes a set of field deltas on an ACTIVE license. The
// proposer must be a party to the license; every active owner plus the
// brand must approve before the deadline.
func (s *AmendmentService) CreateAmendment(ctx context.Context, licenseID uuid.UUID,
	amendmentType models.AmendmentType, deltas models.FieldDeltas,
	justification string, proposedBy uuid.UUID) (*models.Amendment, error) {

	if len(deltas) == 0 {
		return nil, errors.New("amendment must propose at least one change")
	}
	if justification == "" {
		return nil, errors.New("amendment requires a justification")
	}

	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	if license.Status != models.StatusActive {
		return nil, fmt.Errorf("only ACTIVE licenses can be amended (status %s)", license.Status)
	}

	if err := s.requireParty(license, proposedBy, "propose amendment"); err != nil {
		return nil, err
	}

	approvers, err := s.approverSet(license)
	if err != nil {
		return nil, err
	}

	amendment := &models.Amendment{
		LicenseID:     licenseID,
		Type:          amendmentType,
		Deltas:        deltas,
		Justification: justification,
		Deadline:      time.Now().AddDate(0, 0, s.config.Licensing.AmendmentDeadlineDays),
		Status:        models.ApprovalStatusPending,
		ProposedBy:    proposedBy,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(amendment).Error; err != nil {
			return fmt.Errorf("failed to create amendment: %w", err)
		}
		for i := range approvers {
			approvers[i].AmendmentID = &amendment.ID
		}
		if err := tx.Create(&approvers).Error; err != nil {
			return fmt.Errorf("failed to record required approvers: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	amendment.Approvers = approvers

	s.audit.Record("amendment", amendment.ID, "create", nil,
		models.JSONB{"license_id": licenseID.String(), "type": string(amendmentType)}, &proposedBy)

	go s.notifyRequested(license, amendment)

	return amendment, nil
}

// approverSet builds the required approvers for a license change: the
// brand plus every active, non-disputed owner.
func (s *AmendmentService) approverSet(license *models.License) ([]models.RequiredApprover, error) {
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
	return approvers, nil
}

// requireParty verifies the actor is the brand or an active owner.
func (s *AmendmentService) requireParty(license *models.License, actorID uuid.UUID, action string) error {
	if actorID == license.BrandID {
		return nil
	}
	isOwner, err := s.ownership.IsOwner(license.AssetID, actorID)
	if err != nil {
		return err
	}
	if !isOwner {
		return &apperrors.PermissionError{ActorID: actorID, Action: action}
	}
	return nil
}

// Decide records one approver's decision and resolves the amendment if the
// outcome is now determined. Decisions after the deadline are rejected;
// the sweep expires the amendment itself.
func (s *AmendmentService) Decide(ctx context.Context, amendmentID uuid.UUID,
	approverID uuid.UUID, decision models.DecisionType, comment string) (*models.Amendment, error) {

	amendment, err := s.GetAmendment(amendmentID)
	if err != nil {
		return nil, err
	}
	if amendment.Status != models.ApprovalStatusPending {
		return nil, fmt.Errorf("amendment %s is already resolved (%s)", amendmentID, amendment.Status)
	}

	now := time.Now()
	if now.After(amendment.Deadline) {
		return nil, &apperrors.DeadlineExpiredError{Entity: "amendment", EntityID: amendmentID, Deadline: amendment.Deadline}
	}

	var required *models.RequiredApprover
	for i := range amendment.Approvers {
		if amendment.Approvers[i].ApproverID == approverID {
			required = &amendment.Approvers[i]
			break
		}
	}
	if required == nil {
		return nil, &apperrors.PermissionError{ActorID: approverID, Action: "decide amendment"}
	}

	if _, decided := models.DecisionsByApprover(amendment.Decisions)[approverID]; decided {
		return nil, fmt.Errorf("approver %s already decided on amendment %s", approverID, amendmentID)
	}

	record := models.ApprovalDecision{
		AmendmentID: &amendment.ID,
		ApproverID:  approverID,
		Role:        required.Role,
		Decision:    decision,
		Comment:     comment,
		DecidedAt:   now,
	}
	if err := s.db.Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	amendment.Decisions = append(amendment.Decisions, record)

	outcome := models.ResolveApproval(amendment.Approvers, amendment.Decisions, amendment.Deadline, now)
	if outcome != models.ApprovalStatusPending {
		if err := s.resolve(amendment, outcome, now); err != nil {
			return nil, err
		}
	}

	s.audit.Record("amendment", amendmentID, "decide", nil,
		models.JSONB{"decision": string(decision), "outcome": string(amendment.Status)}, &approverID)

	return amendment, nil
}

// resolve finalizes the amendment status and notifies the parties.
func (s *AmendmentService) resolve(amendment *models.Amendment, outcome models.ApprovalStatus, now time.Time) error {
	res := s.db.Model(&models.Amendment{}).
		Where("id = ? AND status = ?", amendment.ID, models.ApprovalStatusPending).
		Updates(map[string]interface{}{"status": outcome, "resolved_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to resolve amendment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else resolved it first; reload to report the truth.
		fresh, err := s.GetAmendment(amendment.ID)
		if err != nil {
			return err
		}
		*amendment = *fresh
		return nil
	}
	amendment.Status = outcome
	amendment.ResolvedAt = &now

	go s.notifyResolved(amendment)
	return nil
}

// Apply writes an APPROVED amendment's deltas onto the license inside one
// transaction. Amendments touching dates, scope, or financials re-run full
// validation against the would-be license before anything is written.
func (s *AmendmentService) Apply(ctx context.Context, amendmentID uuid.UUID, actorID uuid.UUID) (*models.License, error) {
	amendment, err := s.GetAmendment(amendmentID)
	if err != nil {
		return nil, err
	}
	if amendment.Status != models.ApprovalStatusApproved {
		return nil, fmt.Errorf("amendment %s is not approved (status %s)", amendmentID, amendment.Status)
	}
	if amendment.AppliedAt != nil {
		return s.licenses.GetLicense(amendment.LicenseID)
	}

	license, err := s.licenses.GetLicense(amendment.LicenseID)
	if err != nil {
		return nil, err
	}

	patched := *license
	if err := applyDeltas(&patched, amendment.Deltas); err != nil {
		return nil, err
	}
	if err := patched.Validate(); err != nil {
		return nil, err
	}

	if amendmentNeedsRevalidation(amendment.Type) {
		result, err := s.validation.ValidateLicense(&patched, ValidateAll)
		if err != nil {
			return nil, err
		}
		if !result.Passed {
			return nil, result.Err()
		}
	}

	now := time.Now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		patched.Version = license.Version + 1
		patched.AmendmentCount = license.AmendmentCount + 1
		res := tx.Model(&patched).Where("version = ?", license.Version).Select("*").
			Omit("id", "created_at", "reference_number", "status").Updates(&patched)
		if res.Error != nil {
			return fmt.Errorf("failed to apply amendment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return &apperrors.VersionConflictError{LicenseID: license.ID}
		}

		if err := tx.Model(&models.Amendment{}).Where("id = ?", amendmentID).
			Update("applied_at", now).Error; err != nil {
			return fmt.Errorf("failed to mark amendment applied: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record("license", license.ID, "amend",
		models.JSONB{"version": license.Version},
		models.JSONB{"version": patched.Version, "amendment_id": amendmentID.String()}, &actorID)

	logrus.WithFields(logrus.Fields{
		"license_id":   license.ID,
		"amendment_id": amendmentID,
		"type":         amendment.Type,
	}).Info("Amendment applied")

	return &patched, nil
}

// amendmentNeedsRevalidation reports whether applying this amendment type
// can invalidate conflict, budget, or ownership checks.
func amendmentNeedsRevalidation(t models.AmendmentType) bool {
	switch t {
	case models.AmendmentTypeFinancial, models.AmendmentTypeScope, models.AmendmentTypeDates:
		return true
	}
	return false
}

// applyDeltas patches the supported license fields from the delta list.
func applyDeltas(license *models.License, deltas models.FieldDeltas) error {
	for _, d := range deltas {
		switch d.Field {
		case "fee_cents":
			v, ok := asInt64(d.ProposedValue)
			if !ok {
				return fmt.Errorf("invalid value for %s", d.Field)
			}
			license.FeeCents = v
		case "rev_share_bps":
			v, ok := asInt64(d.ProposedValue)
			if !ok {
				return fmt.Errorf("invalid value for %s", d.Field)
			}
			license.RevShareBps = int(v)
		case "start_date":
			t, err := asTime(d.ProposedValue)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", d.Field, err)
			}
			license.StartDate = t
		case "end_date":
			t, err := asTime(d.ProposedValue)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", d.Field, err)
			}
			license.EndDate = t
		case "billing_frequency":
			v, ok := d.ProposedValue.(string)
			if !ok {
				return fmt.Errorf("invalid value for %s", d.Field)
			}
			license.BillingFrequency = models.BillingFrequency(v)
		case "territories":
			list, err := asStringSlice(d.ProposedValue)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", d.Field, err)
			}
			license.Scope.Territories = list
		case "auto_renew":
			v, ok := d.ProposedValue.(bool)
			if !ok {
				return fmt.Errorf("invalid value for %s", d.Field)
			}
			license.AutoRenew = v
		case "grace_period_days":
			v, ok := asInt64(d.ProposedValue)
			if !ok {
				return fmt.Errorf("invalid value for %s", d.Field)
			}
			license.GracePeriodDays = int(v)
		default:
			return fmt.Errorf("field %q cannot be amended", d.Field)
		}
	}
	return nil
}

// asInt64 accepts the numeric types JSON decoding produces.
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func asTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	}
	return time.Time{}, fmt.Errorf("unsupported time value %T", v)
}

func asStringSlice(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case []string:
		return list, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unsupported list element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported list value %T", v)
}

func (s *AmendmentService) notifyRequested(license *models.License, amendment *models.Amendment) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipients := s.licenses.partyAddresses(license)
	if len(recipients) == 0 {
		return
	}
	_, err := s.notifier.Send(ctx, "amendment_requested", recipients, map[string]interface{}{
		"ReferenceNumber": license.ReferenceNumber,
		"Justification":   amendment.Justification,
		"Deadline":        amendment.Deadline.Format("2006-01-02"),
	})
	if err != nil {
		logrus.WithError(err).WithField("amendment_id", amendment.ID).Warn("Amendment request notification failed")
	}
}

func (s *AmendmentService) notifyResolved(amendment *models.Amendment) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	license, err := s.licenses.GetLicense(amendment.LicenseID)
	if err != nil {
		logrus.WithError(err).WithField("amendment_id", amendment.ID).Warn("Amendment resolution notification failed")
		return
	}
	recipients := s.licenses.partyAddresses(license)
	if len(recipients) == 0 {
		return
	}
	_, err = s.notifier.Send(ctx, "amendment_resolved", recipients, map[string]interface{}{
		"ReferenceNumber": license.ReferenceNumber,
		"Outcome":         string(amendment.Status),
	})
	if err != nil {
		logrus.WithError(err).WithField("amendment_id", amendment.ID).Warn("Amendment resolution notification failed")
	}
}
