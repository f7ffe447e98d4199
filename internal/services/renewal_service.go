// internal/services/renewal_service.go
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
	"github.com/javajoker/licensecore/internal/utils"
)

// UsageMetrics feeds the usage- and performance-based pricing strategies.
// Values come from the analytics pipeline; zero values mean "no data".
type UsageMetrics struct {
	UtilizationPct   int `json:"utilization_pct"`
	PerformanceScore int `json:"performance_score"`
	MarketDeltaPct   int `json:"market_delta_pct"`
}

// EligibilityResult is the structured outcome of a renewal eligibility
// check. Ineligibility is data, not an error.
type EligibilityResult struct {
	Eligible       bool         `json:"eligible"`
	BlockingIssues []string     `json:"blocking_issues"`
	Warnings       []string     `json:"warnings"`
	Metadata       models.JSONB `json:"metadata"`
}

// RenewalService computes eligibility and pricing for license renewals and
// manages the offer lifecycle. A renewal is always a successor license,
// never a mutation of the expiring one.
type RenewalService struct {
	db        *gorm.DB
	config    *config.Config
	licenses  *LicenseService
	conflicts *ConflictService
	ownership *OwnershipService
	billing   *BillingService
	notifier  Notifier
	audit     AuditRecorder
}

func NewRenewalService(db *gorm.DB, cfg *config.Config, licenses *LicenseService,
	conflicts *ConflictService, ownership *OwnershipService, billing *BillingService,
	notifier Notifier, audit AuditRecorder) *RenewalService {
	return &RenewalService{
		db:        db,
		config:    cfg,
		licenses:  licenses,
		conflicts: conflicts,
		ownership: ownership,
		billing:   billing,
		notifier:  notifier,
		audit:     audit,
	}
}

// GetOffer loads a renewal offer.
func (s *RenewalService) GetOffer(offerID uuid.UUID) (*models.RenewalOffer, error) {
	var offer models.RenewalOffer
	if err := s.db.First(&offer, offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.NotFoundError{Entity: "renewal offer", EntityID: offerID}
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &offer, nil
}

// CheckEligibility decides whether the license can be renewed right now.
// Ineligibility is data for the caller, not an error: the result lists
// every blocking issue found.
func (s *RenewalService) CheckEligibility(licenseID uuid.UUID) (*EligibilityResult, error) {
	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	now := time.Now()

	result := &EligibilityResult{Eligible: true, Metadata: models.JSONB{
		"license_id": licenseID.String(),
		"end_date":   license.EndDate.Format("2006-01-02"),
	}}
	block := func(msg string) {
		result.Eligible = false
		result.BlockingIssues = append(result.BlockingIssues, msg)
	}

	switch license.Status {
	case models.StatusActive, models.StatusExpiringSoon, models.StatusExpired:
	default:
		block(fmt.Sprintf("license status %s does not permit renewal", license.Status))
	}

	windowOpens := license.EndDate.AddDate(0, 0, -s.config.Licensing.RenewalWindowDays)
	if now.Before(windowOpens) {
		block(fmt.Sprintf("renewal window opens on %s", windowOpens.Format("2006-01-02")))
	}

	var successors int64
	if err := s.db.Model(&models.License{}).
		Where("parent_license_id = ? AND status NOT IN ?", licenseID, models.VoidedStatuses).
		Count(&successors).Error; err != nil {
		return nil, fmt.Errorf("failed to check for successor licenses: %w", err)
	}
	if successors > 0 {
		block("license already has a successor")
	}

	disputed, err := s.ownership.HasActiveDispute(license.AssetID)
	if err != nil {
		return nil, err
	}
	if disputed {
		block("asset ownership is under dispute")
	}

	poorStanding, err := s.billing.InPoorStanding(license.BrandID)
	if err != nil {
		return nil, err
	}
	if poorStanding {
		block("brand payment standing blocks renewal")
	}

	renewalStart := license.EndDate
	renewalEnd := renewalStart.AddDate(0, 0, license.DurationDays())
	conflicts, err := s.conflicts.CheckWindow(license, renewalStart, renewalEnd)
	if err != nil {
		return nil, err
	}
	if HasCritical(conflicts) {
		block("renewal window has critical conflicts")
		result.Metadata["conflicts"] = conflicts
	}

	if license.Status == models.StatusExpired {
		result.Warnings = append(result.Warnings, "license has already expired; renewal restores continuity but not the lapsed period")
	}
	if !license.AutoRenew {
		result.Warnings = append(result.Warnings, "auto-renew is disabled; the offer requires manual acceptance")
	}

	return result, nil
}

// EligibilityErr converts an ineligible result into a ValidationError.
func EligibilityErr(result *EligibilityResult) error {
	if result.Eligible {
		return nil
	}
	return &apperrors.ValidationError{
		FailedChecks: []string{"renewal_eligibility"},
		Messages:     result.BlockingIssues,
		Warnings:     result.Warnings,
	}
}

// ComputeRenewalPricing runs the pricing pipeline for a renewal of the
// given license. The steps are ordered and each one floors to integer
// cents; the final amount is capped relative to the original fee and
// floored at the configured minimum.
func ComputeRenewalPricing(license *models.License, strategy models.PricingStrategy,
	metrics UsageMetrics, now time.Time, cfg *config.LicensingConfig) (int64, models.PricingAdjustments, float64) {

	if strategy == models.PricingAutomatic {
		strategy = pickStrategy(metrics)
	}

	fee := license.FeeCents
	var adjustments models.PricingAdjustments
	step := func(name string, pct int) {
		if pct == 0 {
			return
		}
		fee = utils.ApplyPct(fee, pct)
		adjustments = append(adjustments, models.PricingAdjustment{
			Name: name, Percent: pct, AmountCent: fee,
		})
	}

	termYears := license.DurationDays() / 365
	if termYears < 1 {
		termYears = 1
	}
	step("inflation", cfg.InflationPctPerYear*termYears)

	step("loyalty", loyaltyDiscountPct(license.RenewalCount+1))

	if now.Before(license.EndDate.AddDate(0, 0, -cfg.EarlyRenewalDays)) {
		step("early_renewal", -5)
	}

	confidence := 0.9
	switch strategy {
	case models.PricingUsageBased:
		step("usage", usageAdjustmentPct(metrics.UtilizationPct))
		confidence = 0.8
	case models.PricingPerformanceBased:
		step("performance", performanceAdjustmentPct(metrics.PerformanceScore))
		confidence = 0.75
	case models.PricingMarketRate:
		step("market_rate", clampPct(metrics.MarketDeltaPct, 15))
		confidence = 0.6
	case models.PricingNegotiated:
		confidence = 0.5
	}

	capped := utils.ClampToPctRange(license.FeeCents, fee, cfg.MaxIncreasePct, cfg.MaxDecreasePct)
	if capped != fee {
		adjustments = append(adjustments, models.PricingAdjustment{
			Name: "cap", Percent: utils.PctChange(fee, capped), AmountCent: capped,
		})
		fee = capped
	}

	if fee < cfg.MinimumFeeCents {
		fee = cfg.MinimumFeeCents
		adjustments = append(adjustments, models.PricingAdjustment{
			Name: "minimum_fee", AmountCent: fee,
		})
	}

	return fee, adjustments, confidence
}

// pickStrategy selects the richest strategy the available metrics support.
func pickStrategy(metrics UsageMetrics) models.PricingStrategy {
	switch {
	case metrics.PerformanceScore > 0:
		return models.PricingPerformanceBased
	case metrics.UtilizationPct > 0:
		return models.PricingUsageBased
	case metrics.MarketDeltaPct != 0:
		return models.PricingMarketRate
	}
	return models.PricingFlatRenewal
}

// loyaltyDiscountPct rewards repeat renewals. renewalNumber is the ordinal
// of the renewal being priced (first renewal == 1).
func loyaltyDiscountPct(renewalNumber int) int {
	switch {
	case renewalNumber >= 5:
		return -15
	case renewalNumber >= 3:
		return -10
	case renewalNumber >= 2:
		return -5
	}
	return 0
}

// usageAdjustmentPct prices heavy use up and light use down.
func usageAdjustmentPct(utilizationPct int) int {
	switch {
	case utilizationPct >= 80:
		return 10
	case utilizationPct >= 50:
		return 5
	case utilizationPct > 0 && utilizationPct < 30:
		return -10
	}
	return 0
}

// performanceAdjustmentPct scales with the campaign performance score
// (0-100, 50 is neutral).
func performanceAdjustmentPct(score int) int {
	switch {
	case score >= 90:
		return 15
	case score >= 70:
		return 5
	case score > 0 && score < 40:
		return -15
	case score > 0 && score < 50:
		return -5
	}
	return 0
}

func clampPct(pct, bound int) int {
	if pct > bound {
		return bound
	}
	if pct < -bound {
		return -bound
	}
	return pct
}

// CreateOffer computes pricing for an eligible license and records a
// pending offer with an acceptance window.
func (s *RenewalService) CreateOffer(ctx context.Context, licenseID uuid.UUID,
	strategy models.PricingStrategy, metrics UsageMetrics) (*models.RenewalOffer, error) {

	eligibility, err := s.CheckEligibility(licenseID)
	if err != nil {
		return nil, err
	}
	if err := EligibilityErr(eligibility); err != nil {
		return nil, err
	}

	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	fee, adjustments, confidence := ComputeRenewalPricing(license, strategy, metrics, now, &s.config.Licensing)

	offer := &models.RenewalOffer{
		LicenseID:    licenseID,
		Strategy:     strategy,
		DurationDays: license.DurationDays(),
		FeeCents:     fee,
		RevShareBps:  license.RevShareBps,
		Adjustments:  adjustments,
		Confidence:   confidence,
		ExpiresAt:    now.AddDate(0, 0, s.config.Licensing.OfferExpiryDays),
		Status:       models.OfferStatusPending,
	}
	if err := s.db.Create(offer).Error; err != nil {
		return nil, fmt.Errorf("failed to create renewal offer: %w", err)
	}

	s.audit.Record("renewal_offer", offer.ID, "create", nil,
		models.JSONB{"license_id": licenseID.String(), "fee_cents": fee, "strategy": string(strategy)}, nil)

	go s.notifyOffer(license, offer)

	return offer, nil
}

// AcceptOffer turns a pending offer into a successor license and settles
// the expiring one as RENEWED. The successor goes through full validation
// like any new proposal.
func (s *RenewalService) AcceptOffer(ctx context.Context, offerID uuid.UUID, actorID uuid.UUID) (*models.License, error) {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return nil, err
	}
	if offer.Status != models.OfferStatusPending {
		return nil, fmt.Errorf("offer %s is already resolved (%s)", offerID, offer.Status)
	}
	now := time.Now()
	if now.After(offer.ExpiresAt) {
		return nil, &apperrors.DeadlineExpiredError{Entity: "renewal offer", EntityID: offerID, Deadline: offer.ExpiresAt}
	}

	parent, err := s.licenses.GetLicense(offer.LicenseID)
	if err != nil {
		return nil, err
	}

	successor := &models.License{
		AssetID:          parent.AssetID,
		BrandID:          parent.BrandID,
		ProjectID:        parent.ProjectID,
		LicenseType:      parent.LicenseType,
		Scope:            parent.Scope,
		StartDate:        parent.EndDate,
		EndDate:          parent.EndDate.AddDate(0, 0, offer.DurationDays),
		FeeCents:         offer.FeeCents,
		RevShareBps:      offer.RevShareBps,
		BillingFrequency: parent.BillingFrequency,
		AutoRenew:        parent.AutoRenew,
		GracePeriodDays:  parent.GracePeriodDays,
		ParentLicenseID:  &parent.ID,
		RenewalCount:     parent.RenewalCount + 1,
	}

	if _, err := s.licenses.CreateLicense(ctx, successor, actorID); err != nil {
		return nil, err
	}

	res := s.db.Model(&models.RenewalOffer{}).
		Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
		Updates(map[string]interface{}{
			"status":              models.OfferStatusAccepted,
			"accepted_license_id": successor.ID,
			"resolved_at":         now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to accept offer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("offer %s was resolved concurrently", offerID)
	}

	// EXPIRING_SOON and EXPIRED both admit RENEWED; an ACTIVE parent stays
	// as it is and the sweep settles it at term end.
	if models.CanTransition(parent.Status, models.StatusRenewed) {
		if _, err := s.licenses.Transition(ctx, parent.ID, models.StatusRenewed, &actorID, "renewal offer accepted"); err != nil {
			logrus.WithError(err).WithField("license_id", parent.ID).Warn("Failed to settle renewed license")
		}
	}

	s.audit.Record("renewal_offer", offerID, "accept", nil,
		models.JSONB{"successor_id": successor.ID.String()}, &actorID)

	logrus.WithFields(logrus.Fields{
		"offer_id":     offerID,
		"license_id":   parent.ID,
		"successor_id": successor.ID,
	}).Info("Renewal offer accepted")

	return successor, nil
}

// DeclineOffer marks a pending offer declined.
func (s *RenewalService) DeclineOffer(ctx context.Context, offerID uuid.UUID, actorID uuid.UUID) error {
	offer, err := s.GetOffer(offerID)
	if err != nil {
		return err
	}
	if offer.Status != models.OfferStatusPending {
		return fmt.Errorf("offer %s is already resolved (%s)", offerID, offer.Status)
	}

	now := time.Now()
	res := s.db.Model(&models.RenewalOffer{}).
		Where("id = ? AND status = ?", offerID, models.OfferStatusPending).
		Updates(map[string]interface{}{"status": models.OfferStatusDeclined, "resolved_at": now})
	if res.Error != nil {
		return fmt.Errorf("failed to decline offer: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("offer %s was resolved concurrently", offerID)
	}

	s.audit.Record("renewal_offer", offerID, "decline", nil, nil, &actorID)
	return nil
}

// AutoRenew runs the unattended renewal path for a license with auto-renew
// enabled: create an offer with the automatic strategy and accept it on
// the brand's behalf.
func (s *RenewalService) AutoRenew(ctx context.Context, licenseID uuid.UUID) (*models.License, error) {
	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	if !license.AutoRenew {
		return nil, fmt.Errorf("license %s does not have auto-renew enabled", licenseID)
	}

	offer, err := s.CreateOffer(ctx, licenseID, models.PricingAutomatic, UsageMetrics{})
	if err != nil {
		return nil, err
	}
	return s.AcceptOffer(ctx, offer.ID, license.BrandID)
}

func (s *RenewalService) notifyOffer(license *models.License, offer *models.RenewalOffer) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	recipients := s.licenses.partyAddresses(license)
	if len(recipients) == 0 {
		return
	}
	_, err := s.notifier.Send(ctx, "renewal_offer", recipients, map[string]interface{}{
		"ReferenceNumber": license.ReferenceNumber,
		"EndDate":         license.EndDate.Format("2006-01-02"),
		"FeeCents":        offer.FeeCents,
		"DurationDays":    offer.DurationDays,
		"OfferExpiresAt":  offer.ExpiresAt.Format("2006-01-02"),
	})
	if err != nil {
		logrus.WithError(err).WithField("offer_id", offer.ID).Warn("Renewal offer notification failed")
	}
}
