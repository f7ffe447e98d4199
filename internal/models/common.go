// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums

type LicenseType string

const (
	LicenseTypeExclusive          LicenseType = "EXCLUSIVE"
	LicenseTypeNonExclusive       LicenseType = "NON_EXCLUSIVE"
	LicenseTypeExclusiveTerritory LicenseType = "EXCLUSIVE_TERRITORY"
)

type BillingFrequency string

const (
	BillingOneTime   BillingFrequency = "one_time"
	BillingMonthly   BillingFrequency = "monthly"
	BillingQuarterly BillingFrequency = "quarterly"
	BillingAnnual    BillingFrequency = "annual"
)

type ApproverRole string

const (
	ApproverRoleBrand   ApproverRole = "brand"
	ApproverRoleCreator ApproverRole = "creator"
	ApproverRoleAdmin   ApproverRole = "admin"
)

type DecisionType string

const (
	DecisionApprove        DecisionType = "approve"
	DecisionReject         DecisionType = "reject"
	DecisionRequestChanges DecisionType = "request_changes"
)

type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusExpired  ApprovalStatus = "EXPIRED"
)

type AmendmentType string

const (
	AmendmentTypeFinancial AmendmentType = "financial"
	AmendmentTypeScope     AmendmentType = "scope"
	AmendmentTypeDates     AmendmentType = "dates"
	AmendmentTypeOther     AmendmentType = "other"
)

type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "PENDING"
	OfferStatusAccepted OfferStatus = "ACCEPTED"
	OfferStatusDeclined OfferStatus = "DECLINED"
	OfferStatusExpired  OfferStatus = "EXPIRED"
)

type PricingStrategy string

const (
	PricingFlatRenewal      PricingStrategy = "FLAT_RENEWAL"
	PricingUsageBased       PricingStrategy = "USAGE_BASED"
	PricingMarketRate       PricingStrategy = "MARKET_RATE"
	PricingPerformanceBased PricingStrategy = "PERFORMANCE_BASED"
	PricingNegotiated       PricingStrategy = "NEGOTIATED"
	PricingAutomatic        PricingStrategy = "AUTOMATIC"
)

type ConflictType string

const (
	ConflictExclusiveOverlap  ConflictType = "exclusive_overlap"
	ConflictTerritoryOverlap  ConflictType = "territory_overlap"
	ConflictCompetitorBlocked ConflictType = "competitor_blocked"
	ConflictDateOverlap       ConflictType = "date_overlap"
	ConflictScopeOverlap      ConflictType = "scope_overlap"
	ConflictRevenueCapacity   ConflictType = "revenue_capacity"
)

type ConflictSeverity string

const (
	SeverityCritical ConflictSeverity = "critical"
	SeverityWarning  ConflictSeverity = "warning"
	SeverityInfo     ConflictSeverity = "info"
)

type OwnershipStatus string

const (
	OwnershipStatusActive      OwnershipStatus = "active"
	OwnershipStatusDisputed    OwnershipStatus = "disputed"
	OwnershipStatusTransferred OwnershipStatus = "transferred"
)

type VerificationLevel string

const (
	VerificationLevelUnverified VerificationLevel = "unverified"
	VerificationLevelVerified   VerificationLevel = "verified"
	VerificationLevelPremium    VerificationLevel = "premium"
)

type AssetStatus string

const (
	AssetStatusLicensable AssetStatus = "licensable"
	AssetStatusWithdrawn  AssetStatus = "withdrawn"
	AssetStatusSuspended  AssetStatus = "suspended"
)

// Notification milestones ahead of license expiry. Each is dispatched at
// most once per license.
type Milestone string

const (
	MilestoneRenewalOffer   Milestone = "renewal_offer"
	MilestoneFirstReminder  Milestone = "first_reminder"
	MilestoneSecondReminder Milestone = "second_reminder"
	MilestoneFinalNotice    Milestone = "final_notice"
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10000
