// internal/models/license.go
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// License is the central entity: a time-bounded, scoped usage grant from a
// creator-owned asset to a brand. Status is written only through the
// lifecycle service's transition entry point; history collections are
// append-only.
type License struct {
	BaseModel
	ReferenceNumber string     `json:"reference_number" gorm:"size:32;uniqueIndex;not null"`
	AssetID         uuid.UUID  `json:"asset_id" gorm:"type:uuid;not null;index"`
	BrandID         uuid.UUID  `json:"brand_id" gorm:"type:uuid;not null;index"`
	ProjectID       *uuid.UUID `json:"project_id,omitempty" gorm:"type:uuid"`

	LicenseType LicenseType `json:"license_type" gorm:"type:varchar(20);not null"`
	Scope       Scope       `json:"scope" gorm:"embedded;embeddedPrefix:scope_"`
	StartDate   time.Time   `json:"start_date" gorm:"not null"`
	EndDate     time.Time   `json:"end_date" gorm:"not null;index"`

	FeeCents         int64            `json:"fee_cents" gorm:"not null;default:0"`
	RevShareBps      int              `json:"rev_share_bps" gorm:"not null;default:0"`
	BillingFrequency BillingFrequency `json:"billing_frequency" gorm:"type:varchar(20);default:'one_time'"`

	Status  LicenseStatus `json:"status" gorm:"type:varchar(20);default:'DRAFT';index"`
	Version int64         `json:"version" gorm:"not null;default:1"`

	AutoRenew       bool `json:"auto_renew" gorm:"default:false"`
	GracePeriodDays int  `json:"grace_period_days" gorm:"default:0"`

	ParentLicenseID *uuid.UUID `json:"parent_license_id,omitempty" gorm:"type:uuid;index"`
	AmendmentCount  int        `json:"amendment_count" gorm:"default:0"`
	ExtensionCount  int        `json:"extension_count" gorm:"default:0"`
	RenewalCount    int        `json:"renewal_count" gorm:"default:0"`

	// Relationships (append-only children)
	StatusTransitions   []StatusTransition   `json:"status_transitions,omitempty" gorm:"foreignKey:LicenseID"`
	Signatures          []Signature          `json:"signatures,omitempty" gorm:"foreignKey:LicenseID"`
	NotificationRecords []NotificationRecord `json:"notification_records,omitempty" gorm:"foreignKey:LicenseID"`
	ParentLicense       *License             `json:"parent_license,omitempty" gorm:"foreignKey:ParentLicenseID"`
}

// StatusTransition is one immutable entry of the status history.
type StatusTransition struct {
	ID         uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LicenseID  uuid.UUID     `json:"license_id" gorm:"type:uuid;not null;index"`
	FromStatus LicenseStatus `json:"from_status" gorm:"type:varchar(20);not null"`
	ToStatus   LicenseStatus `json:"to_status" gorm:"type:varchar(20);not null"`
	ActorID    *uuid.UUID    `json:"actor_id,omitempty" gorm:"type:uuid"`
	Reason     string        `json:"reason" gorm:"type:text"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Signature records one party's signature over a content-hash of the terms.
type Signature struct {
	ID        uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LicenseID uuid.UUID    `json:"license_id" gorm:"type:uuid;not null;index"`
	PartyID   uuid.UUID    `json:"party_id" gorm:"type:uuid;not null"`
	Role      ApproverRole `json:"role" gorm:"type:varchar(20);not null"`
	TermsHash string       `json:"terms_hash" gorm:"size:64;not null"`
	SignedAt  time.Time    `json:"signed_at"`
}

// NotificationRecord marks a milestone as dispatched for a license. The
// unique index makes milestone dispatch idempotent under sweep retries.
type NotificationRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	LicenseID  uuid.UUID `json:"license_id" gorm:"type:uuid;not null;uniqueIndex:idx_license_milestone"`
	Milestone  Milestone `json:"milestone" gorm:"type:varchar(30);not null;uniqueIndex:idx_license_milestone"`
	DeliveryID string    `json:"delivery_id" gorm:"size:64"`
	SentAt     time.Time `json:"sent_at"`
}

// Conflict is a transient result record produced by the conflict detector;
// it is never persisted.
type Conflict struct {
	Type                 ConflictType     `json:"type"`
	Severity             ConflictSeverity `json:"severity"`
	ConflictingLicenseID uuid.UUID        `json:"conflicting_license_id"`
	Message              string           `json:"message"`
}

// Validate enforces the license invariants that must hold at every point in
// the lifecycle.
func (l *License) Validate() error {
	if !l.EndDate.After(l.StartDate) {
		return errors.New("end date must be after start date")
	}
	if l.FeeCents < 0 {
		return errors.New("fee must not be negative")
	}
	if l.RevShareBps < 0 || l.RevShareBps > BpsDenominator {
		return fmt.Errorf("revenue share must be between 0 and %d basis points", BpsDenominator)
	}
	if !l.Scope.HasMedia() {
		return errors.New("scope must grant at least one media right")
	}
	if !l.Scope.HasPlacement() {
		return errors.New("scope must grant at least one placement right")
	}
	return nil
}

// DurationDays is the whole-day length of the license term.
func (l *License) DurationDays() int {
	return int(l.EndDate.Sub(l.StartDate).Hours() / 24)
}

// DatesOverlap reports whether two [start, end) windows intersect.
func DatesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsWindow reports whether the license term intersects [start, end).
func (l *License) OverlapsWindow(start, end time.Time) bool {
	return DatesOverlap(l.StartDate, l.EndDate, start, end)
}

// HybridPricing reports whether the license combines a fixed fee with a
// revenue share.
func (l *License) HybridPricing() bool {
	return l.FeeCents > 0 && l.RevShareBps > 0
}

// TermsHash is a sha256 content-hash over the canonical financial and grant
// terms. Signatures bind to it; any term change invalidates prior hashes.
func (l *License) TermsHash() string {
	canonical := fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d|%s|%v|%v|%v",
		l.AssetID, l.BrandID, l.LicenseType,
		l.StartDate.UTC().Format(time.RFC3339), l.EndDate.UTC().Format(time.RFC3339),
		l.FeeCents, l.RevShareBps, l.BillingFrequency,
		[]string(l.Scope.Territories), l.Scope.mediaFlags(), l.Scope.placementFlags())
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// SignedBy reports whether a party has already signed the current terms.
func (l *License) SignedBy(partyID uuid.UUID) bool {
	hash := l.TermsHash()
	for _, sig := range l.Signatures {
		if sig.PartyID == partyID && sig.TermsHash == hash {
			return true
		}
	}
	return false
}
