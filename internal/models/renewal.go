// internal/models/renewal.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PricingAdjustment is one itemized step of the renewal pricing pipeline.
type PricingAdjustment struct {
	Name       string `json:"name"`
	Percent    int    `json:"percent"`
	AmountCent int64  `json:"amount_cents"`
}

// PricingAdjustments stores the itemized breakdown as a typed JSONB column.
type PricingAdjustments []PricingAdjustment

func (a PricingAdjustments) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

func (a *PricingAdjustments) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// RenewalOffer bundles computed successor terms with an acceptance window.
type RenewalOffer struct {
	BaseModel
	LicenseID    uuid.UUID          `json:"license_id" gorm:"type:uuid;not null;index"`
	Strategy     PricingStrategy    `json:"strategy" gorm:"type:varchar(20);not null"`
	DurationDays int                `json:"duration_days" gorm:"not null"`
	FeeCents     int64              `json:"fee_cents" gorm:"not null"`
	RevShareBps  int                `json:"rev_share_bps" gorm:"not null"`
	Adjustments  PricingAdjustments `json:"adjustments" gorm:"type:jsonb"`
	Confidence   float64            `json:"confidence" gorm:"type:decimal(3,2);default:0"`
	ExpiresAt    time.Time          `json:"expires_at" gorm:"not null;index"`
	Status       OfferStatus        `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`

	AcceptedLicenseID *uuid.UUID `json:"accepted_license_id,omitempty" gorm:"type:uuid"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
