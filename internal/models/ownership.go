// internal/models/ownership.go
package models

import (
	"github.com/google/uuid"
)

// The ownership/asset directory and brand billing profile are external
// systems; the core reads them and never writes.

// OwnershipRecord is one owner's share of an asset, in basis points.
type OwnershipRecord struct {
	BaseModel
	AssetID     uuid.UUID       `json:"asset_id" gorm:"type:uuid;not null;index"`
	OwnerID     uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;index"`
	ShareBps    int             `json:"share_bps" gorm:"not null"`
	IsPrimary   bool            `json:"is_primary" gorm:"default:false"`
	Status      OwnershipStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	OwnerActive bool            `json:"owner_active" gorm:"default:true"`
	OwnerEmail  string          `json:"owner_email" gorm:"size:255"`
}

// Asset is the licensed IP as the directory describes it.
type Asset struct {
	BaseModel
	Title            string      `json:"title" gorm:"size:255;not null"`
	Status           AssetStatus `json:"status" gorm:"type:varchar(20);default:'licensable';index"`
	DocumentationKey string      `json:"documentation_key" gorm:"size:512"`

	// Relationships
	OwnershipRecords []OwnershipRecord `json:"ownership_records,omitempty" gorm:"foreignKey:AssetID"`
}

// Brand is the licensee as the billing system describes it.
type Brand struct {
	BaseModel
	Name              string            `json:"name" gorm:"size:255;not null"`
	ContactEmail      string            `json:"contact_email" gorm:"size:255"`
	VerificationLevel VerificationLevel `json:"verification_level" gorm:"type:varchar(20);default:'unverified';index"`
	StripeCustomerID  string            `json:"stripe_customer_id" gorm:"size:64"`
	PaymentFailures   int               `json:"payment_failures" gorm:"default:0"`
}

// Verified reports whether the brand has passed verification.
func (b *Brand) Verified() bool {
	return b.VerificationLevel != VerificationLevelUnverified
}

// AuditLog is the append-only audit trail. Write-only from the core's
// point of view: no decision path ever reads it back.
type AuditLog struct {
	BaseModel
	EntityType string     `json:"entity_type" gorm:"size:50;not null;index"`
	EntityID   uuid.UUID  `json:"entity_id" gorm:"type:uuid;not null;index"`
	Action     string     `json:"action" gorm:"size:100;not null"`
	Before     JSONB      `json:"before" gorm:"type:jsonb"`
	After      JSONB      `json:"after" gorm:"type:jsonb"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty" gorm:"type:uuid"`
}
