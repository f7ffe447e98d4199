// internal/models/extension.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Extension proposes adding days to a license term with a pro-rated fee.
// Short extensions auto-approve; longer ones follow the amendment approval
// shape.
type Extension struct {
	BaseModel
	LicenseID     uuid.UUID      `json:"license_id" gorm:"type:uuid;not null;index"`
	ExtensionDays int            `json:"extension_days" gorm:"not null"`
	ProRatedFee   int64          `json:"pro_rated_fee" gorm:"not null;default:0"`
	NewEndDate    time.Time      `json:"new_end_date" gorm:"not null"`
	Justification string         `json:"justification" gorm:"type:text"`
	Deadline      time.Time      `json:"deadline" gorm:"not null;index"`
	Status        ApprovalStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	AutoApproved  bool           `json:"auto_approved" gorm:"default:false"`
	ProposedBy    uuid.UUID      `json:"proposed_by" gorm:"type:uuid;not null"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	AppliedAt     *time.Time     `json:"applied_at,omitempty"`

	// Relationships
	License   License            `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Approvers []RequiredApprover `json:"approvers,omitempty" gorm:"foreignKey:ExtensionID"`
	Decisions []ApprovalDecision `json:"decisions,omitempty" gorm:"foreignKey:ExtensionID"`
}

// MaxExtensionDays bounds a single extension; anything longer must go
// through renewal.
const MaxExtensionDays = 365

// ProRatedExtensionFee computes the fee for extending a term, derived from
// the license's existing day-rate. Integer arithmetic with floor rounding,
// consistently with all money math in this module.
func ProRatedExtensionFee(feeCents int64, currentDurationDays, extensionDays int) int64 {
	if currentDurationDays <= 0 || extensionDays <= 0 {
		return 0
	}
	return feeCents * int64(extensionDays) / int64(currentDurationDays)
}
