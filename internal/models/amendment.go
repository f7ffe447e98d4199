// internal/models/amendment.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FieldDelta is one proposed change: field name plus current and proposed
// values as JSON-encodable scalars.
type FieldDelta struct {
	Field         string      `json:"field"`
	CurrentValue  interface{} `json:"current_value"`
	ProposedValue interface{} `json:"proposed_value"`
}

// FieldDeltas stores the delta list as a typed JSONB column.
type FieldDeltas []FieldDelta

func (d FieldDeltas) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *FieldDeltas) Scan(value interface{}) error {
	if value == nil {
		*d = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, d)
}

// Amendment is a proposed in-place change to an ACTIVE license, resolved by
// unanimous multi-party approval before a deadline.
type Amendment struct {
	BaseModel
	LicenseID     uuid.UUID      `json:"license_id" gorm:"type:uuid;not null;index"`
	Type          AmendmentType  `json:"type" gorm:"type:varchar(20);not null"`
	Deltas        FieldDeltas    `json:"deltas" gorm:"type:jsonb;not null"`
	Justification string         `json:"justification" gorm:"type:text;not null"`
	Deadline      time.Time      `json:"deadline" gorm:"not null;index"`
	Status        ApprovalStatus `json:"status" gorm:"type:varchar(20);default:'PENDING';index"`
	ProposedBy    uuid.UUID      `json:"proposed_by" gorm:"type:uuid;not null"`
	ResolvedAt    *time.Time     `json:"resolved_at,omitempty"`
	AppliedAt     *time.Time     `json:"applied_at,omitempty"`

	// Relationships
	License   License            `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Approvers []RequiredApprover `json:"approvers,omitempty" gorm:"foreignKey:AmendmentID"`
	Decisions []ApprovalDecision `json:"decisions,omitempty" gorm:"foreignKey:AmendmentID"`
}

// RequiredApprover is one party whose approval an amendment or extension
// needs. Exactly one of AmendmentID/ExtensionID is set.
type RequiredApprover struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AmendmentID *uuid.UUID   `json:"amendment_id,omitempty" gorm:"type:uuid;index"`
	ExtensionID *uuid.UUID   `json:"extension_id,omitempty" gorm:"type:uuid;index"`
	ApproverID  uuid.UUID    `json:"approver_id" gorm:"type:uuid;not null"`
	Role        ApproverRole `json:"role" gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time    `json:"created_at"`
}

// ApprovalDecision is one party's recorded decision; written once, never
// updated. Exactly one of AmendmentID/ExtensionID is set.
type ApprovalDecision struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AmendmentID *uuid.UUID   `json:"amendment_id,omitempty" gorm:"type:uuid;index"`
	ExtensionID *uuid.UUID   `json:"extension_id,omitempty" gorm:"type:uuid;index"`
	ApproverID  uuid.UUID    `json:"approver_id" gorm:"type:uuid;not null"`
	Role        ApproverRole `json:"role" gorm:"type:varchar(20);not null"`
	Decision    DecisionType `json:"decision" gorm:"type:varchar(20);not null"`
	Comment     string       `json:"comment" gorm:"type:text"`
	DecidedAt   time.Time    `json:"decided_at"`
}

// DecisionsByApprover folds decision rows into one decision per approver;
// the first recorded decision wins.
func DecisionsByApprover(decisions []ApprovalDecision) map[uuid.UUID]DecisionType {
	out := make(map[uuid.UUID]DecisionType, len(decisions))
	for _, d := range decisions {
		if _, seen := out[d.ApproverID]; !seen {
			out[d.ApproverID] = d.Decision
		}
	}
	return out
}

// ResolveApproval computes the outcome of a multi-party approval from the
// required approver set and the decisions recorded so far. The three final
// outcomes are mutually exclusive and exhaustive:
//   - any reject => REJECTED
//   - every required approver approved => APPROVED
//   - deadline elapsed first => EXPIRED
//   - otherwise still PENDING
//
// A reject recorded before the sweep expires the item wins over expiry;
// request_changes leaves the item pending until the deadline.
func ResolveApproval(required []RequiredApprover, decisions []ApprovalDecision, deadline, now time.Time) ApprovalStatus {
	decided := DecisionsByApprover(decisions)

	for _, d := range decided {
		if d == DecisionReject {
			return ApprovalStatusRejected
		}
	}

	approvedAll := len(required) > 0
	for _, r := range required {
		if decided[r.ApproverID] != DecisionApprove {
			approvedAll = false
			break
		}
	}
	if approvedAll {
		return ApprovalStatusApproved
	}

	if now.After(deadline) {
		return ApprovalStatusExpired
	}
	return ApprovalStatusPending
}
