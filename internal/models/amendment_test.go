// internal/models/amendment_test.go
package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func approvers(ids ...uuid.UUID) []RequiredApprover {
	out := make([]RequiredApprover, len(ids))
	for i, id := range ids {
		out[i] = RequiredApprover{ApproverID: id, Role: ApproverRoleCreator}
	}
	return out
}

func TestResolveApproval(t *testing.T) {
	brand := uuid.New()
	ownerA := uuid.New()
	ownerB := uuid.New()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	deadline := now.AddDate(0, 0, 14)

	tests := []struct {
		name      string
		required  []RequiredApprover
		decisions []ApprovalDecision
		now       time.Time
		want      ApprovalStatus
	}{
		{
			name:     "no decisions stays pending",
			required: approvers(brand, ownerA),
			now:      now,
			want:     ApprovalStatusPending,
		},
		{
			name:     "partial approval stays pending",
			required: approvers(brand, ownerA),
			decisions: []ApprovalDecision{
				{ApproverID: brand, Decision: DecisionApprove},
			},
			now:  now,
			want: ApprovalStatusPending,
		},
		{
			name:     "all approved",
			required: approvers(brand, ownerA, ownerB),
			decisions: []ApprovalDecision{
				{ApproverID: brand, Decision: DecisionApprove},
				{ApproverID: ownerA, Decision: DecisionApprove},
				{ApproverID: ownerB, Decision: DecisionApprove},
			},
			now:  now,
			want: ApprovalStatusApproved,
		},
		{
			name:     "single reject overrides approvals",
			required: approvers(brand, ownerA, ownerB),
			decisions: []ApprovalDecision{
				{ApproverID: brand, Decision: DecisionApprove},
				{ApproverID: ownerA, Decision: DecisionReject},
				{ApproverID: ownerB, Decision: DecisionApprove},
			},
			now:  now,
			want: ApprovalStatusRejected,
		},
		{
			name:     "request changes does not resolve",
			required: approvers(brand, ownerA),
			decisions: []ApprovalDecision{
				{ApproverID: brand, Decision: DecisionApprove},
				{ApproverID: ownerA, Decision: DecisionRequestChanges},
			},
			now:  now,
			want: ApprovalStatusPending,
		},
		{
			name:     "deadline elapsed with missing approvals",
			required: approvers(brand, ownerA),
			decisions: []ApprovalDecision{
				{ApproverID: brand, Decision: DecisionApprove},
			},
			now:  deadline.AddDate(0, 0, 1),
			want: ApprovalStatusExpired,
		},
		{
			name:     "reject recorded before sweep wins over expiry",
			required: approvers(brand, ownerA),
			decisions: []ApprovalDecision{
				{ApproverID: ownerA, Decision: DecisionReject},
			},
			now:  deadline.AddDate(0, 0, 1),
			want: ApprovalStatusRejected,
		},
		{
			name:     "no required approvers never auto-approves",
			required: nil,
			now:      now,
			want:     ApprovalStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveApproval(tt.required, tt.decisions, deadline, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecisionsByApproverFirstWins(t *testing.T) {
	approver := uuid.New()
	decisions := []ApprovalDecision{
		{ApproverID: approver, Decision: DecisionReject},
		{ApproverID: approver, Decision: DecisionApprove},
	}

	folded := DecisionsByApprover(decisions)
	assert.Equal(t, DecisionReject, folded[approver])
	assert.Len(t, folded, 1)
}
