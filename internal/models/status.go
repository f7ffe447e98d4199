// internal/models/status.go
package models

type LicenseStatus string

const (
	StatusDraft            LicenseStatus = "DRAFT"
	StatusPendingApproval  LicenseStatus = "PENDING_APPROVAL"
	StatusPendingSignature LicenseStatus = "PENDING_SIGNATURE"
	StatusActive           LicenseStatus = "ACTIVE"
	StatusExpiringSoon     LicenseStatus = "EXPIRING_SOON"
	StatusExpired          LicenseStatus = "EXPIRED"
	StatusRenewed          LicenseStatus = "RENEWED"
	StatusTerminated       LicenseStatus = "TERMINATED"
	StatusSuspended        LicenseStatus = "SUSPENDED"
	StatusDisputed         LicenseStatus = "DISPUTED"
	StatusCanceled         LicenseStatus = "CANCELED"
	StatusRejected         LicenseStatus = "REJECTED"
)

// AllStatuses lists every license status; useful for exhaustive checks.
var AllStatuses = []LicenseStatus{
	StatusDraft, StatusPendingApproval, StatusPendingSignature, StatusActive,
	StatusExpiringSoon, StatusExpired, StatusRenewed, StatusTerminated,
	StatusSuspended, StatusDisputed, StatusCanceled, StatusRejected,
}

// transitionTable is the single authority on legal status transitions.
// No code path may write a license status without consulting it.
var transitionTable = map[LicenseStatus][]LicenseStatus{
	StatusDraft:            {StatusPendingApproval, StatusCanceled},
	StatusPendingApproval:  {StatusPendingSignature, StatusDraft, StatusRejected, StatusCanceled},
	StatusPendingSignature: {StatusActive, StatusPendingApproval, StatusCanceled},
	StatusActive:           {StatusExpiringSoon, StatusTerminated, StatusDisputed, StatusSuspended},
	StatusExpiringSoon:     {StatusExpired, StatusRenewed, StatusTerminated, StatusActive, StatusSuspended},
	StatusExpired:          {StatusRenewed},
	StatusDisputed:         {StatusActive, StatusTerminated, StatusSuspended},
	StatusSuspended:        {StatusActive, StatusTerminated},
	StatusRenewed:          {},
	StatusTerminated:       {},
	StatusCanceled:         {},
	StatusRejected:         {},
}

// CanTransition reports whether from -> to is present in the transition table.
func CanTransition(from, to LicenseStatus) bool {
	for _, t := range transitionTable[from] {
		if t == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns a copy of the legal targets for a status.
func AllowedTargets(from LicenseStatus) []LicenseStatus {
	targets := transitionTable[from]
	out := make([]LicenseStatus, len(targets))
	copy(out, targets)
	return out
}

// IsTerminal reports whether a status admits no further transitions.
// EXPIRED is not terminal in the strict sense: it may still be RENEWED.
func (s LicenseStatus) IsTerminal() bool {
	return len(transitionTable[s]) == 0
}

// IsSettled reports whether the license no longer occupies its grant:
// terminal states plus EXPIRED do not count against conflicts or budgets.
func (s LicenseStatus) IsSettled() bool {
	return s.IsTerminal() || s == StatusExpired
}

// ActiveStatuses are the statuses that hold or may come to hold a live
// grant; conflict and budget checks run against these.
var ActiveStatuses = []LicenseStatus{
	StatusDraft, StatusPendingApproval, StatusPendingSignature,
	StatusActive, StatusExpiringSoon, StatusDisputed, StatusSuspended,
}

// VoidedStatuses are the statuses of licenses that never took effect.
// A voided successor does not count against renewing its parent.
var VoidedStatuses = []LicenseStatus{StatusCanceled, StatusRejected}
