package model

import "time"

// SwitchStatus is the lifecycle state of a switch request.
type SwitchStatus int

// Switch request statuses. Approved and rejected requests are deleted.
const (
	SwitchPendingNewSigner SwitchStatus = 1
	SwitchPendingMaster    SwitchStatus = 2
	SwitchImpossible       SwitchStatus = 3
)

func (s SwitchStatus) String() string {
	switch s {
	case SwitchPendingNewSigner:
		return "awaiting new signer approval"
	case SwitchPendingMaster:
		return "awaiting master approval"
	case SwitchImpossible:
		return "impossible"
	default:
		return "unknown"
	}
}

// SwitchRequest proposes moving quantity of a signing from OldPID to NewPID.
type SwitchRequest struct {
	ID              int64        `json:"id"`
	SigningID       int64        `json:"signing_id"`
	OldPID          int64        `json:"old_pid"`
	NewPID          int64        `json:"new_pid"`
	Quantity        int          `json:"quantity"`
	Description     string       `json:"description"`
	Status          SwitchStatus `json:"status"`
	InitiatedBy     int64        `json:"initiated_by"`
	MasterInitiated bool         `json:"master_initiated"`
	CreatedAt       time.Time    `json:"created_at"`

	// Joined fields (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// AwaitsMaster reports whether a master may finalize the request now.
func (r *SwitchRequest) AwaitsMaster() bool {
	if r.Status == SwitchImpossible {
		return false
	}
	return r.MasterInitiated || r.Status == SwitchPendingMaster
}

// SwitchOutcome reports what a master approval did to one request.
type SwitchOutcome struct {
	RequestID int64        `json:"request_id"`
	Approved  bool         `json:"approved"`
	Status    SwitchStatus `json:"status,omitempty"`
	Reason    string       `json:"reason,omitempty"`
}
