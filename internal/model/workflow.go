package model

import "time"

// Workflow purposes.
const (
	WorkflowNewSigning   = "new_signing"
	WorkflowClientSwitch = "client_switch"
	WorkflowMasterSwitch = "master_switch"
	WorkflowKitDraft     = "kit_draft"
)

// Workflow is a short-lived, identity-scoped parameter set carried between
// the steps of a multi-request flow (e.g. the signer a master is issuing to).
type Workflow struct {
	ID        string    `json:"id"`
	OwnerPID  int64     `json:"owner_pid"`
	Purpose   string    `json:"purpose"`
	TargetPID int64     `json:"target_pid,omitempty"`
	SourcePID int64     `json:"source_pid,omitempty"`
	Payload   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
