package model

import "time"

// Audit log actions.
const (
	ActionNewSigning    = "New Signing"
	ActionCredit        = "Credit"
	ActionSwitchSigning = "Switch Signing"
	ActionNewKit        = "New Kit"
	ActionKitUpdate     = "Kit Update"
	ActionKitRemoval    = "Kit Removal"
	ActionDeleteKit     = "Delete Kit"
)

// LogEntry is an append-only audit record.
type LogEntry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
