package model

import "time"

// PendingSigning is quantity already taken from the pool but not yet
// committed to a signer.
type PendingSigning struct {
	ID          int64     `json:"id"`
	ItemID      int64     `json:"item_id"`
	MasterPID   int64     `json:"master_pid"`
	ClientPID   int64     `json:"client_pid"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	ClientName string `json:"client_name,omitempty"`
	MasterName string `json:"master_name,omitempty"`
}

// Signing is quantity of an item held by one client.
type Signing struct {
	ID          int64     `json:"id"`
	ItemID      int64     `json:"item_id"`
	MasterPID   int64     `json:"master_pid"`
	ClientPID   int64     `json:"client_pid"`
	Quantity    int       `json:"quantity"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`

	// Joined fields (not always populated).
	ItemName   string `json:"item_name,omitempty"`
	ClientName string `json:"client_name,omitempty"`
	MasterName string `json:"master_name,omitempty"`
}

// HoldRequest is one line of a batch placed on hold.
type HoldRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// QuantityRequest selects a quantity of one record (signing or kit item).
type QuantityRequest struct {
	ID       int64 `json:"id"`
	Quantity int   `json:"quantity"`
}
