package model

import "time"

// Kit is a named bundle of items, represented in the ledger by one pseudo-item.
type Kit struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Palga       string    `json:"palga"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`

	// Joined field (not always populated).
	ItemID int64 `json:"item_id,omitempty"`
}

// KitItem records how much of a component item is allocated into a kit.
type KitItem struct {
	ID       int64 `json:"id"`
	KitID    int64 `json:"kit_id"`
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`

	// Joined field (not always populated).
	ItemName string `json:"item_name,omitempty"`
}

// KitDraft is a kit name reserved while its contents are being picked.
type KitDraft struct {
	Name  string `json:"name"`
	Palga string `json:"palga"`
}
