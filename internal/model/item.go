package model

import "time"

// CategoryKit is the category of a kit's pseudo-item.
const CategoryKit = "kit"

// Item is an inventory ledger entry for a fungible piece of equipment.
// Count is the quantity available in the pool; TotalCount the nominal stock.
type Item struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Color          string    `json:"color"`
	Palga          string    `json:"palga"`
	MamiSerial     string    `json:"mami_serial"`
	ManufactureMkt string    `json:"manufacture_mkt"`
	KatziMkt       string    `json:"katzi_mkt"`
	SerialNo       string    `json:"serial_no"`
	Description    string    `json:"description"`
	Count          int       `json:"count"`
	TotalCount     int       `json:"total_count"`
	KitID          *int64    `json:"kit_id,omitempty"`
	ImageMime      string    `json:"image_mime,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ItemFields are the editable metadata of an item.
type ItemFields struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	Color          string `json:"color"`
	Palga          string `json:"palga"`
	MamiSerial     string `json:"mami_serial"`
	ManufactureMkt string `json:"manufacture_mkt"`
	KatziMkt       string `json:"katzi_mkt"`
	SerialNo       string `json:"serial_no"`
	Description    string `json:"description"`
}

// IsKit reports whether the item is a kit's pseudo-entry.
func (i *Item) IsKit() bool {
	return i.KitID != nil
}

// OnLoan returns the quantity currently outside the pool.
func (i *Item) OnLoan() int {
	return i.TotalCount - i.Count
}

// ItemDistribution splits an item's nominal stock by where it currently is.
// For plain items Available+Pending+Signed+InKits always equals TotalCount.
type ItemDistribution struct {
	ItemID     int64 `json:"item_id"`
	TotalCount int   `json:"total_count"`
	Available  int   `json:"available"`
	Pending    int   `json:"pending"`
	Signed     int   `json:"signed"`
	InKits     int   `json:"in_kits"`
}

// Accounted returns the quantity the ledger can locate.
func (d *ItemDistribution) Accounted() int {
	return d.Available + d.Pending + d.Signed + d.InKits
}
