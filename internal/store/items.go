package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/zadolzitve/internal/model"
)

const itemColumns = `id, name, category, color, palga, mami_serial, manufacture_mkt, katzi_mkt,
	serial_no, description, count, total_count, kit_id, image_mime, created_at, updated_at`

func scanItem(s rowScanner) (*model.Item, error) {
	item := &model.Item{}
	var kitID sql.NullInt64
	var imageMime sql.NullString
	if err := s.Scan(&item.ID, &item.Name, &item.Category, &item.Color, &item.Palga,
		&item.MamiSerial, &item.ManufactureMkt, &item.KatziMkt, &item.SerialNo,
		&item.Description, &item.Count, &item.TotalCount, &kitID, &imageMime,
		&item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if kitID.Valid {
		id := kitID.Int64
		item.KitID = &id
	}
	item.ImageMime = imageMime.String
	return item, nil
}

func validateItemFields(f model.ItemFields) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: item name required", ErrValidation)
	}
	if f.Category == model.CategoryKit {
		return fmt.Errorf("%w: category %q is reserved for kits", ErrValidation, model.CategoryKit)
	}
	return nil
}

// CreateItem adds a new item to the ledger with its whole stock available.
func CreateItem(ctx context.Context, db *sql.DB, f model.ItemFields, totalCount int) (*model.Item, error) {
	if err := validateItemFields(f); err != nil {
		return nil, err
	}
	if totalCount < 1 {
		return nil, fmt.Errorf("%w: total count must be at least 1", ErrValidation)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO items (name, category, color, palga, mami_serial, manufacture_mkt, katzi_mkt,
		                    serial_no, description, count, total_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.Category, f.Color, f.Palga, f.MamiSerial, f.ManufactureMkt, f.KatziMkt,
		f.SerialNo, f.Description, totalCount, totalCount,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	return getItem(ctx, db, id)
}

func getItem(ctx context.Context, q querier, id int64) (*model.Item, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns all items, optionally only those with stock in the pool.
func ListItems(ctx context.Context, db *sql.DB, availableOnly bool) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if availableOnly {
		query += ` WHERE count > 0`
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// UpdateItem edits an item's metadata and resizes its nominal stock.
//
// Resizing adds or removes the difference to or from the pool. Quantity out
// on loan, on hold or in kits never changes, so a shrink fails when the pool
// cannot cover it.
func UpdateItem(ctx context.Context, db *sql.DB, id int64, f model.ItemFields, totalCount int) (*model.Item, error) {
	if err := validateItemFields(f); err != nil {
		return nil, err
	}
	if totalCount < 1 {
		return nil, fmt.Errorf("%w: total count must be at least 1", ErrValidation)
	}

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %d", ErrNotFound, id)
		}
		if item.IsKit() {
			return fmt.Errorf("%w: kit entries are edited through their kit", ErrValidation)
		}

		count, err := resizedCount(item.Count, item.TotalCount, totalCount)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE items SET name = ?, category = ?, color = ?, palga = ?, mami_serial = ?,
			        manufacture_mkt = ?, katzi_mkt = ?, serial_no = ?, description = ?,
			        count = ?, total_count = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			f.Name, f.Category, f.Color, f.Palga, f.MamiSerial, f.ManufactureMkt, f.KatziMkt,
			f.SerialNo, f.Description, count, totalCount, id,
		)
		if err != nil {
			return fmt.Errorf("updating item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return GetItem(ctx, db, id)
}

// resizedCount returns the pool count after changing the nominal stock
// from oldTotal to newTotal.
func resizedCount(count, oldTotal, newTotal int) (int, error) {
	resized := count + newTotal - oldTotal
	if resized < 0 {
		return 0, fmt.Errorf("%w: new total %d is below the %d units out of the pool",
			ErrValidation, newTotal, oldTotal-count)
	}
	return resized, nil
}

// DeleteItem removes an item that is fully back in the pool and referenced
// by no custody record or kit.
func DeleteItem(ctx context.Context, db *sql.DB, id int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %d", ErrNotFound, id)
		}
		if item.IsKit() {
			return fmt.Errorf("%w: kit entries are removed by deleting the kit", ErrValidation)
		}

		checks := []struct {
			what  string
			query string
		}{
			{"signings", `SELECT COUNT(*) FROM signings WHERE item_id = ?`},
			{"pending signings", `SELECT COUNT(*) FROM pending_signings WHERE item_id = ?`},
			{"kits", `SELECT COUNT(*) FROM kit_items WHERE item_id = ?`},
		}
		for _, c := range checks {
			n, err := countRows(ctx, tx, c.query, id)
			if err != nil {
				return fmt.Errorf("checking item %s: %w", c.what, err)
			}
			if n > 0 {
				return fmt.Errorf("%w: cannot delete item: referenced by %d %s", ErrInvariant, n, c.what)
			}
		}
		if item.Count != item.TotalCount {
			return fmt.Errorf("%w: cannot delete item: %d of %d not in the pool",
				ErrInvariant, item.OnLoan(), item.TotalCount)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM amplifier_tracking WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("deleting item tracking: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	})
}

// decreaseCount takes qty out of the item's pool.
func decreaseCount(ctx context.Context, q querier, itemID int64, qty int) (*model.Item, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	item, err := getItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	if item.Count < qty {
		return nil, fmt.Errorf("%w: only %d of %s available, %d requested",
			ErrInvariant, item.Count, item.Name, qty)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE items SET count = count - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		qty, itemID,
	); err != nil {
		return nil, fmt.Errorf("decreasing item count: %w", err)
	}
	item.Count -= qty
	return item, nil
}

// increaseCount returns qty to the item's pool.
func increaseCount(ctx context.Context, q querier, itemID int64, qty int) (*model.Item, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	item, err := getItem(ctx, q, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	if item.Count+qty > item.TotalCount {
		return nil, fmt.Errorf("%w: returning %d of %s would exceed total %d",
			ErrInvariant, qty, item.Name, item.TotalCount)
	}

	if _, err := q.ExecContext(ctx,
		`UPDATE items SET count = count + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		qty, itemID,
	); err != nil {
		return nil, fmt.Errorf("increasing item count: %w", err)
	}
	item.Count += qty
	return item, nil
}

// SetItemImage sets an item's image data.
func SetItemImage(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET image = ?, image_mime = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %d", ErrNotFound, id)
	}
	return nil
}

// GetItemImage returns an item's image data and MIME type.
func GetItemImage(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM items WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item image: %w", err)
	}
	return image, mime.String, nil
}

// GetItemDistribution locates every unit of an item's stock.
func GetItemDistribution(ctx context.Context, db *sql.DB, id int64) (*model.ItemDistribution, error) {
	item, err := GetItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, id)
	}

	d := &model.ItemDistribution{
		ItemID:     item.ID,
		TotalCount: item.TotalCount,
		Available:  item.Count,
	}
	sums := []struct {
		dst   *int
		query string
	}{
		{&d.Pending, `SELECT COALESCE(SUM(quantity), 0) FROM pending_signings WHERE item_id = ?`},
		{&d.Signed, `SELECT COALESCE(SUM(quantity), 0) FROM signings WHERE item_id = ?`},
		{&d.InKits, `SELECT COALESCE(SUM(quantity), 0) FROM kit_items WHERE item_id = ?`},
	}
	for _, s := range sums {
		n, err := countRows(ctx, db, s.query, id)
		if err != nil {
			return nil, fmt.Errorf("summing item distribution: %w", err)
		}
		*s.dst = n
	}
	return d, nil
}
