package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

const kitSelect = `SELECT k.id, k.name, k.palga, k.description, k.created_at, COALESCE(i.id, 0)
	 FROM kits k
	 LEFT JOIN items i ON i.kit_id = k.id`

func scanKit(s rowScanner) (*model.Kit, error) {
	k := &model.Kit{}
	if err := s.Scan(&k.ID, &k.Name, &k.Palga, &k.Description, &k.CreatedAt, &k.ItemID); err != nil {
		return nil, err
	}
	return k, nil
}

func getKit(ctx context.Context, q querier, id int64) (*model.Kit, error) {
	k, err := scanKit(q.QueryRowContext(ctx, kitSelect+` WHERE k.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting kit: %w", err)
	}
	return k, nil
}

// GetKit returns a kit by ID.
func GetKit(ctx context.Context, db *sql.DB, id int64) (*model.Kit, error) {
	return getKit(ctx, db, id)
}

// ListKits returns all kits by name.
func ListKits(ctx context.Context, db *sql.DB) ([]model.Kit, error) {
	rows, err := db.QueryContext(ctx, kitSelect+` ORDER BY k.name`)
	if err != nil {
		return nil, fmt.Errorf("listing kits: %w", err)
	}
	defer rows.Close()

	var kits []model.Kit
	for rows.Next() {
		k, err := scanKit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning kit: %w", err)
		}
		kits = append(kits, *k)
	}
	return kits, rows.Err()
}

// ListKitItems returns the contents of a kit.
func ListKitItems(ctx context.Context, db *sql.DB, kitID int64) ([]model.KitItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT ki.id, ki.kit_id, ki.item_id, ki.quantity, i.name
		 FROM kit_items ki
		 JOIN items i ON i.id = ki.item_id
		 WHERE ki.kit_id = ?
		 ORDER BY i.name`, kitID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing kit items: %w", err)
	}
	defer rows.Close()

	var items []model.KitItem
	for rows.Next() {
		var ki model.KitItem
		if err := rows.Scan(&ki.ID, &ki.KitID, &ki.ItemID, &ki.Quantity, &ki.ItemName); err != nil {
			return nil, fmt.Errorf("scanning kit item: %w", err)
		}
		items = append(items, ki)
	}
	return items, rows.Err()
}

// kitNameTaken checks existing kits and live drafts for name.
func kitNameTaken(ctx context.Context, q querier, name string, skipDraft string, now time.Time) (bool, error) {
	n, err := countRows(ctx, q, `SELECT COUNT(*) FROM kits WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("checking kit name: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, payload FROM workflow_contexts WHERE purpose = ? AND expires_at > ?`,
		model.WorkflowKitDraft, now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("listing kit drafts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			return false, fmt.Errorf("scanning kit draft: %w", err)
		}
		if id == skipDraft {
			continue
		}
		var d model.KitDraft
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			continue
		}
		if d.Name == name {
			return true, nil
		}
	}
	return false, rows.Err()
}

// CreateKitDraft reserves a kit name for masterPID while the kit's contents
// are being picked. The returned workflow token is passed to FinalizeKit.
func CreateKitDraft(ctx context.Context, db *sql.DB, masterPID int64, draft model.KitDraft) (*model.Workflow, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		return nil, fmt.Errorf("%w: kit name required", ErrValidation)
	}

	taken, err := kitNameTaken(ctx, db, draft.Name, "", time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: a kit named %q already exists", ErrValidation, draft.Name)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return nil, fmt.Errorf("encoding kit draft: %w", err)
	}
	return CreateWorkflow(ctx, db, &model.Workflow{
		OwnerPID: masterPID,
		Purpose:  model.WorkflowKitDraft,
		Payload:  string(payload),
	}, DefaultWorkflowTTL)
}

// FinalizeKit creates the kit reserved by draftID, moving the selected
// quantities out of the pool into the kit. Kits cannot contain other kits.
func FinalizeKit(ctx context.Context, db *sql.DB, masterPID int64, draftID string, selections []model.QuantityRequest, description string) (*model.Kit, error) {
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: a kit needs at least one item", ErrValidation)
	}

	var kitID int64
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		w, err := getWorkflow(ctx, tx, draftID, masterPID, model.WorkflowKitDraft, now)
		if err != nil {
			return err
		}
		var draft model.KitDraft
		if err := json.Unmarshal([]byte(w.Payload), &draft); err != nil {
			return fmt.Errorf("decoding kit draft: %w", err)
		}

		taken, err := kitNameTaken(ctx, tx, draft.Name, draftID, now)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: a kit named %q already exists", ErrValidation, draft.Name)
		}
		if err := rejectNestedKits(ctx, tx, selections); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO kits (name, palga, description, created_at) VALUES (?, ?, ?, ?)`,
			draft.Name, draft.Palga, description, now,
		)
		if err != nil {
			return fmt.Errorf("creating kit: %w", err)
		}
		if kitID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("getting kit id: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (name, category, palga, description, count, total_count, kit_id)
			 VALUES (?, ?, ?, ?, 1, 1, ?)`,
			draft.Name, model.CategoryKit, draft.Palga, description, kitID,
		); err != nil {
			return fmt.Errorf("creating kit entry: %w", err)
		}

		contents, err := mergeIntoKit(ctx, tx, kitID, selections)
		if err != nil {
			return err
		}

		master, err := describeUser(ctx, tx, masterPID)
		if err != nil {
			return err
		}
		if err := appendLog(ctx, tx, model.ActionNewKit, fmt.Sprintf(
			"%s created kit %s (%d) with %s", master, draft.Name, kitID, contents,
		)); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM workflow_contexts WHERE id = ?`, draftID); err != nil {
			return fmt.Errorf("consuming kit draft: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return GetKit(ctx, db, kitID)
}

// AddToKit moves more items from the pool into an existing kit.
func AddToKit(ctx context.Context, db *sql.DB, masterPID, kitID int64, selections []model.QuantityRequest) error {
	if len(selections) == 0 {
		return fmt.Errorf("%w: no items selected", ErrValidation)
	}
	return withTx(ctx, db, func(tx *sql.Tx) error {
		k, err := getKit(ctx, tx, kitID)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("%w: kit %d", ErrNotFound, kitID)
		}
		if err := rejectNestedKits(ctx, tx, selections); err != nil {
			return err
		}

		contents, err := mergeIntoKit(ctx, tx, kitID, selections)
		if err != nil {
			return err
		}

		master, err := describeUser(ctx, tx, masterPID)
		if err != nil {
			return err
		}
		return appendLog(ctx, tx, model.ActionKitUpdate, fmt.Sprintf(
			"%s added %s to kit %s (%d)", master, contents, k.Name, k.ID,
		))
	})
}

func rejectNestedKits(ctx context.Context, tx *sql.Tx, selections []model.QuantityRequest) error {
	for _, s := range selections {
		item, err := getItem(ctx, tx, s.ID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: item %d", ErrNotFound, s.ID)
		}
		if item.IsKit() {
			return fmt.Errorf("%w: kit %s cannot be put into another kit", ErrValidation, item.Name)
		}
	}
	return nil
}

// mergeIntoKit takes each selection out of the pool and adds it to the kit's
// junction rows. Returns a description of what was added.
func mergeIntoKit(ctx context.Context, tx *sql.Tx, kitID int64, selections []model.QuantityRequest) (string, error) {
	parts := make([]string, 0, len(selections))
	for _, s := range selections {
		item, err := decreaseCount(ctx, tx, s.ID, s.Quantity)
		if err != nil {
			return "", err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kit_items (kit_id, item_id, quantity) VALUES (?, ?, ?)
			 ON CONFLICT (kit_id, item_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
			kitID, s.ID, s.Quantity,
		); err != nil {
			return "", fmt.Errorf("adding item to kit: %w", err)
		}
		parts = append(parts, fmt.Sprintf("%d x %s", s.Quantity, item.Name))
	}
	return strings.Join(parts, ", "), nil
}

// RemoveKitItem returns qty of a kit's component to the pool.
func RemoveKitItem(ctx context.Context, db *sql.DB, masterPID, kitItemID int64, qty int) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		var ki model.KitItem
		var kitName string
		err := tx.QueryRowContext(ctx,
			`SELECT ki.id, ki.kit_id, ki.item_id, ki.quantity, i.name, k.name
			 FROM kit_items ki
			 JOIN items i ON i.id = ki.item_id
			 JOIN kits k ON k.id = ki.kit_id
			 WHERE ki.id = ?`, kitItemID,
		).Scan(&ki.ID, &ki.KitID, &ki.ItemID, &ki.Quantity, &ki.ItemName, &kitName)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: kit item %d", ErrNotFound, kitItemID)
		}
		if err != nil {
			return fmt.Errorf("getting kit item: %w", err)
		}
		if qty <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if qty > ki.Quantity {
			return fmt.Errorf("%w: cannot remove %d, kit holds %d", ErrInvariant, qty, ki.Quantity)
		}

		if _, err := increaseCount(ctx, tx, ki.ItemID, qty); err != nil {
			return err
		}
		if qty == ki.Quantity {
			_, err = tx.ExecContext(ctx, `DELETE FROM kit_items WHERE id = ?`, kitItemID)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE kit_items SET quantity = quantity - ? WHERE id = ?`, qty, kitItemID)
		}
		if err != nil {
			return fmt.Errorf("updating kit item: %w", err)
		}

		master, err := describeUser(ctx, tx, masterPID)
		if err != nil {
			return err
		}
		return appendLog(ctx, tx, model.ActionKitRemoval, fmt.Sprintf(
			"%s removed %d x %s from kit %s (%d)", master, qty, ki.ItemName, kitName, ki.KitID,
		))
	})
}

// DeleteKit removes an empty kit and its ledger entry. The kit must not be
// on hold or signed out.
func DeleteKit(ctx context.Context, db *sql.DB, masterPID, kitID int64) error {
	return withTx(ctx, db, func(tx *sql.Tx) error {
		k, err := getKit(ctx, tx, kitID)
		if err != nil {
			return err
		}
		if k == nil {
			return fmt.Errorf("%w: kit %d", ErrNotFound, kitID)
		}

		n, err := countRows(ctx, tx, `SELECT COUNT(*) FROM kit_items WHERE kit_id = ?`, kitID)
		if err != nil {
			return fmt.Errorf("checking kit contents: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: kit %s still contains %d items", ErrInvariant, k.Name, n)
		}

		if k.ItemID != 0 {
			held, err := countRows(ctx, tx,
				`SELECT (SELECT COUNT(*) FROM signings WHERE item_id = ?) +
				        (SELECT COUNT(*) FROM pending_signings WHERE item_id = ?)`,
				k.ItemID, k.ItemID,
			)
			if err != nil {
				return fmt.Errorf("checking kit custody: %w", err)
			}
			if held > 0 {
				return fmt.Errorf("%w: kit %s is signed out", ErrInvariant, k.Name)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM amplifier_tracking WHERE item_id = ?`, k.ItemID); err != nil {
				return fmt.Errorf("deleting kit tracking: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, k.ItemID); err != nil {
				return fmt.Errorf("deleting kit entry: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM kits WHERE id = ?`, kitID); err != nil {
			return fmt.Errorf("deleting kit: %w", err)
		}

		master, err := describeUser(ctx, tx, masterPID)
		if err != nil {
			return err
		}
		return appendLog(ctx, tx, model.ActionDeleteKit, fmt.Sprintf(
			"%s deleted kit %s (%d)", master, k.Name, k.ID,
		))
	})
}
