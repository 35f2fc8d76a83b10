package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/zadolzitve/internal/model"
)

const amplifierSelect = `SELECT a.id, a.item_id, a.test_type, a.interval_days, a.last_updated, a.results, i.name, i.palga
	 FROM amplifier_tracking a
	 JOIN items i ON i.id = a.item_id`

func scanAmplifier(s rowScanner) (*model.AmplifierTracking, error) {
	a := &model.AmplifierTracking{}
	if err := s.Scan(&a.ID, &a.ItemID, &a.TestType, &a.IntervalDays, &a.LastUpdated, &a.Results,
		&a.ItemName, &a.ItemPalga); err != nil {
		return nil, err
	}
	return a, nil
}

// AddAmplifierTracking starts tracking periodic tests of an item.
func AddAmplifierTracking(ctx context.Context, db *sql.DB, itemID int64, testType string, intervalDays int) (*model.AmplifierTracking, error) {
	if strings.TrimSpace(testType) == "" {
		return nil, fmt.Errorf("%w: test type required", ErrValidation)
	}
	if intervalDays <= 0 {
		return nil, fmt.Errorf("%w: interval must be at least one day", ErrValidation)
	}
	item, err := GetItem(ctx, db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	n, err := countRows(ctx, db, `SELECT COUNT(*) FROM amplifier_tracking WHERE item_id = ?`, itemID)
	if err != nil {
		return nil, fmt.Errorf("checking tracking: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: item %s is already tracked", ErrValidation, item.Name)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO amplifier_tracking (item_id, test_type, interval_days, last_updated)
		 VALUES (?, ?, ?, ?)`,
		itemID, testType, intervalDays, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tracking: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tracking id: %w", err)
	}
	return GetAmplifierTracking(ctx, db, id)
}

// GetAmplifierTracking returns a tracking entry by ID.
func GetAmplifierTracking(ctx context.Context, db *sql.DB, id int64) (*model.AmplifierTracking, error) {
	a, err := scanAmplifier(db.QueryRowContext(ctx, amplifierSelect+` WHERE a.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tracking: %w", err)
	}
	return a, nil
}

// RecordAmplifierResults stores the latest test results and restarts the
// interval.
func RecordAmplifierResults(ctx context.Context, db *sql.DB, id int64, results string) error {
	return execTracking(ctx, db,
		`UPDATE amplifier_tracking SET results = ?, last_updated = ? WHERE id = ?`,
		id, results, time.Now().UTC(), id,
	)
}

// SetAmplifierInterval changes how often the item must be tested.
func SetAmplifierInterval(ctx context.Context, db *sql.DB, id int64, intervalDays int) error {
	if intervalDays <= 0 {
		return fmt.Errorf("%w: interval must be at least one day", ErrValidation)
	}
	return execTracking(ctx, db,
		`UPDATE amplifier_tracking SET interval_days = ? WHERE id = ?`,
		id, intervalDays, id,
	)
}

// DeleteAmplifierTracking stops tracking an item.
func DeleteAmplifierTracking(ctx context.Context, db *sql.DB, id int64) error {
	return execTracking(ctx, db, `DELETE FROM amplifier_tracking WHERE id = ?`, id, id)
}

func execTracking(ctx context.Context, db *sql.DB, query string, id int64, args ...any) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating tracking: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: tracking %d", ErrNotFound, id)
	}
	return nil
}

// ListAmplifierTracking returns tracked items. With dueAt set, only entries
// whose interval has elapsed at that time are returned.
func ListAmplifierTracking(ctx context.Context, db *sql.DB, dueAt *time.Time) ([]model.AmplifierTracking, error) {
	rows, err := db.QueryContext(ctx, amplifierSelect+` ORDER BY i.name`)
	if err != nil {
		return nil, fmt.Errorf("listing tracking: %w", err)
	}
	defer rows.Close()

	var list []model.AmplifierTracking
	for rows.Next() {
		a, err := scanAmplifier(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tracking: %w", err)
		}
		if dueAt != nil && !a.Due(*dueAt) {
			continue
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}
