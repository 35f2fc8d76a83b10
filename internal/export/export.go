// Package export renders ledger, custody and audit data as XLSX workbooks.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/zadolzitve/internal/model"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

// Filename returns a timestamped workbook name for kind.
func Filename(kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", kind, now.Format("20060102_150405"))
}

// Logs renders audit entries.
func Logs(entries []model.LogEntry) ([]byte, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.ID, e.CreatedAt.Format(timeLayout), e.Action, e.Description})
	}
	return workbook("Logs", []any{"id", "time", "action", "description"}, rows)
}

// Signings renders active signings.
func Signings(signings []model.Signing) ([]byte, error) {
	rows := make([][]any, 0, len(signings))
	for _, s := range signings {
		rows = append(rows, []any{
			s.ID, s.ItemID, s.ItemName, s.Quantity,
			s.ClientPID, s.ClientName, s.MasterPID, s.MasterName,
			s.Date.Format(timeLayout), s.Description,
		})
	}
	return workbook("Signings", []any{
		"id", "item_id", "item", "quantity",
		"client_pid", "client", "master_pid", "master",
		"date", "description",
	}, rows)
}

// Items renders the inventory ledger.
func Items(items []model.Item) ([]byte, error) {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{
			it.ID, it.Name, it.Category, it.Color, it.Palga,
			it.MamiSerial, it.ManufactureMkt, it.KatziMkt, it.SerialNo,
			it.Count, it.TotalCount, it.Description,
		})
	}
	return workbook("Inventory", []any{
		"id", "name", "category", "color", "palga",
		"mami_serial", "manufacture_mkt", "katzi_mkt", "serial_no",
		"available", "total", "description",
	}, rows)
}

func workbook(sheetName string, header []any, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, sheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &r); err != nil {
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}
