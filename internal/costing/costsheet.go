package costing

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/ledgerdesk/internal/money"
)

const (
	sheetItems     = "Cost Sheet"
	sheetOverheads = "Overheads"
)

var costSheetHeaders = []string{"Sr No", "Item Code", "Item", "Qty", "Rate", "Taxable Value", "Overhead", "Net Rate", "Line Total"}

// CostSheet renders an allocation preview and its overheads as an XLSX workbook.
func CostSheet(allocs []Allocation, overheads []OverheadRow) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetItems); err != nil {
		return nil, fmt.Errorf("costing: rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("costing: style: %w", err)
	}
	headers := make([]any, len(costSheetHeaders))
	for i, h := range costSheetHeaders {
		headers[i] = h
	}
	if err := writeRow(f, sheetItems, 1, headers...); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetItems, "A1", "I1", bold); err != nil {
		return nil, err
	}
	for i, a := range allocs {
		if err := writeRow(f, sheetItems, i+2, a.Srno, a.ItemCode, a.ItemName, a.Qty.String(), money.Fixed(a.Rate),
			money.Fixed(a.TaxableValue), money.Fixed(a.OHAmount), money.Fixed(a.NetRate), money.Fixed(a.LineTotal)); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(sheetOverheads); err != nil {
		return nil, fmt.Errorf("costing: overhead sheet: %w", err)
	}
	if err := writeRow(f, sheetOverheads, 1, "Type", "Amount"); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetOverheads, "A1", "B1", bold); err != nil {
		return nil, err
	}
	for i, row := range overheads {
		if err := writeRow(f, sheetOverheads, i+2, row.Type, money.Fixed(row.Amount)); err != nil {
			return nil, err
		}
	}
	last := len(overheads) + 2
	if err := writeRow(f, sheetOverheads, last, "Total", money.Fixed(TotalOverhead(overheads))); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("costing: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// writeRow fills row starting at column A.
func writeRow(f *excelize.File, sheet string, row int, values ...any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("costing: %s cell: %w", sheet, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("costing: write %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
