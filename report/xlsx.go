package report

import (
	"fmt"
	"io"
	"log"

	"github.com/warp/attendance-engine/attendance"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// XLSX EXPORT
// =============================================================================

const tableSheet = "Payroll"

var tableHeaders = []string{
	"Worker ID", "Name", "Monthly Salary", "Per Diem", "Earned Days", "Hours",
	"Earned Salary", "Variance",
	"Full Day", "Half Day", "Overtime", "Present",
}

// WriteTableXLSX writes the payroll table as a single-sheet workbook with a
// header row, one row per worker and a totals row.
func WriteTableXLSX(w io.Writer, table *PayrollTable) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("[Report] Failed to close workbook: %v", err)
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), tableSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := writeRow(f, 1, stringsToAny(tableHeaders)); err != nil {
		return err
	}

	for i, r := range table.Rows {
		row := []any{
			string(r.WorkerID),
			r.Name,
			r.MonthlySalary.InexactFloat64(),
			r.PerDiemRate.InexactFloat64(),
			r.EarnedDays.InexactFloat64(),
			r.HoursWorked.InexactFloat64(),
			r.EarnedSalary.InexactFloat64(),
			r.Variance.InexactFloat64(),
			r.StatusCounts[attendance.StatusFullDay],
			r.StatusCounts[attendance.StatusHalfDay],
			r.StatusCounts[attendance.StatusOvertime],
			r.StatusCounts[attendance.StatusPresent],
		}
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	totals := []any{
		"TOTAL", table.Month.String(),
		table.Summary.TotalBudget.Value.InexactFloat64(),
		nil,
		table.Summary.EarnedDays.Value.InexactFloat64(),
		nil,
		table.Summary.TotalEarned.Value.InexactFloat64(),
		table.Summary.TotalVariance.Value.InexactFloat64(),
	}
	if err := writeRow(f, len(table.Rows)+2, totals); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []any) error {
	for i, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(tableSheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
