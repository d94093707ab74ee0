package excel

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"datalens/domain/table"
)

const (
	dataSheet     = "Data"
	describeSheet = "Describe"
)

// Exporter writes the current dataset and its describe table into a
// two-sheet workbook for download.
type Exporter struct{}

// NewExporter creates a workbook exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// Write streams an xlsx workbook holding the dataset and describe
// snapshot to w. Column order follows the tables' header order.
func (e *Exporter) Write(w io.Writer, dataset, describe table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSheet(f, dataSheet, dataset); err != nil {
		return err
	}
	if err := writeSheet(f, describeSheet, describe); err != nil {
		return err
	}

	// excelize seeds new files with Sheet1; replace it with Data.
	idx, err := f.GetSheetIndex(dataSheet)
	if err != nil {
		return fmt.Errorf("locate data sheet: %w", err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, t table.Table) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, len(t.Headers))
		for j, h := range t.Headers {
			cells[j] = row[h]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("address row %d: %w", i, err)
		}
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	return nil
}
