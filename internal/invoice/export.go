package invoice

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/xuri/excelize/v2"
)

const ledgerSheet = "Facturas"

var ledgerHeader = []interface{}{"ID", "Servicio", "Fecha", "Total", "Documento", "Registrado"}

// ExportLedger writes invoice lines as an .xlsx workbook with a summed
// total row under the amounts.
func ExportLedger(w io.Writer, lines []*models.InvoiceLine) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("failed to name ledger sheet: %w", err)
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &ledgerHeader); err != nil {
		return fmt.Errorf("failed to write ledger header: %w", err)
	}

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			line.ID,
			line.ServiceID,
			line.Date,
			line.Total.InexactFloat64(),
			filepath.Base(line.DocumentPath),
			line.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write ledger row %d: %w", i+1, err)
		}
	}

	last := len(lines) + 1
	totalRow := last + 1
	if err := f.SetCellValue(ledgerSheet, fmt.Sprintf("C%d", totalRow), "Total"); err != nil {
		return err
	}
	if len(lines) > 0 {
		if err := f.SetCellFormula(ledgerSheet, fmt.Sprintf("D%d", totalRow), fmt.Sprintf("SUM(D2:D%d)", last)); err != nil {
			return fmt.Errorf("failed to write ledger total: %w", err)
		}
	} else if err := f.SetCellValue(ledgerSheet, fmt.Sprintf("D%d", totalRow), 0); err != nil {
		return err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ledgerSheet, "D2", fmt.Sprintf("D%d", totalRow), money); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ledgerSheet, "A1", "F1", bold); err != nil {
		return err
	}
	if err := f.SetColWidth(ledgerSheet, "E", "F", 22); err != nil {
		return err
	}

	return f.Write(w)
}
