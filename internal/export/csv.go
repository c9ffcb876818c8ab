// Package export renders a filtered result set as CSV. The output mirrors
// the historical export format: semicolon-delimited, UTF-8 with a byte-order
// mark and human-readable column headers, one line per prestation.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"pointage/internal/core"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"ID", "Prestataire", "Client", "Tâche", "Description",
	"Début", "Fin", "Heures", "Tarif €/h", "Total €",
	"Facturée", "Réf facture", "Date facturation",
}

const timeLayout = "2006-01-02 15:04:05"

// WriteCSV writes the rows to w. An empty result still produces the BOM and
// the header line so spreadsheet imports keep their shape.
func WriteCSV(w io.Writer, rows []core.Prestation) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range rows {
		invoicedAt := ""
		if p.InvoicedAt != nil {
			invoicedAt = p.InvoicedAt.Format(timeLayout)
		}
		record := []string{
			strconv.FormatInt(p.ID, 10),
			p.Provider,
			p.Client,
			p.Task,
			p.Description,
			p.StartAt.Format(timeLayout),
			p.EndAt.Format(timeLayout),
			p.Hours.StringFixed(2),
			p.Rate.StringFixed(2),
			p.Total.StringFixed(2),
			strconv.FormatBool(p.Invoiced),
			p.InvoiceRef,
			invoicedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", p.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
