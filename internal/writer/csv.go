package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
)

// CSVWriter writes ledger movements as CSV.
type CSVWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the movements of res to a CSV file at path.
func (w *CSVWriter) WriteToFile(path string, res *models.ExtractionResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	if err := w.Write(f, res); err != nil {
		return err
	}
	return f.Close()
}

// Write writes the movements of res in CSV format to out. With
// IncludeHeader, metadata rows prefixed with "#" come first.
func (w *CSVWriter) Write(out io.Writer, res *models.ExtractionResult) error {
	cw := csv.NewWriter(out)

	if w.IncludeHeader {
		meta := [][]string{
			{"# Banco", parser.BankName(res.Bank)},
			{"# Periodo", res.Period.String()},
			{"# Estatus", string(res.Status)},
			{"# Verificacion", string(res.Verdict.Status)},
		}
		for _, msg := range res.Verdict.Messages {
			meta = append(meta, []string{"# Aviso", msg})
		}
		if err := cw.WriteAll(meta); err != nil {
			return fmt.Errorf("failed to write CSV metadata: %w", err)
		}
	}

	if err := cw.Write([]string{"Fecha", "Descripcion", "Referencia", "Tipo", "Monto"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, m := range res.Movements {
		row := []string{
			m.Fecha,
			m.Descripcion,
			m.Referencia,
			string(m.Tipo),
			m.Monto.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
