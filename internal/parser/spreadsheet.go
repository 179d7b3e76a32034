package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// SheetLayout maps statement fields to spreadsheet columns. Absent columns
// are -1.
type SheetLayout struct {
	HeaderRow   int
	Date        int
	Description int
	Reference   int
	Deposit     int
	Charge      int
	Amount      int
	Balance     int
}

// headerScanRows bounds how far down a sheet the header row is searched for.
const headerScanRows = 25

var headerKeywords = struct {
	date, description, reference, deposit, charge, amount, balance []string
}{
	date:        []string{"FECHA"},
	description: []string{"DESCRIPCION", "CONCEPTO", "DETALLE", "MOVIMIENTO"},
	reference:   []string{"REFERENCIA", "FOLIO", "NUM. AUT", "AUTORIZACION"},
	deposit:     []string{"DEPOSITO", "ABONO", "INGRESO", "CREDITO"},
	charge:      []string{"RETIRO", "CARGO", "EGRESO", "DEBITO"},
	amount:      []string{"IMPORTE", "MONTO", "CANTIDAD"},
	balance:     []string{"SALDO"},
}

var accentFolder = strings.NewReplacer(
	"Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U",
)

var cellDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"02/01/06",
}

// DetectLayout finds the header row of an exported bank statement and the
// column of each field. ok is false when no row carries a date column plus
// at least one money column.
func DetectLayout(rows [][]string) (SheetLayout, bool) {
	for r := 0; r < len(rows) && r < headerScanRows; r++ {
		l := SheetLayout{HeaderRow: r, Date: -1, Description: -1, Reference: -1, Deposit: -1, Charge: -1, Amount: -1, Balance: -1}
		for c, v := range rows[r] {
			h := accentFolder.Replace(strings.ToUpper(strings.TrimSpace(v)))
			switch {
			case h == "":
			case l.Date < 0 && containsAny(h, headerKeywords.date):
				l.Date = c
			case l.Balance < 0 && containsAny(h, headerKeywords.balance):
				l.Balance = c
			case l.Deposit < 0 && containsAny(h, headerKeywords.deposit):
				l.Deposit = c
			case l.Charge < 0 && containsAny(h, headerKeywords.charge):
				l.Charge = c
			case l.Amount < 0 && containsAny(h, headerKeywords.amount):
				l.Amount = c
			case l.Reference < 0 && containsAny(h, headerKeywords.reference):
				l.Reference = c
			case l.Description < 0 && containsAny(h, headerKeywords.description):
				l.Description = c
			}
		}
		if l.Date >= 0 && (l.Deposit >= 0 || l.Charge >= 0 || l.Amount >= 0) {
			return l, true
		}
	}
	return SheetLayout{}, false
}

// ExtractRows reads movements from spreadsheet rows. With a recognised
// header each row is read by column, and a row with both a deposit and a
// charge yields two movements. Without one the rows are joined into text
// lines and scanned like any other statement.
func (e *Extractor) ExtractRows(rows [][]string, exp Expectation) (*models.ExtractionResult, error) {
	text := RowsText(rows)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}

	layout, ok := DetectLayout(rows)
	if !ok {
		e.logger.Debug().Int("rows", len(rows)).Msg("no spreadsheet header found, scanning rows as text")
		return e.Extract(text, exp)
	}

	period := exp.Period()
	result := &models.ExtractionResult{
		Bank:           e.bank,
		Period:         period,
		Movements:      []models.MovementRecord{},
		SectionStarted: true,
	}

	for r := layout.HeaderRow + 1; r < len(rows); r++ {
		row := rows[r]
		num := r + 1
		joined := strings.ToUpper(strings.Join(row, " "))
		if strings.TrimSpace(joined) == "" {
			continue
		}
		result.LinesScanned++

		if isMarkerLine(joined, e.cfg.SectionStopMarkers) {
			result.StoppedAtLine = num
			e.debugLine(result, num, 1, joined, "stop", 0)
			break
		}

		day, ok := cellDay(cell(row, layout.Date))
		if !ok {
			e.debugLine(result, num, 1, joined, "skipped", 0)
			continue
		}

		desc := cleanDescription(strings.ToUpper(cell(row, layout.Description)), e.cfg.MaxDescriptionLen)
		if desc == "" {
			desc = models.NoDescription
		}
		ref := findReference(cell(row, layout.Reference))
		if ref == models.NoReference {
			ref = findReference(desc)
		}

		cands := rowCandidates(row, layout)
		records := e.emit(cands, desc, ref, buildFecha(period, day), num, 1)
		result.Movements = append(result.Movements, records...)
		e.debugLineDated(result, num, 1, joined, "movement", len(cands), len(records))
	}

	e.finish(result, ValidatePeriod(text, exp))
	return result, nil
}

// rowCandidates reads the money columns of a row. A single signed amount
// column is classified by its sign.
func rowCandidates(row []string, l SheetLayout) []candidate {
	var cands []candidate
	if v, ok := parseLooseAmount(cell(row, l.Deposit)); ok && l.Deposit >= 0 {
		cands = append(cands, candidate{token: models.AmountToken{Value: v, Raw: cell(row, l.Deposit)}, tipo: models.Abono})
	}
	if v, ok := parseLooseAmount(cell(row, l.Charge)); ok && l.Charge >= 0 {
		// Charge columns are often exported as negative numbers already.
		cands = append(cands, candidate{token: models.AmountToken{Value: v.Abs(), Raw: cell(row, l.Charge)}, tipo: models.Cargo})
	}
	if len(cands) == 0 && l.Amount >= 0 {
		if v, ok := parseLooseAmount(cell(row, l.Amount)); ok {
			cands = append(cands, candidate{token: models.AmountToken{Value: v, Raw: cell(row, l.Amount)}, tipo: models.Abono})
		}
	}
	return cands
}

// cellDay reads the day of month from a date cell: ISO or d/m/y text, an
// Excel serial number, or a statement-style "05 SEP" fragment.
func cellDay(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Day(), true
		}
	}
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial >= 1 {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return t.Day(), true
		}
	}
	if frag, _, ok := matchDate(strings.ToUpper(value)); ok {
		return frag.Day, true
	}
	return 0, false
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// RowsText flattens spreadsheet rows into statement text lines.
func RowsText(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, "  "))
		b.WriteByte('\n')
	}
	return b.String()
}
