package parser

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// statementLine is one dated line with its matched amounts.
type statementLine struct {
	num      int
	page     int
	text     string
	date     models.DateFragment
	dateEnd  int
	amounts  []models.AmountToken
	previous string
}

// candidate is a movement before overrides and signing.
type candidate struct {
	token models.AmountToken
	tipo  models.MovementType
}

// classifyLine turns a dated line into zero, one or two movements.
func (e *Extractor) classifyLine(ln statementLine, period models.Period, st *scanState) []models.MovementRecord {
	desc := e.describe(ln)
	deposit := containsAny(desc, e.cfg.DepositKeywords)

	var cands []candidate
	var balance *models.AmountToken
	cols := e.cfg.Columns
	n := len(ln.amounts)

	switch {
	case n >= 3:
		dep, chg := tokenAt(ln.amounts, cols.DepositIndex), tokenAt(ln.amounts, cols.ChargeIndex)
		balance = tokenAt(ln.amounts, cols.BalanceIndex)
		if deposit {
			for _, t := range orderedByPosition(dep, chg) {
				if !t.Value.IsZero() {
					cands = append(cands, candidate{token: *t, tipo: models.Abono})
					break
				}
			}
		} else {
			for _, t := range orderedByPosition(dep, chg) {
				tipo := models.Cargo
				if t == dep {
					tipo = models.Abono
				}
				cands = append(cands, candidate{token: *t, tipo: tipo})
			}
		}

	case n == 2:
		idx := cols.PairMovementIndex
		if idx < 0 || idx > 1 {
			idx = 0
		}
		mv := ln.amounts[idx]
		balance = &ln.amounts[1-idx]
		tipo := models.Cargo
		if deposit {
			tipo = models.Abono
		} else if cols.BalanceProgression && st.balanceKnown {
			if byBal, ok := classifyByBalance(mv.Value, balance.Value, st.balance); ok {
				tipo = byBal
			}
		}
		cands = append(cands, candidate{token: mv, tipo: tipo})

	case n == 1:
		tipo := models.Cargo
		if deposit {
			tipo = models.Abono
		}
		cands = append(cands, candidate{token: ln.amounts[0], tipo: tipo})
	}

	if balance != nil {
		st.balance = balance.Value
		st.balanceKnown = true
	}

	return e.emit(cands, desc, findReference(desc), buildFecha(period, ln.date.Day), ln.num, ln.page)
}

// emit applies the minus-sign rule and the override table to candidates and
// signs the resulting movements. Zero amounts are dropped.
func (e *Extractor) emit(cands []candidate, desc, ref, fecha string, line, page int) []models.MovementRecord {
	var records []models.MovementRecord
	for _, c := range cands {
		magnitude := c.token.Value.Abs()
		if magnitude.IsZero() {
			continue
		}
		tipo := c.tipo
		if c.token.Negative() {
			tipo = models.Cargo
		}
		if forced, rule := applyOverrides(e.overrides, desc, magnitude, tipo); rule != "" {
			e.logger.Debug().Int("line", line).Str("rule", rule).Str("from", string(tipo)).Str("to", string(forced)).Msg("override applied")
			tipo = forced
		}
		records = append(records, models.MovementRecord{
			Fecha:       fecha,
			Descripcion: desc,
			Referencia:  ref,
			Monto:       signed(magnitude, tipo),
			Tipo:        tipo,
			Line:        line,
			Page:        page,
		})
	}
	return records
}

// describe strips the date and amounts from the line and backfills short
// descriptions from the previous line.
func (e *Extractor) describe(ln statementLine) string {
	spans := make([][2]int, 0, len(ln.amounts)+1)
	spans = append(spans, [2]int{0, ln.dateEnd})
	for _, a := range ln.amounts {
		spans = append(spans, amountSpan(ln.text, a))
	}
	desc := cleanDescription(stripSpans(ln.text, spans), 0)

	if utf8.RuneCountInString(desc) < 3 && ln.previous != "" {
		desc = cleanDescription(ln.previous+" "+desc, 0)
	}

	desc = cleanDescription(desc, e.cfg.MaxDescriptionLen)
	if desc == "" {
		return models.NoDescription
	}
	return desc
}

// previousText reduces a line to the text a wrapped description would
// contribute: no leading date and no amounts.
func previousText(line string) string {
	from := 0
	if _, end, ok := matchDate(line); ok {
		from = end
	}
	amounts := matchAmounts(line, from)
	spans := make([][2]int, 0, len(amounts)+1)
	spans = append(spans, [2]int{0, from})
	for _, a := range amounts {
		spans = append(spans, amountSpan(line, a))
	}
	return cleanDescription(stripSpans(line, spans), 0)
}

func tokenAt(tokens []models.AmountToken, idx int) *models.AmountToken {
	if idx < 0 || idx >= len(tokens) {
		return nil
	}
	return &tokens[idx]
}

// orderedByPosition returns the non-nil tokens left to right.
func orderedByPosition(a, b *models.AmountToken) []*models.AmountToken {
	var out []*models.AmountToken
	for _, t := range []*models.AmountToken{a, b} {
		if t != nil {
			out = append(out, t)
		}
	}
	if len(out) == 2 && out[0].Start > out[1].Start {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func signed(magnitude decimal.Decimal, tipo models.MovementType) decimal.Decimal {
	if tipo == models.Cargo {
		return magnitude.Neg()
	}
	return magnitude
}

// buildFecha combines the expected period with the day found on the line.
// Days past the end of the month are clamped to its last day.
func buildFecha(p models.Period, day int) string {
	if last := daysIn(p.Year, p.Month); day > last {
		day = last
	}
	return fmt.Sprintf("%04d-%02d-%02d", p.Year, p.Month, day)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// isMarkerLine reports whether line contains one of markers, ignoring
// repeated spaces OCR tends to insert.
func isMarkerLine(line string, markers []string) bool {
	return containsAny(whitespaceRun.ReplaceAllString(line, " "), markers) ||
		containsAny(strings.ReplaceAll(line, " ", ""), squeezed(markers))
}

func squeezed(markers []string) []string {
	out := make([]string, len(markers))
	for i, m := range markers {
		out[i] = strings.ReplaceAll(m, " ", "")
	}
	return out
}
