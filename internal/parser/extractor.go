package parser

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Expectation is what the caller believes the statement should be.
type Expectation struct {
	RFC   string
	Year  int
	Month int
}

// Period returns the expected fiscal period.
func (x Expectation) Period() models.Period {
	return models.Period{Year: x.Year, Month: x.Month}
}

// Validate rejects a month outside 1..12 or a year outside 1900..9999.
func (x Expectation) Validate() error {
	if x.Month < 1 || x.Month > 12 {
		return fmt.Errorf("%w: month %d outside 1..12", ErrInvalidPeriod, x.Month)
	}
	if x.Year < 1900 || x.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, x.Year)
	}
	return nil
}

// Extractor converts statement text into ledger movements. It holds no
// mutable state and is safe for concurrent use.
type Extractor struct {
	bank      models.BankType
	cfg       Config
	overrides []compiledOverride
	logger    zerolog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithBank tags results with the institution the config belongs to.
func WithBank(bank models.BankType) Option {
	return func(e *Extractor) { e.bank = bank }
}

// NewExtractor builds an extractor from an explicit configuration.
func NewExtractor(cfg Config, opts ...Option) (*Extractor, error) {
	cols := cfg.Columns
	if cols.DepositIndex == cols.ChargeIndex {
		return nil, fmt.Errorf("column profile %q: deposit and charge share index %d", cols.Name, cols.DepositIndex)
	}
	overrides, err := compileOverrides(cfg.Overrides)
	if err != nil {
		return nil, err
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackPlaceholders
	}

	e := &Extractor{
		bank:      models.BankGeneric,
		cfg:       cfg,
		overrides: overrides,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Bank returns the institution this extractor is configured for.
func (e *Extractor) Bank() models.BankType {
	return e.bank
}

// Config returns a copy of the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// scanState is the accumulator's per-call state.
type scanState struct {
	page          int
	previous      string
	sectionActive bool

	balance      decimal.Decimal
	balanceKnown bool

	// Records emitted by the last non-empty line, for continuation merging.
	lastEmitLine  int
	lastEmitStart int
	prevLine      int
}

// Extract runs the full pipeline over text: line scan, classification,
// fallback and period/identity validation.
func (e *Extractor) Extract(text string, exp Expectation) (*models.ExtractionResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := exp.Validate(); err != nil {
		return nil, err
	}

	period := exp.Period()
	result := &models.ExtractionResult{
		Bank:      e.bank,
		Period:    period,
		Movements: []models.MovementRecord{},
	}

	e.scan(splitLines(text), period, result)
	e.finish(result, ValidatePeriod(text, exp))
	return result, nil
}

func (e *Extractor) scan(lines []string, period models.Period, result *models.ExtractionResult) {
	st := &scanState{page: 1}

	for i, raw := range lines {
		num := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		result.LinesScanned++

		if isPageBreak(line) {
			st.page++
			if !e.cfg.BackfillAcrossPages {
				st.previous = ""
			}
			e.debugLine(result, num, st.page, line, "page-break", 0)
			continue
		}

		if e.cfg.SanitizeOCR {
			line = sanitizeOCRAmounts(line)
		}

		if isMarkerLine(line, e.cfg.SectionStopMarkers) {
			result.StoppedAtLine = num
			e.logger.Debug().Int("line", num).Str("text", line).Msg("section stop marker, ending scan")
			e.debugLine(result, num, st.page, line, "stop", 0)
			break
		}

		if isMarkerLine(line, e.cfg.SectionStartMarkers) {
			if !st.sectionActive {
				e.logger.Debug().Int("line", num).Str("text", line).Msg("section start marker")
			}
			st.sectionActive = true
			st.previous = ""
			st.prevLine = num
			e.debugLine(result, num, st.page, line, "start", 0)
			continue
		}

		if bal, found, ok := extractBalanceLine(line, e.cfg.BalanceLabels); ok {
			if found {
				st.balance = bal
				st.balanceKnown = true
			}
			st.previous = ""
			st.prevLine = num
			e.debugLine(result, num, st.page, line, "balance", 0)
			continue
		}

		date, dateEnd, hasDate := matchDate(line)
		if !hasDate {
			if e.cfg.MergeContinuationLines && e.mergeContinuation(result, st, line, num) {
				e.debugLine(result, num, st.page, line, "continuation", 0)
			} else {
				e.debugLine(result, num, st.page, line, "skipped", 0)
			}
			st.previous = previousText(line)
			st.prevLine = num
			continue
		}

		amounts := matchAmounts(line, dateEnd)
		if len(amounts) == 0 {
			e.debugLineDated(result, num, st.page, line, "no-amount", 0, 0)
			st.previous = previousText(line)
			st.prevLine = num
			continue
		}

		records := e.classifyLine(statementLine{
			num:      num,
			page:     st.page,
			text:     line,
			date:     date,
			dateEnd:  dateEnd,
			amounts:  amounts,
			previous: st.previous,
		}, period, st)

		if len(records) > 0 {
			st.lastEmitStart = len(result.Movements)
			st.lastEmitLine = num
			result.Movements = append(result.Movements, records...)
		}
		e.debugLineDated(result, num, st.page, line, "movement", len(amounts), len(records))
		st.previous = previousText(line)
		st.prevLine = num
	}

	result.SectionStarted = st.sectionActive
}

// mergeContinuation appends a wrapped description line to the movements
// emitted by the line right before it.
func (e *Extractor) mergeContinuation(result *models.ExtractionResult, st *scanState, line string, num int) bool {
	if st.lastEmitLine == 0 || st.lastEmitLine != st.prevLine {
		return false
	}
	if len(matchAmounts(line, 0)) > 0 {
		return false
	}
	extra := cleanDescription(line, 0)
	if extra == "" {
		return false
	}
	for i := st.lastEmitStart; i < len(result.Movements); i++ {
		m := &result.Movements[i]
		if m.Descripcion == models.NoDescription {
			m.Descripcion = cleanDescription(extra, e.cfg.MaxDescriptionLen)
		} else {
			m.Descripcion = cleanDescription(m.Descripcion+" "+extra, e.cfg.MaxDescriptionLen)
		}
		if m.Referencia == models.NoReference {
			m.Referencia = findReference(m.Descripcion)
		}
	}
	// Keep merging further wrapped lines of the same movement.
	st.lastEmitLine = num
	return true
}

func (e *Extractor) finish(result *models.ExtractionResult, verdict models.ValidationVerdict) {
	result.Verdict = verdict

	if len(result.Movements) == 0 {
		result.FallbackUsed = true
		if e.cfg.Fallback == FallbackPlaceholders {
			result.Movements = placeholderMovements(result.Period)
		}
		e.logger.Warn().
			Str("bank", string(result.Bank)).
			Int("lines", result.LinesScanned).
			Str("fallback", string(e.cfg.Fallback)).
			Msg("no movements extracted")
	}

	switch {
	case verdict.Blocking:
		result.Status = models.StatusRejected
	case result.FallbackUsed:
		result.Status = models.StatusReviewRequired
	case verdict.Status == models.VerdictWarn:
		result.Status = models.StatusWarning
	default:
		result.Status = models.StatusOK
	}

	deposits, charges := models.Totals(result.Movements)
	e.logger.Info().
		Str("bank", string(result.Bank)).
		Int("movements", len(result.Movements)).
		Str("deposits", deposits.StringFixed(2)).
		Str("charges", charges.StringFixed(2)).
		Bool("section_started", result.SectionStarted).
		Str("verdict", string(verdict.Status)).
		Str("status", string(result.Status)).
		Msg("statement extracted")
}

func (e *Extractor) debugLine(result *models.ExtractionResult, num, page int, text, outcome string, records int) {
	e.debugLineDated(result, num, page, text, outcome, 0, records)
}

func (e *Extractor) debugLineDated(result *models.ExtractionResult, num, page int, text, outcome string, amounts, records int) {
	if !e.cfg.Debug {
		return
	}
	result.DebugLines = append(result.DebugLines, models.DebugLine{
		LineNum: num,
		Page:    page,
		Text:    text,
		HasDate: outcome == "movement" || outcome == "no-amount",
		Amounts: amounts,
		Result:  outcome,
		Records: records,
	})
}
