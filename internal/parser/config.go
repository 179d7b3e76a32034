package parser

import "github.com/insightdelivered/statement-ledger/internal/models"

// FallbackMode decides what an extraction with zero movements returns.
type FallbackMode string

const (
	// FallbackPlaceholders emits labelled placeholder movements so a reviewer
	// notices the failed extraction downstream.
	FallbackPlaceholders FallbackMode = "placeholders"
	// FallbackEmpty returns an empty movement list.
	FallbackEmpty FallbackMode = "empty"
)

// ColumnProfile describes which amount column means what on a statement
// layout. Indexes are zero-based positions among the amounts found on a line.
type ColumnProfile struct {
	Name string `yaml:"name"`

	// Lines with three or more amounts.
	DepositIndex int `yaml:"deposit_index"`
	ChargeIndex  int `yaml:"charge_index"`
	BalanceIndex int `yaml:"balance_index"`

	// Lines with exactly two amounts: the movement column; the other one is
	// the running balance.
	PairMovementIndex int `yaml:"pair_movement_index"`

	// BalanceProgression classifies keyword-less movements by comparing the
	// running balance with the previous one.
	BalanceProgression bool `yaml:"balance_progression"`
}

// DepositFirst is the layout DEPOSITOS | RETIROS | SALDO.
var DepositFirst = ColumnProfile{
	Name:              "deposit-first",
	DepositIndex:      0,
	ChargeIndex:       1,
	BalanceIndex:      2,
	PairMovementIndex: 0,
}

// ChargeFirst is the layout CARGOS | ABONOS | SALDO.
var ChargeFirst = ColumnProfile{
	Name:              "charge-first",
	DepositIndex:      1,
	ChargeIndex:       0,
	BalanceIndex:      2,
	PairMovementIndex: 0,
}

// Config holds every keyword list and policy the extractor uses.
type Config struct {
	SectionStopMarkers  []string       `yaml:"section_stop_markers"`
	SectionStartMarkers []string       `yaml:"section_start_markers"`
	DepositKeywords     []string       `yaml:"deposit_keywords"`
	BalanceLabels       []string       `yaml:"balance_labels"`
	Columns             ColumnProfile  `yaml:"columns"`
	Overrides           []OverrideRule `yaml:"overrides"`

	MaxDescriptionLen      int          `yaml:"max_description_len"`
	SanitizeOCR            bool         `yaml:"sanitize_ocr"`
	BackfillAcrossPages    bool         `yaml:"backfill_across_pages"`
	MergeContinuationLines bool         `yaml:"merge_continuation_lines"`
	Fallback               FallbackMode `yaml:"fallback"`
	Debug                  bool         `yaml:"debug"`
}

// DefaultConfig returns the generic configuration used when no institution
// profile applies.
func DefaultConfig() Config {
	return Config{
		SectionStopMarkers: []string{
			"RESUMEN",
			"TOTAL DE MOVIMIENTOS",
			"SALDO PROMEDIO",
			"DIAS TRANSCURRIDOS",
		},
		SectionStartMarkers: []string{
			"DETALLE DE LA CUENTA",
			"MOVIMIENTOS DEL PERIODO",
			"DETALLE DE MOVIMIENTOS",
		},
		DepositKeywords: []string{
			"ABONO",
			"DEPOSITO",
			"PAYCLIP",
			"CLIP",
			"STRIPE",
			"TRANSFERENCIA RECIBIDA",
			"TRAN PASIV",
			"INTERESES",
		},
		BalanceLabels: []string{
			"SALDO ANTERIOR",
			"SALDO INICIAL",
			"SALDO FINAL",
			"SALDO AL CORTE",
		},
		Columns:           DepositFirst,
		MaxDescriptionLen: 200,
		SanitizeOCR:       true,
		Fallback:          FallbackPlaceholders,
	}
}

// Merge returns c with every non-empty field of override applied on top.
// Lists replace rather than append; booleans can only be switched on. A
// column profile with any field set replaces the whole profile.
func (c Config) Merge(override Config) Config {
	if len(override.SectionStopMarkers) > 0 {
		c.SectionStopMarkers = override.SectionStopMarkers
	}
	if len(override.SectionStartMarkers) > 0 {
		c.SectionStartMarkers = override.SectionStartMarkers
	}
	if len(override.DepositKeywords) > 0 {
		c.DepositKeywords = override.DepositKeywords
	}
	if len(override.BalanceLabels) > 0 {
		c.BalanceLabels = override.BalanceLabels
	}
	if override.Columns != (ColumnProfile{}) {
		c.Columns = override.Columns
		if c.Columns.Name == "" {
			c.Columns.Name = "custom"
		}
	}
	if len(override.Overrides) > 0 {
		c.Overrides = override.Overrides
	}
	if override.MaxDescriptionLen > 0 {
		c.MaxDescriptionLen = override.MaxDescriptionLen
	}
	if override.Fallback != "" {
		c.Fallback = override.Fallback
	}
	c.SanitizeOCR = c.SanitizeOCR || override.SanitizeOCR
	c.BackfillAcrossPages = c.BackfillAcrossPages || override.BackfillAcrossPages
	c.MergeContinuationLines = c.MergeContinuationLines || override.MergeContinuationLines
	c.Debug = c.Debug || override.Debug
	return c
}

// profileConfigs are the built-in per-institution adjustments on top of
// DefaultConfig.
var profileConfigs = map[models.BankType]Config{
	models.BankGeneric: {},
	models.BankBBVA: {
		SectionStartMarkers: []string{"DETALLE DE MOVIMIENTOS REALIZADOS", "DETALLE DE MOVIMIENTOS"},
		SectionStopMarkers:  []string{"TOTAL DE MOVIMIENTOS", "TOTAL IMPORTE CARGOS", "ESTIMADO CLIENTE", "SALDO PROMEDIO", "DIAS TRANSCURRIDOS"},
		Columns:             ChargeFirst,
	},
	models.BankBanorte: {
		SectionStartMarkers: []string{"DETALLE DE MOVIMIENTOS", "MOVIMIENTOS DEL PERIODO"},
		SectionStopMarkers:  []string{"RESUMEN", "TOTAL DE MOVIMIENTOS", "SALDO PROMEDIO", "OTROS PRODUCTOS"},
		Columns:             DepositFirst,
	},
	models.BankSantander: {
		SectionStartMarkers: []string{"DETALLE DE MOVIMIENTOS CUENTA DE CHEQUES", "DETALLE DE MOVIMIENTOS"},
		SectionStopMarkers:  []string{"RESUMEN", "TOTAL DE MOVIMIENTOS", "SALDO PROMEDIO", "INFORMACION FISCAL"},
		Columns:             DepositFirst,
	},
	models.BankBanamex: {
		SectionStartMarkers: []string{"DETALLE DE OPERACIONES", "DETALLE DE LA CUENTA"},
		SectionStopMarkers:  []string{"RESUMEN", "SALDO PROMEDIO", "DIAS TRANSCURRIDOS", "TOTAL DE MOVIMIENTOS"},
		Columns:             ChargeFirst,
	},
}
