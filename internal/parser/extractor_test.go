package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

var september2025 = Expectation{RFC: "ABC010203XY1", Year: 2025, Month: 9}

func mustExtract(t *testing.T, text string, exp Expectation) *models.ExtractionResult {
	t.Helper()
	res, err := Extract(text, exp)
	require.NoError(t, err)
	return res
}

func TestExtract_CleanSingleLine(t *testing.T) {
	res := mustExtract(t, "05 SEP PAGO PROVEEDOR 15,000.00 120,450.00", september2025)

	require.Len(t, res.Movements, 1)
	m := res.Movements[0]
	assert.Equal(t, "2025-09-05", m.Fecha)
	assert.Equal(t, "PAGO PROVEEDOR", m.Descripcion)
	assert.True(t, m.Monto.Equal(decimal.NewFromInt(-15000)), "monto = %s", m.Monto)
	assert.Equal(t, models.Cargo, m.Tipo)
	assert.Equal(t, models.NoReference, m.Referencia)
	assert.Equal(t, 1, m.Line)
	assert.Equal(t, 1, m.Page)
	assert.False(t, res.FallbackUsed)
}

func TestExtract_DepositKeyword(t *testing.T) {
	res := mustExtract(t, "12 SEP DEPOSITO CLIP VENTA 25,000.00 145,450.00", september2025)

	require.Len(t, res.Movements, 1)
	m := res.Movements[0]
	assert.Equal(t, "2025-09-12", m.Fecha)
	assert.True(t, m.Monto.Equal(decimal.NewFromInt(25000)), "monto = %s", m.Monto)
	assert.Equal(t, models.Abono, m.Tipo)
}

func TestExtract_ThreeAmountLine(t *testing.T) {
	res := mustExtract(t, "03 SEP COMISION MANEJO 0.00 250.00 99,800.00", september2025)

	require.Len(t, res.Movements, 1)
	m := res.Movements[0]
	assert.Equal(t, models.Cargo, m.Tipo)
	assert.Equal(t, "-250.00", m.Monto.StringFixed(2))
	assert.Equal(t, "COMISION MANEJO", m.Descripcion)
}

func TestExtract_ThreeAmountLineBothColumns(t *testing.T) {
	res := mustExtract(t, "04 SEP SPEI 0012345678 1,000.00 200.00 100,800.00", september2025)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo)
	assert.Equal(t, "1000.00", res.Movements[0].Monto.StringFixed(2))
	assert.Equal(t, models.Cargo, res.Movements[1].Tipo)
	assert.Equal(t, "-200.00", res.Movements[1].Monto.StringFixed(2))
	for _, m := range res.Movements {
		assert.Equal(t, "0012345678", m.Referencia)
		assert.Equal(t, "2025-09-04", m.Fecha)
	}
}

func TestExtract_SingleAmountDefaultsToCargo(t *testing.T) {
	lines := []string{
		"01 SEP COMPRA OXXO 150.00",
		"02 SEP SERVICIO TELMEX 899.00",
		"03 SEP PAGO TARJETA 1,200.50",
	}
	res := mustExtract(t, strings.Join(lines, "\n"), september2025)

	require.Len(t, res.Movements, 3)
	for _, m := range res.Movements {
		assert.Equal(t, models.Cargo, m.Tipo, m.Descripcion)
		assert.True(t, m.Monto.IsNegative(), m.Descripcion)
	}
}

func TestExtract_DepositKeywordsArePositive(t *testing.T) {
	for _, kw := range DefaultConfig().DepositKeywords {
		t.Run(kw, func(t *testing.T) {
			res := mustExtract(t, "10 SEP "+kw+" CLIENTE 500.00 10,500.00", september2025)
			require.Len(t, res.Movements, 1)
			assert.Equal(t, models.Abono, res.Movements[0].Tipo)
			assert.True(t, res.Movements[0].Monto.IsPositive())
		})
	}
}

func TestExtract_DepositKeywordsMatchInsideWords(t *testing.T) {
	res := mustExtract(t, "10 SEP PAGO ECLIPSE SA 500.00 10,500.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo, "CLIP inside ECLIPSE counts as a deposit keyword")
}

func TestExtract_StripsCurrencySigns(t *testing.T) {
	text := "05 SEP PAGO PROVEEDOR $15,000.00 $120,450.00\n" +
		"12 SEP DEPOSITO CLIP VENTA $ 25,000.00 $ 145,450.00"
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, "PAGO PROVEEDOR", res.Movements[0].Descripcion)
	assert.Equal(t, "-15000.00", res.Movements[0].Monto.StringFixed(2))
	assert.Equal(t, "DEPOSITO CLIP VENTA", res.Movements[1].Descripcion)
	assert.Equal(t, "25000.00", res.Movements[1].Monto.StringFixed(2))
}

func TestExtract_BackfillStripsCurrencySigns(t *testing.T) {
	text := "04 SEP COMISION $ 250.00\n05 SEP $ 4,500.00 $ 50,000.00"
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, "COMISION", res.Movements[1].Descripcion)
}

func TestExtract_MonthAbbreviationWithPeriod(t *testing.T) {
	res := mustExtract(t, "05 SEP. PAGO PROVEEDOR 15,000.00 120,450.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.False(t, res.FallbackUsed)
	assert.Equal(t, "2025-09-05", res.Movements[0].Fecha)
	assert.Equal(t, "PAGO PROVEEDOR", res.Movements[0].Descripcion)
}

func TestExtract_DepositKeywordOnThreeAmountLine(t *testing.T) {
	res := mustExtract(t, "10 SEP DEPOSITO EN EFECTIVO 0.00 3,000.00 13,000.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo)
	assert.Equal(t, "3000.00", res.Movements[0].Monto.StringFixed(2))
}

func TestExtract_LeadingMinusForcesCargo(t *testing.T) {
	res := mustExtract(t, "15 SEP DEPOSITO DEVUELTO -1,000.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, models.Cargo, res.Movements[0].Tipo)
	assert.Equal(t, "-1000.00", res.Movements[0].Monto.StringFixed(2))
}

func TestExtract_StopMarkerEndsScan(t *testing.T) {
	text := strings.Join([]string{
		"DETALLE DE MOVIMIENTOS",
		"01 SEP PAGO RENTA 8,000.00 92,000.00",
		"RESUMEN DEL PERIODO",
		"02 SEP PAGO LUZ 500.00 91,500.00",
		"03 SEP DEPOSITO 1,000.00 92,500.00",
	}, "\n")
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "PAGO RENTA", res.Movements[0].Descripcion)
	assert.Equal(t, 3, res.StoppedAtLine)
	assert.True(t, res.SectionStarted)
}

func TestExtract_StartMarkerIsAdvisory(t *testing.T) {
	res := mustExtract(t, "01 SEP PAGO RENTA 8,000.00 92,000.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.False(t, res.SectionStarted)
}

func TestExtract_DateWithoutAmountIsSkipped(t *testing.T) {
	text := "05 SEP SALDO DEL DIA\n06 SEP PAGO 100.00"
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "2025-09-06", res.Movements[0].Fecha)
}

func TestExtract_BackfillsShortDescription(t *testing.T) {
	text := "TRANSFERENCIA SPEI A PROVEEDOR\n07 SEP 4,500.00 50,000.00"
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "TRANSFERENCIA SPEI A PROVEEDOR", res.Movements[0].Descripcion)
}

func TestExtract_NoBackfillAcrossPageBreak(t *testing.T) {
	text := "TRANSFERENCIA SPEI A PROVEEDOR\n" + PageBreakMarker + "\n07 SEP 4,500.00 50,000.00"
	res := mustExtract(t, text, september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, models.NoDescription, res.Movements[0].Descripcion)
	assert.Equal(t, 2, res.Movements[0].Page)
}

func TestExtract_BackfillAcrossPageBreakWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BackfillAcrossPages = true
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	text := "TRANSFERENCIA SPEI\f07 SEP 4,500.00 50,000.00"
	res, err := e.Extract(text, september2025)
	require.NoError(t, err)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "TRANSFERENCIA SPEI", res.Movements[0].Descripcion)
}

func TestExtract_ClampsDayToMonthEnd(t *testing.T) {
	res := mustExtract(t, "31 FEB PAGO 10.00", Expectation{Year: 2024, Month: 2})

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "2024-02-29", res.Movements[0].Fecha)
}

func TestExtract_CapsDescription(t *testing.T) {
	long := strings.Repeat("PROVEEDOR ", 40)
	res := mustExtract(t, "05 SEP "+long+" 10.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.LessOrEqual(t, len([]rune(res.Movements[0].Descripcion)), 200)
}

func TestExtract_ZeroExtractionFallback(t *testing.T) {
	res := mustExtract(t, "ESTADO DE CUENTA\nSIN MOVIMIENTOS EN EL PERIODO", september2025)

	require.Len(t, res.Movements, 2)
	assert.True(t, res.FallbackUsed)
	assert.Equal(t, models.StatusReviewRequired, res.Status)
	for _, m := range res.Movements {
		assert.Contains(t, m.Descripcion, FallbackMarker)
		assert.True(t, m.Placeholder)
		assert.True(t, m.Monto.IsZero())
	}
	assert.Equal(t, "2025-09-01", res.Movements[0].Fecha)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo)
	assert.Equal(t, "2025-09-30", res.Movements[1].Fecha)
	assert.Equal(t, models.Cargo, res.Movements[1].Tipo)
}

func TestExtract_EmptyFallbackMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fallback = FallbackEmpty
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	res, err := e.Extract("NADA QUE VER AQUI", september2025)
	require.NoError(t, err)
	assert.Empty(t, res.Movements)
	assert.True(t, res.FallbackUsed)
}

func TestExtract_Idempotent(t *testing.T) {
	text := strings.Join([]string{
		"ESTADO DE CUENTA SEPTIEMBRE 2025 RFC ABC010203XY1",
		"SALDO ANTERIOR 100,000.00",
		"01 SEP PAGO RENTA 8,000.00 92,000.00",
		"02 SEP DEPOSITO STRIPE 1,500.00 93,500.00",
		"03 SEP COMISION 0.00 12.00 93,488.00",
	}, "\n")

	first := mustExtract(t, text, september2025)
	second := mustExtract(t, text, september2025)
	assert.Equal(t, first, second)
}

func TestExtract_InvalidInput(t *testing.T) {
	_, err := Extract("   \n ", september2025)
	assert.True(t, errors.Is(err, ErrEmptyText))

	_, err = Extract("01 SEP PAGO 1.00", Expectation{Year: 2025, Month: 13})
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	_, err = Extract("01 SEP PAGO 1.00", Expectation{Year: 25, Month: 9})
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestExtract_Status(t *testing.T) {
	header := "ESTADO DE CUENTA SEPTIEMBRE 2025 RFC ABC-010203-XY1\n"
	line := "01 SEP PAGO 100.00 900.00"

	tests := []struct {
		name string
		text string
		exp  Expectation
		want models.ResultStatus
	}{
		{"all checks pass", header + line, september2025, models.StatusOK},
		{"rfc mismatch warns", header + line, Expectation{RFC: "ZZZ991231AA1", Year: 2025, Month: 9}, models.StatusWarning},
		{"other month rejects", header + line, Expectation{RFC: "ABC010203XY1", Year: 2025, Month: 10}, models.StatusRejected},
		{"no movements needs review", header, september2025, models.StatusReviewRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := mustExtract(t, tt.text, tt.exp)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.want != models.StatusRejected, res.Persistable())
		})
	}
}

func TestExtract_BalanceProgression(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns.Name = "progression"
	cfg.Columns.BalanceProgression = true
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	text := strings.Join([]string{
		"SALDO ANTERIOR 10,000.00",
		"01 SEP SPEI CLIENTE MX 2,000.00 12,000.00",
		"02 SEP SPEI PROVEEDOR 500.00 11,500.00",
		"03 SEP MOVIMIENTO RARO 7.00 1.00",
	}, "\n")
	res, err := e.Extract(text, september2025)
	require.NoError(t, err)

	require.Len(t, res.Movements, 3)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo)
	assert.Equal(t, models.Cargo, res.Movements[1].Tipo)
	assert.Equal(t, models.Cargo, res.Movements[2].Tipo)
}

func TestExtract_ChargeFirstProfile(t *testing.T) {
	e, err := New(models.BankBBVA)
	require.NoError(t, err)

	res, err := e.Extract("05 SEP SPEI RECIBIDO 0.00 2,000.00 12,000.00", september2025)
	require.NoError(t, err)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, models.Abono, res.Movements[0].Tipo)
	assert.Equal(t, models.BankBBVA, res.Bank)
}

func TestExtract_OverrideRules(t *testing.T) {
	amount := decimal.RequireFromString("2126.27")
	cfg := DefaultConfig()
	cfg.Overrides = []OverrideRule{
		{Name: "fixed amount", Amount: &amount, Force: models.Cargo},
		{Name: "refund", Keywords: []string{"devolucion"}, When: models.Cargo, Force: models.Abono},
	}
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	text := "01 SEP DEPOSITO TERMINAL 2,126.27\n02 SEP DEVOLUCION COMPRA 300.00"
	res, err := e.Extract(text, september2025)
	require.NoError(t, err)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, models.Cargo, res.Movements[0].Tipo)
	assert.Equal(t, "-2126.27", res.Movements[0].Monto.StringFixed(2))
	assert.Equal(t, models.Abono, res.Movements[1].Tipo)
	assert.Equal(t, "300.00", res.Movements[1].Monto.StringFixed(2))
}

func TestExtract_ContinuationMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeContinuationLines = true
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	text := strings.Join([]string{
		"01 SEP SPEI ENVIADO 1,000.00 9,000.00",
		"CONCEPTO PAGO FACTURA",
		"REF 7654321",
		"02 SEP PAGO LUZ 100.00 8,900.00",
	}, "\n")
	res, err := e.Extract(text, september2025)
	require.NoError(t, err)

	require.Len(t, res.Movements, 2)
	assert.Equal(t, "SPEI ENVIADO CONCEPTO PAGO FACTURA REF 7654321", res.Movements[0].Descripcion)
	assert.Equal(t, "7654321", res.Movements[0].Referencia)
	assert.Equal(t, "PAGO LUZ", res.Movements[1].Descripcion)
}

func TestExtract_OCRSanitation(t *testing.T) {
	res := mustExtract(t, "05 SEP PAGO PROVEEDOR 15,000;00 120,450.00", september2025)

	require.Len(t, res.Movements, 1)
	assert.Equal(t, "-15000.00", res.Movements[0].Monto.StringFixed(2))
}

func TestExtract_DebugLines(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug = true
	e, err := NewExtractor(cfg)
	require.NoError(t, err)

	res, err := e.Extract("ENCABEZADO\n05 SEP PAGO 10.00\nRESUMEN", september2025)
	require.NoError(t, err)

	require.Len(t, res.DebugLines, 3)
	assert.Equal(t, "skipped", res.DebugLines[0].Result)
	assert.Equal(t, "movement", res.DebugLines[1].Result)
	assert.True(t, res.DebugLines[1].HasDate)
	assert.Equal(t, 1, res.DebugLines[1].Records)
	assert.Equal(t, "stop", res.DebugLines[2].Result)
}

func TestExtract_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	e, err := New(models.BankGeneric, WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)

	_, err = e.Extract("05 SEP PAGO 10.00", september2025)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"message":"statement extracted"`)
	assert.Contains(t, buf.String(), `"movements":1`)
}

func TestNewExtractor_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Columns.ChargeIndex = cfg.Columns.DepositIndex
	_, err := NewExtractor(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Overrides = []OverrideRule{{Name: "bad", Pattern: "(", Force: models.Abono}}
	_, err = NewExtractor(cfg)
	assert.Error(t, err)
}

func TestSortByFecha(t *testing.T) {
	text := "10 SEP PAGO A 1.00\n02 SEP PAGO B 2.00\n10 SEP PAGO C 3.00"
	res := mustExtract(t, text, september2025)

	models.SortByFecha(res.Movements)
	var got []string
	for _, m := range res.Movements {
		got = append(got, m.Descripcion)
	}
	assert.Equal(t, []string{"PAGO B", "PAGO A", "PAGO C"}, got)
}
