package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestApplyOverrides(t *testing.T) {
	rules, err := compileOverrides([]OverrideRule{
		{Name: "terminal fee", Keywords: []string{"comision terminal"}, Force: models.Cargo},
		{Name: "big refunds", Pattern: `^DEVOLUCION\b`, MinAmount: dec("1000"), When: models.Cargo, Force: models.Abono},
		{Name: "exact", Amount: dec("-2126.27"), Force: models.Cargo},
		{Name: "small cashback", Keywords: []string{"CASHBACK"}, MaxAmount: dec("50"), Force: models.Abono},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		desc     string
		amount   string
		current  models.MovementType
		want     models.MovementType
		wantRule string
	}{
		{"keyword match", "COMISION TERMINAL CLIP", "10.00", models.Abono, models.Cargo, "terminal fee"},
		{"pattern and minimum", "DEVOLUCION COMPRA", "1500.00", models.Cargo, models.Abono, "big refunds"},
		{"below minimum", "DEVOLUCION COMPRA", "999.99", models.Cargo, models.Cargo, ""},
		{"when does not match", "DEVOLUCION COMPRA", "1500.00", models.Abono, models.Abono, ""},
		{"exact amount ignores sign", "DEPOSITO", "2126.27", models.Abono, models.Cargo, "exact"},
		{"maximum", "CASHBACK TARJETA", "50.00", models.Cargo, models.Abono, "small cashback"},
		{"above maximum", "CASHBACK TARJETA", "50.01", models.Cargo, models.Cargo, ""},
		{"no rule", "PAGO RENTA", "8000.00", models.Cargo, models.Cargo, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, rule := applyOverrides(rules, tt.desc, decimal.RequireFromString(tt.amount), tt.current)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRule, rule)
		})
	}
}

func TestApplyOverrides_FirstMatchWins(t *testing.T) {
	rules, err := compileOverrides([]OverrideRule{
		{Keywords: []string{"SPEI"}, Force: models.Abono},
		{Name: "second", Keywords: []string{"SPEI"}, Force: models.Cargo},
	})
	require.NoError(t, err)

	got, rule := applyOverrides(rules, "SPEI RECIBIDO", decimal.NewFromInt(1), models.Cargo)
	assert.Equal(t, models.Abono, got)
	assert.Equal(t, "override-0", rule)
}

func TestCompileOverrides_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule OverrideRule
	}{
		{"missing force", OverrideRule{Keywords: []string{"X"}}},
		{"bad force", OverrideRule{Keywords: []string{"X"}, Force: "DEBIT"}},
		{"bad when", OverrideRule{Keywords: []string{"X"}, When: "CREDIT", Force: models.Cargo}},
		{"no predicate", OverrideRule{Force: models.Cargo}},
		{"bad pattern", OverrideRule{Pattern: "[", Force: models.Cargo}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOverrides([]OverrideRule{tt.rule})
			assert.Error(t, err)
		})
	}
}

func TestCompileOverrides_DoesNotMutateInput(t *testing.T) {
	rules := []OverrideRule{{Keywords: []string{"spei"}, Force: models.Cargo}}
	_, err := compileOverrides(rules)
	require.NoError(t, err)
	assert.Equal(t, "spei", rules[0].Keywords[0])
}
