package models

import (
	"sort"

	"github.com/shopspring/decimal"
)

// MovementType is the polarity of a ledger movement.
type MovementType string

const (
	// Cargo is money leaving the account.
	Cargo MovementType = "CARGO"
	// Abono is money entering the account.
	Abono MovementType = "ABONO"
)

// Sign returns -1 for charges and 1 for deposits.
func (t MovementType) Sign() int {
	if t == Cargo {
		return -1
	}
	return 1
}

// Valid reports whether t is one of the two known polarities.
func (t MovementType) Valid() bool {
	return t == Cargo || t == Abono
}

// Placeholder texts used when a field cannot be recovered from the line.
const (
	NoDescription = "SIN DESCRIPCION"
	NoReference   = "SIN REFERENCIA"
)

// DateFragment is the day/month hint found at the start of a statement line.
// The month token is kept verbatim; the real month comes from the caller.
type DateFragment struct {
	Day        int    `json:"day"`
	MonthToken string `json:"monthToken"`
	Year       string `json:"year,omitempty"`
	Raw        string `json:"raw"`
}

// AmountToken is a monetary value matched inside a line.
// Start and End are byte offsets into the (sanitized) line.
type AmountToken struct {
	Value decimal.Decimal `json:"value"`
	Raw   string          `json:"raw"`
	Start int             `json:"start"`
	End   int             `json:"end"`
}

// Negative reports whether the token carried an explicit minus sign.
func (a AmountToken) Negative() bool {
	return a.Value.IsNegative()
}

// MovementRecord is a single signed ledger movement.
type MovementRecord struct {
	Fecha       string          `json:"fecha"`
	Descripcion string          `json:"descripcion"`
	Referencia  string          `json:"referencia"`
	Monto       decimal.Decimal `json:"monto"`
	Tipo        MovementType    `json:"tipo"`
	Line        int             `json:"linea,omitempty"`
	Page        int             `json:"pagina,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// Magnitude returns the unsigned amount of the movement.
func (m MovementRecord) Magnitude() decimal.Decimal {
	return m.Monto.Abs()
}

// SortByFecha orders movements chronologically. The sort is stable, so
// movements on the same day keep their scan order.
func SortByFecha(movements []MovementRecord) {
	sort.SliceStable(movements, func(i, j int) bool {
		return movements[i].Fecha < movements[j].Fecha
	})
}

// Totals sums deposits and charges separately. Charges are returned as a
// positive magnitude.
func Totals(movements []MovementRecord) (deposits, charges decimal.Decimal) {
	for _, m := range movements {
		if m.Tipo == Abono {
			deposits = deposits.Add(m.Monto.Abs())
		} else {
			charges = charges.Add(m.Monto.Abs())
		}
	}
	return deposits, charges
}
