package parser

import (
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

var balanceTolerance = decimal.NewFromFloat(0.01)

// classifyByBalance decides CARGO or ABONO by checking which direction
// explains the move from prevBal to bal. ok is false when neither (or both)
// directions fit within a cent.
func classifyByBalance(amt, bal, prevBal decimal.Decimal) (models.MovementType, bool) {
	amt = amt.Abs()
	debitDiff := prevBal.Sub(amt).Sub(bal).Abs()
	creditDiff := prevBal.Add(amt).Sub(bal).Abs()

	debitFits := debitDiff.LessThanOrEqual(balanceTolerance)
	creditFits := creditDiff.LessThanOrEqual(balanceTolerance)

	switch {
	case debitFits && !creditFits:
		return models.Cargo, true
	case creditFits && !debitFits:
		return models.Abono, true
	default:
		return models.Cargo, false
	}
}

// extractBalanceLine reads lines such as "SALDO ANTERIOR 100,000.00" and
// returns the last amount on the line. found reports whether an amount was
// present; isBalance whether the line carries a balance label at all.
func extractBalanceLine(line string, labels []string) (bal decimal.Decimal, found, isBalance bool) {
	if !containsAny(line, labels) {
		return decimal.Zero, false, false
	}
	amounts := matchAmounts(line, 0)
	if len(amounts) == 0 {
		return decimal.Zero, false, true
	}
	return amounts[len(amounts)-1].Value, true, true
}
