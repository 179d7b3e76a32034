package parser

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// FallbackMarker labels placeholder movements so a reviewer notices them.
const FallbackMarker = "EXTRACCION FALLIDA"

// placeholderMovements returns the two zero-amount records emitted when a
// statement yields nothing: an ABONO on the first day of the period and a
// CARGO on the last.
func placeholderMovements(p models.Period) []models.MovementRecord {
	last := daysIn(p.Year, p.Month)
	return []models.MovementRecord{
		{
			Fecha:       buildFecha(p, 1),
			Descripcion: fmt.Sprintf("%s - REVISAR DEPOSITOS DEL ESTADO DE CUENTA", FallbackMarker),
			Referencia:  models.NoReference,
			Monto:       decimal.Zero,
			Tipo:        models.Abono,
			Placeholder: true,
		},
		{
			Fecha:       buildFecha(p, last),
			Descripcion: fmt.Sprintf("%s - REVISAR RETIROS DEL ESTADO DE CUENTA", FallbackMarker),
			Referencia:  models.NoReference,
			Monto:       decimal.Zero,
			Tipo:        models.Cargo,
			Placeholder: true,
		},
	}
}
