package writer

import (
	"bytes"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

func fixedNow() time.Time {
	return time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)
}

func TestOFXWriter_Write(t *testing.T) {
	res := sampleResult()
	res.Movements = append(res.Movements, models.MovementRecord{
		Fecha: "2025-09-30", Descripcion: "EXTRACCION FALLIDA", Monto: decimal.Zero, Tipo: models.Cargo, Placeholder: true,
	})

	var buf bytes.Buffer
	w := &OFXWriter{AccountID: "0123456789", Now: fixedNow}
	require.NoError(t, w.Write(&buf, res))

	parsed, err := ofxgo.ParseResponse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, parsed.Bank, 1)

	stmt, ok := parsed.Bank[0].(*ofxgo.StatementResponse)
	require.True(t, ok)
	assert.Equal(t, "012", string(stmt.BankAcctFrom.BankID))
	assert.Equal(t, "0123456789", string(stmt.BankAcctFrom.AcctID))
	assert.Equal(t, "MXN", stmt.CurDef.String())

	require.NotNil(t, stmt.BankTranList)
	txs := stmt.BankTranList.Transactions
	require.Len(t, txs, 2)

	assert.Equal(t, ofxgo.TrnTypeDebit, txs[0].TrnType)
	assert.Equal(t, "-15000.00", txs[0].TrnAmt.FloatString(2))
	assert.Equal(t, "2025-09-05", txs[0].DtPosted.Format("2006-01-02"))
	assert.Equal(t, "PAGO PROVEEDOR, SA DE CV", string(txs[0].Memo))

	assert.Equal(t, ofxgo.TrnTypeCredit, txs[1].TrnType)
	assert.Equal(t, "25000.00", txs[1].TrnAmt.FloatString(2))
	assert.Equal(t, "1234567", string(txs[1].RefNum))
	assert.NotEqual(t, txs[0].FiTID, txs[1].FiTID)
}

func TestOFXWriter_TruncatesName(t *testing.T) {
	res := sampleResult()
	res.Movements[0].Descripcion = "TRANSFERENCIA SPEI ENVIADA A PROVEEDOR DE SERVICIOS INTEGRALES"

	var buf bytes.Buffer
	require.NoError(t, (&OFXWriter{Now: fixedNow}).Write(&buf, res))

	parsed, err := ofxgo.ParseResponse(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	tx := parsed.Bank[0].(*ofxgo.StatementResponse).BankTranList.Transactions[0]
	assert.Len(t, string(tx.Name), ofxNameLimit)
	assert.Equal(t, res.Movements[0].Descripcion, string(tx.Memo))
}

func TestOFXWriter_BadFecha(t *testing.T) {
	res := sampleResult()
	res.Movements[0].Fecha = "05/09/2025"

	var buf bytes.Buffer
	assert.Error(t, (&OFXWriter{}).Write(&buf, res))
}
