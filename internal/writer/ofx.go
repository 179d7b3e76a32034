package writer

import (
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/aclindsa/ofxgo"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// bankCodes are the ABM institution codes used as OFX BANKID.
var bankCodes = map[models.BankType]string{
	models.BankBBVA:      "012",
	models.BankBanamex:   "002",
	models.BankSantander: "014",
	models.BankBanorte:   "072",
}

// ofxNameLimit is the NAME length OFX 2.x allows; the full description goes
// to MEMO.
const ofxNameLimit = 32

// OFXWriter writes an extraction result as an OFX 2.0.3 bank statement that
// accounting tools can import.
type OFXWriter struct {
	AccountID string
	// Now stamps DTSERVER; time.Now when nil.
	Now func() time.Time
}

// Write encodes res to out. Placeholder movements are left out.
func (w *OFXWriter) Write(out io.Writer, res *models.ExtractionResult) error {
	resp, err := w.response(res)
	if err != nil {
		return err
	}
	buf, err := resp.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode OFX: %w", err)
	}
	_, err = buf.WriteTo(out)
	return err
}

func (w *OFXWriter) response(res *models.ExtractionResult) (*ofxgo.Response, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	cur, err := ofxgo.NewCurrSymbol("MXN")
	if err != nil {
		return nil, err
	}

	start := time.Date(res.Period.Year, time.Month(res.Period.Month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	list := &ofxgo.TransactionList{
		DtStart: ofxgo.Date{Time: start},
		DtEnd:   ofxgo.Date{Time: end},
	}
	for i, m := range res.Movements {
		if m.Placeholder {
			continue
		}
		tx, err := transaction(m, i)
		if err != nil {
			return nil, err
		}
		list.Transactions = append(list.Transactions, tx)
	}

	bankID, ok := bankCodes[res.Bank]
	if !ok {
		bankID = "000"
	}
	accountID := w.AccountID
	if accountID == "" {
		accountID = "SIN-CUENTA"
	}

	stmt := &ofxgo.StatementResponse{
		TrnUID: ofxgo.UID("0"),
		Status: ofxgo.Status{Code: 0, Severity: "INFO"},
		CurDef: *cur,
		BankAcctFrom: ofxgo.BankAcct{
			BankID:   ofxgo.String(bankID),
			AcctID:   ofxgo.String(accountID),
			AcctType: ofxgo.AcctTypeChecking,
		},
		BankTranList: list,
		DtAsOf:       ofxgo.Date{Time: end},
	}

	return &ofxgo.Response{
		Version: ofxgo.OfxVersion203,
		Signon: ofxgo.SignonResponse{
			Status:   ofxgo.Status{Code: 0, Severity: "INFO"},
			DtServer: ofxgo.Date{Time: now().UTC()},
			Language: "SPA",
		},
		Bank: []ofxgo.Message{stmt},
	}, nil
}

func transaction(m models.MovementRecord, idx int) (ofxgo.Transaction, error) {
	posted, err := time.Parse("2006-01-02", m.Fecha)
	if err != nil {
		return ofxgo.Transaction{}, fmt.Errorf("movement %d: bad fecha %q: %w", idx, m.Fecha, err)
	}

	trnType := ofxgo.TrnTypeDebit
	if m.Tipo == models.Abono {
		trnType = ofxgo.TrnTypeCredit
	}

	tx := ofxgo.Transaction{
		TrnType:  trnType,
		DtPosted: ofxgo.Date{Time: posted},
		FiTID:    ofxgo.String(fmt.Sprintf("%s-%04d", m.Fecha, idx+1)),
		Name:     ofxgo.String(truncateRunes(m.Descripcion, ofxNameLimit)),
		Memo:     ofxgo.String(m.Descripcion),
	}
	if m.Referencia != models.NoReference {
		tx.RefNum = ofxgo.String(m.Referencia)
	}
	if _, ok := tx.TrnAmt.SetString(m.Monto.StringFixed(2)); !ok {
		return ofxgo.Transaction{}, fmt.Errorf("movement %d: bad monto %s", idx, m.Monto)
	}
	return tx, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
