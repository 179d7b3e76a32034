package models

import "fmt"

// BankType identifies the institution whose statement layout is being read.
type BankType string

const (
	BankGeneric   BankType = "generic"
	BankBBVA      BankType = "bbva"
	BankBanorte   BankType = "banorte"
	BankSantander BankType = "santander"
	BankBanamex   BankType = "banamex"
)

// VerdictStatus is the outcome of the period/identity check.
type VerdictStatus string

const (
	VerdictPass VerdictStatus = "PASS"
	VerdictWarn VerdictStatus = "WARN"
	VerdictFail VerdictStatus = "FAIL"
)

// ValidationVerdict reports whether the statement text belongs to the
// expected taxpayer and period. It never stops extraction; callers use it to
// decide whether to persist.
type ValidationVerdict struct {
	RFCMatched     bool          `json:"rfcMatched"`
	PeriodMatched  bool          `json:"periodMatched"`
	MonthMatched   bool          `json:"monthMatched"`
	YearMatched    bool          `json:"yearMatched"`
	ExpectedMonth  string        `json:"expectedMonth"`
	DetectedMonths []string      `json:"detectedMonths"`
	Status         VerdictStatus `json:"status"`
	Blocking       bool          `json:"blocking"`
	Messages       []string      `json:"messages,omitempty"`
}

// ResultStatus tells the persistence layer what to do with a result.
type ResultStatus string

const (
	StatusOK             ResultStatus = "OK"
	StatusWarning        ResultStatus = "WARNING"
	StatusReviewRequired ResultStatus = "REVIEW_REQUIRED"
	StatusRejected       ResultStatus = "REJECTED"
)

// DebugLine captures what the extractor did with each input line.
type DebugLine struct {
	LineNum int    `json:"lineNum"`
	Page    int    `json:"page"`
	Text    string `json:"text"`
	HasDate bool   `json:"hasDate"`
	Amounts int    `json:"amounts"`
	Result  string `json:"result"` // "movement", "skipped", "no-amount", "start", "stop", "page-break", "continuation", "balance"
	Records int    `json:"records,omitempty"`
}

// Period is the fiscal year/month the statement is expected to cover.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// String formats the period as YYYY-MM.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ExtractionResult is everything a single extraction call produces.
type ExtractionResult struct {
	Bank           BankType          `json:"bank"`
	Period         Period            `json:"period"`
	Movements      []MovementRecord  `json:"movements"`
	Verdict        ValidationVerdict `json:"verdict"`
	FallbackUsed   bool              `json:"fallbackUsed"`
	SectionStarted bool              `json:"sectionStarted"`
	StoppedAtLine  int               `json:"stoppedAtLine,omitempty"`
	LinesScanned   int               `json:"linesScanned"`
	Status         ResultStatus      `json:"status"`
	DebugLines     []DebugLine       `json:"debugLines,omitempty"`
}

// Persistable reports whether the movements may be written to the ledger.
// Only a blocking period mismatch prevents it; placeholders are persisted so
// a reviewer sees them.
func (r *ExtractionResult) Persistable() bool {
	return r.Status != StatusRejected
}
