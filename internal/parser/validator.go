package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// monthSpellings are the accepted spellings of each canonical month. OCR
// often glues words together, so they are matched as plain substrings.
var monthSpellings = func() [13][]string {
	var out [13][]string
	for m := 1; m <= 12; m++ {
		out[m] = []string{models.MonthNames[m]}
	}
	out[9] = append(out[9], "SETIEMBRE")
	return out
}()

func hasMonth(upper string, m int) bool {
	return m >= 1 && m <= 12 && containsAny(upper, monthSpellings[m])
}

// ValidatePeriod checks that text belongs to the expected taxpayer and
// period. An absent expected month with another month present is blocking;
// everything else only warns.
func ValidatePeriod(text string, exp Expectation) models.ValidationVerdict {
	upper := strings.ToUpper(text)
	v := models.ValidationVerdict{
		ExpectedMonth:  models.MonthName(exp.Month),
		DetectedMonths: DetectMonths(upper),
	}

	v.RFCMatched = rfcPresent(upper, exp.RFC)
	v.MonthMatched = hasMonth(upper, exp.Month)
	v.YearMatched = strings.Contains(upper, strconv.Itoa(exp.Year))
	v.PeriodMatched = v.MonthMatched && v.YearMatched
	v.Status = models.VerdictPass

	if !v.RFCMatched {
		v.Status = models.VerdictWarn
		v.Messages = append(v.Messages, fmt.Sprintf("no se encontro el RFC %s en el archivo", normalizeRFC(exp.RFC)))
	}

	if !v.MonthMatched {
		switch {
		case len(v.DetectedMonths) > 0:
			v.Status = models.VerdictFail
			v.Blocking = true
			v.Messages = append(v.Messages, fmt.Sprintf("se esperaba %s, el archivo parece ser %s",
				v.ExpectedMonth, strings.Join(v.DetectedMonths, ", ")))
		default:
			v.Status = models.VerdictWarn
			v.Messages = append(v.Messages, fmt.Sprintf("no se detecto ningun mes en el archivo, se esperaba %s", v.ExpectedMonth))
		}
	}

	if !v.YearMatched {
		if v.Status == models.VerdictPass {
			v.Status = models.VerdictWarn
		}
		v.Messages = append(v.Messages, fmt.Sprintf("no se encontro el año %d en el archivo", exp.Year))
	}

	return v
}

// DetectMonths returns the canonical month names present in text, in
// calendar order.
func DetectMonths(text string) []string {
	upper := strings.ToUpper(text)
	found := []string{}
	for m := 1; m <= 12; m++ {
		if hasMonth(upper, m) {
			found = append(found, models.MonthNames[m])
		}
	}
	return found
}

func rfcPresent(text, rfc string) bool {
	want := normalizeRFC(rfc)
	if want == "" {
		return false
	}
	return strings.Contains(normalizeRFC(text), want)
}

// normalizeRFC keeps only letters and digits, upper-cased. Ñ and & occur in
// real RFCs; Ñ survives as a letter, & is dropped on both sides alike.
func normalizeRFC(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
