package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ledger/internal/models"
)

// Line patterns shared by every institution profile.
var (
	// Day at the start of the line followed by a month word, a two-letter
	// abbreviation or a two-digit month, and an optional year:
	// "05 SEP", "05SEP", "5-SEPT-25", "05/09/2025", "05 SE.".
	datePattern = regexp.MustCompile(
		`^\s*(\d{1,2})(?:[ /\-]*(\p{Lu}{2,12}\.?)|[ /\-]+(\d{2}))(?:[ /\-]+(\d{4}|\d{2}))?(?:\s|$)`,
	)
	// Signed comma-grouped amount. The fraction length is checked in code
	// because RE2 has no lookahead.
	amountPattern = regexp.MustCompile(`-?\d[\d,]*\.\d+`)
	// Spreadsheet cells: "$ 1,234.50", "-$12.00", "$-12", "1234".
	looseAmountPattern = regexp.MustCompile(`^\s*(-)?\s*\$?\s*(-)?\s*(\d[\d,]*(?:\.\d+)?)\s*$`)

	referencePattern = regexp.MustCompile(`\d{6,}`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	asteriskPadding  = regexp.MustCompile(`\*{2,}`)
	pageArtifacts    = []*regexp.Regexp{
		regexp.MustCompile(`\bPAGINA\s*\d+\s*(?:DE|/)\s*\d+`),
		regexp.MustCompile(`\bPÁGINA\s*\d+\s*(?:DE|/)\s*\d+`),
		regexp.MustCompile(`\bPAG\.?\s*\d+\s*(?:DE|/)\s*\d+`),
		regexp.MustCompile(`\bHOJA\s*\d+\s*(?:DE|/)\s*\d+`),
	}

	// Tesseract misreads the decimal point in amounts.
	ocrSemicolonDecimal = regexp.MustCompile(`(\d);\s?(\d{2})(\s|$)`)
	ocrColonDecimal     = regexp.MustCompile(`(\d,\d{3}):(\d{2})(\s|$)`)
	ocrTrailingNA       = regexp.MustCompile(`(\d\.\d{2})\s+NA\b`)
)

// PageBreakMarker separates pages in text assembled from several pages.
const PageBreakMarker = "---PAGE_BREAK---"

var pageBreakMarkers = []string{PageBreakMarker, "--- PAGE BREAK ---"}

// parseAmount converts a string like "1,234.56" or "-$1,234.56" to a decimal
// rounded to two places.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00A0", "") // non-breaking space

	if s == "" || s == "-" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// ParseAmount is the exported version for use by other packages.
func ParseAmount(s string) (decimal.Decimal, error) {
	return parseAmount(s)
}

// parseLooseAmount reads a spreadsheet cell. ok is false when the cell does
// not look like a money value at all.
func parseLooseAmount(cell string) (decimal.Decimal, bool) {
	m := looseAmountPattern.FindStringSubmatch(cell)
	if m == nil {
		return decimal.Zero, false
	}
	d, err := parseAmount(m[3])
	if err != nil {
		return decimal.Zero, false
	}
	if m[1] != "" || m[2] != "" {
		d = d.Neg()
	}
	return d, true
}

// sanitizeOCRAmounts fixes common OCR errors in amount strings.
// E.g. "19,720; 15" -> "19,720.15", "1,234:56" -> "1,234.56".
// Times such as "12:30" are left alone.
func sanitizeOCRAmounts(line string) string {
	line = ocrSemicolonDecimal.ReplaceAllString(line, "$1.$2$3")
	line = ocrColonDecimal.ReplaceAllString(line, "$1.$2$3")
	line = ocrTrailingNA.ReplaceAllString(line, "$1")
	return line
}

// matchDate returns the date fragment at the start of line and the byte
// offset where it ends.
func matchDate(line string) (models.DateFragment, int, bool) {
	m := datePattern.FindStringSubmatchIndex(line)
	if m == nil {
		return models.DateFragment{}, 0, false
	}

	day := atoi(line[m[2]:m[3]])
	if day < 1 || day > 31 {
		return models.DateFragment{}, 0, false
	}

	frag := models.DateFragment{Day: day}
	switch {
	case m[4] >= 0:
		frag.MonthToken = line[m[4]:m[5]]
	case m[6] >= 0:
		frag.MonthToken = line[m[6]:m[7]]
	}
	if m[8] >= 0 {
		frag.Year = line[m[8]:m[9]]
	}

	end := m[1]
	frag.Raw = strings.TrimSpace(line[m[0]:end])
	return frag, end, true
}

// matchAmounts returns every amount token in line at or after offset from,
// left to right. Tokens with a fraction other than two digits are ignored.
func matchAmounts(line string, from int) []models.AmountToken {
	var tokens []models.AmountToken
	for _, loc := range amountPattern.FindAllStringIndex(line[from:], -1) {
		start, end := loc[0]+from, loc[1]+from
		raw := line[start:end]
		dot := strings.LastIndexByte(raw, '.')
		if len(raw)-dot-1 != 2 {
			continue
		}
		v, err := parseAmount(raw)
		if err != nil {
			continue
		}
		tokens = append(tokens, models.AmountToken{Value: v, Raw: raw, Start: start, End: end})
	}
	return tokens
}

// splitLines upper-cases the text and splits it into lines. Form feeds
// emitted by pdftotext become page-break marker lines.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\f", "\n"+PageBreakMarker+"\n")
	return strings.Split(strings.ToUpper(text), "\n")
}

func isPageBreak(line string) bool {
	for _, marker := range pageBreakMarkers {
		if line == marker {
			return true
		}
	}
	return false
}

// amountSpan is the byte range of an amount token including a currency sign
// printed before it, as in "$ 1,234.56".
func amountSpan(line string, a models.AmountToken) [2]int {
	i := a.Start
	for i > 0 && line[i-1] == ' ' {
		i--
	}
	if i > 0 && line[i-1] == '$' {
		return [2]int{i - 1, a.End}
	}
	return [2]int{a.Start, a.End}
}

// stripSpans removes the given [start,end) byte ranges from line.
// Spans must be sorted and non-overlapping.
func stripSpans(line string, spans [][2]int) string {
	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		if sp[0] > prev {
			b.WriteString(line[prev:sp[0]])
		}
		b.WriteByte(' ')
		prev = sp[1]
	}
	if prev < len(line) {
		b.WriteString(line[prev:])
	}
	return b.String()
}

// cleanDescription removes page-number artifacts and asterisk padding,
// collapses whitespace and caps the length in runes.
func cleanDescription(s string, maxLen int) string {
	for _, re := range pageArtifacts {
		s = re.ReplaceAllString(s, " ")
	}
	s = asteriskPadding.ReplaceAllString(s, " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -*|")

	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		s = strings.TrimSpace(string([]rune(s)[:maxLen]))
	}
	return s
}

// findReference returns the first run of six or more digits in desc.
func findReference(desc string) string {
	if m := referencePattern.FindString(desc); m != "" {
		return m
	}
	return models.NoReference
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}
