package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ledger/internal/parser"
)

var (
	// ErrNoReadableText means no method produced statement-like text; the
	// PDF is probably a scan and needs OCR.
	ErrNoReadableText = errors.New("no readable text in PDF")
	// ErrOCRUnavailable means pdftoppm or tesseract is not installed.
	ErrOCRUnavailable = errors.New("OCR tools not available")
)

// columnGap is the horizontal distance, in PDF units, above which two text
// pieces on a row are treated as separate columns.
const columnGap = 15

// PDFExtractor pulls the text layer out of statement PDFs.
type PDFExtractor struct {
	Logger zerolog.Logger
}

// ExtractText returns the text of each page of the PDF at path. It tries
// the Go PDF library first and then pdftotext from poppler-utils, and never
// returns text that does not look like a statement.
func (x PDFExtractor) ExtractText(ctx context.Context, path string) ([]string, error) {
	pages, libErr := x.extractWithLibrary(path)
	if libErr == nil && isReadableText(pages) {
		return pages, nil
	}
	if libErr != nil {
		x.Logger.Debug().Err(libErr).Str("file", path).Msg("pdf library failed, trying pdftotext")
	}

	popplerPages, popplerErr := extractWithPdftotext(ctx, path)
	if popplerErr == nil && isReadableText(popplerPages) {
		return popplerPages, nil
	}
	if popplerErr != nil {
		x.Logger.Debug().Err(popplerErr).Str("file", path).Msg("pdftotext failed")
	}

	if libErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoReadableText, libErr)
	}
	return nil, ErrNoReadableText
}

// JoinPages assembles page texts into the single buffer the parser scans,
// keeping page boundaries as explicit markers.
func JoinPages(pages []string) string {
	return strings.Join(pages, "\n"+parser.PageBreakMarker+"\n")
}

// SplitPages is the inverse of JoinPages. It also accepts text pasted from
// other tools that used the spaced marker.
func SplitPages(text string) []string {
	text = strings.ReplaceAll(text, "\n--- PAGE BREAK ---\n", "\n"+parser.PageBreakMarker+"\n")
	var pages []string
	for _, page := range strings.Split(text, "\n"+parser.PageBreakMarker+"\n") {
		if page = strings.TrimSpace(page); page != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

// textQuality returns the share of runes that belong in a Spanish statement:
// ASCII letters and digits, accented vowels, Ñ, whitespace and the usual
// punctuation. Garbage from identity-encoded fonts scores low.
func textQuality(pages []string) float64 {
	total, readable := 0, 0
	for _, page := range pages {
		for _, r := range page {
			total++
			if isStatementRune(r) {
				readable++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(readable) / float64(total)
}

func isStatementRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case unicode.IsSpace(r):
		return true
	case strings.ContainsRune("áéíóúüñÁÉÍÓÚÜÑ", r):
		return true
	case strings.ContainsRune(".,-/:;()'\"$%&@#!?+=*_¿¡", r):
		return true
	}
	return false
}

// commonWords appear in practically every Mexican bank statement.
var commonWords = []string{
	"saldo", "cuenta", "fecha", "cargo", "abono", "deposito", "depósito",
	"retiro", "movimientos", "periodo", "estado de cuenta", "rfc", "clabe",
	"total", "comision", "comisión", "spei", "sucursal", "cliente",
}

func containsCommonWords(pages []string) bool {
	combined := strings.ToLower(strings.Join(pages, " "))
	for _, word := range commonWords {
		if strings.Contains(combined, word) {
			return true
		}
	}
	return false
}

// isReadableText requires more than 50 characters, more than 60% plausible
// runes and at least one statement word.
func isReadableText(pages []string) bool {
	if totalTextLen(pages) <= 50 {
		return false
	}
	if textQuality(pages) <= 0.6 {
		return false
	}
	return containsCommonWords(pages)
}

// IsReadableText reports whether pages look like statement text.
func IsReadableText(pages []string) bool {
	return isReadableText(pages)
}

// extractWithPdftotext runs poppler's pdftotext page by page so page
// boundaries survive.
func extractWithPdftotext(ctx context.Context, path string) ([]string, error) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return nil, fmt.Errorf("pdftotext not available: %w", err)
	}

	numPages := pdfPageCount(ctx, path)
	if numPages == 0 {
		numPages = 1
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := strconv.Itoa(i)
		out, err := exec.CommandContext(ctx, "pdftotext", "-layout", "-f", page, "-l", page, path, "-").Output()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			pages = append(pages, text)
		}
	}
	if len(pages) > 0 {
		return pages, nil
	}

	// Whole document in one go; pdftotext separates pages with form feeds.
	out, err := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w", err)
	}
	for _, page := range strings.Split(string(out), "\f") {
		if page = strings.TrimSpace(page); page != "" {
			pages = append(pages, page)
		}
	}
	if len(pages) == 0 {
		return nil, errors.New("pdftotext produced no output")
	}
	return pages, nil
}

// pdfPageCount asks pdfinfo for the page count; 0 when unknown.
func pdfPageCount(ctx context.Context, path string) int {
	out, err := exec.CommandContext(ctx, "pdfinfo", path).Output()
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// extractWithLibrary tries the ledongthuc/pdf reading methods from the most
// layout-preserving to the least.
func (x PDFExtractor) extractWithLibrary(path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf library panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		return nil, errors.New("PDF has no pages")
	}

	methods := []struct {
		name string
		fn   func(*pdf.Reader, int) []string
	}{
		{"rows", extractByRow},
		{"positional", extractByContent},
		{"plain", extractByPagePlainText},
	}
	for _, m := range methods {
		pages = m.fn(r, numPages)
		if isReadableText(pages) {
			x.Logger.Debug().Str("method", m.name).Int("pages", len(pages)).Msg("pdf text extracted")
			return pages, nil
		}
	}

	if plain := extractByReaderPlainText(r); isReadableText([]string{plain}) {
		return []string{plain}, nil
	}
	return pages, nil
}

// extractByRow uses the library's own row grouping.
func extractByRow(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			continue
		}
		lines := make([]string, 0, len(rows))
		for _, row := range rows {
			words := make([]string, 0, len(row.Content))
			for _, w := range row.Content {
				words = append(words, w.S)
			}
			if line := strings.TrimSpace(strings.Join(words, " ")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

// extractByContent rebuilds rows from positioned text: pieces are grouped
// by rounded Y, rows ordered top to bottom and pieces left to right, with a
// double space where a column gap is found.
func extractByContent(r *pdf.Reader, numPages int) []string {
	type piece struct {
		x float64
		s string
	}

	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		if len(content.Text) == 0 {
			continue
		}

		rows := make(map[int][]piece)
		for _, t := range content.Text {
			if strings.TrimSpace(t.S) == "" {
				continue
			}
			y := int(math.Round(t.Y))
			rows[y] = append(rows[y], piece{x: t.X, s: t.S})
		}

		ys := make([]int, 0, len(rows))
		for y := range rows {
			ys = append(ys, y)
		}
		// PDF Y grows upwards.
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		lines := make([]string, 0, len(ys))
		for _, y := range ys {
			items := rows[y]
			sort.Slice(items, func(a, b int) bool { return items[a].x < items[b].x })

			var b strings.Builder
			for j, item := range items {
				if j > 0 && item.x-items[j-1].x > columnGap {
					b.WriteString("  ")
				}
				b.WriteString(item.s)
			}
			if line := strings.TrimSpace(b.String()); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, strings.Join(lines, "\n"))
	}
	return pages
}

func extractByPagePlainText(r *pdf.Reader, numPages int) []string {
	var pages []string
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range page.Fonts() {
			f := page.Font(name)
			fonts[name] = &f
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return pages
}

func extractByReaderPlainText(r *pdf.Reader) string {
	reader, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func totalTextLen(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len(strings.TrimSpace(p))
	}
	return n
}
