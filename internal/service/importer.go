package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-ledger/internal/config"
	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/logger"
	"github.com/insightdelivered/statement-ledger/internal/metrics"
	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
)

// ErrUnsupportedFormat is returned for files that are not PDF, XLSX or text.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Source names where statement text came from.
const (
	SourcePDF  = "pdf"
	SourceOCR  = "ocr"
	SourceXLSX = "xlsx"
	SourceText = "text"
)

// PageExtractor returns the text of each page of a document on disk.
type PageExtractor interface {
	ExtractText(ctx context.Context, path string) ([]string, error)
}

// Request carries the caller's expectation and options for one import.
type Request struct {
	ID    string // generated when empty
	RFC   string
	Year  int
	Month int
	Bank  string // institution name, "" or "auto" to detect
	Debug bool
}

func (r Request) expectation() parser.Expectation {
	return parser.Expectation{RFC: r.RFC, Year: r.Year, Month: r.Month}
}

// Import is the outcome of one import.
type Import struct {
	ID       string                   `json:"id"`
	Filename string                   `json:"filename,omitempty"`
	Source   string                   `json:"source"`
	Pages    int                      `json:"pages,omitempty"`
	Text     string                   `json:"-"`
	Result   *models.ExtractionResult `json:"result"`
}

// Importer turns uploaded statements into extraction results. It is shared
// by the CLI and the HTTP API.
type Importer struct {
	Profiles   config.Profiles // built-in profiles when nil
	PDF        PageExtractor
	OCR        PageExtractor // nil disables the OCR fallback
	OCREnabled bool
	Debug      bool
	Logger     zerolog.Logger
}

// NewImporter wires the default PDF and OCR extractors.
func NewImporter(profiles config.Profiles, ocrEnabled bool, ocrLang string, log zerolog.Logger) *Importer {
	return &Importer{
		Profiles:   profiles,
		PDF:        extractor.PDFExtractor{Logger: log},
		OCR:        extractor.OCR{Language: ocrLang, Logger: log},
		OCREnabled: ocrEnabled,
		Logger:     log,
	}
}

// ImportFile reads a statement and extracts its movements. The format is
// chosen by the file extension.
func (i *Importer) ImportFile(ctx context.Context, filename string, r io.Reader, req Request) (*Import, error) {
	imp, ctx := i.begin(ctx, req.ID, filename)
	log := logger.FromContext(ctx)
	start := time.Now()

	if err := req.expectation().Validate(); err != nil {
		metrics.IncImportError("invalid_period")
		return nil, err
	}

	var (
		res *models.ExtractionResult
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".pdf":
		var pages []string
		pages, imp.Source, err = i.readPDF(ctx, r)
		if err != nil {
			metrics.IncImportError(imp.Source)
			return nil, err
		}
		imp.Pages = len(pages)
		imp.Text = extractor.JoinPages(pages)
		res, err = i.extractText(ctx, imp.Text, req)

	case ".xlsx":
		imp.Source = SourceXLSX
		var rows [][]string
		rows, err = extractor.ReadSpreadsheet(r)
		if err != nil {
			metrics.IncImportError(SourceXLSX)
			return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
		}
		imp.Pages = 1
		imp.Text = parser.RowsText(rows)
		var x *parser.Extractor
		x, err = i.extractorFor(ctx, imp.Text, req)
		if err != nil {
			metrics.IncImportError("profile")
			return nil, err
		}
		res, err = x.ExtractRows(rows, req.expectation())

	case ".txt", ".text", "":
		imp.Source = SourceText
		var data []byte
		data, err = io.ReadAll(r)
		if err != nil {
			metrics.IncImportError(SourceText)
			return nil, fmt.Errorf("failed to read text: %w", err)
		}
		imp.Text = string(data)
		imp.Pages = len(extractor.SplitPages(imp.Text))
		res, err = i.extractText(ctx, imp.Text, req)

	default:
		metrics.IncImportError("format")
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		metrics.IncImportError("extract")
		return nil, err
	}

	imp.Result = res
	i.observe(imp, time.Since(start))
	log.Info().
		Str("source", imp.Source).
		Str("bank", string(res.Bank)).
		Str("status", string(res.Status)).
		Int("movements", len(res.Movements)).
		Dur("elapsed", time.Since(start)).
		Msg("statement imported")
	return imp, nil
}

// ImportText extracts movements from statement text that was already
// pulled out of a document.
func (i *Importer) ImportText(ctx context.Context, text string, req Request) (*Import, error) {
	imp, ctx := i.begin(ctx, req.ID, "")
	imp.Source = SourceText
	imp.Text = text
	imp.Pages = len(extractor.SplitPages(text))
	start := time.Now()

	res, err := i.extractText(ctx, text, req)
	if err != nil {
		metrics.IncImportError("extract")
		return nil, err
	}
	imp.Result = res
	i.observe(imp, time.Since(start))
	return imp, nil
}

// Validate checks statement text against the expected taxpayer and period
// without extracting movements.
func (i *Importer) Validate(text string, req Request) (models.ValidationVerdict, error) {
	if strings.TrimSpace(text) == "" {
		return models.ValidationVerdict{}, parser.ErrEmptyText
	}
	exp := req.expectation()
	if err := exp.Validate(); err != nil {
		return models.ValidationVerdict{}, err
	}
	return parser.ValidatePeriod(text, exp), nil
}

func (i *Importer) begin(ctx context.Context, id, filename string) (*Import, context.Context) {
	if id == "" {
		id = uuid.NewString()
	}
	imp := &Import{ID: id, Filename: filename}
	fields := map[string]interface{}{"request_id": id}
	if filename != "" {
		fields["file"] = filepath.Base(filename)
	}
	return imp, logger.WithContext(ctx, logger.WithFields(i.Logger, fields))
}

// readPDF spools the upload to a temporary file, since both the PDF library
// and the poppler tools need a path, and falls back to OCR for scans.
func (i *Importer) readPDF(ctx context.Context, r io.Reader) ([]string, string, error) {
	log := logger.FromContext(ctx)

	tmp, err := os.CreateTemp("", "statement-*.pdf")
	if err != nil {
		return nil, SourcePDF, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, SourcePDF, fmt.Errorf("failed to save upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, SourcePDF, err
	}

	pdfx := i.PDF
	if pdfx == nil {
		pdfx = extractor.PDFExtractor{Logger: log}
	}
	pages, err := pdfx.ExtractText(ctx, tmp.Name())
	if err == nil {
		return pages, SourcePDF, nil
	}
	if !errors.Is(err, extractor.ErrNoReadableText) || !i.OCREnabled || i.OCR == nil {
		return nil, SourcePDF, fmt.Errorf("PDF extraction failed: %w", err)
	}

	log.Info().Msg("no text layer found, running OCR")
	pages, err = i.OCR.ExtractText(ctx, tmp.Name())
	if err != nil {
		return nil, SourceOCR, fmt.Errorf("OCR failed: %w", err)
	}
	return pages, SourceOCR, nil
}

func (i *Importer) extractText(ctx context.Context, text string, req Request) (*models.ExtractionResult, error) {
	x, err := i.extractorFor(ctx, text, req)
	if err != nil {
		return nil, err
	}
	return x.Extract(text, req.expectation())
}

// extractorFor resolves the institution, from the request or the text, and
// builds an extractor with its profile.
func (i *Importer) extractorFor(ctx context.Context, text string, req Request) (*parser.Extractor, error) {
	log := logger.FromContext(ctx)

	bank, err := parser.ParseBankType(req.Bank)
	if err != nil {
		return nil, err
	}
	if bank == "" {
		detected, err := parser.AutoDetect(text)
		if err != nil {
			log.Debug().Err(err).Msg("institution not detected, using generic profile")
			detected = models.BankGeneric
		}
		bank = detected
	}

	profiles := i.Profiles
	if profiles == nil {
		profiles = config.BuiltinProfiles()
	}
	cfg := profiles.For(bank)
	cfg.Debug = cfg.Debug || i.Debug || req.Debug

	return parser.NewExtractor(cfg,
		parser.WithBank(bank),
		parser.WithLogger(log.With().Str("bank", string(bank)).Logger()),
	)
}

func (i *Importer) observe(imp *Import, elapsed time.Duration) {
	res := imp.Result
	e := metrics.Extraction{
		Bank:     string(res.Bank),
		Status:   string(res.Status),
		Verdict:  string(res.Verdict.Status),
		Source:   imp.Source,
		Fallback: res.FallbackUsed,
		Duration: elapsed,
	}
	for _, m := range res.Movements {
		if m.Placeholder {
			continue
		}
		if m.Tipo == models.Cargo {
			e.Cargos++
		} else {
			e.Abonos++
		}
	}
	metrics.ObserveExtraction(e)
}
