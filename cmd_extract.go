package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-ledger/internal/models"
	"github.com/insightdelivered/statement-ledger/internal/parser"
	"github.com/insightdelivered/statement-ledger/internal/service"
	"github.com/insightdelivered/statement-ledger/internal/writer"
)

// errRejected is returned when a statement fails the period check and
// --force was not given.
var errRejected = errors.New("statement rejected: period mismatch")

type extractOptions struct {
	req     service.Request
	output  string
	format  string
	header  bool
	account string
	force   bool
}

func extractCmd() *cobra.Command {
	opts := &extractOptions{}
	cmd := &cobra.Command{
		Use:   "extract [flags] <statement> [statement ...]",
		Short: "Extract ledger movements from bank statements",
		Long: `Extract every CARGO and ABONO from one or more statements and write them as
CSV, OFX or JSON. PDF, XLSX and text files are accepted; scanned PDFs go
through OCR when tesseract is installed.

Statements that clearly belong to another month are rejected and nothing is
written unless --force is given.`,
		Example: `  # Auto-detect the institution
  statement-ledger extract --rfc ABC010203XY1 --year 2025 --month 9 estado.pdf

  # Explicit institution, OFX output
  statement-ledger extract --bank bbva --format ofx --year 2025 --month 9 estado.pdf

  # Print to stdout
  statement-ledger extract --year 2025 --month 9 --output - estado.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.req.Debug = viper.GetBool("extract.debug")
			return runExtract(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.req.RFC, "rfc", "", "expected taxpayer RFC")
	f.IntVar(&opts.req.Year, "year", 0, "expected statement year")
	f.IntVar(&opts.req.Month, "month", 0, "expected statement month (1-12)")
	f.StringVar(&opts.req.Bank, "bank", "", "institution: "+bankChoices()+" (auto-detected if omitted)")
	f.StringVarP(&opts.output, "output", "o", "", "output path, - for stdout (default: input name with the format extension)")
	f.StringVarP(&opts.format, "format", "f", "csv", "output format: csv, ofx, json")
	f.BoolVar(&opts.header, "header", true, "include metadata rows in CSV output")
	f.StringVar(&opts.account, "account", "", "account number for OFX output")
	f.BoolVar(&opts.force, "force", false, "write output even when the statement is rejected")
	f.Bool("debug", false, "record what happened to every line")
	f.Bool("ocr", true, "fall back to OCR for scanned PDFs")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")

	_ = viper.BindPFlag("extract.debug", f.Lookup("debug"))
	_ = viper.BindPFlag("ocr.enabled", f.Lookup("ocr"))

	return cmd
}

func runExtract(cmd *cobra.Command, opts *extractOptions, paths []string) error {
	switch opts.format {
	case "csv", "ofx", "json":
	default:
		return fmt.Errorf("unknown format %q: use csv, ofx or json", opts.format)
	}
	if opts.output != "" && opts.output != "-" && len(paths) > 1 {
		return fmt.Errorf("--output names a single file but %d statements were given", len(paths))
	}

	imp, err := newImporter()
	if err != nil {
		return err
	}

	status := cmd.OutOrStdout()
	if opts.output == "-" {
		status = cmd.ErrOrStderr()
	}

	var rejected int
	for _, path := range paths {
		err := extractFile(cmd, imp, opts, path, status)
		if errors.Is(err, errRejected) {
			rejected++
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if rejected > 0 {
		return fmt.Errorf("%d of %d statement(s): %w", rejected, len(paths), errRejected)
	}
	return nil
}

func extractFile(cmd *cobra.Command, imp *service.Importer, opts *extractOptions, path string, status io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(status, "Processing: %s\n", path)
	result, err := imp.ImportFile(cmd.Context(), path, f, opts.req)
	if err != nil {
		return err
	}
	res := result.Result
	printSummary(status, result)

	if !res.Persistable() && !opts.force {
		fmt.Fprintln(status, "  Rejected: nothing written (use --force to write anyway).")
		return errRejected
	}

	if opts.output == "-" {
		return writeResult(cmd.OutOrStdout(), opts, res)
	}

	outPath := opts.output
	if outPath == "" {
		outPath = strings.TrimSuffix(path, filepath.Ext(path)) + "." + opts.format
	}
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", outPath, err)
	}
	if err := writeResult(out, opts, res); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(status, "  Output: %s\n", outPath)
	return nil
}

func writeResult(out io.Writer, opts *extractOptions, res *models.ExtractionResult) error {
	switch opts.format {
	case "ofx":
		return (&writer.OFXWriter{AccountID: opts.account}).Write(out, res)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return (&writer.CSVWriter{IncludeHeader: opts.header}).Write(out, res)
	}
}

func printSummary(out io.Writer, imp *service.Import) {
	res := imp.Result
	abonos, cargos := models.Totals(res.Movements)

	fmt.Fprintf(out, "  Source: %s (%d page(s))\n", imp.Source, imp.Pages)
	fmt.Fprintf(out, "  Institution: %s\n", parser.BankName(res.Bank))
	fmt.Fprintf(out, "  Period: %s\n", res.Period)
	fmt.Fprintf(out, "  Movements: %d (abonos %s, cargos %s)\n", len(res.Movements), abonos.StringFixed(2), cargos.StringFixed(2))
	fmt.Fprintf(out, "  Verification: %s\n", res.Verdict.Status)
	for _, msg := range res.Verdict.Messages {
		fmt.Fprintf(out, "    - %s\n", msg)
	}
	if res.FallbackUsed {
		fmt.Fprintln(out, "  Warning: no movements found, placeholder rows written for review.")
		fmt.Fprintln(out, "  Try specifying the institution with --bank if auto-detection was used.")
	}
	fmt.Fprintf(out, "  Status: %s\n", res.Status)
}

func bankChoices() string {
	banks := parser.SupportedBanks()
	names := make([]string, len(banks))
	for i, b := range banks {
		names[i] = string(b)
	}
	return strings.Join(names, ", ")
}
