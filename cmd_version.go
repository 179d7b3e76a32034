package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ledger/internal/extractor"
	"github.com/insightdelivered/statement-ledger/internal/parser"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and supported institutions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "statement-ledger v%s\n", version)
			fmt.Fprintln(out, "Institutions:")
			for _, bank := range parser.SupportedBanks() {
				fmt.Fprintf(out, "  %-10s %s\n", bank, parser.BankName(bank))
			}
			fmt.Fprintf(out, "OCR available: %t\n", extractor.IsOCRAvailable())
			return nil
		},
	}
}
