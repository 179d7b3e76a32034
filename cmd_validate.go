package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insightdelivered/statement-ledger/internal/service"
)

func validateCmd() *cobra.Command {
	var req service.Request
	cmd := &cobra.Command{
		Use:   "validate [flags] <statement>",
		Short: "Check a statement against the expected RFC and period",
		Long: `Check that a statement belongs to the expected taxpayer and fiscal period
without writing any movements. Exits non-zero when the statement clearly
belongs to another month.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := newImporter()
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := imp.ImportFile(cmd.Context(), args[0], f, req)
			if err != nil {
				return err
			}

			v := result.Result.Verdict
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status: %s\n", v.Status)
			fmt.Fprintf(out, "RFC matched: %t\n", v.RFCMatched)
			fmt.Fprintf(out, "Period matched: %t (expected %s)\n", v.PeriodMatched, v.ExpectedMonth)
			fmt.Fprintf(out, "Detected months: %v\n", v.DetectedMonths)
			for _, msg := range v.Messages {
				fmt.Fprintf(out, "  - %s\n", msg)
			}
			if v.Blocking {
				return errRejected
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.RFC, "rfc", "", "expected taxpayer RFC")
	f.IntVar(&req.Year, "year", 0, "expected statement year")
	f.IntVar(&req.Month, "month", 0, "expected statement month (1-12)")
	f.StringVar(&req.Bank, "bank", "", "institution (auto-detected if omitted)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
