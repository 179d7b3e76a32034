package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-ledger/internal/config"
	"github.com/insightdelivered/statement-ledger/internal/logger"
	"github.com/insightdelivered/statement-ledger/internal/service"
)

var (
	version = "2.0.0"

	cfgFile string
	appCfg  *config.AppConfig
	log     = zerolog.Nop()
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "statement-ledger",
		Short: "Mexican bank statement to ledger movements",
		Long: `statement-ledger reads Mexican bank statements (PDF, scanned PDF, XLSX or
plain text), extracts every CARGO and ABONO, and checks that the statement
belongs to the expected RFC and fiscal period.

Supported institutions: BBVA, Banorte, Santander, Citibanamex and a generic
layout for everything else.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initConfig,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./statement-ledger.yaml or $HOME/.config/statement-ledger/statement-ledger.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	root.PersistentFlags().String("profiles", "", "YAML file with institution profile overrides")

	_ = viper.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", root.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("profiles.path", root.PersistentFlags().Lookup("profiles"))

	root.AddCommand(extractCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	cfg, err := config.Load(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	appCfg = cfg

	log = logger.NewWithOptions(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Out:    cmd.ErrOrStderr(),
	})
	return nil
}

// newImporter builds the importer from the loaded configuration.
func newImporter() (*service.Importer, error) {
	profiles, err := config.LoadProfiles(appCfg.Profiles.Path)
	if err != nil {
		return nil, err
	}
	imp := service.NewImporter(profiles, appCfg.OCR.Enabled, appCfg.OCR.Language, log)
	imp.Debug = appCfg.Extract.Debug
	return imp, nil
}
