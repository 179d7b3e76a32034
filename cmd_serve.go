package main

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-ledger/internal/api"
	"github.com/insightdelivered/statement-ledger/internal/metrics"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the extraction API:

  POST /api/extract   statement upload (file) or text, with rfc, year, month
  POST /api/validate  period and RFC check only
  GET  /api/health    liveness
  GET  /metrics       Prometheus metrics`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			imp, err := newImporter()
			if err != nil {
				return err
			}
			metrics.Init()

			app := api.NewApp(&api.Handler{Importer: imp, Version: version, Logger: log}, appCfg.Server.BodyLimit)

			go func() {
				<-cmd.Context().Done()
				log.Info().Msg("shutting down")
				if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
					log.Error().Err(err).Msg("shutdown failed")
				}
			}()

			log.Info().Str("addr", appCfg.Server.Addr).Str("version", version).Msg("listening")
			return app.Listen(appCfg.Server.Addr)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
