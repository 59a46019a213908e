package main

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"plantledger/internal/config"
	"plantledger/internal/core"
	"plantledger/internal/logger"
	"plantledger/internal/query"
)

// app holds what every subcommand needs once configuration is loaded.
type app struct {
	cfg      config.Config
	log      logger.Logger
	ledger   *core.Ledger
	reporter *query.Reporter
	stdout   io.Writer
	stderr   io.Writer
}

func newRootCommand(a *app) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "plantledger",
		Short:         "Seed bank and cultivation ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./plantledger.yaml)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.open(cmd, configPath)
	}

	root.AddCommand(
		availableCommand(a),
		statsCommand(a),
		lineageCommand(a),
		searchCommand(a),
		exportCommand(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.NewSlogLogger(a.stderr, logger.ParseLevel(cfg.Logging.Level), logger.Format(cfg.Logging.Format))

	// A fresh registry keeps repeated runs in one process from colliding.
	ledger, err := core.OpenLedger(cmd.Context(), cfg, a.log, prometheus.NewRegistry())
	if err != nil {
		a.log.Error("failed to open ledger", logger.Error(err))
		return err
	}
	a.ledger = ledger
	a.reporter = query.NewReporter(ledger.Store(), cfg.Ledger, query.WithLogger(a.log))
	return nil
}

func (a *app) close() error {
	if a.reporter != nil {
		a.reporter.Flush()
	}
	if a.ledger == nil {
		return nil
	}
	err := a.ledger.Close()
	a.ledger = nil
	return err
}
