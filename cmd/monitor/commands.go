package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"sui-invariant-monitor/internal/config"
	"sui-invariant-monitor/internal/monitor"
	"sui-invariant-monitor/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "monitor",
		Short:         "Watch Sui DeFi protocol state and check safety invariants",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newEvaluateCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the polling monitor and its HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.LogLevel != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}

			logger := monitor.BuildLogger(cfg)
			m, err := monitor.New(cfg, logger)
			if err != nil {
				logger.Error("monitor initialization failed", "error", err)
				return err
			}
			if err := m.Run(context.Background()); err != nil {
				logger.Error("monitor runtime failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(version.Get(cfg))
		},
	}
}
