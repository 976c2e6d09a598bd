// Package cmd provides CLI commands for gymctl.
package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rryowa/gymsession/internal/util"
)

var (
	cfg        *util.ClientConfig
	log        *zap.SugaredLogger
	baseURL    string
	backend    string
	logLevel   string
	metricsOut string
)

var rootCmd = &cobra.Command{
	Use:   "gymctl",
	Short: "Command line client for the gym management API",
	Long: `gymctl talks to the gym management API with a persisted session.

Access tokens are attached to every request and renewed transparently with
the stored refresh token when the API answers 401.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = util.NewClientConfig()
		if cmd.Flags().Changed("base-url") {
			cfg.BaseURL = baseURL
		}
		if cmd.Flags().Changed("backend") {
			cfg.SessionBackend = backend
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		log = util.NewZapLoggerWithLevel(cfg.LogLevel)
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"API base URL (default: API_BASE_URL env var or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "",
		"session backend: memory, file, redis, postgres (default: SESSION_BACKEND env var or file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsOut, "metrics-out", "",
		"write client metrics in text format to this file on exit")
}
