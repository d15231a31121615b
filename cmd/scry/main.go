// Command scry scans bonding-curve tokens for opportunity signals and serves
// them, with a prediction ledger, over HTTP.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"scry-scanner/internal/config"
)

var (
	configPath string
	cfg        config.Config
	logger     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scry",
	Short: "Bonding-curve token opportunity scanner",
	Long: `scry lists the newest bonding-curve tokens, scores each one on curve
position, momentum, liquidity and breakout signals, and enriches a selected
token on demand.

Configuration comes from an optional YAML file (--config or SCRY_CONFIG),
then SCRY_* environment variables and a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		logger = newLogger(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(c config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}
