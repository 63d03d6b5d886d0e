package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"glow-capture/internal/logger"

	"github.com/spf13/cobra"
)

// Version is the application version.
const Version = "1.0.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:     "glowscan",
	Short:   "Offline capture-quality checks for selfie stills",
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// stdout carries the JSON result
		logger.SetOutput(os.Stderr)
		logger.UseText()
		logger.SetLevel(logLevel)
	},
}

// Execute runs the root command until it finishes or a signal arrives
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
}
