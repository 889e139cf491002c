package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tapdeck/tapdeck/internal/capture"
	"github.com/tapdeck/tapdeck/internal/config"
	"github.com/tapdeck/tapdeck/internal/logging"
	"github.com/tapdeck/tapdeck/internal/stream"
)

var (
	flagBackend  string
	flagApps     []string
	flagFallback bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tapdeck",
	Short: "System-audio capture with per-application filtering",
	Long: `tapdeck records system audio through a native process tap, excluding
every application the user did not select. When the tap backend is
unavailable it can fall back to ScreenCaptureKit system audio or plain
device capture (unfiltered, with a warning).`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBackend, "backend", "", "capture backend: native-tap, screencapture, device (default: from config)")
	rootCmd.PersistentFlags().StringSliceVar(&flagApps, "app", nil, "application to keep in the capture (repeatable; empty = record everything)")
	rootCmd.PersistentFlags().BoolVar(&flagFallback, "fallback-unfiltered", false, "on filter failure, record everything instead of failing (warns)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (default: from config)")

	rootCmd.AddCommand(appsCmd, devicesCmd, recordCmd, versionCmd)
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagBackend != "" {
		cfg.Backend = flagBackend
	}
	if len(flagApps) > 0 {
		cfg.FilteredApps = flagApps
	}
	if flagFallback {
		cfg.FallbackUnfiltered = true
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.NewWithLevel(cfg.LogLevel)
}

func newManager(cfg *config.Config, log zerolog.Logger) *stream.Manager {
	return stream.NewManager(stream.Config{
		Factory:        capture.New(capture.Config{SampleRate: cfg.Audio.SampleRate}),
		AcquireTimeout: time.Duration(cfg.AcquireTimeoutMS) * time.Millisecond,
		Logger:         log,
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tapdeck %s (%s)\n", Version, Commit)
	},
}
