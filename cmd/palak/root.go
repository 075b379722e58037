package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/palak/internal/config"
	"github.com/ayusman/palak/internal/logger"
	"github.com/ayusman/palak/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

var (
	// cfg is the runtime configuration shared by subcommands. It is built
	// from defaults, the config file, PALAK_* variables and flags, in that
	// order.
	cfg config.Config

	configFile string
	logLevel   string
	logFormat  string
	dataDir    string
	hold       string
	tolerance  float64
)

var rootCmd = &cobra.Command{
	Use:           "palak",
	Short:         "Per-eye blink detection and blink-triggered actions",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()

		c, err := loadConfigFile(config.Default())
		if err != nil {
			return err
		}
		if c, err = config.FromEnv(c); err != nil {
			return err
		}

		if flags.Changed("log-level") {
			c.LogLevel = logLevel
		}
		if flags.Changed("log-format") {
			c.LogFormat = logFormat
		}
		if flags.Changed("data-dir") {
			c.DataDir = dataDir
			if !flags.Changed("plugins") {
				c.PluginDir = filepath.Join(dataDir, "plugins")
			}
		}
		if flags.Changed("hold") {
			d, err := time.ParseDuration(hold)
			if err != nil {
				return fmt.Errorf("parse --hold: %w", err)
			}
			c.Blink.HoldDuration = d
		}
		if flags.Changed("tolerance") {
			c.Blink.Tolerance = tolerance
		}

		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger.Init(logger.Options{
			Level:   c.LogLevel,
			Format:  c.LogFormat,
			Service: "palak",
		})
		cfg = c
		return nil
	},
}

// Execute runs the root command with a context cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "palak:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default ~/.palak/config.yaml, or $PALAK_CONFIG)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "console", "log format (console or json)")
	pf.StringVar(&dataDir, "data-dir", "", "data directory (default ~/.palak)")
	pf.StringVar(&hold, "hold", "150ms", "how long a blink is reported after its last detection")
	pf.Float64Var(&tolerance, "tolerance", 0, "relative margin the middle segment must fall below the outer ones")
}

// loadConfigFile overlays the config file named by --config or
// PALAK_CONFIG on base. Without either, the default file is used when it
// exists.
func loadConfigFile(base config.Config) (config.Config, error) {
	path := configFile
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	if path == "" {
		return config.LoadDefaultFile(base)
	}
	return config.LoadFile(base, path)
}

// openStore opens the database in the configured data directory, creating
// the directory if needed.
func openStore() (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
