package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "openbat",
	Short:         "PV-battery system simulator and controller",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file, K_ environment variables override it")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads the configuration. A missing default file falls back to
// environment variables only.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgPath
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// withService runs fn with a service built from the configuration and a
// context cancelled on SIGINT or SIGTERM.
func withService(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	svc.ServeMetrics(ctx)
	return fn(ctx, cfg, svc)
}
