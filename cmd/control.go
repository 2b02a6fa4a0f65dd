package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Send the residual power of the configured simulation to the device",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
			sum, err := svc.Control(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s: %d steps, %d write and %d read failures, last soc %.3f\n",
				sum.Session, sum.Steps, sum.WriteFailures, sum.ReadFailures, sum.LastSOC)
			return nil
		})
	},
}

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Discharge the device until the battery is empty",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
			soc, err := svc.Drain(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "battery empty, soc %.3f\n", soc)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(controlCmd, drainCmd)
}
