package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/scenario"
	"github.com/kilianp07/openbat/pkg/export"
)

var (
	scenarioPath string
	strict       bool
	asJSON       bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run one simulation and print the energy report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
			sc, err := loadScenario(cfg)
			if err != nil {
				return err
			}
			run := svc.Simulate(ctx, sc)
			if run.Err != nil {
				return run.Err
			}
			out := cmd.OutOrStdout()
			s := export.NewSummary(run.ID, run.Outcome)
			if asJSON {
				if err := export.WriteJSON(out, s); err != nil {
					return err
				}
			} else {
				printSummary(cmd, s)
			}
			for _, f := range run.Files {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", f)
			}
			if strict && run.Violations != nil {
				return run.Violations
			}
			return nil
		})
	},
}

func init() {
	simulateCmd.Flags().StringVarP(&scenarioPath, "scenario", "s", "", "scenario file used instead of the simulation section")
	simulateCmd.Flags().BoolVar(&strict, "strict", false, "fail when the expected bounds of the scenario are missed")
	simulateCmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(simulateCmd)
}

func loadScenario(cfg *config.Config) (*scenario.Scenario, error) {
	if scenarioPath != "" {
		return scenario.Load(scenarioPath)
	}
	sc, err := cfg.Simulation.Scenario()
	if err != nil {
		return nil, errors.Join(err, errors.New("set the simulation section or pass --scenario"))
	}
	return sc, nil
}

func printSummary(cmd *cobra.Command, s export.Summary) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "run\t%s\n", s.RunID)
	fmt.Fprintf(w, "system\t%s (%s)\n", s.System, s.Topology)
	fmt.Fprintf(w, "steps\t%d x %gs\n", s.Steps, s.StepSeconds)
	fmt.Fprintf(w, "final soc\t%.3f\n", s.FinalSOC)
	fmt.Fprintf(w, "self sufficiency\t%.3f\n", s.SelfSufficiency)
	fmt.Fprintln(w, "\t")
	fmt.Fprintln(w, "category\tMWh")
	for _, e := range s.Report {
		fmt.Fprintf(w, "%s\t%.6f\n", e.Category, e.MWh)
	}
	_ = w.Flush()
}
