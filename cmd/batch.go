package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/scenario"
)

var batchCmd = &cobra.Command{
	Use:   "batch [scenario files...]",
	Short: "Run several scenarios concurrently",
	Long:  "Runs the given scenario files, or simulation.scenarios from the configuration, with simulation.workers runs in parallel.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
			paths := args
			if len(paths) == 0 {
				paths = cfg.Simulation.Scenarios
			}
			if len(paths) == 0 {
				return fmt.Errorf("no scenarios given")
			}
			scenarios := make([]*scenario.Scenario, 0, len(paths))
			for _, p := range paths {
				sc, err := scenario.Load(p)
				if err != nil {
					return err
				}
				scenarios = append(scenarios, sc)
			}

			runs := svc.Batch(ctx, scenarios)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "scenario\trun\tfinal soc\tself sufficiency\tstatus")
			failed := 0
			for _, r := range runs {
				status := "ok"
				switch {
				case r.Err != nil:
					status = r.Err.Error()
					failed++
				case r.Violations != nil:
					status = r.Violations.Error()
					if strict {
						failed++
					}
				}
				if r.Outcome == nil {
					fmt.Fprintf(w, "%s\t%s\t-\t-\t%s\n", r.Scenario, r.ID, status)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%s\n", r.Scenario, r.ID, r.Outcome.FinalSOC(), r.Outcome.SelfSufficiency(), status)
			}
			_ = w.Flush()
			if failed > 0 {
				return fmt.Errorf("%d of %d runs failed", failed, len(runs))
			}
			return nil
		})
	},
}

func init() {
	batchCmd.Flags().BoolVar(&strict, "strict", false, "count missed expected bounds as failures")
	rootCmd.AddCommand(batchCmd)
}
