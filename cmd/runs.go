package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/app"
	"github.com/kilianp07/openbat/config"
	"github.com/kilianp07/openbat/core/results"
)

var runsOpts struct {
	system string
	since  time.Duration
	limit  int
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored simulation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd, func(ctx context.Context, cfg *config.Config, svc *app.Service) error {
			q := results.Query{System: runsOpts.system, Limit: runsOpts.limit}
			if runsOpts.since > 0 {
				q.Start = time.Now().Add(-runsOpts.since)
			}
			recs, err := svc.Runs(ctx, q)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "time\trun\tsystem\tsteps\tfinal soc\tself sufficiency\textra grid MWh")
			for _, r := range recs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.6f\n",
					r.Time.Format(time.RFC3339), r.RunID, r.System, r.Steps, r.FinalSOC, r.SelfSufficiency, r.ExtraGridMWh())
			}
			return w.Flush()
		})
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsOpts.system, "system", "", "only runs of this system")
	runsCmd.Flags().DurationVar(&runsOpts.since, "since", 0, "only runs newer than this")
	runsCmd.Flags().IntVar(&runsOpts.limit, "limit", 20, "maximum number of runs")
	rootCmd.AddCommand(runsCmd)
}
