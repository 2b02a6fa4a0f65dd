package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/kilianp07/openbat/core/params"
)

var fitOpts struct {
	parameters string
	system     string
	reference  string
	step       float64
}

var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Print the simulation parameters fitted from a parameter file",
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, _, err := params.Load(fitOpts.parameters, fitOpts.system, fitOpts.reference, fitOpts.step)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Topology string `json:"topology"`
			System   any    `json:"system"`
		}{sys.Topology().String(), sys})
	},
}

func init() {
	f := fitCmd.Flags()
	f.StringVarP(&fitOpts.parameters, "parameters", "p", "", "parameter file")
	f.StringVar(&fitOpts.system, "system", "", "system id")
	f.StringVar(&fitOpts.reference, "reference", "", "reference case")
	f.Float64Var(&fitOpts.step, "step", 1, "simulation step in s, sets the dead time in steps")
	_ = fitCmd.MarkFlagRequired("parameters")
	_ = fitCmd.MarkFlagRequired("system")
	rootCmd.AddCommand(fitCmd)
}
