package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the alert and replenishment sweeps once, then send notifications.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.sweeper.RunOnce(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding sweep report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
