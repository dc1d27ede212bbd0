package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one collections cycle now and print its summary as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer e.Close()

		// The cycle is not interrupted by signals once started.
		summary, err := e.scheduler.Trigger(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
