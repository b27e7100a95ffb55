package cli

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingest and reconcile schedulers with the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Run(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve only the HTTP read surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingest pass over both providers and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunIngest(cmd.Context())
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconcile pass (metrics, baselines, divergence, detection) and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RunReconcile(cmd.Context())
	},
}
