package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"orbitwatch/internal/domain"
	"orbitwatch/internal/signals"
)

var (
	purgeFrom   string
	purgeTo     string
	purgeTypes  []string
	purgeReason string
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Auditable maintenance operations",
}

var purgeBackfillCmd = &cobra.Command{
	Use:   "purge-backfill",
	Short: "Purge signals in a window and re-detect it with current logic",
	Long: `Removes the signals detected inside the window (optionally limited to
specific anomaly types) and re-runs detection over the stored telemetry
with the current logic. The run is recorded under a deterministic run id;
repeating the same parameters after completion is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if purgeFrom == "" || purgeTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}
		if purgeReason == "" {
			return fmt.Errorf("--reason must be provided for the audit trail")
		}

		from, err := time.Parse(time.RFC3339, purgeFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}
		to, err := time.Parse(time.RFC3339, purgeTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}
		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		types := make([]domain.AnomalyType, 0, len(purgeTypes))
		for _, raw := range purgeTypes {
			t := domain.AnomalyType(raw)
			if !t.IsValid() {
				return fmt.Errorf("unknown anomaly type %q", raw)
			}
			types = append(types, t)
		}

		return getApp().PurgeBackfill(cmd.Context(), signals.PurgeBackfillOptions{
			From:         from,
			To:           to,
			AnomalyTypes: types,
			Reason:       purgeReason,
		})
	},
}

func init() {
	purgeBackfillCmd.Flags().StringVar(&purgeFrom, "from", "", "Window start (RFC3339, inclusive)")
	purgeBackfillCmd.Flags().StringVar(&purgeTo, "to", "", "Window end (RFC3339, exclusive)")
	purgeBackfillCmd.Flags().StringSliceVar(&purgeTypes, "types", nil, "Anomaly types to purge (default: all)")
	purgeBackfillCmd.Flags().StringVar(&purgeReason, "reason", "", "Why this window is being corrected")

	maintenanceCmd.AddCommand(purgeBackfillCmd)
}
