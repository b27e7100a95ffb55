package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var showSignalsLimit int

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Inspect stored signals, divergence verdicts and baselines",
}

var showSignalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Display recent signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showSignalsLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().ShowSignals(cmd.Context(), showSignalsLimit)
	},
}

var showDivergenceCmd = &cobra.Command{
	Use:   "divergence <object-id>",
	Short: "Display cross-provider verdicts for one object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID, err := parseObjectID(args[0])
		if err != nil {
			return err
		}
		return getApp().ShowDivergence(cmd.Context(), objectID)
	},
}

var showBaselinesCmd = &cobra.Command{
	Use:   "baselines <object-id>",
	Short: "Display the latest baselines for one object",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		objectID, err := parseObjectID(args[0])
		if err != nil {
			return err
		}
		return getApp().ShowBaselines(cmd.Context(), objectID)
	},
}

func parseObjectID(raw string) (int, error) {
	objectID, err := strconv.Atoi(raw)
	if err != nil || objectID <= 0 {
		return 0, fmt.Errorf("invalid object id %q: must be a positive NORAD catalog number", raw)
	}
	return objectID, nil
}

func init() {
	showSignalsCmd.Flags().IntVar(&showSignalsLimit, "limit", 20, "Number of signals to display")

	showCmd.AddCommand(showSignalsCmd)
	showCmd.AddCommand(showDivergenceCmd)
	showCmd.AddCommand(showBaselinesCmd)
}
