package commands

import (
	"rxplan/internal/signals"

	"github.com/spf13/cobra"
)

var signalsFlags inputFlags

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Derive per-category demand multipliers and alerts from external signals",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := signalsFlags.analysisDate()
		if err != nil {
			return err
		}
		readings, err := signalsFlags.signalReadings()
		if err != nil {
			return err
		}

		res, err := signals.Derive(readings, asOf, pipelineCfg.Signals)
		if err != nil {
			return err
		}
		return signalsFlags.write(res)
	},
}

func init() {
	signalsCmd.Flags().StringVar(&signalsFlags.asOf, "as-of", "", "analysis date YYYY-MM-DD (default today, UTC)")
	signalsCmd.Flags().StringVar(&signalsFlags.readings, "signals", "", "external signal readings JSON")
	signalsCmd.Flags().StringVarP(&signalsFlags.out, "out", "o", "", "write JSON to this file instead of stdout")
}
