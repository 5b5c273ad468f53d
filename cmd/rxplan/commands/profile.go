package commands

import (
	"rxplan/internal/diag"
	"rxplan/internal/profiling"

	"github.com/spf13/cobra"
)

var (
	profileFlags  inputFlags
	dueWithinDays int
	byMedication  bool
)

// profileReport is the output of the profile command.
type profileReport struct {
	profiling.Result
	DueWithin    []profiling.RefillProfile     `json:"due_within,omitempty"`
	ByMedication []profiling.MedicationSummary `json:"by_medication,omitempty"`
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile patient refill behaviour and predict the next refill dates",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := profileFlags.analysisDate()
		if err != nil {
			return err
		}
		history, loadDiags, err := profileFlags.fills()
		if err != nil {
			return err
		}

		res, err := profiling.Profile(cmd.Context(), history, asOf, pipelineCfg.Profiling)
		if err != nil {
			return err
		}
		if len(loadDiags) > 0 {
			res.Diagnostics = append(res.Diagnostics, loadDiags...)
			diag.Sort(res.Diagnostics)
		}

		report := profileReport{Result: res}
		if dueWithinDays > 0 {
			report.DueWithin = profiling.DueWithin(res.Profiles, dueWithinDays)
		}
		if byMedication {
			report.ByMedication = profiling.SummarizeByMedication(res.Profiles, pipelineCfg.Profiling)
		}
		return profileFlags.write(report)
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileFlags.asOf, "as-of", "", "analysis date YYYY-MM-DD (default today, UTC)")
	profileCmd.Flags().StringVar(&profileFlags.history, "history", "", "prescription history CSV (default: imported history)")
	profileCmd.Flags().StringVar(&profileFlags.since, "since", "", "only use imported fills on or after this date YYYY-MM-DD")
	profileCmd.Flags().StringVarP(&profileFlags.out, "out", "o", "", "write JSON to this file instead of stdout")
	profileCmd.Flags().IntVar(&dueWithinDays, "due-within", 0, "also list patients due for a refill within this many days")
	profileCmd.Flags().BoolVar(&byMedication, "by-medication", false, "also summarize profiles per medication")
}
