package commands

import (
	"os"
	"path/filepath"

	"rxplan/internal/diag"
	"rxplan/internal/metrics"
	"rxplan/internal/pipeline"
	"rxplan/internal/visuals"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runFlags inputFlags

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline and print order recommendations as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := runFlags.analysisDate()
		if err != nil {
			return err
		}
		history, loadDiags, err := runFlags.fills()
		if err != nil {
			return err
		}
		readings, err := runFlags.signalReadings()
		if err != nil {
			return err
		}
		positions, stockDiags, err := runFlags.inventory(asOf)
		if err != nil {
			return err
		}

		var opts []pipeline.Option
		var rec *metrics.Recorder
		if cfg.EnableMetrics {
			rec = metrics.NewRecorder()
			opts = append(opts, pipeline.WithMetrics(rec))
		}

		res, err := pipeline.Run(cmd.Context(), pipeline.Input{
			AsOf:      asOf,
			Fills:     history,
			Readings:  readings,
			Inventory: positions,
		}, pipelineCfg, opts...)
		if err != nil {
			return err
		}

		// Loading and lot aggregation happen before the run, so their findings are folded in here
		if len(loadDiags)+len(stockDiags) > 0 {
			res.Diagnostics = append(res.Diagnostics, loadDiags...)
			res.Diagnostics = append(res.Diagnostics, stockDiags...)
			diag.Sort(res.Diagnostics)
		}

		if cfg.EnableMermaidCharts {
			path := filepath.Join(cfg.OutputDir, "charts.md")
			report := visuals.Report(res.Signals.Multipliers, res.Forecast, res.Optimization)
			if err := os.WriteFile(path, []byte(report), 0644); err != nil {
				log.Warn().Err(err).Msg("Charts not written")
			} else {
				log.Info().Str("path", path).Msg("Chart report written")
			}
		}

		if rec != nil {
			if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
				log.Warn().Err(err).Msg("Metrics not written")
			}
		}

		counts := diag.CountByKind(res.Diagnostics)
		log.Info().
			Str("run_id", res.RunID).
			Int("orders", res.Optimization.Summary.TotalRecommended).
			Str("order_cost", res.Optimization.Summary.TotalOrderCost.StringFixed(2)).
			Int("validation", counts[diag.Validation]).
			Int("insufficient_data", counts[diag.InsufficientData]).
			Int("computation_guard", counts[diag.ComputationGuard]).
			Msg("Run finished")

		return runFlags.write(res)
	},
}

func init() {
	addInputFlags(runCmd, &runFlags)
}

func addInputFlags(cmd *cobra.Command, f *inputFlags) {
	cmd.Flags().StringVar(&f.asOf, "as-of", "", "analysis date YYYY-MM-DD (default today, UTC)")
	cmd.Flags().StringVar(&f.history, "history", "", "prescription history CSV (default: imported history)")
	cmd.Flags().StringVar(&f.since, "since", "", "only use imported fills on or after this date YYYY-MM-DD")
	cmd.Flags().StringVar(&f.stock, "stock", "", "lot-level current stock CSV")
	cmd.Flags().StringVar(&f.catalog, "catalog", "", "medication catalog CSV")
	cmd.Flags().StringVar(&f.readings, "signals", "", "external signal readings JSON")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write JSON to this file instead of stdout")
}
