package commands

import (
	"fmt"

	"rxplan/internal/fills"
	"rxplan/internal/source"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var importSource string

var importCmd = &cobra.Command{
	Use:   "import <history.csv>...",
	Short: "Append prescription history CSV files to the local fill history",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceID := importSource
		if sourceID == "" {
			sourceID = cfg.SourceID
		}

		store := fills.NewStore()
		if err := store.Load(cfg.HistoryDir, sourceID); err != nil {
			return err
		}
		before := store.Count(sourceID)

		loader := source.NewLoader()
		for _, path := range args {
			records, skipped, err := loader.LoadHistory(path)
			if err != nil {
				return err
			}
			for _, d := range skipped {
				log.Warn().Str("file", path).Str("row", d.Entity).Msg(d.Message)
			}
			added := store.Append(sourceID, records)
			log.Info().Str("file", path).Int("rows", len(records)).Int("skipped", len(skipped)).Int("added", added).Msg("Imported prescription history")
		}

		if err := store.Save(cfg.HistoryDir, sourceID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new fills, %d total (latest %s)\n",
			sourceID, store.Count(sourceID)-before, store.Count(sourceID),
			store.LatestFillDate(sourceID).Format("2006-01-02"))
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "pharmacy or site the history belongs to (default RXPLAN_SOURCE_ID)")
}
