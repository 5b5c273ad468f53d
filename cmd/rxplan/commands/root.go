package commands

import (
	"fmt"

	"rxplan/internal/config"
	"rxplan/internal/logging"
	"rxplan/internal/pipeline"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose    bool
	configPath string

	cfg         *config.AppConfig
	pipelineCfg pipeline.Config
)

var rootCmd = &cobra.Command{
	Use:   "rxplan",
	Short: "rxplan turns pharmacy refill history into purchase-order recommendations",
	Long: `rxplan profiles patient refill behaviour, derives demand multipliers from external
signals (flu activity, weather, events, shortages), forecasts daily medication demand and
recommends what to order, how much and how urgently.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(logging.Options{Verbose: verbose}); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		path := configPath
		if path == "" {
			path = cfg.PipelineConfigPath
		}
		pipelineCfg, err = config.LoadPipeline(path)
		if err != nil {
			return err
		}

		log.Debug().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Str("dataPath", cfg.DataPath).
			Msg("rxplan starting")
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "pipeline tuning file (YAML, TOML or JSON); overrides RXPLAN_PIPELINE_CONFIG")

	rootCmd.AddCommand(runCmd, profileCmd, signalsCmd, importCmd, schemaCmd, serveCmd)
}
