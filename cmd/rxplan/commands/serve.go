package commands

import (
	"os"

	"rxplan/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveFlags inputFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := mcp.NewServer(pipelineCfg, mcp.Defaults{
			History:  serveFlags.history,
			Stock:    serveFlags.stock,
			Catalog:  serveFlags.catalog,
			Readings: serveFlags.readings,
		}, Version)

		log.Info().Msg("MCP server starting stdio loop")
		return server.Serve(os.Stdin, os.Stdout)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.history, "history", "", "default prescription history CSV for tool calls")
	serveCmd.Flags().StringVar(&serveFlags.stock, "stock", "", "default lot-level current stock CSV")
	serveCmd.Flags().StringVar(&serveFlags.catalog, "catalog", "", "default medication catalog CSV")
	serveCmd.Flags().StringVar(&serveFlags.readings, "signals", "", "default external signal readings JSON")
}
