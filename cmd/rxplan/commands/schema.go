package commands

import (
	"encoding/json"
	"fmt"

	"rxplan/internal/pipeline"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of the pipeline tuning file",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := jsonschema.For[pipeline.Config](nil)
		if err != nil {
			return fmt.Errorf("failed to derive pipeline config schema: %w", err)
		}
		schema.Title = "rxplan pipeline configuration"

		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}
