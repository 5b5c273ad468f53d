package mcp

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

const (
	toolRunPipeline    = "run_pipeline"
	toolProfileRefills = "profile_refills"
	toolDueRefills     = "list_due_refills"
	toolDeriveSignals  = "derive_signals"
)

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	AsOf     string `json:"as_of,omitempty"`
	History  string `json:"history,omitempty"`
	Stock    string `json:"stock,omitempty"`
	Catalog  string `json:"catalog,omitempty"`
	Readings string `json:"signals,omitempty"`
	Days     int    `json:"days,omitempty"`
}

type runArgs struct {
	AsOf     string `json:"as_of,omitempty" jsonschema:"analysis date YYYY-MM-DD; defaults to today (UTC)"`
	History  string `json:"history,omitempty" jsonschema:"path of the prescription history CSV"`
	Stock    string `json:"stock,omitempty" jsonschema:"path of the lot-level current stock CSV"`
	Catalog  string `json:"catalog,omitempty" jsonschema:"path of the medication catalog CSV"`
	Readings string `json:"signals,omitempty" jsonschema:"path of the external signal readings JSON"`
}

type profileArgs struct {
	AsOf    string `json:"as_of,omitempty" jsonschema:"analysis date YYYY-MM-DD; defaults to today (UTC)"`
	History string `json:"history,omitempty" jsonschema:"path of the prescription history CSV"`
}

type dueArgs struct {
	AsOf    string `json:"as_of,omitempty" jsonschema:"analysis date YYYY-MM-DD; defaults to today (UTC)"`
	History string `json:"history,omitempty" jsonschema:"path of the prescription history CSV"`
	Days    int    `json:"days,omitempty" jsonschema:"look-ahead in days; defaults to the configured due-soon window"`
}

type signalsArgs struct {
	AsOf     string `json:"as_of,omitempty" jsonschema:"analysis date YYYY-MM-DD; defaults to today (UTC)"`
	Readings string `json:"signals,omitempty" jsonschema:"path of the external signal readings JSON"`
}

type toolDef struct {
	name        string
	description string
	schema      func(*jsonschema.ForOptions) (*jsonschema.Schema, error)
}

var toolDefs = []toolDef{
	{
		name:        toolRunPipeline,
		description: "Run the full refill-to-purchase-order pipeline: profiles, signals, daily demand forecast and prioritized order recommendations.",
		schema:      jsonschema.For[runArgs],
	},
	{
		name:        toolProfileRefills,
		description: "Profile patient refill behaviour (consistency, class, next expected refill, lapse risk) from prescription history.",
		schema:      jsonschema.For[profileArgs],
	},
	{
		name:        toolDueRefills,
		description: "List patients whose next refill is expected within the given number of days.",
		schema:      jsonschema.For[dueArgs],
	},
	{
		name:        toolDeriveSignals,
		description: "Derive per-category demand multipliers and alerts from flu activity, weather, events and shortages.",
		schema:      jsonschema.For[signalsArgs],
	},
}

func (s *Server) listTools() (interface{}, *RPCError) {
	tools := make([]interface{}, 0, len(toolDefs))
	for _, def := range toolDefs {
		schema, err := def.schema(nil)
		if err != nil {
			return nil, &RPCError{Code: codeToolFailed, Message: fmt.Sprintf("schema of %s: %v", def.name, err)}
		}
		tools = append(tools, map[string]interface{}{
			"name":        def.name,
			"description": def.description,
			"inputSchema": schema,
		})
	}
	return map[string]interface{}{"tools": tools}, nil
}
