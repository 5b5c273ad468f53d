package commands

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	schemaCmd.SetOut(&out)
	defer schemaCmd.SetOut(nil)

	if err := schemaCmd.RunE(schemaCmd, nil); err != nil {
		t.Fatalf("schema command error: %v", err)
	}

	var schema struct {
		Title      string                     `json:"title"`
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(out.Bytes(), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema.Type != "object" {
		t.Errorf("expected an object schema, got %q", schema.Type)
	}
	for _, section := range []string{"profiling", "signals", "forecasting", "optimization"} {
		if _, ok := schema.Properties[section]; !ok {
			t.Errorf("expected a %s section in the schema", section)
		}
	}
}
