package diag

import (
	"errors"
	"fmt"
	"sort"
)

// Kind classifies a non-fatal problem surfaced alongside a stage result.
type Kind string

const (
	// Validation marks a malformed input row that was excluded from its group.
	Validation Kind = "validation"
	// InsufficientData marks an entity that fell back to a degraded estimate.
	InsufficientData Kind = "insufficient_data"
	// ComputationGuard marks a divide-by-zero style condition resolved by a defined fallback.
	ComputationGuard Kind = "computation_guard"
)

// Diagnostic is a row- or entity-level problem that never aborts a run.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Kind    Kind   `json:"kind"`
	Entity  string `json:"entity,omitempty"`
	Message string `json:"message"`
}

// ErrInvalidConfig is matched by every ConfigError.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports a configuration value that makes a run impossible.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Invalid is shorthand for building a ConfigError.
func Invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Sort orders diagnostics deterministically (stage, kind, entity, message).
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		return a.Message < b.Message
	})
}

// CountByKind returns a histogram of diagnostics per kind.
func CountByKind(ds []Diagnostic) map[Kind]int {
	counts := make(map[Kind]int)
	for _, d := range ds {
		counts[d.Kind]++
	}
	return counts
}
