package config

import (
	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// Default configuration values.
const (
	DefaultStrategy  = "by-rows"
	DefaultThreshold = 1000
	DefaultStateFile = ".leapupsert/state.db"
	DefaultOutput    = "auto" // TTY=text, otherwise markdown
)

// defaultPorts by target type.
var defaultPorts = map[string]int{
	"mysql":     3306,
	"postgres":  5432,
	"sqlserver": 1433,
	"oracle":    1521,
}

// ApplyUpsertDefaults fills unset upsert options.
func ApplyUpsertDefaults(u *UpsertConfig) {
	if u == nil {
		return
	}
	if u.Strategy == "" {
		u.Strategy = DefaultStrategy
	}
	if u.Threshold == 0 {
		if s, ok := batch.ParseStrategy(u.Strategy); ok && s == batch.ByRows {
			u.Threshold = DefaultThreshold
		}
	}
}

// ApplyTargetDefaults resolves type aliases ("postgresql", "mssql") and
// applies the default schema and port of the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}
	t.Type = dialect.Canonical(t.Type)

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}
	if t.Port == 0 && t.Host != "" {
		t.Port = defaultPorts[t.Type]
	}
}
