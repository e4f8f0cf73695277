// Package config provides the configuration types shared by the CLI and
// the upsert engine wiring: targets, upsert options and temporal formats.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/leapupsert/pkg/adapter"
	"github.com/leapstack-labs/leapupsert/pkg/batch"
	"github.com/leapstack-labs/leapupsert/pkg/coerce"
	"github.com/leapstack-labs/leapupsert/pkg/core"
	"github.com/leapstack-labs/leapupsert/pkg/dialect"
)

// TargetConfig is the database target configuration.
type TargetConfig = core.TargetConfig

// UpsertConfig holds batching and coercion options.
type UpsertConfig struct {
	// Strategy is "by-rows" or "by-profile".
	Strategy string `koanf:"strategy"`

	// Threshold is the by-rows window size.
	Threshold int `koanf:"threshold"`

	Formats FormatsConfig `koanf:"formats"`
}

// FormatsConfig holds temporal patterns as yyyy-MM-dd style patterns or Go
// layouts, and the zone used for TIMESTAMP values without an offset.
type FormatsConfig struct {
	Date        string `koanf:"date"`
	Time        string `koanf:"time"`
	Timestamp   string `koanf:"timestamp"`
	TimestampTZ string `koanf:"timestamp_tz"`
	Timezone    string `koanf:"timezone"`
}

// Coerce converts the configured patterns into coerce.Formats.
func (f FormatsConfig) Coerce() (coerce.Formats, error) {
	out := coerce.Formats{
		Date:        f.Date,
		Time:        f.Time,
		Timestamp:   f.Timestamp,
		TimestampTZ: f.TimestampTZ,
	}
	if f.Timezone != "" {
		loc, err := time.LoadLocation(f.Timezone)
		if err != nil {
			return coerce.Formats{}, fmt.Errorf("invalid timezone %q: %w", f.Timezone, err)
		}
		out.Location = loc
	}
	return out, nil
}

// ParsedStrategy returns the batch strategy named by Strategy.
func (u UpsertConfig) ParsedStrategy() (batch.Strategy, error) {
	s, ok := batch.ParseStrategy(u.Strategy)
	if !ok {
		return 0, fmt.Errorf("unknown strategy %q (want by-rows or by-profile)", u.Strategy)
	}
	return s, nil
}

// Validate checks the upsert options.
func (u UpsertConfig) Validate() error {
	s, err := u.ParsedStrategy()
	if err != nil {
		return err
	}
	if s == batch.ByRows && u.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive, got %d", u.Threshold)
	}
	formats, err := u.Formats.Coerce()
	if err != nil {
		return err
	}
	if _, err := coerce.New(formats); err != nil {
		return fmt.Errorf("invalid formats: %w", err)
	}
	return nil
}

// DefaultSchemaForType returns the default schema for a database type.
// Dialects without a default schema return "".
func DefaultSchemaForType(dbType string) string {
	if d, ok := dialect.Get(dbType); ok {
		return d.DefaultSchema
	}
	return ""
}

// ValidateTarget checks that the target names a registered adapter and
// carries the fields that adapter needs to connect.
func ValidateTarget(t *TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}

	typ := dialect.Canonical(t.Type)
	if !adapter.IsRegistered(typ) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}

	switch typ {
	case "sqlite", "duckdb":
		return nil
	case "snowflake":
		if t.Account == "" {
			return fmt.Errorf("snowflake target requires account")
		}
	default:
		if t.Host == "" {
			return fmt.Errorf("%s target requires host", typ)
		}
	}
	return nil
}
