package postgres

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Driver names accepted in params.driver.
const (
	DriverPgx = "pgx"
	DriverPq  = "pq"
)

// Params holds PostgreSQL-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Driver selects the database/sql driver: "pgx" (default) or "pq".
	Driver string `mapstructure:"driver"`

	// SearchPath is set on every connection when non-empty.
	SearchPath string `mapstructure:"search_path"`

	// ApplicationName is reported in pg_stat_activity.
	ApplicationName string `mapstructure:"application_name"`
}

// ParseParams decodes raw target params into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := mapstructure.Decode(raw, p); err != nil {
		return nil, fmt.Errorf("invalid postgres params: %w", err)
	}
	switch p.Driver {
	case "", DriverPgx, DriverPq:
	default:
		return nil, fmt.Errorf("invalid postgres params: unknown driver %q (want %q or %q)", p.Driver, DriverPgx, DriverPq)
	}
	return p, nil
}

// sqlDriverName returns the database/sql driver registered for the choice.
func (p *Params) sqlDriverName() string {
	if p.Driver == DriverPq {
		return "postgres"
	}
	return "pgx"
}
