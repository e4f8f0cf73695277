package core

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string

	// Snowflake-specific
	Account   string
	Warehouse string
	Role      string

	Options map[string]string
	Params  map[string]any
}
