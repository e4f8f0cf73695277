package config

import (
	"fmt"
	"strings"
)

var outputModes = []string{"auto", "text", "markdown", "json"}

// Validate checks if the configuration is valid. Targets are validated
// when they are selected.
func (c *Config) Validate() error {
	if c.StatePath == "" {
		return fmt.Errorf("state_path is required")
	}
	valid := false
	for _, m := range outputModes {
		if strings.EqualFold(c.OutputFormat, m) {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid output %q (want one of %s)", c.OutputFormat, strings.Join(outputModes, ", "))
	}
	if err := c.Upsert.Validate(); err != nil {
		return fmt.Errorf("invalid upsert configuration: %w", err)
	}
	return nil
}
