package config

import (
	"fmt"
	"strings"
)

var validDebugLevels = map[string]bool{
	"error": true, "warning": true, "note": true, "info": true, "debug": true, "debug1": true, "debug2": true,
}

// Validate checks the CLI-level config for invalid values. Unlike the
// config-file grammar (validated at parse time in grammar.go), this is a
// hard gate: a ConfigError here blocks startup (§7 "surface during config
// load only").
func (c *Config) Validate() error {
	if c.Debug != "" && !validDebugLevels[strings.ToLower(c.Debug)] {
		return fmt.Errorf("config: debug level %q is not valid", c.Debug)
	}

	if c.KeepAlivesUntilDeath < 1 {
		return fmt.Errorf("config: keep_alives_until_death must be at least 1, got %d", c.KeepAlivesUntilDeath)
	}

	if c.ClipboardSharingSize < 0 {
		return fmt.Errorf("config: clipboard_sharing_size must not be negative, got %d", c.ClipboardSharingSize)
	}

	return nil
}
