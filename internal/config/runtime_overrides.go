package config

import (
	"os"
	"strconv"
)

// ApplyRuntimeOverrides applies environment/OS-specific overrides after YAML load
// and before validation.
func (c *Config) ApplyRuntimeOverrides() {
	applyOSOverrides(c)
	applyEnvOverrides(c)
}

func applyEnvOverrides(c *Config) {
	if v := os.Getenv("AVVA_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.App.Debug = b
		}
	}
	if v := os.Getenv("AVVA_SIDECAR_DIR"); v != "" {
		c.Sidecar.Dir = v
	}
	if v := os.Getenv("AVVA_BRIDGE_ADDR"); v != "" {
		c.Bridge.Addr = v
	}
}
