//go:build windows

package config

import "golang.org/x/sys/windows/registry"

const installerRegistryPath = `SOFTWARE\\Avva\\Desktop`

// applyOSOverrides picks up the sidecar directory recorded by the installer.
func applyOSOverrides(c *Config) {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, installerRegistryPath, registry.QUERY_VALUE)
	if err != nil {
		return
	}
	defer k.Close()

	if v, _, err := k.GetStringValue("SidecarDir"); err == nil && v != "" && c.Sidecar.Dir == "" {
		c.Sidecar.Dir = v
	}
}
