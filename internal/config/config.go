package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App     AppConfig     `yaml:"app"`
	Sidecar SidecarConfig `yaml:"sidecar"`
	Shell   ShellConfig   `yaml:"shell"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	IPC     IPCConfig     `yaml:"ipc"`
	Window  WindowConfig  `yaml:"window"`
	Plugins []string      `yaml:"plugins"`
	Logging LoggingConfig `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// Debug mirrors a debug build: it enables the console logger plugin.
	Debug bool `yaml:"debug"`
	// DataDir holds the pidfile and other runtime state.
	DataDir string `yaml:"data_dir"`
}

type SidecarConfig struct {
	Name string `yaml:"name"`
	// Dir overrides the search directory. Empty means the directory of the running executable.
	Dir            string            `yaml:"dir"`
	Args           []string          `yaml:"args"`
	Env            map[string]string `yaml:"env"`
	SHA256         string            `yaml:"sha256"`
	StopTimeoutSec int               `yaml:"stop_timeout_sec"`
}

type ShellConfig struct {
	// Allow lists the executables the shell plugin may run, by base name or absolute path.
	Allow      []string `yaml:"allow"`
	TimeoutSec int      `yaml:"timeout_sec"`
}

type BridgeConfig struct {
	Addr            string `yaml:"addr"`
	MaxEventsPerSec int    `yaml:"max_events_per_sec"`
}

type IPCConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SocketPath string `yaml:"socket_path"`
}

type WindowConfig struct {
	Title    string `yaml:"title"`
	Headless bool   `yaml:"headless"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

var knownPlugins = map[string]bool{"shell": true, "logger": true, "bridge": true}

func Default() *Config {
	dataDir := defaultDataDir()
	return &Config{
		App: AppConfig{
			Name:    "Avva",
			Version: "0.1.0",
			Debug:   false,
			DataDir: dataDir,
		},
		Sidecar: SidecarConfig{
			Name:           "avva-core",
			StopTimeoutSec: 5,
		},
		Shell: ShellConfig{
			Allow:      []string{},
			TimeoutSec: 30,
		},
		Bridge: BridgeConfig{
			Addr:            "127.0.0.1:8765",
			MaxEventsPerSec: 200,
		},
		IPC: IPCConfig{
			Enabled:    true,
			SocketPath: filepath.Join(dataDir, "avva.sock"),
		},
		Window: WindowConfig{
			Title: "Avva",
		},
		Plugins: []string{"shell", "logger", "bridge"},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "logs", "avva-desktop.log"),
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// EnsureExists creates a default config file when it does not exist.
// It never overwrites an existing config.
func EnsureExists(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

// Load reads the YAML file at path on top of Default, so omitted keys keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	cfg.ApplyRuntimeOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sidecar.Name) == "" {
		return errors.New("sidecar.name is required")
	}
	if strings.ContainsAny(c.Sidecar.Name, `/\`) {
		return errors.New("sidecar.name must be a bare program name")
	}
	if c.Sidecar.StopTimeoutSec <= 0 {
		return errors.New("sidecar.stop_timeout_sec must be > 0")
	}
	if c.Shell.TimeoutSec <= 0 {
		return errors.New("shell.timeout_sec must be > 0")
	}
	if c.Bridge.MaxEventsPerSec <= 0 {
		return errors.New("bridge.max_events_per_sec must be > 0")
	}
	if c.App.DataDir == "" {
		return errors.New("app.data_dir is required")
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return errors.New("logging.level must be one of debug, info, warn, error")
	}
	if c.Logging.MaxSizeMB <= 0 {
		return errors.New("logging.max_size_mb must be > 0")
	}
	if c.Logging.MaxBackups <= 0 {
		return errors.New("logging.max_backups must be > 0")
	}
	seen := map[string]bool{}
	for _, name := range c.Plugins {
		if !knownPlugins[name] {
			return errors.New("plugins: unknown plugin " + name)
		}
		if seen[name] {
			return errors.New("plugins: duplicate plugin " + name)
		}
		seen[name] = true
	}
	return nil
}

func (c *Config) ApplyDefaults() {
	if c.App.DataDir == "" {
		c.App.DataDir = defaultDataDir()
	}
	if c.Sidecar.StopTimeoutSec == 0 {
		c.Sidecar.StopTimeoutSec = 5
	}
	if c.Shell.TimeoutSec == 0 {
		c.Shell.TimeoutSec = 30
	}
	if c.Bridge.MaxEventsPerSec == 0 {
		c.Bridge.MaxEventsPerSec = 200
	}
	if c.IPC.SocketPath == "" {
		c.IPC.SocketPath = filepath.Join(c.App.DataDir, "avva.sock")
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "avva")
	}
	return filepath.Join(os.TempDir(), "avva")
}
