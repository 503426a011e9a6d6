package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	FileName = "config.yaml"

	DefaultScope           = "default"
	DefaultLoadTimeout     = 2 * time.Minute
	DefaultTestCaseTimeout = 30 * time.Second
	DefaultCallTimeout     = 30 * time.Second
	DefaultDownloadRate    = 4.0
)

type Config struct {
	Root            string
	DBPath          string
	Scope           string
	ProvidersRoot   string
	SettingsRoot    string
	CacheRoot       string
	DebugRoot       string
	LoadTimeout     time.Duration
	TestCaseTimeout time.Duration
	// CallTimeout bounds a provider RPC whose caller set no deadline.
	CallTimeout time.Duration
	// DownloadRate is the number of outbound HTTP requests allowed per second.
	DownloadRate float64
	LogLevel     string
}

type fileConfig struct {
	Scope           string  `yaml:"scope"`
	ProvidersRoot   string  `yaml:"providers_root"`
	SettingsRoot    string  `yaml:"settings_root"`
	CacheRoot       string  `yaml:"cache_root"`
	DebugRoot       string  `yaml:"debug_root"`
	LoadTimeout     string  `yaml:"load_timeout"`
	TestCaseTimeout string  `yaml:"test_case_timeout"`
	CallTimeout     string  `yaml:"call_timeout"`
	DownloadRate    float64 `yaml:"download_rate"`
	LogLevel        string  `yaml:"log_level"`
}

// New derives every path from root and overlays {root}/config.yaml when present.
func New(root string) (Config, error) {
	if root == "" {
		return Config{}, fmt.Errorf("root path is required")
	}
	cfg := Config{
		Root:            root,
		DBPath:          filepath.Join(root, "provhost.db"),
		Scope:           DefaultScope,
		ProvidersRoot:   filepath.Join(root, "providers"),
		SettingsRoot:    filepath.Join(root, "settings"),
		CacheRoot:       filepath.Join(root, "cache"),
		DebugRoot:       filepath.Join(root, "debug"),
		LoadTimeout:     DefaultLoadTimeout,
		TestCaseTimeout: DefaultTestCaseTimeout,
		CallTimeout:     DefaultCallTimeout,
		DownloadRate:    DefaultDownloadRate,
		LogLevel:        "info",
	}

	raw, err := os.ReadFile(filepath.Join(root, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg.apply(file)
}

func (c Config) apply(file fileConfig) (Config, error) {
	if file.Scope != "" {
		c.Scope = file.Scope
	}
	c.ProvidersRoot = c.resolve(file.ProvidersRoot, c.ProvidersRoot)
	c.SettingsRoot = c.resolve(file.SettingsRoot, c.SettingsRoot)
	c.CacheRoot = c.resolve(file.CacheRoot, c.CacheRoot)
	c.DebugRoot = c.resolve(file.DebugRoot, c.DebugRoot)
	if file.LoadTimeout != "" {
		d, err := time.ParseDuration(file.LoadTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("load_timeout: %w", err)
		}
		c.LoadTimeout = d
	}
	if file.TestCaseTimeout != "" {
		d, err := time.ParseDuration(file.TestCaseTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("test_case_timeout: %w", err)
		}
		c.TestCaseTimeout = d
	}
	if file.CallTimeout != "" {
		d, err := time.ParseDuration(file.CallTimeout)
		if err != nil {
			return Config{}, fmt.Errorf("call_timeout: %w", err)
		}
		c.CallTimeout = d
	}
	if file.DownloadRate < 0 {
		return Config{}, fmt.Errorf("download_rate must not be negative")
	}
	if file.DownloadRate > 0 {
		c.DownloadRate = file.DownloadRate
	}
	if file.LogLevel != "" {
		c.LogLevel = file.LogLevel
	}
	return c, nil
}

func (c Config) resolve(value, fallback string) string {
	if value == "" {
		return fallback
	}
	if filepath.IsAbs(value) {
		return value
	}
	return filepath.Join(c.Root, value)
}
