package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed (%s): %w", path, err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// HomeDir resolves the data home: config value, then $BHDS_HOME, then
// ~/bhds_data. Core components never look this up themselves; the resolved
// path is passed down explicitly.
func (c *Config) HomeDir() string {
	if c.Home != "" {
		return c.Home
	}
	if env := os.Getenv("BHDS_HOME"); env != "" {
		return env
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "bhds_data"
	}
	return filepath.Join(home, "bhds_data")
}

// DataDir is the local mirror root under the data home.
func (c *Config) DataDir() string {
	return filepath.Join(c.HomeDir(), "aws_data")
}

// LedgerPath is the persisted failure ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir(), ".failed_files.json")
}

// RunLogPath is the run-history database location ("" when disabled).
func (c *Config) RunLogPath() string {
	if !c.RunLog.Enabled {
		return ""
	}
	if c.RunLog.Path != "" {
		return c.RunLog.Path
	}
	return filepath.Join(c.HomeDir(), "runs.db")
}

// Proxy resolves the HTTP proxy: config value, then environment.
func (c *Config) Proxy() string {
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	if env := os.Getenv("HTTP_PROXY"); env != "" {
		return env
	}
	return os.Getenv("http_proxy")
}
