package config

import (
	"fmt"
	"path"
	"strings"
)

func validate(c *Config) error {
	if strings.TrimSpace(c.Task) == "" {
		return fmt.Errorf("task cannot be empty")
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0")
	}
	if err := c.Download.validate(); err != nil {
		return err
	}
	if err := c.Catalog.validate(); err != nil {
		return err
	}
	return c.SymbolFilter.validate()
}

func (d DownloadConfig) validate() error {
	if d.Concurrency < 0 {
		return fmt.Errorf("download.concurrency must be >= 0")
	}
	if d.BatchSize < 0 {
		return fmt.Errorf("download.batch_size must be >= 0")
	}
	if d.TimeoutSeconds < 0 {
		return fmt.Errorf("download.timeout_seconds must be >= 0")
	}
	return nil
}

func (cc CatalogConfig) validate() error {
	if cc.FanOut < 0 {
		return fmt.Errorf("catalog.fan_out must be >= 0")
	}
	if cc.Retries < 0 {
		return fmt.Errorf("catalog.retries must be >= 0")
	}
	if cc.TimeoutSeconds < 0 {
		return fmt.Errorf("catalog.timeout_seconds must be >= 0")
	}
	return nil
}

func (f FilterConfig) validate() error {
	for _, p := range f.Patterns {
		if _, err := path.Match(p, "PROBE"); err != nil {
			return fmt.Errorf("symbol_filter.patterns contains bad pattern %q: %w", p, err)
		}
	}
	return nil
}
