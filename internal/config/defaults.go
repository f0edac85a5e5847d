package config

const (
	defaultLogLevel            = "info"
	defaultTask                = "aws_download"
	defaultDownloadConcurrency = 16
	defaultDownloadBatchSize   = 512
	defaultDownloadTimeoutSec  = 120
	defaultCatalogFanOut       = 8
	defaultCatalogRetries      = 3
	defaultCatalogTimeoutSec   = 30
)

func (c *Config) applyDefaults() {
	if c.Task == "" {
		c.Task = defaultTask
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Download.Concurrency == 0 {
		c.Download.Concurrency = defaultDownloadConcurrency
	}
	if c.Download.BatchSize == 0 {
		c.Download.BatchSize = defaultDownloadBatchSize
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeoutSec
	}
	if c.Catalog.FanOut == 0 {
		c.Catalog.FanOut = defaultCatalogFanOut
	}
	if c.Catalog.Retries == 0 {
		c.Catalog.Retries = defaultCatalogRetries
	}
	if c.Catalog.TimeoutSeconds == 0 {
		c.Catalog.TimeoutSeconds = defaultCatalogTimeoutSec
	}
}
