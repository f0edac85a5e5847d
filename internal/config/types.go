package config

// Config is the task-level configuration document. One YAML file describes
// one task invocation.
type Config struct {
	Task string `yaml:"task"`
	// Action selects the failed_files sub-operation: list, retry or clear.
	Action   string `yaml:"action"`
	Home     string `yaml:"bhds_home"`
	LogLevel string `yaml:"log_level"`
	LogPath  string `yaml:"log_path"`

	TradeType    string `yaml:"trade_type"`
	DataType     string `yaml:"data_type"`
	DataFreq     string `yaml:"data_freq"`
	TimeInterval string `yaml:"time_interval"`

	// Symbols, when set, is intersected with the catalog's symbol list and
	// wins over SymbolFilter.
	Symbols      []string     `yaml:"symbols"`
	SymbolFilter FilterConfig `yaml:"symbol_filter"`

	// StartDate/EndDate bound the planned dates (inclusive, same format as
	// the selection's frequency). Empty means unbounded.
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`

	// RetryOnly sources the plan entirely from the failure ledger and skips
	// remote discovery.
	RetryOnly bool `yaml:"retry_only"`
	// MaxAttempts stops retrying an identity once its consecutive-failure
	// count reaches this value. 0 means never give up.
	MaxAttempts int `yaml:"max_attempts"`

	HTTPProxy string `yaml:"http_proxy"`

	Download     DownloadConfig     `yaml:"download"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Verification VerificationConfig `yaml:"checksum_verification"`
	RunLog       RunLogConfig       `yaml:"run_log"`
}

type FilterConfig struct {
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
	Patterns []string `yaml:"patterns"`
}

func (f FilterConfig) Empty() bool {
	return len(f.Include) == 0 && len(f.Exclude) == 0 && len(f.Patterns) == 0
}

type DownloadConfig struct {
	Concurrency    int  `yaml:"concurrency"`
	BatchSize      int  `yaml:"batch_size"`
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Progress       bool `yaml:"progress"`
	// ForceReverify re-checks files that already exist locally instead of
	// skipping them during planning.
	ForceReverify bool `yaml:"force_reverify"`
}

type CatalogConfig struct {
	BaseURL        string `yaml:"base_url"`
	FanOut         int    `yaml:"fan_out"`
	Retries        int    `yaml:"retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type VerificationConfig struct {
	Enabled        bool `yaml:"enabled"`
	DeleteMismatch bool `yaml:"delete_mismatch"`
}

type RunLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}
