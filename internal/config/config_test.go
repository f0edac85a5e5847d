package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "task.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullDocument(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
task: aws_download
bhds_home: /data/bhds
log_level: debug
trade_type: futures/um
data_type: fundingRate
data_freq: monthly
symbols: [BTCUSDT, ETHUSDT]
start_date: "2021-01"
end_date: "2021-06"
max_attempts: 5
http_proxy: http://127.0.0.1:7890
download:
  concurrency: 4
  batch_size: 100
  progress: true
catalog:
  retries: 2
checksum_verification:
  enabled: true
  delete_mismatch: true
run_log:
  enabled: true
`))
	require.NoError(t, err)

	assert.Equal(t, "aws_download", cfg.Task)
	assert.Equal(t, "futures/um", cfg.TradeType)
	assert.Equal(t, "fundingRate", cfg.DataType)
	assert.Equal(t, "monthly", cfg.DataFreq)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, "2021-01", cfg.StartDate)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, "http://127.0.0.1:7890", cfg.HTTPProxy)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, 100, cfg.Download.BatchSize)
	assert.True(t, cfg.Download.Progress)
	assert.Equal(t, 2, cfg.Catalog.Retries)
	assert.True(t, cfg.Verification.Enabled)
	assert.True(t, cfg.Verification.DeleteMismatch)
	assert.True(t, cfg.RunLog.Enabled)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
trade_type: spot
data_type: klines
data_freq: daily
time_interval: 1m
`))
	require.NoError(t, err)

	assert.Equal(t, "aws_download", cfg.Task)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Download.Concurrency)
	assert.Equal(t, 512, cfg.Download.BatchSize)
	assert.Equal(t, 120, cfg.Download.TimeoutSeconds)
	assert.Equal(t, 8, cfg.Catalog.FanOut)
	assert.Equal(t, 3, cfg.Catalog.Retries)
	assert.Equal(t, 30, cfg.Catalog.TimeoutSeconds)
	assert.Equal(t, 0, cfg.MaxAttempts)
	assert.False(t, cfg.RetryOnly)
	assert.False(t, cfg.Verification.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative max_attempts": "max_attempts: -1\n",
		"negative concurrency":  "download:\n  concurrency: -2\n",
		"negative retries":      "catalog:\n  retries: -1\n",
		"bad filter pattern":    "symbol_filter:\n  patterns: [\"[\"]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestHomeDirResolution(t *testing.T) {
	cfg := &Config{Home: "/explicit"}
	assert.Equal(t, "/explicit", cfg.HomeDir())

	t.Setenv("BHDS_HOME", "/from-env")
	cfg = &Config{}
	assert.Equal(t, "/from-env", cfg.HomeDir())
	assert.Equal(t, filepath.Join("/from-env", "aws_data"), cfg.DataDir())
	assert.Equal(t, filepath.Join("/from-env", "aws_data", ".failed_files.json"), cfg.LedgerPath())
}

func TestRunLogPath(t *testing.T) {
	cfg := &Config{Home: "/h"}
	assert.Equal(t, "", cfg.RunLogPath())

	cfg.RunLog.Enabled = true
	assert.Equal(t, filepath.Join("/h", "runs.db"), cfg.RunLogPath())

	cfg.RunLog.Path = "/elsewhere/history.db"
	assert.Equal(t, "/elsewhere/history.db", cfg.RunLogPath())
}

func TestProxyResolution(t *testing.T) {
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("http_proxy", "")

	cfg := &Config{HTTPProxy: "http://explicit:1080"}
	assert.Equal(t, "http://explicit:1080", cfg.Proxy())

	t.Setenv("HTTP_PROXY", "http://env:1080")
	cfg = &Config{}
	assert.Equal(t, "http://env:1080", cfg.Proxy())
}
