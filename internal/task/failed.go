package task

import (
	"context"
	"fmt"

	"bhds/internal/config"
	"bhds/internal/ledger"
	"bhds/internal/logger"

	"github.com/spf13/afero"
)

// FailedFilesTask exposes the operator-facing ledger operations: list what
// is failing, retry it, or wipe the ledger.
type FailedFilesTask struct {
	cfg     *config.Config
	fs      afero.Fs
	tracker *ledger.Tracker
}

func NewFailedFilesTask(cfg *config.Config) *FailedFilesTask {
	fs := afero.NewOsFs()
	return &FailedFilesTask{
		cfg:     cfg,
		fs:      fs,
		tracker: ledger.NewTracker(fs, cfg.LedgerPath()),
	}
}

// List returns the current failure records, oldest key first.
func (t *FailedFilesTask) List() ([]ledger.Entry, error) {
	if err := t.tracker.Load(); err != nil {
		return nil, err
	}
	entries := t.tracker.Entries()
	if len(entries) == 0 {
		logger.Infof("no failed files")
		return entries, nil
	}
	logger.Warnf("%d failed files:", len(entries))
	for _, e := range entries {
		logger.Warnf("  - %s (attempts=%d, last=%s): %s",
			e.Key, e.Attempts, e.LastAttempt.Format("2006-01-02 15:04:05"), e.Error)
	}
	return entries, nil
}

// Retry re-runs the download pipeline in retry-only mode against the
// current ledger.
func (t *FailedFilesTask) Retry(ctx context.Context) (*Summary, error) {
	retryCfg := *t.cfg
	retryCfg.RetryOnly = true
	dl, err := NewDownloadTask(&retryCfg)
	if err != nil {
		return nil, err
	}
	return dl.Run(ctx)
}

// Clear empties the ledger and persists the empty document.
func (t *FailedFilesTask) Clear() error {
	if err := t.tracker.Load(); err != nil {
		return err
	}
	n := t.tracker.Len()
	if err := t.tracker.Clear(); err != nil {
		return err
	}
	logger.Infof("cleared %d failed file entries", n)
	return nil
}

// Run dispatches on the configured action so the task fits the registry.
func (t *FailedFilesTask) Run(ctx context.Context) error {
	switch t.cfg.Action {
	case "", "list":
		_, err := t.List()
		return err
	case "retry":
		_, err := t.Retry(ctx)
		return err
	case "clear":
		return t.Clear()
	default:
		return fmt.Errorf("unknown failed_files action %q (want list, retry or clear)", t.cfg.Action)
	}
}
