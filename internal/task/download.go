package task

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bhds/internal/archive"
	"bhds/internal/config"
	"bhds/internal/ledger"
	"bhds/internal/logger"
	"bhds/internal/store/runlog"
	"bhds/internal/transfer"
	"bhds/internal/verify"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Summary is one run's outcome counts. Planned excludes skipped and
// abandoned items; FailedKeys lists the identities that ended the run in a
// failed state, in natural sort order.
type Summary struct {
	RunID      string
	Task       string
	StartedAt  time.Time
	FinishedAt time.Time
	Planned    int
	Succeeded  int
	Failed     int
	Skipped    int
	Abandoned  int
	FailedKeys []string
}

type catalogAPI interface {
	ListSymbols(ctx context.Context) ([]string, error)
	BatchListDates(ctx context.Context, symbols []string) (map[string][]string, error)
}

// DownloadTask runs the download-and-verification pipeline: plan (from the
// catalog or, in retry-only mode, from the failure ledger alone), transfer
// in bounded batches, verify checksums, then persist the updated ledger
// atomically. The task is the ledger's only writer for the duration of a
// run.
type DownloadTask struct {
	cfg      *config.Config
	fs       afero.Fs
	sel      archive.Selection
	builder  *archive.PathBuilder
	catalog  catalogAPI
	adapter  *transfer.Adapter
	verifier *verify.Verifier
	tracker  *ledger.Tracker
	runs     *runlog.Store
}

func NewDownloadTask(cfg *config.Config) (*DownloadTask, error) {
	// Retry-only runs resolve plan items straight from ledger keys; a
	// selection is only required when the catalog will be consulted.
	var sel archive.Selection
	if !cfg.RetryOnly || cfg.TradeType != "" {
		var err error
		sel, err = selectionFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}
	fs := afero.NewOsFs()
	var cat catalogAPI
	if !cfg.RetryOnly {
		c, err := archive.NewCatalog(sel, archive.CatalogConfig{
			BaseURL:  cfg.Catalog.BaseURL,
			Timeout:  time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
			Retries:  cfg.Catalog.Retries,
			FanOut:   cfg.Catalog.FanOut,
			ProxyURL: cfg.Proxy(),
		})
		if err != nil {
			return nil, err
		}
		cat = c
	}
	engine, err := transfer.NewHTTPEngine(fs, transfer.HTTPEngineConfig{
		Concurrency: cfg.Download.Concurrency,
		ItemTimeout: time.Duration(cfg.Download.TimeoutSeconds) * time.Second,
		ProxyURL:    cfg.Proxy(),
	})
	if err != nil {
		return nil, err
	}
	t := newDownloadTask(cfg, fs, sel, cat, engine)
	if path := cfg.RunLogPath(); path != "" {
		runs, err := runlog.NewStore(path)
		if err != nil {
			logger.Warnf("run log disabled: %v", err)
		} else {
			t.runs = runs
		}
	}
	return t, nil
}

// newDownloadTask wires the task from its collaborators. Tests inject fakes
// through this seam.
func newDownloadTask(cfg *config.Config, fs afero.Fs, sel archive.Selection, cat catalogAPI, engine transfer.Engine) *DownloadTask {
	return &DownloadTask{
		cfg:      cfg,
		fs:       fs,
		sel:      sel,
		builder:  archive.NewPathBuilder(archive.DownloadBaseURL, cfg.DataDir()),
		catalog:  cat,
		adapter:  transfer.NewAdapter(engine, cfg.Download.BatchSize, cfg.Download.Progress),
		verifier: verify.NewVerifier(fs),
		tracker:  ledger.NewTracker(fs, cfg.LedgerPath()),
	}
}

func selectionFromConfig(cfg *config.Config) (archive.Selection, error) {
	tradeType, err := archive.ParseTradeType(cfg.TradeType)
	if err != nil {
		return archive.Selection{}, err
	}
	freq, err := archive.ParseDataFrequency(cfg.DataFreq)
	if err != nil {
		return archive.Selection{}, err
	}
	dataType, err := archive.ParseDataType(cfg.DataType)
	if err != nil {
		return archive.Selection{}, err
	}
	sel := archive.Selection{
		TradeType: tradeType,
		Frequency: freq,
		DataType:  dataType,
		Interval:  cfg.TimeInterval,
	}
	if err := sel.Validate(); err != nil {
		return archive.Selection{}, err
	}
	return sel, nil
}

// Run executes one full pipeline pass and returns its summary. The returned
// error is run-level only (invalid selection, catalog unavailable, ledger
// I/O); per-item failures land in the summary and the ledger instead.
func (t *DownloadTask) Run(ctx context.Context) (*Summary, error) {
	logger.Divider("aws download: start")
	summary := &Summary{
		RunID:     uuid.NewString(),
		Task:      t.cfg.Task,
		StartedAt: time.Now().UTC(),
	}
	if err := t.tracker.Load(); err != nil {
		return nil, err
	}

	plan, reverify, err := t.plan(ctx, summary)
	if err != nil {
		return nil, err
	}
	summary.Planned = len(plan) + len(reverify)
	if summary.Planned == 0 {
		logger.Infof("nothing to download (skipped=%d, abandoned=%d)", summary.Skipped, summary.Abandoned)
		t.finish(summary)
		return summary, nil
	}

	var outcomes []transfer.ItemOutcome
	if len(plan) > 0 {
		logger.Infof("downloading %d files (batch_size=%d, concurrency=%d)",
			len(plan), t.cfg.Download.BatchSize, t.cfg.Download.Concurrency)
		outcomes = t.adapter.Download(ctx, plan)
	}

	failures := t.verifyOutcomes(outcomes)

	// Files already on disk but never verified, typically from a run killed
	// between download and verification, are hashed in place.
	if len(reverify) > 0 {
		logger.Infof("verifying %d existing unverified files", len(reverify))
		for _, item := range reverify {
			if reason, failed := t.verifyItem(item); failed {
				failures[item.Key] = reason
			}
		}
	}

	for _, item := range append(plan, reverify...) {
		if reason, failed := failures[item.Key]; failed {
			t.tracker.RecordFailure(item.Key, reason)
			summary.Failed++
			summary.FailedKeys = append(summary.FailedKeys, item.Key)
		} else {
			t.tracker.RecordSuccess(item.Key)
			summary.Succeeded++
		}
	}
	if err := t.tracker.Flush(); err != nil {
		return nil, err
	}

	t.finish(summary)
	return summary, nil
}

// plan builds the run's work lists: items to download, and present but
// unverified files to hash in place. Retry-only runs take exactly the
// ledger's contents and never touch the catalog; normal runs enumerate the
// catalog, apply the symbol filter and date bounds, drop already-verified
// files, and fold in any previously failed identities for a retry pass.
func (t *DownloadTask) plan(ctx context.Context, summary *Summary) (plan, reverify []archive.PlanItem, err error) {
	if t.cfg.RetryOnly {
		logger.Infof("retry-only mode: planning %d ledger entries, skipping symbol listing", t.tracker.Len())
		return t.planFromLedger(summary, nil), nil, nil
	}

	symbols, err := t.catalog.ListSymbols(ctx)
	if err != nil {
		return nil, nil, err
	}
	target := t.targetSymbols(symbols)
	logger.Infof("found %d symbols, filtered to %d", len(symbols), len(target))

	var datesBySymbol map[string][]string
	if len(target) > 0 {
		datesBySymbol, err = t.catalog.BatchListDates(ctx, target)
		if err != nil {
			return nil, nil, err
		}
	}

	seen := make(map[string]bool)
	for _, symbol := range target {
		for _, date := range datesBySymbol[symbol] {
			if !t.dateInRange(date) {
				continue
			}
			item, err := t.builder.Build(t.sel.Identity(symbol, date))
			if err != nil {
				return nil, nil, err
			}
			seen[item.Key] = true
			if !t.cfg.Download.ForceReverify && !t.tracker.Has(item.Key) && t.exists(item.DataPath) {
				if !t.cfg.Verification.Enabled || verify.IsVerified(t.fs, item.DataPath) {
					summary.Skipped++
				} else {
					reverify = append(reverify, item)
				}
				continue
			}
			if t.shouldAbandon(item.Key) {
				summary.Abandoned++
				continue
			}
			plan = append(plan, item)
		}
	}

	// Fold in ledger entries the listing did not cover, so past failures are
	// retried even when discovery scope moved elsewhere.
	plan = append(plan, t.planFromLedger(summary, seen)...)
	sort.Slice(plan, func(i, j int) bool { return plan[i].Key < plan[j].Key })
	sort.Slice(reverify, func(i, j int) bool { return reverify[i].Key < reverify[j].Key })
	return plan, reverify, nil
}

// planFromLedger resolves ledger entries into plan items, skipping any key
// in the seen set (already handled by catalog planning this run).
func (t *DownloadTask) planFromLedger(summary *Summary, seen map[string]bool) []archive.PlanItem {
	keys := t.tracker.Keys()
	plan := make([]archive.PlanItem, 0, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		if t.shouldAbandon(key) {
			summary.Abandoned++
			continue
		}
		plan = append(plan, t.builder.ItemForKey(key))
	}
	return plan
}

// shouldAbandon applies the caller-configured give-up policy. Abandoned
// entries stay in the ledger until cleared explicitly.
func (t *DownloadTask) shouldAbandon(key string) bool {
	if t.cfg.MaxAttempts <= 0 {
		return false
	}
	if t.tracker.Attempts(key) >= t.cfg.MaxAttempts {
		logger.Debugf("abandoning %s after %d attempts", key, t.tracker.Attempts(key))
		return true
	}
	return false
}

func (t *DownloadTask) targetSymbols(all []string) []string {
	if len(t.cfg.Symbols) > 0 {
		requested := make(map[string]struct{}, len(t.cfg.Symbols))
		for _, s := range t.cfg.Symbols {
			requested[normalizeSymbol(s)] = struct{}{}
		}
		out := make([]string, 0, len(requested))
		for _, s := range all {
			if _, ok := requested[normalizeSymbol(s)]; ok {
				out = append(out, s)
			}
		}
		return out
	}
	return NewSymbolFilter(t.cfg.SymbolFilter).Apply(all)
}

func (t *DownloadTask) dateInRange(date string) bool {
	if t.cfg.StartDate != "" && date < t.cfg.StartDate {
		return false
	}
	if t.cfg.EndDate != "" && date > t.cfg.EndDate {
		return false
	}
	return true
}

func (t *DownloadTask) exists(path string) bool {
	ok, err := afero.Exists(t.fs, path)
	return err == nil && ok
}

// verifyOutcomes turns transfer outcomes into a key->reason failure map.
// Items that never arrived are failed without verification; arrived items
// are checked against their checksum file when verification is enabled.
func (t *DownloadTask) verifyOutcomes(outcomes []transfer.ItemOutcome) map[string]string {
	failures := make(map[string]string)
	for _, out := range outcomes {
		if !out.OK() {
			failures[out.Item.Key] = out.Err.Error()
			continue
		}
		if !t.cfg.Verification.Enabled {
			continue
		}
		if reason, failed := t.verifyItem(out.Item); failed {
			failures[out.Item.Key] = reason
		}
	}
	if t.cfg.Verification.Enabled && len(outcomes) > 0 {
		logger.Infof("verification done: %d ok, %d failed", len(outcomes)-len(failures), len(failures))
	}
	return failures
}

func (t *DownloadTask) verifyItem(item archive.PlanItem) (string, bool) {
	// Cheap pre-check first: a broken checksum file should not cost a full
	// digest of the data file, and the data file itself may still be good.
	if err := verify.ValidateChecksumFile(t.fs, item.ChecksumPath); err != nil {
		logger.Warnf("invalid checksum file for %s: %v", item.Key, err)
		verify.ClearVerified(t.fs, item.DataPath)
		if t.cfg.Verification.DeleteMismatch {
			t.fs.Remove(item.ChecksumPath)
		}
		return fmt.Sprintf("invalid checksum file: %v", err), true
	}
	res := t.verifier.Verify(item.DataPath, item.ChecksumPath)
	switch res.Status {
	case verify.StatusMatch:
		if err := verify.MarkVerified(t.fs, item.DataPath); err != nil {
			logger.Warnf("writing verified marker for %s: %v", item.Key, err)
		}
		return "", false
	case verify.StatusChecksumUnreadable:
		verify.ClearVerified(t.fs, item.DataPath)
		if t.cfg.Verification.DeleteMismatch {
			t.fs.Remove(item.ChecksumPath)
		}
		return res.Reason, true
	default:
		logger.Warnf("checksum mismatch for %s: %s", item.Key, res.Reason)
		verify.ClearVerified(t.fs, item.DataPath)
		if t.cfg.Verification.DeleteMismatch {
			t.fs.Remove(item.DataPath)
			t.fs.Remove(item.ChecksumPath)
			logger.Debugf("deleted %s and its checksum file", item.DataPath)
		}
		return res.Reason, true
	}
}

func (t *DownloadTask) finish(summary *Summary) {
	summary.FinishedAt = time.Now().UTC()
	sort.Strings(summary.FailedKeys)
	if t.runs != nil {
		if err := t.runs.Append(runlog.RunRecord{
			RunID:      summary.RunID,
			Task:       summary.Task,
			StartedAt:  summary.StartedAt,
			FinishedAt: summary.FinishedAt,
			Planned:    summary.Planned,
			Succeeded:  summary.Succeeded,
			Failed:     summary.Failed,
			Skipped:    summary.Skipped,
			Abandoned:  summary.Abandoned,
			FailedKeys: summary.FailedKeys,
		}); err != nil {
			logger.Warnf("recording run history failed: %v", err)
		}
		t.runs.Close()
	}
	if summary.Failed > 0 {
		logger.Warnf("%d files still failing; run again to retry them", summary.Failed)
	}
	logger.Infof("run %s done: planned=%d succeeded=%d failed=%d skipped=%d abandoned=%d",
		summary.RunID, summary.Planned, summary.Succeeded, summary.Failed, summary.Skipped, summary.Abandoned)
	logger.Divider("aws download: done")
}
