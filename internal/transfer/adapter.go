package transfer

import (
	"context"
	"fmt"

	"bhds/internal/archive"
	"bhds/internal/logger"

	"github.com/cheggaaa/pb/v3"
)

const defaultBatchSize = 512

// ItemOutcome is the per-plan-item view of a transfer: the data file and its
// checksum companion travel together, and either leg failing fails the item.
type ItemOutcome struct {
	Item archive.PlanItem
	Err  error
}

func (o ItemOutcome) OK() bool {
	return o.Err == nil
}

// Adapter translates plan items into engine requests. Batching bounds peak
// memory and progress-tracking granularity, not correctness; outcome order
// always matches item order.
type Adapter struct {
	engine    Engine
	batchSize int
	progress  bool
}

func NewAdapter(engine Engine, batchSize int, progress bool) *Adapter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Adapter{engine: engine, batchSize: batchSize, progress: progress}
}

// Download fetches every item's data and checksum file and reports per-item
// outcomes in input order.
func (a *Adapter) Download(ctx context.Context, items []archive.PlanItem) []ItemOutcome {
	outcomes := make([]ItemOutcome, 0, len(items))
	var bar *pb.ProgressBar
	if a.progress && len(items) > 0 {
		bar = pb.StartNew(len(items))
		defer bar.Finish()
	}
	for start := 0; start < len(items); start += a.batchSize {
		end := start + a.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]
		outcomes = append(outcomes, a.downloadBatch(ctx, batch)...)
		if bar != nil {
			bar.Add(len(batch))
		}
	}
	return outcomes
}

func (a *Adapter) downloadBatch(ctx context.Context, items []archive.PlanItem) []ItemOutcome {
	reqs := make([]Request, 0, len(items)*2)
	for _, item := range items {
		reqs = append(reqs,
			Request{URL: item.DataURL, Dest: item.DataPath},
			Request{URL: item.ChecksumURL, Dest: item.ChecksumPath},
		)
	}
	results := a.engine.Fetch(ctx, reqs)

	outcomes := make([]ItemOutcome, len(items))
	for i, item := range items {
		outcomes[i].Item = item
		dataRes, sumRes := results[i*2], results[i*2+1]
		switch {
		case !dataRes.OK():
			outcomes[i].Err = fmt.Errorf("download failed: %s", reasonOf(dataRes.Err))
		case !sumRes.OK():
			outcomes[i].Err = fmt.Errorf("checksum download failed: %s", reasonOf(sumRes.Err))
		}
		if outcomes[i].Err != nil {
			logger.Debugf("transfer failed for %s: %v", item.Key, outcomes[i].Err)
		}
	}
	return outcomes
}
