package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/semaphore"
)

// Request is one (remote URL, local destination) pair.
type Request struct {
	URL  string
	Dest string
}

// Outcome reports one request's result. A failed item never aborts the
// batch; partial failure is normal.
type Outcome struct {
	Request Request
	Err     error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Engine is the bulk transfer mechanism. Outcomes are returned in the same
// order requests were submitted. Swapping the implementation must not be
// visible to callers.
type Engine interface {
	Fetch(ctx context.Context, reqs []Request) []Outcome
}

const (
	defaultConcurrency = 16
	defaultItemTimeout = 2 * time.Minute
)

type HTTPEngineConfig struct {
	Concurrency int
	ItemTimeout time.Duration
	ProxyURL    string
}

func (c HTTPEngineConfig) withDefaults() HTTPEngineConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = defaultItemTimeout
	}
	return c
}

// HTTPEngine drives plain GET downloads concurrently up to a ceiling.
// Files land under a ".part" name first and are renamed once complete, so a
// killed transfer never leaves a truncated file at the final path.
type HTTPEngine struct {
	cfg    HTTPEngineConfig
	client *http.Client
	fs     afero.Fs
	sem    *semaphore.Weighted
}

func NewHTTPEngine(fs afero.Fs, cfg HTTPEngineConfig) (*HTTPEngine, error) {
	final := cfg.withDefaults()
	client := &http.Client{}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid transfer proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		client.Transport = transport
	}
	return &HTTPEngine{
		cfg:    final,
		client: client,
		fs:     fs,
		sem:    semaphore.NewWeighted(int64(final.Concurrency)),
	}, nil
}

func (e *HTTPEngine) Fetch(ctx context.Context, reqs []Request) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		outcomes[i].Request = req
		if err := e.sem.Acquire(ctx, 1); err != nil {
			outcomes[i].Err = fmt.Errorf("transfer aborted: %w", err)
			continue
		}
		wg.Add(1)
		go func(i int, req Request) {
			defer wg.Done()
			defer e.sem.Release(1)
			outcomes[i].Err = e.fetchOne(ctx, req)
		}(i, req)
	}
	wg.Wait()
	return outcomes
}

func (e *HTTPEngine) fetchOne(ctx context.Context, req Request) error {
	itemCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(itemCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(httpReq)
	if err != nil {
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			return errors.New("timeout")
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if dir := filepath.Dir(req.Dest); dir != "." && dir != "" {
		if err := e.fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	part := req.Dest + ".part"
	f, err := e.fs.Create(part)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		e.fs.Remove(part)
		if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
			return errors.New("timeout")
		}
		return err
	}
	if err := f.Close(); err != nil {
		e.fs.Remove(part)
		return err
	}
	return e.fs.Rename(part, req.Dest)
}

// reasonOf normalizes an outcome error into a ledger-friendly string.
func reasonOf(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
