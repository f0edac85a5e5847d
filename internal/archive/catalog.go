package archive

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"bhds/internal/logger"
	"bhds/internal/pkg/circuit"

	"golang.org/x/sync/errgroup"
)

// ErrCatalogUnavailable means the listing endpoint could not be reached even
// after the client's own bounded retry. Distinct from the cross-run ledger
// retry: this one is fatal to planning unless the run is retry-only.
var ErrCatalogUnavailable = errors.New("catalog unavailable")

// ListBaseURL is the bucket listing endpoint behind the download front.
const ListBaseURL = "https://s3-ap-northeast-1.amazonaws.com/data.binance.vision"

const (
	defaultCatalogTimeout = 30 * time.Second
	defaultCatalogRetries = 3
	defaultCatalogFanOut  = 8
	breakerThreshold      = 5
	breakerCooldown       = 30 * time.Second
)

type CatalogConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Retries  int
	FanOut   int
	ProxyURL string
}

func (c CatalogConfig) withDefaults() CatalogConfig {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = ListBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultCatalogTimeout
	}
	if c.Retries <= 0 {
		c.Retries = defaultCatalogRetries
	}
	if c.FanOut <= 0 {
		c.FanOut = defaultCatalogFanOut
	}
	return c
}

// Catalog enumerates the archive's listing endpoint for one selection.
// Listing calls fan out up to a bounded limit; a circuit breaker stops the
// client from hammering a throttling endpoint.
type Catalog struct {
	cfg     CatalogConfig
	sel     Selection
	client  *http.Client
	breaker *circuit.Breaker
}

func NewCatalog(sel Selection, cfg CatalogConfig) (*Catalog, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	final := cfg.withDefaults()
	httpClient := &http.Client{Timeout: final.Timeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid catalog proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	return &Catalog{
		cfg:     final,
		sel:     sel,
		client:  httpClient,
		breaker: circuit.NewBreaker("archive-listing", breakerThreshold, breakerCooldown),
	}, nil
}

// ListSymbols enumerates the symbol directories available for the selection.
// An empty result is genuinely empty, not a failure.
func (c *Catalog) ListSymbols(ctx context.Context) ([]string, error) {
	dirs, _, err := c.listPrefix(ctx, c.sel.Prefix())
	if err != nil {
		return nil, err
	}
	symbols := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		sym := lastSegment(dir)
		if sym != "" {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ListDates enumerates the available file dates for one symbol, ascending.
func (c *Catalog) ListDates(ctx context.Context, symbol string) ([]string, error) {
	_, keys, err := c.listPrefix(ctx, c.sel.SymbolPrefix(symbol))
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, ChecksumSuffix) {
			continue
		}
		if date := c.sel.DateFromFileName(symbol, lastSegment(key)); date != "" {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// BatchListDates lists dates for many symbols with bounded fan-out.
// The first listing error cancels the remaining calls.
func (c *Catalog) BatchListDates(ctx context.Context, symbols []string) (map[string][]string, error) {
	out := make(map[string][]string, len(symbols))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.cfg.FanOut)
	for _, symbol := range symbols {
		symbol := symbol
		eg.Go(func() error {
			dates, err := c.ListDates(egCtx, symbol)
			if err != nil {
				return err
			}
			mu.Lock()
			out[symbol] = dates
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

type listPage struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	IsTruncated    bool     `xml:"IsTruncated"`
	NextMarker     string   `xml:"NextMarker"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
	Contents []struct {
		Key string `xml:"Key"`
	} `xml:"Contents"`
}

// listPrefix walks all pages under a prefix, returning common prefixes
// (directories) and object keys. Tolerates empty pages.
func (c *Catalog) listPrefix(ctx context.Context, prefix string) (dirs, keys []string, err error) {
	marker := ""
	for {
		page, err := c.fetchPage(ctx, prefix, marker)
		if err != nil {
			return nil, nil, err
		}
		for _, cp := range page.CommonPrefixes {
			dirs = append(dirs, strings.TrimRight(cp.Prefix, "/"))
		}
		for _, obj := range page.Contents {
			keys = append(keys, obj.Key)
		}
		if !page.IsTruncated {
			return dirs, keys, nil
		}
		marker = page.NextMarker
		if marker == "" {
			// Buckets without delimiter-aware NextMarker fall back to the
			// last returned key.
			if len(page.Contents) > 0 {
				marker = page.Contents[len(page.Contents)-1].Key
			} else if len(page.CommonPrefixes) > 0 {
				marker = page.CommonPrefixes[len(page.CommonPrefixes)-1].Prefix
			} else {
				return dirs, keys, nil
			}
		}
	}
}

func (c *Catalog) fetchPage(ctx context.Context, prefix, marker string) (*listPage, error) {
	listURL := fmt.Sprintf("%s?delimiter=%s&prefix=%s", c.cfg.BaseURL, url.QueryEscape("/"), url.QueryEscape(prefix))
	if marker != "" {
		listURL += "&marker=" + url.QueryEscape(marker)
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		if !c.breaker.Allow() {
			return nil, fmt.Errorf("%w: breaker open for %s", ErrCatalogUnavailable, prefix)
		}
		page, err := c.doFetch(ctx, listURL)
		if err == nil {
			c.breaker.RecordSuccess()
			return page, nil
		}
		c.breaker.RecordFailure()
		lastErr = err
		logger.Debugf("listing %s failed (attempt %d/%d): %v", prefix, attempt, c.cfg.Retries, err)
		if attempt == c.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, lastErr)
}

func (c *Catalog) doFetch(ctx context.Context, listURL string) (*listPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("listing returned status %d", resp.StatusCode)
	}
	var page listPage
	if err := xml.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding listing page: %w", err)
	}
	return &page, nil
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
