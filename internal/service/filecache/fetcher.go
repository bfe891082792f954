package filecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Fetcher downloads the bytes behind a URL. Implementations must honour ctx deadlines
// and treat any non-2xx response as an error.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// StatusError is returned for a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// FetcherConfig bounds how hard a single remote host is hit
type FetcherConfig struct {
	RatePerHost float64 // requests per second; <= 0 disables limiting
	Burst       int

	// Circuit breaker, one per host
	BreakerMaxRequests  uint32 // probes allowed while half-open
	BreakerInterval     time.Duration
	BreakerOpenTimeout  time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32

	// MaxBytes caps a single download; 0 means unlimited
	MaxBytes int64
}

// hostGuard is the per-host limiter and breaker pair
type hostGuard struct {
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// HTTPFetcher fetches over HTTP with a rate limiter and a circuit breaker per host.
// A host that keeps failing is short-circuited instead of being retried in a loop.
type HTTPFetcher struct {
	client *http.Client
	cfg    FetcherConfig

	mu     sync.Mutex
	guards map[string]*hostGuard

	logger *slog.Logger
}

// NewHTTPFetcher creates a fetcher. Timeouts come from the caller's context.
func NewHTTPFetcher(client *http.Client, cfg FetcherConfig, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		client: client,
		cfg:    cfg,
		guards: make(map[string]*hostGuard),
		logger: logger,
	}
}

func (f *HTTPFetcher) guard(host string) *hostGuard {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.guards[host]; ok {
		return g
	}

	limit := rate.Inf
	if f.cfg.RatePerHost > 0 {
		limit = rate.Limit(f.cfg.RatePerHost)
	}
	burst := f.cfg.Burst
	if burst < 1 {
		burst = 1
	}

	minRequests := f.cfg.BreakerMinRequests
	ratio := f.cfg.BreakerFailureRatio
	g := &hostGuard{
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        host,
			MaxRequests: f.cfg.BreakerMaxRequests,
			Interval:    f.cfg.BreakerInterval,
			Timeout:     f.cfg.BreakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < minRequests || ratio <= 0 {
					return false
				}
				return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				f.logger.Warn("remote host breaker state changed", "host", name, "from", from.String(), "to", to.String())
			},
		}),
	}
	f.guards[host] = g
	return g
}

// Fetch performs a GET against rawURL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}

	g := f.guard(u.Host)
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit %s: %w", u.Host, err)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, rawURL)
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.cfg.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.cfg.MaxBytes+1)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.cfg.MaxBytes > 0 && int64(len(content)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", rawURL, f.cfg.MaxBytes)
	}
	return content, nil
}
