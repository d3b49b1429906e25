// Package collyfetcher implements tally.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	urlpkg "net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/pgoodall/tagtally/internal/tally"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher performs exactly one HTTP GET per Fetch call. There are no
// retries: a timeout or connection failure is terminal for that URL within
// the run.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	// Robots probing would add a second outbound request per invocation,
	// breaking the one-request-per-call contract.
	c.IgnoreRobotsTxt = true
	// The revisit guard exists for recursive crawls; here the caller owns
	// uniqueness, and colly's URL normalization would conflate keys that
	// differ only by trailing slash or host case. Clones share the visited
	// store, so the guard must be off at the base collector.
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET using Colly. Per-URL failures (timeout,
// connection errors, HTTP errors, malformed URLs) are reported inside the
// FetchResult; the error return only fires for context cancellation.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (tally.FetchResult, error) {
	result := tally.FetchResult{URL: rawURL}

	if !validURL(rawURL) {
		result.Failure = &tally.Failure{Kind: tally.FailureInvalidURL}
		return result, nil
	}

	var fetchErr error
	collector := f.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.Body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		// Reap the in-flight visit; it is bounded by the request timeout
		// and its captured result is abandoned, never read again.
		go func() { <-done }()
		return tally.FetchResult{URL: rawURL}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		if fetchErr == nil {
			fetchErr = visitErr
		}
	}

	if fetchErr != nil {
		failure := classify(fetchErr, result.StatusCode)
		f.logger.Debug("fetch failed",
			zap.String("url", rawURL),
			zap.String("reason", failure.String()),
			zap.Error(fetchErr),
		)
		result.Body = nil
		result.Failure = &failure
		return result, nil
	}
	return result, nil
}

// classify maps a transport-level error and optional HTTP status into the
// closed failure enumeration. A non-2xx/3xx response is an HTTPError, not a
// transport fault.
func classify(err error, statusCode int) tally.Failure {
	if statusCode >= 400 {
		return tally.Failure{Kind: tally.FailureHTTP, Code: statusCode}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return tally.Failure{Kind: tally.FailureTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return tally.Failure{Kind: tally.FailureTimeout}
	}
	var urlErr *urlpkg.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return tally.Failure{Kind: tally.FailureTimeout}
	}
	return tally.Failure{Kind: tally.FailureConnection}
}

// validURL filters inputs the HTTP client could never dispatch. Anything
// with a scheme and host is allowed through; the network decides the rest.
func validURL(rawURL string) bool {
	u, err := urlpkg.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
