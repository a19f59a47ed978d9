package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/internal/catalog/signer"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/resilience"
)

const (
	headerConsumerID = "WM_CONSUMER.ID"
	headerTimestamp  = "WM_CONSUMER.INTIMESTAMP"
	headerKeyVersion = "WM_SEC.KEY_VERSION"
	headerSignature  = "WM_SEC.AUTH_SIGNATURE"

	// extraItems are requested on top of the caller's limit to absorb
	// items the authenticity filter drops.
	extraItems = 2

	maxResponseBytes = 4 << 20
	maxElidedBody    = 256
	redacted         = "[REDACTED]"
)

// RequestSigner produces fresh signature headers for one request.
type RequestSigner interface {
	Sign() (signer.Signature, error)
}

// Client issues signed product searches. One Client, and its pooled
// http.Client, is shared by every resolve.
type Client struct {
	cfg     config.CatalogConfig
	signer  RequestSigner
	http    *http.Client
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewClient builds a Client. breaker may be nil.
func NewClient(cfg config.CatalogConfig, s RequestSigner, breaker *resilience.CircuitBreaker, m *metrics.Metrics) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		cfg:     cfg,
		signer:  s,
		http:    &http.Client{Transport: transport},
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "catalog-client"),
	}
}

// Search looks up query, asking for limit+2 items. Retries are serial and
// each one is freshly signed.
func (c *Client) Search(ctx context.Context, query string, limit int) Result {
	start := time.Now()
	res, err := resilience.Retry(ctx, "catalog.search", c.cfg.MaxAttempts,
		func(ctx context.Context, attempt int) Result {
			return c.attempt(ctx, query, limit)
		},
		c.nextAttempt,
	)
	if err != nil {
		res = Result{Status: StatusTransient, Err: err}
	}
	c.metrics.CatalogSearchesTotal.WithLabelValues(res.Status.String()).Inc()
	c.metrics.CatalogLatency.Observe(time.Since(start).Seconds())

	switch res.Status {
	case StatusTransient:
		c.logger.Warn("catalog search failed", "query", query, "http_status", res.HTTPStatus, "error", res.Err)
	case StatusPermanent:
		c.logger.Error("catalog search rejected", "query", query, "http_status", res.HTTPStatus, "error", res.Err)
	default:
		c.logger.Debug("catalog search finished", "query", query, "status", res.Status.String(), "items", len(res.Items))
	}
	return res
}

// nextAttempt is the retry policy. 429 backs off exponentially, other
// transient failures wait a fixed delay, an empty 200 is retried once, and
// permanent failures stop immediately.
func (c *Client) nextAttempt(attempt int, r Result) (time.Duration, bool) {
	switch r.Status {
	case StatusNoResults:
		return c.cfg.RetryDelay, attempt == 1
	case StatusTransient:
		if errors.Is(r.Err, resilience.ErrCircuitOpen) {
			return 0, false
		}
		if r.HTTPStatus == http.StatusTooManyRequests {
			return resilience.Exponential(c.cfg.RateLimitBackoff, 3, attempt), true
		}
		return c.cfg.RetryDelay, true
	default:
		return 0, false
	}
}

func (c *Client) attempt(ctx context.Context, query string, limit int) Result {
	if c.breaker == nil {
		return c.do(ctx, query, limit)
	}
	var res Result
	err := c.breaker.Execute(func() error {
		res = c.do(ctx, query, limit)
		if res.Status == StatusTransient && ctx.Err() == nil {
			return res.Err
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		c.metrics.CatalogAttemptsTotal.WithLabelValues("breaker_open").Inc()
		return Result{Status: StatusTransient, Err: err}
	}
	return res
}

func (c *Client) do(ctx context.Context, query string, limit int) Result {
	sig, err := c.signer.Sign()
	if err != nil {
		return Result{Status: StatusPermanent, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query, limit), nil)
	if err != nil {
		return Result{Status: StatusPermanent, Err: fmt.Errorf("building search request: %w", err)}
	}
	req.Header.Set(headerConsumerID, sig.ConsumerID)
	req.Header.Set(headerTimestamp, sig.Timestamp)
	req.Header.Set(headerKeyVersion, sig.KeyVersion)
	req.Header.Set(headerSignature, sig.Value)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.CatalogAttemptsTotal.WithLabelValues("error").Inc()
		return Result{Status: StatusTransient, Err: fmt.Errorf("catalog request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	c.metrics.CatalogAttemptsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
	if err != nil {
		return Result{Status: StatusTransient, HTTPStatus: resp.StatusCode, Err: fmt.Errorf("reading catalog response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		items, err := ParseItems(body)
		if err != nil {
			return Result{Status: StatusTransient, HTTPStatus: resp.StatusCode, Err: err}
		}
		if len(items) == 0 {
			return Result{Status: StatusNoResults, HTTPStatus: resp.StatusCode}
		}
		return Result{Status: StatusOK, HTTPStatus: resp.StatusCode, Items: items}
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return Result{Status: StatusTransient, HTTPStatus: resp.StatusCode,
			Err: fmt.Errorf("catalog returned %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return Result{Status: StatusPermanent, HTTPStatus: resp.StatusCode,
			Err: fmt.Errorf("catalog rejected credentials (%d): %s", resp.StatusCode, c.elide(body, sig))}
	default:
		return Result{Status: StatusPermanent, HTTPStatus: resp.StatusCode,
			Err: fmt.Errorf("catalog returned %d: %s", resp.StatusCode, c.elide(body, sig))}
	}
}

func (c *Client) searchURL(query string, limit int) string {
	sep := "?"
	if strings.Contains(c.cfg.BaseURL, "?") {
		sep = "&"
	}
	return c.cfg.BaseURL + sep + "query=" + url.QueryEscape(query) + "&numItems=" + strconv.Itoa(limit+extraItems)
}

// elide strips anything that identifies our credentials from an upstream
// error body before it reaches a log line.
func (c *Client) elide(body []byte, sig signer.Signature) string {
	s := string(body)
	for _, secret := range []string{sig.Value, sig.ConsumerID} {
		if secret != "" {
			s = strings.ReplaceAll(s, secret, redacted)
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxElidedBody {
		s = s[:maxElidedBody] + "..."
	}
	return s
}

func statusClass(code int) string {
	switch {
	case code == http.StatusTooManyRequests:
		return "429"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
