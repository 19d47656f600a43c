package idxprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/realty/backend/internal/domain/idx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client pages through an HTTP JSON listing feed
type Client struct {
	config  Config
	http    *retryablehttp.Client
	probe   *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger used for attempts and retries
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying transport client, mostly for tests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http.HTTPClient = hc
	}
}

// NewClient creates a provider client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config: cfg,
		logger: zap.NewNop(),
	}
	if cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMax
	rc.Backoff = retryablehttp.DefaultBackoff
	rc.CheckRetry = checkRetry
	// keep the last response so the status can be classified
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	c.http = rc

	for _, opt := range opts {
		opt(c)
	}

	rc.Logger = &leveledLogger{s: c.logger.Sugar()}
	rc.HTTPClient.Transport = &pacedTransport{base: rc.HTTPClient.Transport, limiter: c.limiter}
	c.probe = &http.Client{Timeout: 5 * time.Second, Transport: rc.HTTPClient.Transport}
	return c, nil
}

// Name identifies the provider
func (c *Client) Name() string {
	return c.config.Name
}

// FetchPage requests one page of listings
func (c *Client) FetchPage(ctx context.Context, req idx.PageRequest) (*idx.PageResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(req.Page, req.PageSize), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", idx.ErrProviderAuth, err)
	}
	c.setHeaders(httpReq.Header)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: page %d: %v", idx.ErrProviderUnavailable, req.Page, ctx.Err())
		}
		return nil, fmt.Errorf("%w: page %d after %d attempts: %v", idx.ErrProviderUnavailable, req.Page, c.config.RetryMax+1, err)
	}
	defer resp.Body.Close()

	body, readErr := readAllLimit(resp.Body, c.config.MaxResponseBytes)
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("page %d: %w", req.Page, err)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: page %d: read body: %v", idx.ErrProviderUnavailable, req.Page, readErr)
	}

	decoded, err := decodePage(body, req.Page, req.PageSize)
	if err != nil {
		// a body that does not parse will not parse on the next run either
		return nil, fmt.Errorf("%w: page %d: decode: %v", idx.ErrProviderAuth, req.Page, err)
	}

	c.logger.Debug("Fetched provider page",
		zap.String("provider", c.config.Name),
		zap.Int("page", req.Page),
		zap.Int("records", len(decoded.records)),
		zap.Bool("has_more", decoded.hasMore),
		zap.Duration("duration", time.Since(start)),
	)

	return &idx.PageResponse{
		Records:     decoded.records,
		Undecodable: decoded.undecodable,
		HasMore:     decoded.hasMore,
		Total:       decoded.total,
		Body:        body,
	}, nil
}

// CheckConnection sends a single one-record request without retries
func (c *Client) CheckConnection(ctx context.Context) idx.ConnectionStatus {
	status := idx.ConnectionStatus{
		Provider:      c.config.Name,
		LastCheckedAt: time.Now().UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(1, 1), nil)
	if err != nil {
		status.Message = err.Error()
		return status
	}
	c.setHeaders(req.Header)

	start := time.Now()
	resp, err := c.probe.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Message = err.Error()
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		status.Message = fmt.Sprintf("credentials rejected (HTTP %d)", resp.StatusCode)
	case resp.StatusCode >= 400:
		status.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	default:
		status.Reachable = true
		status.Message = "ok"
	}
	return status
}

func (c *Client) pageURL(page, pageSize int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("limit", strconv.Itoa(pageSize))
	}
	return c.config.listingsURL() + "?" + q.Encode()
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.config.APIKey)
	}
}

// checkRetry retries network failures, timeouts, 429 and 5xx. Any other
// 4xx cannot succeed on retry.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// DefaultRetryPolicy refuses to retry TLS, scheme and redirect errors
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented {
		return true, nil
	}
	return false, nil
}

// classifyStatus maps a final HTTP status to the provider error taxonomy
func classifyStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: HTTP %d: %s", idx.ErrProviderUnavailable, code, snippet(body))
	default:
		return fmt.Errorf("%w: HTTP %d: %s", idx.ErrProviderAuth, code, snippet(body))
	}
}

func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}

var errPayloadTooLarge = errors.New("payload too large")

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errPayloadTooLarge
	}
	return b, nil
}

// pacedTransport waits on the limiter before every attempt
type pacedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *pacedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger
type leveledLogger struct {
	s *zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l *leveledLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l *leveledLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l *leveledLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }

var _ idx.PropertyProvider = (*Client)(nil)
var _ retryablehttp.LeveledLogger = (*leveledLogger)(nil)
