package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/spacelink/spacelink/internal/core"
	"github.com/spacelink/spacelink/internal/core/engine"
	"github.com/spacelink/spacelink/internal/metrics"
)

const (
	// DefaultBaseURL is the public API root of the knowledge service.
	DefaultBaseURL = "https://api.capacities.io"

	defaultTimeout   = 30 * time.Second
	maxBodyBytes     = 8 << 20
	maxDetailBytes   = 512
	redactedToken    = "[REDACTED]"
	outcomeSuccess   = "success"
	outcomeSynthetic = "synthetic"
)

// Config carries what the gateway needs from the credential source.
type Config struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	StrictDecode bool
	UserAgent    string
}

// Gateway is the single choke point for outbound calls: it classifies,
// throttles, authenticates, executes, and normalizes every request.
type Gateway struct {
	baseURL    *url.URL
	token      string
	timeout    time.Duration
	userAgent  string
	normalizer Normalizer
	client     *http.Client
	tracker    *engine.Tracker
	logger     *logging.Logger
	clock      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithTracker injects the rate budget tracker owned by this gateway.
func WithTracker(tracker *engine.Tracker) Option {
	return func(g *Gateway) {
		if tracker != nil {
			g.tracker = tracker
		}
	}
}

// WithLogger sets the logger for per-dispatch debug lines.
func WithLogger(logger *logging.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithClock overrides the time source used for durations.
func WithClock(clock func() time.Time) Option {
	return func(g *Gateway) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// New validates the config and builds a gateway. Without WithTracker the
// gateway owns a tracker with DefaultLimits.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("api token is required")
	}

	rawURL := strings.TrimSpace(cfg.BaseURL)
	if rawURL == "" {
		rawURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url: unsupported scheme %q", baseURL.Scheme)
	}

	// Zero selects the default; a negative timeout disables it.
	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = defaultTimeout
	case timeout < 0:
		timeout = 0
	}

	g := &Gateway{
		baseURL:    baseURL,
		token:      token,
		timeout:    timeout,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		normalizer: Normalizer{Strict: cfg.StrictDecode},
		client:     &http.Client{},
		clock:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.tracker == nil {
		g.tracker = engine.NewTracker(nil)
	}

	return g, nil
}

// Tracker exposes the gateway's rate budget tracker.
func (g *Gateway) Tracker() *engine.Tracker {
	if g == nil {
		return nil
	}
	return g.tracker
}

// BaseURL returns the configured API root.
func (g *Gateway) BaseURL() string {
	if g == nil || g.baseURL == nil {
		return ""
	}
	return g.baseURL.String()
}

// Dispatch sends one request. Failures are returned as gateway Error values;
// a context cancelled while waiting for budget is returned as-is.
func (g *Gateway) Dispatch(ctx context.Context, req Request) (*Result, error) {
	if g == nil {
		return nil, errors.New("gateway is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	category := Classify(req.Path)
	started := g.clock()

	if err := g.tracker.AcquireSlot(ctx, category); err != nil {
		return nil, fmt.Errorf("wait for %s budget: %w", category, err)
	}
	waited := g.clock().Sub(started)
	metrics.RecordThrottleWait(string(category), waited)

	dispatched := g.clock()
	result, statusCode, err := g.execute(ctx, category, req)
	duration := g.clock().Sub(dispatched)

	g.observe(req, category, statusCode, result, err, waited, duration)
	return result, err
}

func (g *Gateway) execute(ctx context.Context, category core.RateCategory, req Request) (*Result, int, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	httpReq, err := g.build(ctx, req)
	if err != nil {
		return nil, 0, &TransportError{Op: "build request", Err: g.scrub(err)}
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, 0, &TransportError{Op: req.Method + " " + req.Path, Timeout: isTimeout(err), Err: g.scrub(err)}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, &RateLimitExceeded{Category: category, RetryAfter: retryAfterHeader(resp), Details: g.details(body)}
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, resp.StatusCode, &AuthenticationFailed{Details: g.details(body)}
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, resp.StatusCode, &UpstreamError{StatusCode: resp.StatusCode, Details: g.details(body)}
	}

	if resp.ContentLength > maxBodyBytes || int64(len(body)) > maxBodyBytes {
		return nil, resp.StatusCode, &DecodeFailure{
			Err:     ErrBodyTooLarge,
			Details: fmt.Sprintf("response body exceeds %d bytes", maxBodyBytes),
		}
	}
	if readErr != nil {
		body = nil
	}
	result, err := g.normalizer.Normalize(resp.StatusCode, resp.Header, resp.ContentLength, body)
	if result != nil && result.DecodeErr == nil && readErr != nil {
		result.DecodeErr = fmt.Errorf("read response: %w", g.scrub(readErr))
	}
	return result, resp.StatusCode, err
}

func (g *Gateway) build(ctx context.Context, req Request) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	target := *g.baseURL
	target.Path = strings.TrimRight(g.baseURL.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		httpReq.Header.Set("User-Agent", g.userAgent)
	}

	return httpReq, nil
}

func (g *Gateway) observe(req Request, category core.RateCategory, statusCode int, result *Result, err error, waited, duration time.Duration) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
	} else if result != nil && result.Synthetic {
		outcome = outcomeSynthetic
	}
	metrics.RecordGatewayRequest(string(category), outcome, duration)

	entry := TraceEntry{
		Category:   string(category),
		Method:     req.Method,
		Path:       req.Path,
		StatusCode: statusCode,
		Outcome:    outcome,
		WaitMs:     waited.Milliseconds(),
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	Trace(entry)

	if g.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("category", string(category)),
		zap.Int("status", statusCode),
		zap.String("outcome", outcome),
		zap.Duration("throttle_wait", waited),
		zap.Duration("duration", duration),
	}
	if result != nil && result.DecodeErr != nil {
		fields = append(fields, zap.String("decode_error", result.DecodeErr.Error()))
	}
	if err != nil {
		g.logger.Warn("Upstream request failed", append(fields, zap.Error(err))...)
		return
	}
	g.logger.Debug("Upstream request completed", fields...)
}

func (g *Gateway) details(body []byte) string {
	return truncate(strings.ReplaceAll(strings.TrimSpace(string(body)), g.token, redactedToken), maxDetailBytes)
}

// scrub strips the token from an error message should a transport echo it.
func (g *Gateway) scrub(err error) error {
	if err == nil || !strings.Contains(err.Error(), g.token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), g.token, redactedToken))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
