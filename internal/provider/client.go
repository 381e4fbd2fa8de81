package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/apfl99/DexSwipe-Backend/internal/circuitbreaker"
	"github.com/apfl99/DexSwipe-Backend/internal/metrics"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline/retry"
	"github.com/apfl99/DexSwipe-Backend/internal/provider/ratelimit"
	"github.com/apfl99/DexSwipe-Backend/internal/tracing"
)

const maxBodyBytes = 8 << 20

// RetryPolicy bounds the attempts of one credential style.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
		Timeout:     15 * time.Second,
	}
}

// Delay is the wait after the given zero-based failed attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return p.MaxDelay
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt)))
	if d > p.MaxDelay || d < 0 {
		return p.MaxDelay
	}
	return d
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	return p
}

// AuthStyle is one way of presenting a credential.
type AuthStyle string

const (
	AuthNone         AuthStyle = "none"
	AuthBearer       AuthStyle = "bearer"
	AuthXAPIKey      AuthStyle = "x_api_key"
	AuthAPIKeyHeader AuthStyle = "apikey"
	AuthQueryKey     AuthStyle = "query"
)

// QueryKeyParam carries the credential for AuthQueryKey.
const QueryKeyParam = "api_key"

type Credential struct {
	Style  AuthStyle
	Secret string
}

// FallbackCredentials returns secret in every style, in the order they are
// tried. An empty secret yields a single anonymous credential.
func FallbackCredentials(secret string) []Credential {
	if secret == "" {
		return []Credential{{Style: AuthNone}}
	}
	return []Credential{
		{Style: AuthBearer, Secret: secret},
		{Style: AuthXAPIKey, Secret: secret},
		{Style: AuthAPIKeyHeader, Secret: secret},
		{Style: AuthQueryKey, Secret: secret},
	}
}

// NewBreaker builds a provider breaker that only counts failures worth
// retrying and publishes its state.
func NewBreaker(provider string, failures int, openTimeout time.Duration) *circuitbreaker.Breaker {
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: failures,
		OpenTimeout:      openTimeout,
		CountsAsFailure: func(err error) bool {
			return retry.Classify(err).IsTransient()
		},
		OnStateChange: func(_, to circuitbreaker.State) {
			metrics.ProviderCircuitState.WithLabelValues(provider).Set(float64(to))
		},
	})
}

// Client is a retrying JSON GET client for one provider.
type Client struct {
	name       string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *circuitbreaker.Breaker
	policy     RetryPolicy
	userAgent  string
	envelope   bool
	sleepFn    func(context.Context, time.Duration) error
	logger     *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p.normalized() }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithEnvelope makes the client inspect {code, message} business envelopes.
func WithEnvelope() Option {
	return func(c *Client) { c.envelope = true }
}

func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleepFn = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// DefaultUserAgent is browser-like; DexScreener answers 403 to bare clients.
const DefaultUserAgent = "Mozilla/5.0 (compatible; DexSwipe/1.0; +https://dexswipe.app)"

func NewClient(name string, opts ...Option) *Client {
	c := &Client{
		name:       name,
		httpClient: &http.Client{},
		policy:     DefaultRetryPolicy(),
		userAgent:  DefaultUserAgent,
		sleepFn:    sleepCtx,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "provider", "provider", name)
	return c
}

func (c *Client) Name() string {
	return c.name
}

// FetchJSON GETs rawURL and returns the body. Each credential is tried in
// order with the retry policy; a rejected credential moves on to the next.
func (c *Client) FetchJSON(ctx context.Context, endpoint, rawURL string, creds ...Credential) (json.RawMessage, error) {
	if len(creds) == 0 {
		creds = []Credential{{Style: AuthNone}}
	}

	ctx, span := tracing.Start(ctx, "provider.fetch",
		attribute.String("provider", c.name),
		attribute.String("endpoint", endpoint),
	)
	start := time.Now()

	var (
		body    json.RawMessage
		lastErr error
	)
	for _, cred := range creds {
		body, lastErr = c.fetchWithRetry(ctx, endpoint, rawURL, cred)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, ErrUnauthorized) {
			break
		}
		c.logger.Warn("credential rejected, trying next style",
			"endpoint", endpoint,
			"auth_style", string(cred.Style),
			"error", lastErr,
		)
	}
	metrics.ProviderRequestDuration.WithLabelValues(c.name, endpoint).Observe(time.Since(start).Seconds())
	tracing.End(span, lastErr)

	if lastErr != nil {
		if errors.Is(lastErr, ErrUnauthorized) {
			return nil, fmt.Errorf("fetch %s %s: %w", c.name, endpoint, lastErr)
		}
		return nil, lastErr
	}
	return body, nil
}

func (c *Client) fetchWithRetry(ctx context.Context, endpoint, rawURL string, cred Credential) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.ProviderRetriesTotal.WithLabelValues(c.name, endpoint).Inc()
			if err := c.sleepFn(ctx, c.policy.Delay(attempt-1)); err != nil {
				return nil, err
			}
		}

		body, err := c.attempt(ctx, endpoint, rawURL, cred)
		metrics.ProviderRequestsTotal.WithLabelValues(c.name, endpoint, outcomeLabel(err)).Inc()
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return nil, err
		}
		var limited *LimitedError
		if errors.As(err, &limited) {
			return nil, err
		}
		lastErr = err
		if !retry.Classify(err).IsTransient() {
			return nil, err
		}
		c.logger.Debug("provider attempt failed",
			"endpoint", endpoint,
			"attempt", attempt+1,
			"max_attempts", c.policy.MaxAttempts,
			"error", err,
		)
	}

	var be *businessError
	if errors.As(lastErr, &be) {
		return nil, &LimitedError{Provider: c.name, Endpoint: endpoint, Code: be.code, Message: be.message}
	}
	return nil, fmt.Errorf("fetch %s %s after %d attempts: %w", c.name, endpoint, c.policy.MaxAttempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, endpoint, rawURL string, cred Credential) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body json.RawMessage
	call := func() error {
		var err error
		body, err = c.do(ctx, endpoint, rawURL, cred)
		return err
	}
	var err error
	if c.breaker == nil {
		err = call()
	} else {
		err = c.breaker.Do(call)
	}
	return body, err
}

func (c *Client) do(ctx context.Context, endpoint, rawURL string, cred Credential) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.policy.Timeout)
	defer cancel()

	req, err := c.newRequest(ctx, rawURL, cred)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", c.name, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", c.name, endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Provider: c.name, Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(data)}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("decode %s %s response: invalid json", c.name, endpoint)
	}

	if c.envelope {
		env := ParseEnvelope(data)
		if env.HasCode && env.Code != CodeSuccess {
			switch {
			case authCodes[env.Code]:
				return nil, &businessError{code: env.Code, message: env.Message, auth: true}
			case transientCodes[env.Code]:
				return nil, retry.Transient(&businessError{code: env.Code, message: env.Message})
			default:
				return nil, &LimitedError{Provider: c.name, Endpoint: endpoint, Code: env.Code, Message: env.Message}
			}
		}
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, rawURL string, cred Credential) (*http.Request, error) {
	if cred.Style == AuthQueryKey {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		q.Set(QueryKeyParam, cred.Secret)
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	switch cred.Style {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+cred.Secret)
	case AuthXAPIKey:
		req.Header.Set("X-API-KEY", cred.Secret)
	case AuthAPIKeyHeader:
		req.Header.Set("apikey", cred.Secret)
	}
	return req, nil
}

func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return "http_" + strconv.Itoa(httpErr.StatusCode)
	}
	var limited *LimitedError
	switch {
	case errors.As(err, &limited):
		return "limited"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var be *businessError
	if errors.As(err, &be) {
		return "business_" + strconv.Itoa(be.code)
	}
	return "error"
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
