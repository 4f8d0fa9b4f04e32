package geocode

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxRetries bounds network-failure retries for batch runs. The
// interactive streaming surface uses a tighter bound (see ServeMaxRetries).
const (
	DefaultMaxRetries = 5
	ServeMaxRetries   = 3

	defaultBackoffBase = 500 * time.Millisecond
	maxBackoff         = 64 * time.Second
)

// Client geocodes one normalized address. Provider failures are expressed as
// Result statuses, never as errors; the error return is reserved for context
// cancellation.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithMaxRetries bounds network-failure retries per address.
func WithMaxRetries(n int) Option {
	return func(c *client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRegion sets the provider region bias (e.g. "ar").
func WithRegion(region string) Option {
	return func(c *client) {
		c.region = region
	}
}

// WithBackoffBase overrides the base backoff delay. Tests use this to avoid
// real sleeps.
func WithBackoffBase(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

type client struct {
	httpClient  *http.Client
	apiKey      string
	region      string
	maxRetries  int
	backoffBase time.Duration
}

// NewClient creates a geocoding Client for the given API key.
func NewClient(apiKey string, opts ...Option) Client {
	c := &client{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		apiKey:      apiKey,
		maxRetries:  DefaultMaxRetries,
		backoffBase: defaultBackoffBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode resolves an address, retrying transient failures with exponential
// backoff. Attempt n sleeps base×2^n before the retry. Quota pushback
// (OVER_QUERY_LIMIT) retries without consuming the network-failure budget;
// REQUEST_DENIED and successful lookups short-circuit immediately.
func (c *client) Geocode(ctx context.Context, address string) (*Result, error) {
	var retries, netFailures int

	for attempt := 0; ; attempt++ {
		outcome, err := c.attempt(ctx, address)
		if err != nil {
			return nil, err
		}

		switch outcome.kind {
		case outcomeSuccess, outcomeTerminal:
			result := outcome.result
			result.Retries = retries
			return result, nil

		case outcomeRetry:
			if outcome.reason == retryNetwork {
				netFailures++
				if netFailures >= c.maxRetries {
					return &Result{Status: StatusNetworkError, Retries: retries}, nil
				}
			}
			retries++

			delay := c.backoffBase << attempt
			if delay > maxBackoff || delay <= 0 {
				delay = maxBackoff
			}
			zap.L().Debug("geocode: backing off",
				zap.String("address", address),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Bool("quota", outcome.reason == retryQuota),
			)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
