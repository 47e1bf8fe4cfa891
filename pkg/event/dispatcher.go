package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"
)

// Dispatcher delivers one event payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, e *LogEvent) error
}

// Config configures the HTTP dispatcher from the environment.
type Config struct {
	Endpoint        string        `env:"EVENTS_ENDPOINT,required"`
	Timeout         time.Duration `env:"EVENTS_DISPATCH_TIMEOUT" envDefault:"10s"`
	MaxRetries      int           `env:"EVENTS_DISPATCH_RETRIES" envDefault:"3"`
	InitialInterval time.Duration `env:"EVENTS_DISPATCH_BACKOFF" envDefault:"500ms"`
	MaxInterval     time.Duration `env:"EVENTS_DISPATCH_BACKOFF_MAX" envDefault:"10s"`
}

// HTTPDispatcher posts events as JSON and retries transient failures with
// exponential backoff. Responses in the 2xx range count as delivered; 4xx
// responses other than 408/425/429 are permanent and are not retried.
type HTTPDispatcher struct {
	endpoint        string
	client          *http.Client
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// DispatcherOption configures an HTTPDispatcher.
type DispatcherOption func(*HTTPDispatcher)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *HTTPDispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) DispatcherOption {
	return func(d *HTTPDispatcher) {
		if n >= 0 {
			d.maxRetries = n
		}
	}
}

// WithBackoff sets the initial and maximum retry intervals.
func WithBackoff(initial, max time.Duration) DispatcherOption {
	return func(d *HTTPDispatcher) {
		if initial > 0 {
			d.initialInterval = initial
		}
		if max > 0 {
			d.maxInterval = max
		}
	}
}

// NewHTTPDispatcher creates a dispatcher posting to the given endpoint.
func NewHTTPDispatcher(endpoint string, opts ...DispatcherOption) (*HTTPDispatcher, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Join(ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, endpoint)
	}

	d := &HTTPDispatcher{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxRetries:      3,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NewHTTPDispatcherFromConfig creates a dispatcher from an env-driven
// config.
func NewHTTPDispatcherFromConfig(cfg Config) (*HTTPDispatcher, error) {
	return NewHTTPDispatcher(cfg.Endpoint,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithRetries(cfg.MaxRetries),
		WithBackoff(cfg.InitialInterval, cfg.MaxInterval),
	)
}

// Dispatch posts the event, retrying transient failures until the retry
// budget or the context runs out.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, e *LogEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.Join(ErrDispatchFailed, err)
	}

	var lastErr error
	for attempt := 0; attempt <= d.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrDispatchFailed, ctx.Err())
			case <-time.After(d.backoff(attempt)):
			}
		}

		permanent, err := d.attempt(ctx, payload)
		if err == nil {
			return nil
		}
		if permanent {
			return errors.Join(ErrPermanentFailure, err)
		}
		lastErr = err
	}

	return errors.Join(ErrDispatchFailed, lastErr)
}

func (d *HTTPDispatcher) attempt(ctx context.Context, payload []byte) (permanent bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return true, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	return isPermanentStatus(resp.StatusCode), err
}

// backoff doubles the interval each retry with a hard cap. Attempt starts
// at 1 for the first retry.
func (d *HTTPDispatcher) backoff(attempt int) time.Duration {
	interval := float64(d.initialInterval) * math.Pow(2, float64(attempt-1))
	if interval > float64(d.maxInterval) {
		interval = float64(d.maxInterval)
	}
	return time.Duration(interval)
}

// isPermanentStatus reports whether the status code cannot resolve with a
// retry. 408, 425 and 429 are transient despite being 4xx.
func isPermanentStatus(statusCode int) bool {
	if statusCode < 400 || statusCode >= 500 {
		return false
	}
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

// NoopDispatcher drops every event. Useful for offline evaluation and
// tests.
type NoopDispatcher struct{}

// Dispatch discards the event.
func (NoopDispatcher) Dispatch(context.Context, *LogEvent) error { return nil }
