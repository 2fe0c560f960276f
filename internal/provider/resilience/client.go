package resilience

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while its
// breaker is open.
var ErrCircuitOpen = errors.New("upstream circuit open")

// StatusError is a transient upstream response: a 5xx or a 429.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Name identifies the upstream in the registry and in logs.
	Name string

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker defaults to DefaultBreakerSettings.
	Breaker *BreakerSettings

	// Registry receives the client and its outcomes when set.
	Registry *Registry

	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper

	Logger zerolog.Logger
}

// DefaultClientConfig returns the configuration used for both upstreams.
func DefaultClientConfig(name string) ClientConfig {
	breaker := DefaultBreakerSettings()
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Breaker:         &breaker,
		Logger:          zerolog.Nop(),
	}
}

type httpResult struct {
	resp *http.Response
}

// Client is an HTTP client that retries transient upstream failures behind a
// circuit breaker. It also implements http.RoundTripper so it can sit below
// libraries that bring their own *http.Client, like the OAuth2 token exchange.
type Client struct {
	config  ClientConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*httpResult]
	log     zerolog.Logger
}

// NewClient creates a Client and registers it when a registry is configured.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.Breaker == nil {
		cfg.Breaker = defaults.Breaker
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	log := cfg.Logger.With().Str("upstream", cfg.Name).Logger()
	c := &Client{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: newBreaker(cfg.Name, *cfg.Breaker, cfg.Logger),
		log:     log,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(c)
	}
	return c
}

// Name returns the upstream name.
func (c *Client) Name() string {
	return c.config.Name
}

// State returns the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Counts returns the breaker counts of the current window.
func (c *Client) Counts() gobreaker.Counts {
	return c.breaker.Counts()
}

// HTTPClient returns a plain *http.Client whose transport is c.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{Transport: c}
}

// RoundTrip implements http.RoundTripper.
func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	return c.Do(req)
}

// Do sends req, retrying network errors, 5xx and 429 responses with
// exponential backoff. A transient response that survives all retries is
// returned as is, so callers see the upstream status. A 429 whose Retry-After
// exceeds MaxInterval is not retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	getBody, err := replayableBody(req)
	if err != nil {
		return nil, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response
	operation := func() error {
		res, err := c.breaker.Execute(func() (*httpResult, error) {
			attempt := req.Clone(ctx)
			if getBody != nil {
				body, err := getBody()
				if err != nil {
					return nil, fmt.Errorf("rewinding request body: %w", err)
				}
				attempt.Body = body
			}

			resp, err := c.http.Do(attempt)
			if err != nil {
				return nil, err
			}
			if transient(resp.StatusCode) {
				return &httpResult{resp}, &StatusError{StatusCode: resp.StatusCode, RetryAfter: retryAfter(resp)}
			}
			return &httpResult{resp}, nil
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(fmt.Errorf("%s: %w", c.config.Name, ErrCircuitOpen))
		}
		if res != nil {
			discard(last)
			last = res.resp
		}

		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.RetryAfter > c.config.MaxInterval {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		c.log.Debug().Err(err).Dur("wait", wait).Str("path", req.URL.Path).Msg("retrying upstream request")
	}

	err = backoff.RetryNotify(operation, policy, notify)
	c.record(err)
	if err != nil && last == nil {
		return nil, err
	}
	return last, nil
}

func (c *Client) record(err error) {
	if c.config.Registry == nil {
		return
	}
	if err != nil {
		c.config.Registry.RecordFailure(c.config.Name, err)
		return
	}
	c.config.Registry.RecordSuccess(c.config.Name)
}

func transient(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(resp *http.Response) time.Duration {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffering request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}, nil
}

func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
