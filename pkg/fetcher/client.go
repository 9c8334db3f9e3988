package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sternrassler/letterboxd-client/pkg/pagecache"
	"github.com/Sternrassler/letterboxd-client/pkg/ratelimit"
)

var tracer = otel.Tracer("letterboxd-client/fetcher")

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxd_fetch_requests_total",
		Help: "Total page requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "boxd_fetch_duration_seconds",
		Help:    "Page fetch duration in seconds, including retries and delays",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"source"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxd_fetch_errors_total",
		Help: "Total fetch errors by class",
	}, []string{"class"})
)

// Cooldown gates requests while the site has asked us to back off.
// *ratelimit.Tracker implements it.
type Cooldown interface {
	Wait(ctx context.Context) error
	UpdateFromResponse(ctx context.Context, status int, headers http.Header) error
}

// BodyCache stores raw page bodies by URL. *pagecache.Manager implements it.
type BodyCache interface {
	Get(ctx context.Context, url string) ([]byte, error)
	Set(ctx context.Context, url string, body []byte) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL roots every Site URL. Defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent is sent with every request unless RandomUserAgent is set.
	UserAgent string

	// RandomUserAgent picks a browser user agent per request.
	RandomUserAgent bool

	// Timeout bounds a single round trip.
	Timeout time.Duration

	// Politeness delay before each network request, drawn uniformly
	// from [MinDelay, MaxDelay]. Both zero disables it.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Retry picks backoff settings per error class.
	// Defaults to RetryConfigForErrorClass.
	Retry RetryPolicy

	// Cooldown is optional.
	Cooldown Cooldown

	// Cache is optional.
	Cache BodyCache
}

// DefaultConfig returns a polite default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		MinDelay:  1 * time.Second,
		MaxDelay:  2 * time.Second,
	}
}

// Client is the HTTP Fetcher.
type Client struct {
	http   *resty.Client
	site   Site
	config Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" && !cfg.RandomUserAgent {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid politeness delay [%v, %v]", cfg.MinDelay, cfg.MaxDelay)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	site, err := NewSite(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return &Client{
		http:   httpClient,
		site:   site,
		config: cfg,
		logger: log.With().Str("component", "fetcher").Logger(),
		sleep:  sleepContext,
	}, nil
}

// Site returns the URL builder for the configured base.
func (c *Client) Site() Site {
	return c.site
}

// SetTransport replaces the HTTP transport (for testing).
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.SetTransport(rt)
}

// Fetch retrieves and parses one page.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	ctx, span := tracer.Start(ctx, "fetcher.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", rawURL))

	start := time.Now()

	if err := validateLocator(rawURL); err != nil {
		errorsTotal.WithLabelValues(string(ErrorClassInvalid)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid locator")
		return nil, err
	}

	if page := c.fromCache(ctx, rawURL); page != nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		requestDuration.WithLabelValues("cache").Observe(time.Since(start).Seconds())
		return page, nil
	}

	var (
		page     *Page
		attempts int
	)
	err := retryWithBackoff(ctx, func() error {
		attempts++
		p, err := c.roundTrip(ctx, rawURL, attempts)
		if err != nil {
			return err
		}
		page = p
		return nil
	}, classify, c.config.Retry)

	requestDuration.WithLabelValues("network").Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Attempts = attempts
			errorsTotal.WithLabelValues(string(fe.Class)).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	if c.config.Cache != nil {
		if err := c.config.Cache.Set(ctx, rawURL, page.Body); err != nil {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Failed to cache page")
		}
	}
	return page, nil
}

// roundTrip performs one gated, delayed request.
func (c *Client) roundTrip(ctx context.Context, rawURL string, attempt int) (*Page, error) {
	if c.config.Cooldown != nil {
		if err := c.config.Cooldown.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
	}
	if err := c.sleep(ctx, c.politenessDelay()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	c.logger.Debug().
		Str("url", rawURL).
		Int("attempt", attempt).
		Msg("Fetching page")

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.userAgent()).
		Get(rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}
		requestsTotal.WithLabelValues("network_error").Inc()
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("HTTP request failed")
		return nil, &FetchError{URL: rawURL, Class: ErrorClassNetwork, Err: err}
	}

	status := resp.StatusCode()
	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	if status >= 400 {
		fe := statusError(rawURL, status)
		if status == http.StatusTooManyRequests {
			if d, ok := ratelimit.ParseRetryAfter(resp.Header().Get("Retry-After"), time.Now()); ok {
				fe.RetryAfter = d
			}
			if c.config.Cooldown != nil {
				if err := c.config.Cooldown.UpdateFromResponse(ctx, status, resp.Header()); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record cooldown")
				}
			}
		}
		c.logger.Warn().
			Str("url", rawURL).
			Int("status", status).
			Str("error_class", string(fe.Class)).
			Msg("Page request error")
		return nil, fe
	}

	page, err := NewPage(rawURL, status, resp.Body())
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Class: ErrorClassInvalid, Err: err}
	}
	return page, nil
}

func (c *Client) fromCache(ctx context.Context, rawURL string) *Page {
	if c.config.Cache == nil {
		return nil
	}

	body, err := c.config.Cache.Get(ctx, rawURL)
	if err != nil {
		if !errors.Is(err, pagecache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", rawURL).Msg("Page cache get error")
		}
		return nil
	}

	page, err := NewPage(rawURL, http.StatusOK, body)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", rawURL).Msg("Cached page unparseable, refetching")
		return nil
	}
	page.FromCache = true
	c.logger.Debug().Str("url", rawURL).Msg("Page served from cache")
	return page
}

func (c *Client) userAgent() string {
	if c.config.RandomUserAgent {
		return browser.Random()
	}
	return c.config.UserAgent
}

func (c *Client) politenessDelay() time.Duration {
	lo, hi := c.config.MinDelay, c.config.MaxDelay
	if hi <= 0 {
		return 0
	}
	if hi == lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

// validateLocator rejects URLs that no retry could ever fetch.
func validateLocator(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &FetchError{URL: rawURL, Class: ErrorClassInvalid, Err: ErrInvalidLocator}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
