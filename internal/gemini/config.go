package gemini

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

type Config struct {
	BaseURL string
	// APIKey may be empty at construction; Analyze fails with ErrMissingAPIKey.
	APIKey string

	PollInterval   time.Duration // readiness poll period (default: 2s)
	ReadyTimeout   time.Duration // max wait for ACTIVE (default: 180s)
	RequestTimeout time.Duration // per HTTP call (default: 5m)
	DeleteTimeout  time.Duration // best-effort cleanup call (default: 10s)

	MaxRetries  int           // status GET retries (default: 2)
	BaseBackoff time.Duration // initial backoff (default: 200ms)

	MaxIdleConns        int // default: 20
	MaxIdleConnsPerHost int // default: 20

	HTTPClient *http.Client
}

// Validate checks the values WithDefaults cannot fill in.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("BaseURL is required")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("BaseURL %q must be http(s)", c.BaseURL)
	}
	return nil
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 180 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	if cfg.DeleteTimeout <= 0 {
		cfg.DeleteTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 20
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 20
	}

	return cfg
}

// Client talks to the Gemini REST API: file upload, readiness polling,
// structured generation and file cleanup.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gemini config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	// allowed: the file gets one status check before the wait expires
	if cfg.PollInterval > cfg.ReadyTimeout {
		logger.Warn("gemini poll interval exceeds ready timeout",
			zap.Duration("poll_interval", cfg.PollInterval),
			zap.Duration("ready_timeout", cfg.ReadyTimeout),
		)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("gemini"),
	}, nil
}

func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// HasAPIKey reports whether Analyze can authenticate.
func (c *Client) HasAPIKey() bool {
	return c.cfg.APIKey != ""
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
