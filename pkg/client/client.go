package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"mercator-hq/pulse/pkg/sample"
	"mercator-hq/pulse/pkg/telemetry/tracing"
)

// SendPath is the ingestion endpoint of a collector.
const SendPath = "/send-metrics"

// DefaultTimeout bounds one Send when Options.HTTPClient is nil.
const DefaultTimeout = 10 * time.Second

// StatusError is returned for a non-2xx answer.
type StatusError struct {
	StatusCode int
	// Body is the start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("collector responded %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Options configures a Client. The zero value is valid.
type Options struct {
	// HTTPClient defaults to a client with DefaultTimeout.
	HTTPClient *http.Client

	// Gzip compresses request bodies.
	Gzip bool

	// UserAgent is sent with every request.
	UserAgent string

	// Token is sent as "Authorization: Bearer <token>" when set.
	Token string

	Logger *slog.Logger
}

// Client posts samples to a collector. It is safe for concurrent use.
type Client struct {
	endpoint  string
	http      *http.Client
	gzip      bool
	userAgent string
	token     string
	logger    *slog.Logger
}

// New creates a client for the collector at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid collector URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid collector URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid collector URL %q: missing host", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + SendPath

	c := &Client{
		endpoint:  u.String(),
		http:      opts.HTTPClient,
		gzip:      opts.Gzip,
		userAgent: opts.UserAgent,
		token:     opts.Token,
		logger:    opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultTimeout}
	}
	if c.userAgent == "" {
		c.userAgent = "pulse-client"
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "client")

	return c, nil
}

// Endpoint returns the full ingestion URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Send posts samples in one request.
func (c *Client) Send(ctx context.Context, samples ...sample.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	var body bytes.Buffer
	for _, s := range samples {
		raw, err := sample.Encode(s)
		if err != nil {
			return err
		}
		body.Write(raw)
		body.WriteByte('\n')
	}
	_, err := c.SendRaw(ctx, &body)
	return err
}

// Submit implements the reporter sink.
func (c *Client) Submit(ctx context.Context, samples ...sample.Sample) error {
	return c.Send(ctx, samples...)
}

// SendRaw posts an already encoded sample stream and returns the accepted
// count reported by the collector.
func (c *Client) SendRaw(ctx context.Context, stream io.Reader) (int, error) {
	payload := stream
	if c.gzip {
		compressed, err := compress(stream)
		if err != nil {
			return 0, err
		}
		payload = compressed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.gzip {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	tracing.Inject(ctx, req.Header)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send samples: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Accepted int    `json:"accepted"`
		Error    string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(data, &result)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := result.Error
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		if len(msg) > 256 {
			msg = msg[:256]
		}
		return result.Accepted, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	c.logger.DebugContext(ctx, "samples sent", "accepted", result.Accepted)
	return result.Accepted, nil
}

func compress(r io.Reader) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := io.Copy(gz, r); err != nil {
		return nil, fmt.Errorf("failed to compress samples: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress samples: %w", err)
	}
	return &buf, nil
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
