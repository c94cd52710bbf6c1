// Package upstream calls the downstream answer service and extracts a
// displayable message from its loosely specified response envelope.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

var (
	// ErrTimeout means the call exceeded the configured deadline.
	ErrTimeout = errors.New("upstream: request timed out")
	// ErrUnreachable means the call failed before a response arrived
	// (connection refused, DNS, TLS).
	ErrUnreachable = errors.New("upstream: service unreachable")
	// ErrNoReply means a response arrived but no displayable message could
	// be extracted from it.
	ErrNoReply = errors.New("upstream: no reply in response")
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Options configures a Client.
type Options struct {
	URL           string
	AuthToken     string
	AuthInHeader  bool // send the token as a bearer header instead of a body attribute
	Product       string
	RequestSource string
	Timeout       time.Duration
	ReplyFields   []string
}

// Client is an HTTP client for the answer service.
type Client struct {
	opts   Options
	client *http.Client
	logger *slog.Logger
}

// New creates a new answer service client.
func New(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		opts:   opts,
		client: &http.Client{},
		logger: logger,
	}
}

// queryRequest is the canonical request shape the answer service expects.
// The auth token is carried in sessionAttributes unless AuthInHeader is set;
// it must never be logged.
type queryRequest struct {
	Query             string            `json:"query"`
	SessionAttributes sessionAttributes `json:"sessionAttributes"`
}

type sessionAttributes struct {
	AuthToken     string `json:"auth_token,omitempty"`
	Product       string `json:"product"`
	RequestSource string `json:"request_source"`
}

// Ask sends a single query and returns the extracted answer text. The call
// is bounded by the configured timeout; on expiry the in-flight request is
// cancelled and ErrTimeout is returned.
func (c *Client) Ask(ctx context.Context, query string) (string, error) {
	body, status, err := c.do(ctx, query)
	if err != nil {
		return "", err
	}
	c.logger.Debug("answer service responded", "status", status, "bytes", len(body))

	text, err := ExtractMessage(body, c.opts.ReplyFields)
	if err != nil {
		return "", err
	}
	return text, nil
}

// ProbeResult reports the outcome of a connectivity probe.
type ProbeResult struct {
	Status  int
	Elapsed time.Duration
	Body    string
}

// Probe sends a canned query and reports the raw outcome without extraction.
func (c *Client) Probe(ctx context.Context, query string) (*ProbeResult, error) {
	start := time.Now()
	body, status, err := c.do(ctx, query)
	if err != nil {
		return nil, err
	}
	snippet := string(body)
	if len(snippet) > 300 {
		snippet = snippet[:300]
	}
	return &ProbeResult{
		Status:  status,
		Elapsed: time.Since(start),
		Body:    snippet,
	}, nil
}

// do issues the POST and returns the raw response body.
func (c *Client) do(ctx context.Context, query string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	q := queryRequest{
		Query: query,
		SessionAttributes: sessionAttributes{
			Product:       c.opts.Product,
			RequestSource: c.opts.RequestSource,
		},
	}
	if !c.opts.AuthInHeader {
		q.SessionAttributes.AuthToken = c.opts.AuthToken
	}

	payload, err := json.Marshal(q)
	if err != nil {
		return nil, 0, fmt.Errorf("marshalling query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.AuthInHeader {
		req.Header.Set("Authorization", "Bearer "+c.opts.AuthToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, classifyTransportError(ctx, err)
	}
	return body, resp.StatusCode, nil
}

// classifyTransportError maps a transport failure to the error taxonomy.
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}
