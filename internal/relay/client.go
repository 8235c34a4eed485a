// Package relay posts contact form submissions to the hosted form relay.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	siteerrors "github.com/conneroisu/shopfront/internal/errors"
	"github.com/conneroisu/shopfront/internal/form"
	"github.com/conneroisu/shopfront/internal/logging"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client delivers payloads to a relay endpoint. It satisfies form.Submitter.
type Client struct {
	endpoint string
	http     *http.Client
	logger   logging.Logger
}

var _ form.Submitter = (*Client)(nil)

// NewClient creates a relay client. A zero timeout uses DefaultTimeout.
func NewClient(endpoint string, timeout time.Duration, logger logging.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		logger:   logger.WithComponent("relay"),
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Endpoint returns the configured relay URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Submit posts payload as JSON. Any 2xx response counts as delivered.
func (c *Client) Submit(ctx context.Context, payload form.Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return siteerrors.NewInternalError("ERR_ENCODE_PAYLOAD", "failed to encode submission", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return siteerrors.NewSubmissionError("ERR_RELAY_REQUEST", "failed to build relay request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn(ctx, err, "Relay unreachable", "endpoint", c.endpoint)
		return siteerrors.NewSubmissionError("ERR_RELAY_UNREACHABLE", "form relay could not be reached", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Info(ctx, "Submission delivered",
			"status", resp.StatusCode,
			"duration_ms", time.Since(start).Milliseconds())
		return nil
	}

	detail := readDetail(resp.Body)
	err = siteerrors.NewSubmissionError("ERR_RELAY_STATUS",
		fmt.Sprintf("form relay responded with %d", resp.StatusCode), nil).
		WithContext("status", resp.StatusCode).
		WithContext("detail", detail)
	c.logger.Warn(ctx, err, "Relay rejected submission",
		"status", resp.StatusCode,
		"detail", logging.SanitizeForLog(detail))
	return err
}

// readDetail pulls a short explanation out of an error response, preferring a
// JSON "message" field.
func readDetail(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}
