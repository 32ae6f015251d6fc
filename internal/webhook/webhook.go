// Package webhook implements the text exchange over a JSON HTTP webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/longkey1/chatline/internal/chatline"
	"github.com/pkg/errors"
)

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 1 << 20

// Request is the body posted to the webhook
type Request struct {
	Message string `json:"message"`
}

// Response is the body expected from the webhook
type Response struct {
	Reply *string `json:"reply"`
}

// Client implements chatline.Exchanger for a webhook endpoint
type Client struct {
	url        string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient creates a webhook client posting to url
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts content and returns the reply. A missing reply field yields an
// empty string. Every failure is a *chatline.ExchangeFailure.
func (c *Client) Send(ctx context.Context, content string) (string, error) {
	// Convert request body to JSON
	jsonData, err := json.Marshal(Request{Message: content})
	if err != nil {
		return "", failure("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", failure("create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", failure("send request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", failure("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &chatline.ExchangeFailure{Reason: fmt.Sprintf("status %d", resp.StatusCode)}
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return "", failure("parse response", err)
	}
	if result.Reply == nil {
		return "", nil
	}
	return *result.Reply, nil
}

func failure(reason string, err error) error {
	return &chatline.ExchangeFailure{Reason: reason, Err: errors.Wrap(err, "webhook")}
}
