// Package upstream is the HTTP transport to the model backend (or, in
// relayed mode, to the trusted relay).
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nbykov/go-bedrockgw/internal/auth"
	"github.com/nbykov/go-bedrockgw/internal/config"
)

// upstreamHTTPTimeout is the maximum lifetime of one backend request.
// Streams can be long-lived, so the bound is generous; per-turn deadlines
// come from the request context.
const upstreamHTTPTimeout = 5 * time.Minute

// httpClient is shared by all upstream requests.
var httpClient = &http.Client{Timeout: upstreamHTTPTimeout}

// Client builds, signs, and sends backend requests.
type Client struct {
	cfg    *config.Config
	signer *auth.Signer
	http   *http.Client
}

// NewClient creates an upstream client using the given signer.
func NewClient(cfg *config.Config, signer *auth.Signer) *Client {
	return &Client{cfg: cfg, signer: signer, http: httpClient}
}

func (c *Client) base() string {
	if c.cfg.Mode == config.ModeRelayed && c.cfg.RelayURL != "" {
		return strings.TrimRight(c.cfg.RelayURL, "/")
	}
	return c.cfg.EndpointURL()
}

// InvokeStream opens a streaming chat invocation. The caller owns the
// response body and must close it before opening another stream for the
// same turn.
func (c *Client) InvokeStream(ctx context.Context, modelID string, body []byte) (*http.Response, error) {
	u := c.base() + "/model/" + url.PathEscape(modelID) + "/invoke-with-response-stream"
	return c.do(ctx, http.MethodPost, u, body, auth.SignInput{ModelID: modelID, Stream: true})
}

// Invoke performs a synchronous invocation, or submits an asynchronous job
// when async is set.
func (c *Client) Invoke(ctx context.Context, modelID string, body []byte, async bool) (*http.Response, error) {
	op := "invoke"
	if async {
		op = "start-async-invoke"
	}
	u := c.base() + "/model/" + url.PathEscape(modelID) + "/" + op
	return c.do(ctx, http.MethodPost, u, body, auth.SignInput{ModelID: modelID, Async: async})
}

// AsyncStatus fetches the state of an asynchronous job by invocation handle.
func (c *Client) AsyncStatus(ctx context.Context, modelID, invocationArn string) (*http.Response, error) {
	u := c.base() + "/async-invoke/" + url.PathEscape(invocationArn)
	return c.do(ctx, http.MethodGet, u, nil, auth.SignInput{ModelID: modelID, Async: true})
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, in auth.SignInput) (*http.Response, error) {
	in.Method = method
	in.URL = u
	in.Body = body

	headers, err := c.signer.Headers(in)
	if err != nil {
		return nil, fmt.Errorf("authorize request: %w", err)
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if c.cfg.Verbose {
		slog.Info("upstream.request",
			"method", method,
			"url", u,
			"model", in.ModelID,
			"stream", in.Stream,
			"async", in.Async,
			"body_bytes", len(body),
		)
	}
	return c.http.Do(req)
}
