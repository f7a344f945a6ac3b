// Package osu talks to the osu! web service: it builds the consent URL,
// exchanges authorization codes for tokens and issues authenticated API v2 calls.
package osu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/go-training/osu-companion/pkg/core"
)

const (
	authorizePath = "/oauth/authorize"
	tokenPath     = "/oauth/token"
	mePath        = "/api/v2/me"
	usersPath     = "/api/v2/users"

	defaultRequestTimeout = 10 * time.Second
	maxBodySize           = 4 << 20
	errorBodyPreview      = 500
)

var tracer = otel.Tracer("github.com/go-training/osu-companion/pkg/osu")

// Client is an osu! web service client bound to one host.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	now            func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRequestTimeout bounds every provider call.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithClock sets the time source used to compute token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a client for baseURL, e.g. "https://osu.ppy.sh".
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = "https://osu.ppy.sh"
	}
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{},
		requestTimeout: defaultRequestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the OAuth endpoints of the host.
func (c *Client) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   c.baseURL + authorizePath,
		TokenURL:  c.baseURL + tokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// bearerClient returns an HTTP client that sends "Authorization: Bearer <token>".
func (c *Client) bearerClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}

// getJSON issues one authenticated GET and decodes a 2xx body into out.
// Non-2xx responses become core.APIError with the status and body.
func (c *Client) getJSON(ctx context.Context, op, accessToken, path string, query url.Values, out any) error {
	ctx, span := tracer.Start(ctx, "osu."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	core.AddRequestAttributes(ctx,
		attribute.String("http.request.method", http.MethodGet),
		attribute.String("url.path", path),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("osu: build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return &core.Error{Kind: core.ErrAPI, Reason: op + " request failed", Err: err}
	}
	defer closeBody(op, resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &core.Error{Kind: core.ErrAPI, Status: resp.StatusCode, Reason: "read " + op + " response", Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return &core.Error{
			Kind:   core.ErrAPI,
			Status: resp.StatusCode,
			Body:   preview(body),
			Reason: providerMessage(body),
		}
	}

	slog.Debug("osu response", "op", op, "status", resp.StatusCode, "bytes", len(body))
	if err := json.Unmarshal(body, out); err != nil {
		return &core.Error{Kind: core.ErrMalformedResponse, Reason: "decode " + op + " response", Err: err}
	}
	return nil
}

func closeBody(op string, body io.Closer) {
	if errClose := body.Close(); errClose != nil {
		slog.Error("osu: close body error", "op", op, "error", errClose)
	}
}

// providerMessage extracts a human-readable message from a provider error body.
func providerMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	for _, key := range []string{"error_description", "hint", "message", "error"} {
		if v := gjson.GetBytes(body, key); v.Exists() && v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > errorBodyPreview {
		s = s[:errorBodyPreview]
	}
	return s
}
