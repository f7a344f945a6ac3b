package osu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/go-training/osu-companion/pkg/core"
)

// Credentials identify the registered OAuth application.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// AuthorizeURL builds the consent page URL for req. It performs no I/O.
func (c *Client) AuthorizeURL(req core.AuthorizationRequest) core.AuthorizationURL {
	conf := &oauth2.Config{
		ClientID:    req.ClientID,
		RedirectURL: req.RedirectURI,
		Scopes:      strings.Fields(req.Scope),
		Endpoint:    c.Endpoint(),
	}
	return core.AuthorizationURL(conf.AuthCodeURL(req.State))
}

// ExchangeCode trades an authorization code for an access token.
//
// Non-2xx answers yield core.ErrTokenExchangeFailed with status and body; a 2xx
// answer without access_token yields core.ErrMalformedResponse.
func (c *Client) ExchangeCode(ctx context.Context, creds Credentials, code, redirectURI, scope string) (*core.TokenResponse, error) {
	ctx, span := tracer.Start(ctx, "osu.token", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	data := url.Values{}
	data.Set("client_id", creds.ClientID)
	data.Set("client_secret", creds.ClientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", redirectURI)
	data.Set("scope", scope)

	core.AddRequestAttributes(ctx,
		attribute.String("http.request.method", http.MethodPost),
		attribute.String("url.path", tokenPath),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("osu: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, &core.Error{Kind: core.ErrTokenExchangeFailed, Reason: "request failed", Err: err}
	}
	defer closeBody("token", resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &core.Error{Kind: core.ErrTokenExchangeFailed, Status: resp.StatusCode, Reason: "read response", Err: err}
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, &core.Error{
			Kind:   core.ErrTokenExchangeFailed,
			Status: resp.StatusCode,
			Body:   preview(body),
			Reason: providerMessage(body),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, core.MalformedResponse("token response is not JSON")
	}
	if at := gjson.GetBytes(body, "access_token"); !at.Exists() || at.Type != gjson.String || at.String() == "" {
		return nil, core.MalformedResponse("token response missing access_token")
	}

	var token core.TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &core.Error{Kind: core.ErrMalformedResponse, Reason: "decode token response", Err: err}
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	token.Expiry = c.tokenExpiry(token)
	return &token, nil
}

// tokenExpiry prefers expires_in and falls back to the exp claim when the
// access token is a JWT. The signature is not checked: the token is only
// ever sent back to its issuer.
func (c *Client) tokenExpiry(token core.TokenResponse) time.Time {
	if token.ExpiresIn > 0 {
		return c.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token.AccessToken, jwt.MapClaims{})
	if err != nil {
		return time.Time{}
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
