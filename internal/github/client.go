// Package github wraps the GitHub REST API behind folio's snapshot model.
package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	gh "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"

	ferrors "github.com/foliolab/folio/internal/errors"
	"github.com/foliolab/folio/internal/kv"
)

const (
	installationTokenKey = "folio:github-token"
	tokenRefreshMargin   = 5 * time.Minute // installation tokens last 1h, refresh early
)

// Client wraps the GitHub API. Auth is either a personal access token or a
// GitHub App installation (JWT-minted tokens cached in the key-value store).
type Client struct {
	gh     *gh.Client
	logger zerolog.Logger
}

// NewClient creates a client authenticated with a personal access token.
// An empty token yields an unauthenticated client (60 req/h — fine for tests).
func NewClient(token string, logger zerolog.Logger) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if token != "" {
		httpClient.Transport = &tokenTransport{token: token, base: http.DefaultTransport}
	}
	return &Client{
		gh:     gh.NewClient(httpClient),
		logger: logger.With().Str("component", "github").Logger(),
	}
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// Installation tokens are minted on demand and cached in the key-value store.
func NewAppClient(appID, installationID int64, privateKeyPath string, cache kv.Store, logger zerolog.Logger) (*Client, error) {
	keyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(keyData)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	minter := &tokenMinter{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		cache:          cache,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		apiBase:        "https://api.github.com",
		logger:         logger.With().Str("component", "github_app").Logger(),
	}

	httpClient := &http.Client{
		Transport: &appTransport{minter: minter, base: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}
	return &Client{
		gh:     gh.NewClient(httpClient),
		logger: logger.With().Str("component", "github").Logger(),
	}, nil
}

// SetBaseURL points the client at a different API root. Used by tests.
func (c *Client) SetBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	c.gh.BaseURL = u
	return nil
}

// RateLimit probes the remaining core-API quota. Callers abort scheduled bulk
// syncs when Remaining is below the configured floor.
func (c *Client) RateLimit(ctx context.Context) (*RateBudget, error) {
	limits, resp, err := c.gh.RateLimits(ctx)
	if err != nil {
		return nil, apiError("rate_limit", resp, err)
	}
	core := limits.GetCore()
	if core == nil {
		return nil, ferrors.NewAPIError("github", 0, "rate limit response missing core bucket")
	}
	return &RateBudget{
		Remaining: core.Remaining,
		Limit:     core.Limit,
		ResetTime: core.Reset.Time,
	}, nil
}

// tokenTransport injects a PAT into every request.
type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "token "+t.token)
	return t.base.RoundTrip(req2)
}

// appTransport injects a fresh installation token into every request.
type appTransport struct {
	minter *tokenMinter
	base   http.RoundTripper
}

func (t *appTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.minter.installationToken(req.Context())
	if err != nil {
		return nil, err
	}
	req2 := req.Clone(req.Context())
	req2.Header.Set("Authorization", "token "+token)
	return t.base.RoundTrip(req2)
}

// tokenMinter generates GitHub App installation tokens and caches them.
type tokenMinter struct {
	appID          int64
	installationID int64
	privateKey     *rsa.PrivateKey
	cache          kv.Store
	httpClient     *http.Client
	apiBase        string
	logger         zerolog.Logger
}

// cachedToken is the JSON shape stored in the key-value cache.
type cachedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (m *tokenMinter) installationToken(ctx context.Context) (string, error) {
	if raw, err := m.cache.Get(ctx, installationTokenKey); err == nil {
		var tok cachedToken
		if json.Unmarshal(raw, &tok) == nil && time.Until(tok.ExpiresAt) > tokenRefreshMargin {
			return tok.Token, nil
		}
	}

	m.logger.Info().Msg("minting new installation token")
	jwtToken, err := m.generateJWT()
	if err != nil {
		return "", fmt.Errorf("generating JWT: %w", err)
	}

	endpoint := fmt.Sprintf("%s/app/installations/%d/access_tokens", m.apiBase, m.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", ferrors.NewAPIError("github", resp.StatusCode, "installation token request failed: "+string(body))
	}

	var tok cachedToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}

	if raw, err := json.Marshal(tok); err == nil {
		if err := m.cache.Set(ctx, installationTokenKey, raw); err != nil {
			m.logger.Warn().Err(err).Msg("failed to cache installation token")
		}
	}

	return tok.Token, nil
}

func (m *tokenMinter) generateJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", m.appID),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing JWT: %w", err)
	}
	return signed, nil
}

// apiError converts a go-github error into a structured APIError.
func apiError(op string, resp *gh.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &ferrors.APIError{Service: "github", StatusCode: status, Message: op + " failed", Err: err}
}
