package zoom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/aura-webinar/relay/config"
)

const grantAccountCredentials = "account_credentials"

// TokenSource exchanges the Server-to-Server OAuth app credentials for a short-lived bearer token.
// Tokens are not cached: every call performs a fresh exchange.
type TokenSource struct {
	tokenURL   string
	accountID  string
	basicAuth  string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewTokenSource creates a token source for the configured account.
func NewTokenSource(cfg config.ZoomConfig, httpClient *http.Client, logger *zap.Logger) *TokenSource {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.ClientID + ":" + cfg.ClientSecret))
	return &TokenSource{
		tokenURL:   cfg.OAuthBaseURL + "/oauth/token",
		accountID:  cfg.AccountID,
		basicAuth:  "Basic " + creds,
		timeout:    cfg.TokenTimeout(),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Token performs one token exchange. Any failure is reported as ErrAuth and must not be retried by the caller.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("grant_type", grantAccountCredentials)
	q.Set("account_id", s.accountID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrAuth, err)
	}
	req.Header.Set("Authorization", s.basicAuth)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrAuth, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", ErrAuth, resp.StatusCode, truncate(body))
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decode body: %v", ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response has no access_token", ErrAuth)
	}
	s.logger.Debug("zoom access token obtained", zap.Int("expires_in", tr.ExpiresIn))
	return tr.AccessToken, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
