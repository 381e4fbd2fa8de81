package goplus

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/provider"
	"github.com/apfl99/DexSwipe-Backend/internal/store"
)

// TokenSource reports where the active credential came from.
type TokenSource string

const (
	SourceAccessTokenEnv TokenSource = "access_token_env"
	SourceCache          TokenSource = "cache"
	SourceRefreshed      TokenSource = "refreshed"
	SourceLegacyAPIKey   TokenSource = "legacy_api_key"
	SourceNone           TokenSource = "none"
)

const (
	accessTokenCacheKey = "goplus:access_token"
	refreshBefore       = 5 * time.Minute
	defaultTokenTTL     = 6 * time.Hour
	issueTimeout        = 12 * time.Second
)

type AuthConfig struct {
	BaseURL     string
	AppKey      string
	AppSecret   string
	AccessToken string
	APIKey      string
}

// Authenticator resolves the GoPlus credential: a static access token, a
// token issued from the app key and cached, or the legacy API key.
type Authenticator struct {
	cfg        AuthConfig
	httpClient *http.Client
	cache      store.AccessTokenCache
	nowFn      func() time.Time
	logger     *slog.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewAuthenticator(cfg AuthConfig, httpClient *http.Client, cache store.AccessTokenCache, logger *slog.Logger) *Authenticator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Authenticator{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      cache,
		nowFn:      time.Now,
		logger:     logger.With("component", "goplus_auth"),
	}
}

// Credentials returns the credential styles to try, most preferred first.
func (a *Authenticator) Credentials(ctx context.Context) ([]provider.Credential, TokenSource) {
	token, source := a.Token(ctx)
	if token == "" {
		return provider.FallbackCredentials(""), SourceNone
	}
	return provider.FallbackCredentials(token), source
}

// Token resolves the bearer token. Issuance failures fall back to the
// legacy key and are logged, never returned.
func (a *Authenticator) Token(ctx context.Context) (string, TokenSource) {
	if t := strings.TrimSpace(a.cfg.AccessToken); t != "" {
		return t, SourceAccessTokenEnv
	}

	if a.cfg.AppKey != "" && a.cfg.AppSecret != "" {
		token, source, err := a.issued(ctx)
		if err == nil {
			return token, source
		}
		a.logger.Warn("access token unavailable, falling back", "error", err)
	}

	if k := strings.TrimSpace(a.cfg.APIKey); k != "" {
		return k, SourceLegacyAPIKey
	}
	return "", SourceNone
}

func (a *Authenticator) issued(ctx context.Context) (string, TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFn()
	if a.token != "" && a.expiresAt.Sub(now) > refreshBefore {
		return a.token, SourceCache, nil
	}

	if a.cache != nil {
		token, expiresAt, ok, err := a.cache.GetToken(ctx, accessTokenCacheKey)
		if err != nil {
			a.logger.Warn("read cached access token", "error", err)
		} else if ok && token != "" && expiresAt.Sub(now) > refreshBefore {
			a.token, a.expiresAt = token, expiresAt
			return token, SourceCache, nil
		}
	}

	token, expiresAt, err := a.issue(ctx, now)
	if err != nil {
		return "", SourceNone, err
	}
	a.token, a.expiresAt = token, expiresAt
	if a.cache != nil {
		if err := a.cache.SetToken(ctx, accessTokenCacheKey, token, expiresAt); err != nil {
			a.logger.Warn("store access token", "error", err)
		}
	}
	a.logger.Info("access token refreshed", "expires_at", expiresAt)
	return token, SourceRefreshed, nil
}

// Sign is sha1(app_key + time + app_secret) in lowercase hex.
func Sign(appKey string, unix int64, appSecret string) string {
	sum := sha1.Sum([]byte(appKey + strconv.FormatInt(unix, 10) + appSecret))
	return hex.EncodeToString(sum[:])
}

type issueRequest struct {
	AppKey string `json:"app_key"`
	Sign   string `json:"sign"`
	Time   int64  `json:"time"`
}

type issueResult struct {
	AccessToken string  `json:"access_token"`
	ExpiresIn   float64 `json:"expires_in"`
}

func (a *Authenticator) issue(ctx context.Context, now time.Time) (string, time.Time, error) {
	unix := now.Unix()
	payload, err := json.Marshal(issueRequest{
		AppKey: a.cfg.AppKey,
		Sign:   Sign(a.cfg.AppKey, unix, a.cfg.AppSecret),
		Time:   unix,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal token request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, issueTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/api/v1/token", bytes.NewReader(payload))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue access token: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", time.Time{}, &provider.HTTPError{Provider: "goplus", Endpoint: "token", StatusCode: resp.StatusCode, Body: string(body)}
	}

	env := provider.ParseEnvelope(body)
	if !env.HasCode || env.Code != provider.CodeSuccess {
		return "", time.Time{}, fmt.Errorf("issue access token: code=%d msg=%s", env.Code, env.Message)
	}
	var res issueResult
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return "", time.Time{}, fmt.Errorf("decode token result: %w", err)
	}
	token := strings.TrimSpace(res.AccessToken)
	if token == "" {
		return "", time.Time{}, fmt.Errorf("issue access token: missing access_token in response")
	}
	ttl := defaultTokenTTL
	if res.ExpiresIn > 60 {
		ttl = time.Duration(res.ExpiresIn) * time.Second
	}
	return token, now.Add(ttl), nil
}
