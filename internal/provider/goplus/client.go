package goplus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/provider"
)

const Name = "goplus"

// ErrUnsupportedChain is returned for chains GoPlus has no endpoint for.
var ErrUnsupportedChain = errors.New("goplus: unsupported chain")

// Endpoint labels used in metrics and spans.
const (
	EndpointTokenSecurity  = "token_security"
	EndpointSolanaSecurity = "solana_token_security"
	EndpointRugpull        = "rugpull_detecting"
	EndpointPhishingSite   = "phishing_site"
	EndpointDappSecurity   = "dapp_security"
)

// Limit reasons recorded on limited security entries.
const (
	LimitNoResult  = "no_result_for_address"
	LimitNoSignals = "no_signals"
	LimitProvider  = "provider_limited"
)

type Client struct {
	http    *provider.Client
	baseURL string
	auth    *Authenticator
	nowFn   func() time.Time
}

func NewClient(httpClient *provider.Client, baseURL string, auth *Authenticator) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		nowFn:   time.Now,
	}
}

func (c *Client) fetch(ctx context.Context, endpoint, rawURL string) (json.RawMessage, error) {
	var creds []provider.Credential
	if c.auth != nil {
		creds, _ = c.auth.Credentials(ctx)
	}
	return c.http.FetchJSON(ctx, endpoint, rawURL, creds...)
}

// SecurityURL builds the token_security URL for chain.
func (c *Client) SecurityURL(chain model.Chain, address string) (string, string, error) {
	q := "?contract_addresses=" + url.QueryEscape(address)
	switch {
	case chain.GoPlusMode == model.GoPlusModeSolana:
		return EndpointSolanaSecurity, c.baseURL + "/api/v1/solana/token_security" + q, nil
	case chain.GoPlusMode == model.GoPlusModeEVM && chain.GoPlusChainID != "":
		return EndpointTokenSecurity, c.baseURL + "/api/v1/token_security/" + url.PathEscape(chain.GoPlusChainID) + q, nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedChain, chain.ID)
	}
}

// TokenSecurity scans one token. A business-level refusal or an empty
// result comes back as a limited entry, not an error.
func (c *Client) TokenSecurity(ctx context.Context, chain model.Chain, address string) (model.SecurityEntry, error) {
	endpoint, rawURL, err := c.SecurityURL(chain, address)
	if err != nil {
		return model.SecurityEntry{}, err
	}
	entry := model.SecurityEntry{
		ChainID:      chain.ID,
		TokenAddress: address,
		DenyReasons:  []string{},
	}

	body, err := c.fetch(ctx, endpoint, rawURL)
	entry.ScannedAt = c.nowFn().UTC()
	if err != nil {
		var limited *provider.LimitedError
		if errors.As(err, &limited) {
			entry.Limited = true
			entry.LimitReason = fmt.Sprintf("%s: code=%d", LimitProvider, limited.Code)
			return entry, nil
		}
		return model.SecurityEntry{}, fmt.Errorf("scan token security %s: %w", model.TokenKey{ChainID: chain.ID, TokenAddress: address}, err)
	}
	entry.Raw = body

	env := provider.ParseEnvelope(body)
	obj, ok := provider.ExtractByAddress(env.Result, address, chain.Casing)
	if !ok {
		entry.Limited = true
		entry.LimitReason = LimitNoResult
		return entry, nil
	}

	entry.Signals = Normalize(chain.GoPlusMode, obj)
	if !entry.Signals.HasAny() {
		entry.Limited = true
		entry.LimitReason = LimitNoSignals
		return entry, nil
	}
	entry.AlwaysDeny, entry.DenyReasons = model.DenyPolicy(entry.Signals)
	return entry, nil
}

// Rugpull runs rugpull detection, which only EVM chains support.
func (c *Client) Rugpull(ctx context.Context, chain model.Chain, address string) (model.RugpullEntry, error) {
	if !chain.RugpullSupported() {
		return model.RugpullEntry{}, fmt.Errorf("%w: %s has no rugpull detection", ErrUnsupportedChain, chain.ID)
	}
	rawURL := c.baseURL + "/api/v1/rugpull_detecting/" + url.PathEscape(chain.GoPlusChainID) +
		"?contract_addresses=" + url.QueryEscape(address)

	body, err := c.fetch(ctx, EndpointRugpull, rawURL)
	if err != nil {
		return model.RugpullEntry{}, fmt.Errorf("detect rugpull %s:%s: %w", chain.ID, address, err)
	}

	env := provider.ParseEnvelope(body)
	obj, ok := provider.ExtractByAddress(env.Result, address, chain.Casing)
	if !ok {
		obj = env.Result
	}
	f := decodeFields(obj)
	return model.RugpullEntry{
		ChainID:       chain.ID,
		TokenAddress:  address,
		Raw:           body,
		IsRugpullRisk: f.flag("is_rugpull", "rugpull", "is_rugpull_risk"),
		RiskLevel:     f.text("risk_level", "riskLevel"),
		ScannedAt:     c.nowFn().UTC(),
	}, nil
}

// URLRisk runs the phishing and dApp checks for a website concurrently.
func (c *Client) URLRisk(ctx context.Context, site string) (model.URLRiskEntry, error) {
	var phishing, dapp json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		phishing, err = c.fetch(gctx, EndpointPhishingSite, c.baseURL+"/api/v1/phishing_site?url="+url.QueryEscape(site))
		return err
	})
	g.Go(func() error {
		var err error
		dapp, err = c.fetch(gctx, EndpointDappSecurity, c.baseURL+"/api/v1/dapp_security?url="+url.QueryEscape(site))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.URLRiskEntry{}, fmt.Errorf("check url risk %s: %w", site, err)
	}

	return model.URLRiskEntry{
		URL:           site,
		RawPhishing:   phishing,
		RawDapp:       dapp,
		IsPhishing:    coerceBool(resultThenTop(phishing, "is_phishing", "phishing")),
		DappRiskLevel: coerceText(resultThenTop(dapp, "risk_level", "riskLevel")),
		ScannedAt:     c.nowFn().UTC(),
	}, nil
}

// resultThenTop looks keys up under result first, then at the top level.
func resultThenTop(body json.RawMessage, keys ...string) json.RawMessage {
	top := decodeFields(body)
	if v := decodeFields(top["result"]).first(keys...); v != nil {
		return v
	}
	return top.first(keys...)
}
