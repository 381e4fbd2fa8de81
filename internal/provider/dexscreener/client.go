package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/provider"
)

const (
	Name           = "dexscreener"
	DefaultBaseURL = "https://api.dexscreener.com"

	// MaxAddressesPerCall is the /tokens/v1 batch limit.
	MaxAddressesPerCall = 30
)

// Endpoint labels used in metrics and spans.
const (
	EndpointTokens    = "tokens"
	EndpointProfiles  = "token_profiles_latest"
	EndpointBoostsNew = "token_boosts_latest"
	EndpointBoostsTop = "token_boosts_top"
	EndpointTakeovers = "community_takeovers_latest"
	EndpointSearch    = "search"
)

type Client struct {
	http    *provider.Client
	baseURL string
}

func NewClient(httpClient *provider.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Tokens fetches every pair for up to MaxAddressesPerCall addresses on one chain.
func (c *Client) Tokens(ctx context.Context, chain model.ChainID, addresses []string) ([]Pair, error) {
	if len(addresses) == 0 {
		return nil, nil
	}
	if len(addresses) > MaxAddressesPerCall {
		return nil, fmt.Errorf("fetch tokens: %d addresses exceeds batch limit %d", len(addresses), MaxAddressesPerCall)
	}
	escaped := make([]string, len(addresses))
	for i, a := range addresses {
		escaped[i] = url.PathEscape(a)
	}
	rawURL := c.baseURL + "/tokens/v1/" + url.PathEscape(string(chain)) + "/" + strings.Join(escaped, ",")

	body, err := c.http.FetchJSON(ctx, EndpointTokens, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch tokens %s: %w", chain, err)
	}
	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("decode tokens %s: payload is not a pair array: %w", chain, err)
	}
	return pairs, nil
}

func (c *Client) LatestProfiles(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, EndpointProfiles, "/token-profiles/latest/v1")
}

func (c *Client) LatestBoosts(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, EndpointBoostsNew, "/token-boosts/latest/v1")
}

func (c *Client) TopBoosts(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, EndpointBoostsTop, "/token-boosts/top/v1")
}

func (c *Client) Takeovers(ctx context.Context) ([]Listing, error) {
	return c.listings(ctx, EndpointTakeovers, "/community-takeovers/latest/v1")
}

// Search runs a free-text pair search.
func (c *Client) Search(ctx context.Context, query string) ([]Pair, error) {
	body, err := c.http.FetchJSON(ctx, EndpointSearch, c.baseURL+"/latest/dex/search?q="+url.QueryEscape(query))
	if err != nil {
		return nil, fmt.Errorf("search pairs %q: %w", query, err)
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search %q: %w", query, err)
	}
	return resp.Pairs, nil
}

// listings accepts either an array or a single object.
func (c *Client) listings(ctx context.Context, endpoint, path string) ([]Listing, error) {
	body, err := c.http.FetchJSON(ctx, endpoint, c.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var one Listing
		if err := json.Unmarshal(body, &one); err != nil {
			return nil, fmt.Errorf("decode %s: %w", endpoint, err)
		}
		return []Listing{one}, nil
	}
	var out []Listing
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return out, nil
}

// Chunk splits addresses into batches of at most size.
func Chunk(addresses []string, size int) [][]string {
	if size <= 0 {
		size = MaxAddressesPerCall
	}
	var out [][]string
	for start := 0; start < len(addresses); start += size {
		end := min(start+size, len(addresses))
		out = append(out, addresses[start:end])
	}
	return out
}

// BestPair picks the most liquid pair that has address as its base or
// quote token. Address comparison ignores case.
func BestPair(pairs []Pair, address string) (Pair, bool) {
	want := strings.ToLower(strings.TrimSpace(address))
	var (
		best    Pair
		bestLiq = -1.0
		found   bool
	)
	for _, p := range pairs {
		if strings.ToLower(p.BaseToken.Address) != want && strings.ToLower(p.QuoteToken.Address) != want {
			continue
		}
		liq := 0.0
		if v := p.LiquidityUSD(); v != nil {
			liq = *v
		}
		if !found || liq > bestLiq {
			best, bestLiq, found = p, liq, true
		}
	}
	return best, found
}

// Snapshot maps a pair onto the token's market snapshot. The token's own
// symbol is taken from whichever side of the pair it sits on.
func Snapshot(chain model.ChainID, address string, p Pair, now time.Time) model.TokenSnapshot {
	side := p.BaseToken
	if !strings.EqualFold(p.BaseToken.Address, address) && strings.EqualFold(p.QuoteToken.Address, address) {
		side = p.QuoteToken
	}
	s := model.TokenSnapshot{
		ChainID:        chain,
		TokenAddress:   address,
		Symbol:         side.Symbol,
		Name:           side.Name,
		PairAddress:    p.PairAddress,
		DexID:          p.DexID,
		URL:            p.URL,
		PriceUSD:       p.PriceUSD.v,
		LiquidityUSD:   p.LiquidityUSD(),
		Volume24h:      p.Volume24h(),
		FDV:            p.FDV.v,
		MarketCap:      p.MarketCap.v,
		PriceChange5m:  p.Change("m5"),
		PriceChange1h:  p.Change("h1"),
		PriceChange24h: p.Change("h24"),
		UpdatedAt:      now.UTC(),
	}
	if tx, ok := p.Txns["h24"]; ok {
		buys, sells := tx.Buys, tx.Sells
		s.Buys24h, s.Sells24h = &buys, &sells
	}
	if p.PairCreatedAt > 0 {
		created := time.UnixMilli(p.PairCreatedAt).UTC()
		s.PairCreatedAt = &created
	}
	if p.Info != nil {
		s.LogoURL = p.Info.ImageURL
		for _, w := range p.Info.Websites {
			if u := strings.TrimSpace(w.URL); u != "" {
				s.WebsiteURL = u
				break
			}
		}
	}
	if s.HasActivity() {
		at := now.UTC()
		s.LastActivityAt = &at
	}
	return s
}
