package dexscreener

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
	"github.com/apfl99/DexSwipe-Backend/internal/provider"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	hc := provider.NewClient(Name,
		provider.WithHTTPClient(srv.Client()),
		provider.WithSleep(func(context.Context, time.Duration) error { return nil }),
		provider.WithRetryPolicy(provider.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second}),
	)
	return NewClient(hc, srv.URL)
}

const tokensPayload = `[
  {"chainId":"base","dexId":"uniswap","url":"https://dexscreener.com/base/0xp1","pairAddress":"0xp1",
   "baseToken":{"address":"0xAbC","symbol":"ABC","name":"Abc"},"quoteToken":{"address":"0xweth","symbol":"WETH"},
   "priceUsd":"0.0123","liquidity":{"usd":12000},"volume":{"h24":55000},
   "priceChange":{"m5":1.2,"h1":3.4,"h24":-5},"txns":{"h24":{"buys":40,"sells":12}},
   "fdv":900000,"marketCap":800000,"pairCreatedAt":1714521600000,
   "info":{"imageUrl":"https://img/abc.png","websites":[{"url":""},{"url":"https://abc.xyz"}]}},
  {"chainId":"base","dexId":"aerodrome","pairAddress":"0xp2",
   "baseToken":{"address":"0xabc","symbol":"ABC"},"quoteToken":{"address":"0xusdc"},
   "priceUsd":"0.0122","liquidity":{"usd":3000},"volume":{"24h":100}}
]`

func TestTokens_FetchesBatch(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tokens/v1/base/0xabc,0xdef", r.URL.Path)
		assert.Equal(t, provider.DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(tokensPayload))
	})

	pairs, err := client.Tokens(context.Background(), model.ChainBase, []string{"0xabc", "0xdef"})
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "0xp1", pairs[0].PairAddress)
}

func TestTokens_RejectsNonArray(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"pairs":[]}`))
	})

	_, err := client.Tokens(context.Background(), model.ChainBase, []string{"0xabc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a pair array")
}

func TestTokens_BatchLimit(t *testing.T) {
	client := newTestServer(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})
	addrs := make([]string, MaxAddressesPerCall+1)
	for i := range addrs {
		addrs[i] = "a"
	}
	_, err := client.Tokens(context.Background(), model.ChainBase, addrs)
	require.Error(t, err)

	pairs, err := client.Tokens(context.Background(), model.ChainBase, nil)
	require.NoError(t, err)
	assert.Nil(t, pairs)
}

func TestListings_ArrayAndSingleObject(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token-profiles/latest/v1":
			_, _ = w.Write([]byte(`[{"chainId":"solana","tokenAddress":"So1"},{"chainId":"base","tokenAddress":"0xB"}]`))
		case "/token-boosts/latest/v1":
			_, _ = w.Write([]byte(`{"chainId":"solana","tokenAddress":"So2","amount":10,"totalAmount":"50"}`))
		case "/token-boosts/top/v1":
			_, _ = w.Write([]byte(`[]`))
		case "/community-takeovers/latest/v1":
			_, _ = w.Write([]byte(`[{"chainId":"sui","tokenAddress":"0x2::a::A"}]`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	profiles, err := client.LatestProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)

	boosts, err := client.LatestBoosts(ctx)
	require.NoError(t, err)
	require.Len(t, boosts, 1)
	assert.Equal(t, "So2", boosts[0].TokenAddress)
	assert.Equal(t, 10.0, boosts[0].BoostAmount())
	require.NotNil(t, boosts[0].TotalAmount.v)
	assert.Equal(t, 50.0, *boosts[0].TotalAmount.v)

	top, err := client.TopBoosts(ctx)
	require.NoError(t, err)
	assert.Empty(t, top)

	takeovers, err := client.Takeovers(ctx)
	require.NoError(t, err)
	require.Len(t, takeovers, 1)
	assert.Equal(t, "sui", takeovers[0].ChainID)
}

func TestSearch(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/dex/search", r.URL.Path)
		assert.Equal(t, "pepe coin", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"pairs":` + tokensPayload + `}`))
	})

	pairs, err := client.Search(context.Background(), "pepe coin")
	require.NoError(t, err)
	assert.Len(t, pairs, 2)
}

func TestListings_HTTPErrorWrapped(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.LatestProfiles(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "fetch "+EndpointProfiles))
}

func TestBestPair(t *testing.T) {
	liq := func(v float64) *Liquidity { return &Liquidity{USD: number{v: &v}} }
	pairs := []Pair{
		{PairAddress: "low", BaseToken: TokenRef{Address: "0xABC"}, Liquidity: liq(100)},
		{PairAddress: "other", BaseToken: TokenRef{Address: "0xzzz"}, Liquidity: liq(1e9)},
		{PairAddress: "quote", QuoteToken: TokenRef{Address: "0xabc"}, Liquidity: liq(5000)},
		{PairAddress: "nil-liq", BaseToken: TokenRef{Address: "0xabc"}},
	}

	best, ok := BestPair(pairs, "0xAbc")
	require.True(t, ok)
	assert.Equal(t, "quote", best.PairAddress)

	_, ok = BestPair(pairs, "0xmissing")
	assert.False(t, ok)

	best, ok = BestPair([]Pair{{PairAddress: "only", BaseToken: TokenRef{Address: "x"}}}, "x")
	require.True(t, ok)
	assert.Equal(t, "only", best.PairAddress)
}

func TestSnapshot_MapsPair(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(tokensPayload))
	})
	pairs, err := client.Tokens(context.Background(), model.ChainBase, []string{"0xabc"})
	require.NoError(t, err)

	best, ok := BestPair(pairs, "0xabc")
	require.True(t, ok)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Snapshot(model.ChainBase, "0xabc", best, now)

	assert.Equal(t, "ABC", s.Symbol)
	assert.Equal(t, "0xp1", s.PairAddress)
	require.NotNil(t, s.PriceUSD)
	assert.InDelta(t, 0.0123, *s.PriceUSD, 1e-12)
	assert.Equal(t, 12000.0, *s.LiquidityUSD)
	assert.Equal(t, 55000.0, *s.Volume24h)
	assert.Equal(t, 900000.0, *s.FDV)
	assert.Equal(t, 800000.0, *s.MarketCap)
	assert.Equal(t, 1.2, *s.PriceChange5m)
	assert.Equal(t, 3.4, *s.PriceChange1h)
	assert.Nil(t, s.PriceChange15m)
	assert.Equal(t, int64(40), *s.Buys24h)
	assert.Equal(t, int64(12), *s.Sells24h)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *s.PairCreatedAt)
	assert.Equal(t, "https://img/abc.png", s.LogoURL)
	assert.Equal(t, "https://abc.xyz", s.WebsiteURL)
	require.NotNil(t, s.LastActivityAt)
	assert.Equal(t, now, *s.LastActivityAt)
}

func TestSnapshot_VolumeFallbackAndQuoteSide(t *testing.T) {
	p := Pair{
		BaseToken:  TokenRef{Address: "0xweth", Symbol: "WETH"},
		QuoteToken: TokenRef{Address: "0xabc", Symbol: "ABC"},
		Volume:     map[string]number{"24h": {v: model.Float(0)}},
		PriceUSD:   number{},
	}
	s := Snapshot(model.ChainBase, "0xabc", p, time.Now())
	assert.Equal(t, "ABC", s.Symbol)
	require.NotNil(t, s.Volume24h)
	assert.Equal(t, 0.0, *s.Volume24h)
	assert.Nil(t, s.PriceUSD)
	assert.Nil(t, s.LastActivityAt)
}

func TestChunk(t *testing.T) {
	addrs := make([]string, 65)
	chunks := Chunk(addrs, 30)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 30)
	assert.Len(t, chunks[2], 5)
	assert.Nil(t, Chunk(nil, 30))
}
