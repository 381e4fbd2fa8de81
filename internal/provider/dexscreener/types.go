package dexscreener

import (
	"encoding/json"
	"strconv"
	"strings"
)

// number decodes DexScreener numerics, which arrive as JSON numbers or as
// decimal strings ("priceUsd"). Unparseable values decode to nil.
type number struct {
	v *float64
}

func (n *number) UnmarshalJSON(b []byte) error {
	n.v = nil
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	switch t := raw.(type) {
	case float64:
		n.v = &t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			n.v = &f
		}
	}
	return nil
}

type TokenRef struct {
	Address string `json:"address"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name"`
}

type Liquidity struct {
	USD number `json:"usd"`
}

type TxnCount struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

type Website struct {
	URL string `json:"url"`
}

type PairInfo struct {
	ImageURL string    `json:"imageUrl"`
	Websites []Website `json:"websites"`
}

// Pair is one DEX pair from /tokens/v1 or /latest/dex/search.
type Pair struct {
	ChainID       string              `json:"chainId"`
	DexID         string              `json:"dexId"`
	URL           string              `json:"url"`
	PairAddress   string              `json:"pairAddress"`
	BaseToken     TokenRef            `json:"baseToken"`
	QuoteToken    TokenRef            `json:"quoteToken"`
	PriceUSD      number              `json:"priceUsd"`
	Liquidity     *Liquidity          `json:"liquidity"`
	Volume        map[string]number   `json:"volume"`
	PriceChange   map[string]number   `json:"priceChange"`
	Txns          map[string]TxnCount `json:"txns"`
	FDV           number              `json:"fdv"`
	MarketCap     number              `json:"marketCap"`
	PairCreatedAt int64               `json:"pairCreatedAt"`
	Info          *PairInfo           `json:"info"`
}

// LiquidityUSD returns liquidity.usd, or nil when absent.
func (p Pair) LiquidityUSD() *float64 {
	if p.Liquidity == nil {
		return nil
	}
	return p.Liquidity.USD.v
}

// Volume24h reads volume.h24, falling back to volume["24h"].
func (p Pair) Volume24h() *float64 {
	return firstWindow(p.Volume, "h24", "24h")
}

// Change returns the price change for a window such as "m5" or "h1".
func (p Pair) Change(window string) *float64 {
	switch window {
	case "m5":
		return firstWindow(p.PriceChange, "m5", "5m")
	case "h1":
		return firstWindow(p.PriceChange, "h1", "1h")
	case "h6":
		return firstWindow(p.PriceChange, "h6", "6h")
	case "h24":
		return firstWindow(p.PriceChange, "h24", "24h")
	}
	return firstWindow(p.PriceChange, window)
}

func firstWindow(m map[string]number, keys ...string) *float64 {
	for _, k := range keys {
		if n, ok := m[k]; ok && n.v != nil {
			return n.v
		}
	}
	return nil
}

// Listing is one token mention from the discovery endpoints.
type Listing struct {
	ChainID      string `json:"chainId"`
	TokenAddress string `json:"tokenAddress"`
	URL          string `json:"url"`
	Icon         string `json:"icon"`
	Description  string `json:"description"`
	Amount       number `json:"amount"`
	TotalAmount  number `json:"totalAmount"`
}

// BoostAmount returns the active boost amount, or 0.
func (l Listing) BoostAmount() float64 {
	if l.Amount.v == nil {
		return 0
	}
	return *l.Amount.v
}

type searchResponse struct {
	Pairs []Pair `json:"pairs"`
}
