package model

import "strings"

// ChainID is the DexScreener chain identifier ("solana", "base", "bsc", ...).
type ChainID string

func (c ChainID) String() string {
	return string(c)
}

const (
	ChainSolana   ChainID = "solana"
	ChainEthereum ChainID = "ethereum"
	ChainBase     ChainID = "base"
	ChainBSC      ChainID = "bsc"
	ChainPolygon  ChainID = "polygon"
	ChainArbitrum ChainID = "arbitrum"
	ChainSui      ChainID = "sui"
	ChainTron     ChainID = "tron"
)

// ChainFamily groups chains that share address and pricing semantics.
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilySolana ChainFamily = "solana"
	FamilySui    ChainFamily = "sui"
	FamilyTron   ChainFamily = "tron"
	FamilyOther  ChainFamily = "other"
)

// GoPlusMode selects which GoPlus token-security endpoint serves a chain.
type GoPlusMode string

const (
	GoPlusModeEVM    GoPlusMode = "evm"
	GoPlusModeSolana GoPlusMode = "solana"
	GoPlusModeNone   GoPlusMode = "none"
)

// AddressCasing says whether addresses on a chain compare case-sensitively.
type AddressCasing string

const (
	CasingSensitive AddressCasing = "case_sensitive"
	CasingLower     AddressCasing = "lower"
)

// Chain is one row of the chain mapping table.
type Chain struct {
	ID            ChainID       `db:"dexscreener_chain_id" yaml:"id"`
	Family        ChainFamily   `db:"family" yaml:"family"`
	GoPlusMode    GoPlusMode    `db:"goplus_mode" yaml:"goplus_mode"`
	GoPlusChainID string        `db:"goplus_chain_id" yaml:"goplus_chain_id"`
	Casing        AddressCasing `db:"address_casing" yaml:"casing"`
}

// SecuritySupported reports whether token security scans exist for the chain.
func (c Chain) SecuritySupported() bool {
	switch c.GoPlusMode {
	case GoPlusModeSolana:
		return true
	case GoPlusModeEVM:
		return c.GoPlusChainID != ""
	default:
		return false
	}
}

// RugpullSupported reports whether GoPlus rugpull detection covers the chain (EVM only).
func (c Chain) RugpullSupported() bool {
	return c.GoPlusMode == GoPlusModeEVM && c.GoPlusChainID != ""
}

// NormalizeAddress canonicalizes an address for use as a cache or queue key.
func (c Chain) NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if c.Casing == CasingLower {
		return strings.ToLower(address)
	}
	return address
}

// TokenKey identifies a token across every pipeline stage and cache domain.
type TokenKey struct {
	ChainID      ChainID
	TokenAddress string
}

func (k TokenKey) String() string {
	return string(k.ChainID) + ":" + k.TokenAddress
}

// ParseTokenID splits a "chain:address" token id.
func ParseTokenID(tokenID string) (TokenKey, bool) {
	i := strings.Index(tokenID, ":")
	if i <= 0 {
		return TokenKey{}, false
	}
	chain := strings.TrimSpace(tokenID[:i])
	addr := strings.TrimSpace(tokenID[i+1:])
	if chain == "" || addr == "" {
		return TokenKey{}, false
	}
	return TokenKey{ChainID: ChainID(chain), TokenAddress: addr}, true
}

// ChainRegistry resolves chain records by id.
type ChainRegistry struct {
	byID map[ChainID]Chain
}

func NewChainRegistry(chains []Chain) *ChainRegistry {
	r := &ChainRegistry{byID: make(map[ChainID]Chain, len(chains))}
	for _, c := range chains {
		if c.Casing == "" {
			c.Casing = defaultCasing(c.Family)
		}
		if c.GoPlusMode == "" {
			c.GoPlusMode = GoPlusModeNone
		}
		r.byID[c.ID] = c
	}
	return r
}

// Lookup returns the chain record, or an unsupported record with family
// "other" when the chain is unknown.
func (r *ChainRegistry) Lookup(id ChainID) (Chain, bool) {
	if r != nil {
		if c, ok := r.byID[id]; ok {
			return c, true
		}
	}
	return Chain{ID: id, Family: FamilyOther, GoPlusMode: GoPlusModeNone, Casing: CasingSensitive}, false
}

// Key builds a canonical TokenKey for the chain's casing rules.
func (r *ChainRegistry) Key(id ChainID, address string) TokenKey {
	c, _ := r.Lookup(id)
	return TokenKey{ChainID: id, TokenAddress: c.NormalizeAddress(address)}
}

// SecurityChains returns ids of chains with token security coverage.
func (r *ChainRegistry) SecurityChains() map[ChainID]bool {
	out := make(map[ChainID]bool)
	if r == nil {
		return out
	}
	for id, c := range r.byID {
		if c.SecuritySupported() {
			out[id] = true
		}
	}
	return out
}

func (r *ChainRegistry) All() []Chain {
	if r == nil {
		return nil
	}
	out := make([]Chain, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// EVM hex addresses are case-insensitive; base58 and friends are not.
func defaultCasing(f ChainFamily) AddressCasing {
	if f == FamilyEVM {
		return CasingLower
	}
	return CasingSensitive
}
