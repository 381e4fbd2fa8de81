package goplus

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// fields is one token object from a GoPlus result map.
type fields map[string]json.RawMessage

func decodeFields(raw json.RawMessage) fields {
	var f fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return f
}

// first returns the first present, non-null value among keys.
func (f fields) first(keys ...string) json.RawMessage {
	for _, k := range keys {
		if v, ok := f[k]; ok && len(v) > 0 && string(v) != "null" {
			return v
		}
	}
	return nil
}

func (f fields) flag(keys ...string) *bool {
	return coerceBool(f.first(keys...))
}

func (f fields) number(keys ...string) *float64 {
	return coerceFloat(f.first(keys...))
}

func (f fields) text(keys ...string) string {
	return coerceText(f.first(keys...))
}

func coerceText(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}

// coerceBool reads GoPlus flags: "1"/"0" strings, numbers, booleans,
// yes/no words, and the Solana {"status": "1"} wrapper.
func coerceBool(raw json.RawMessage) *bool {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case bool:
		return model.Bool(t)
	case float64:
		return model.Bool(t == 1)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes":
			return model.Bool(true)
		case "0", "false", "no":
			return model.Bool(false)
		}
	case map[string]any:
		if status, ok := t["status"]; ok {
			b, err := json.Marshal(status)
			if err != nil {
				return nil
			}
			return coerceBool(b)
		}
	}
	return nil
}

func coerceFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case float64:
		return model.Float(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return model.Float(f)
	}
	return nil
}

// NormalizeEVM maps the EVM token_security object.
func NormalizeEVM(raw json.RawMessage) model.SecuritySignals {
	f := decodeFields(raw)
	if f == nil {
		return model.SecuritySignals{}
	}
	return model.SecuritySignals{
		IsHoneypot:    f.flag("is_honeypot", "isHoneypot"),
		IsBlacklisted: f.flag("is_blacklisted", "isBlacklisted"),
		CannotSellAll: f.flag("cannot_sell_all", "cannot_sell", "cannotSell"),
		BuyTax:        f.number("buy_tax", "buyTax"),
		SellTax:       f.number("sell_tax", "sellTax"),

		IsProxy:            f.flag("is_proxy", "isProxy"),
		TransferPausable:   f.flag("transfer_pausable"),
		SlippageModifiable: f.flag("slippage_modifiable"),
		ExternalCall:       f.flag("external_call"),

		OwnerChangeBalance: f.flag("owner_change_balance"),
		HiddenOwner:        f.flag("hidden_owner"),
		CannotBuy:          f.flag("cannot_buy"),
		TradingCooldown:    f.flag("trading_cooldown"),

		IsOpenSource:         f.flag("is_open_source"),
		IsMintable:           f.flag("is_mintable"),
		CanTakeBackOwnership: f.flag("can_take_back_ownership"),

		ContractUpgradeable: f.flag("contract_upgradeable", "contractUpgradeable"),
	}
}

// NormalizeSolana maps the Solana token_security object, whose authority
// checks are nested {status} objects. Keys shared with EVM are read too.
func NormalizeSolana(raw json.RawMessage) model.SecuritySignals {
	f := decodeFields(raw)
	if f == nil {
		return model.SecuritySignals{}
	}
	s := NormalizeEVM(raw)
	if s.IsMintable == nil {
		s.IsMintable = f.flag("mintable")
	}
	if s.TransferPausable == nil {
		s.TransferPausable = f.flag("freezable")
	}
	if s.OwnerChangeBalance == nil {
		s.OwnerChangeBalance = f.flag("balance_mutable_authority")
	}
	if s.CanTakeBackOwnership == nil {
		s.CanTakeBackOwnership = f.flag("closable")
	}
	if s.CannotSellAll == nil {
		s.CannotSellAll = f.flag("non_transferable")
	}
	if s.ContractUpgradeable == nil {
		s.ContractUpgradeable = f.flag("metadata_mutable")
	}
	if s.ExternalCall == nil {
		s.ExternalCall = hasTransferHook(f.first("transfer_hook"))
	}
	return s
}

func hasTransferHook(raw json.RawMessage) *bool {
	if raw == nil {
		return nil
	}
	var hooks []json.RawMessage
	if err := json.Unmarshal(raw, &hooks); err != nil {
		return coerceBool(raw)
	}
	return model.Bool(len(hooks) > 0)
}

// Normalize dispatches on the chain's GoPlus mode.
func Normalize(mode model.GoPlusMode, raw json.RawMessage) model.SecuritySignals {
	if mode == model.GoPlusModeSolana {
		return NormalizeSolana(raw)
	}
	return NormalizeEVM(raw)
}
