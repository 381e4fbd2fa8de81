package provider

import (
	"encoding/json"
	"strings"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// ExtractByAddress picks the entry for address out of an address-keyed
// result object: exact key first, then the lowercased address, then any
// case-insensitive match on chains whose addresses ignore case.
func ExtractByAddress(result json.RawMessage, address string, casing model.AddressCasing) (json.RawMessage, bool) {
	var byAddr map[string]json.RawMessage
	if err := json.Unmarshal(result, &byAddr); err != nil {
		return nil, false
	}
	if v, ok := byAddr[address]; ok && isObject(v) {
		return v, true
	}
	if v, ok := byAddr[strings.ToLower(address)]; ok && isObject(v) {
		return v, true
	}
	if casing == model.CasingLower {
		for k, v := range byAddr {
			if strings.EqualFold(k, address) && isObject(v) {
				return v, true
			}
		}
	}
	return nil, false
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
