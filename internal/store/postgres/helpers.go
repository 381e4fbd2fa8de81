package postgres

import (
	"encoding/json"

	"github.com/lib/pq"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

// keyArrays splits keys into parallel chain and address arrays for
// unnest($1::text[], $2::text[]) lookups.
func keyArrays(keys []model.TokenKey) (interface{}, interface{}) {
	chains := make([]string, len(keys))
	addrs := make([]string, len(keys))
	for i, k := range keys {
		chains[i] = string(k.ChainID)
		addrs[i] = k.TokenAddress
	}
	return pq.Array(chains), pq.Array(addrs)
}

// nullJSON maps an empty payload to SQL NULL.
func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// textArray encodes a possibly nil slice as a non-NULL text[].
func textArray(s []string) interface{} {
	if s == nil {
		s = []string{}
	}
	return pq.Array(s)
}

func chainIDs(ids []model.ChainID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func toChainIDs(ids []string) []model.ChainID {
	out := make([]model.ChainID, len(ids))
	for i, id := range ids {
		out[i] = model.ChainID(id)
	}
	return out
}
