package budget

import "github.com/apfl99/DexSwipe-Backend/internal/domain/model"

// CostTable is the compute-unit price of one token-security scan per chain
// family. Families missing from the table are priced as FamilyOther.
type CostTable map[model.ChainFamily]uint

// DefaultCostTable prices Solana-like families at twice EVM.
func DefaultCostTable() CostTable {
	return CostTable{
		model.FamilyEVM:    30,
		model.FamilySolana: 60,
		model.FamilySui:    60,
		model.FamilyTron:   30,
		model.FamilyOther:  30,
	}
}

func (t CostTable) Cost(family model.ChainFamily) uint {
	if c, ok := t[family]; ok {
		return c
	}
	if c, ok := t[model.FamilyOther]; ok {
		return c
	}
	return DefaultCostTable()[model.FamilyOther]
}
