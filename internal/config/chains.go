package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apfl99/DexSwipe-Backend/internal/domain/model"
)

//go:embed chains.yaml
var defaultChainsYAML []byte

// ChainsConfig is the chain mapping table and the scan cost per chain family.
type ChainsConfig struct {
	Costs  map[model.ChainFamily]uint `yaml:"costs"`
	Chains []model.Chain              `yaml:"chains"`
}

var defaultCosts = map[model.ChainFamily]uint{
	model.FamilyEVM:    30,
	model.FamilySolana: 60,
	model.FamilySui:    60,
	model.FamilyTron:   30,
	model.FamilyOther:  30,
}

// LoadChains parses path, or the embedded defaults when path is empty.
// Families missing from the cost table inherit the built-in cost.
func LoadChains(path string) (ChainsConfig, error) {
	raw := defaultChainsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return ChainsConfig{}, fmt.Errorf("read chain mappings %s: %w", path, err)
		}
		raw = b
	}
	return ParseChains(raw)
}

func ParseChains(raw []byte) (ChainsConfig, error) {
	var cfg ChainsConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return ChainsConfig{}, fmt.Errorf("parse chain mappings: %w", err)
	}

	if cfg.Costs == nil {
		cfg.Costs = make(map[model.ChainFamily]uint, len(defaultCosts))
	}
	for family, cost := range defaultCosts {
		if c, ok := cfg.Costs[family]; !ok || c == 0 {
			cfg.Costs[family] = cost
		}
	}

	seen := make(map[model.ChainID]bool, len(cfg.Chains))
	for i, c := range cfg.Chains {
		if c.ID == "" {
			return ChainsConfig{}, fmt.Errorf("chain mapping %d: id is required", i)
		}
		if seen[c.ID] {
			return ChainsConfig{}, fmt.Errorf("chain mapping %q: duplicate id", c.ID)
		}
		seen[c.ID] = true
		switch c.GoPlusMode {
		case "", model.GoPlusModeEVM, model.GoPlusModeSolana, model.GoPlusModeNone:
		default:
			return ChainsConfig{}, fmt.Errorf("chain mapping %q: unknown goplus_mode %q", c.ID, c.GoPlusMode)
		}
		if c.Family == "" {
			cfg.Chains[i].Family = model.FamilyOther
		}
	}
	return cfg, nil
}

// Registry builds the lookup table used by workers and the feed.
func (c ChainsConfig) Registry() *model.ChainRegistry {
	return model.NewChainRegistry(c.Chains)
}
