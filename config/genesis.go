package config

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Genesis is the YAML document applied by `listingd init`.
//
//	storageOwner: "0x..."
//	registryOwner: "0x..."
//	balances:
//	  "0x...": "1000"
type Genesis struct {
	StorageOwner  string            `yaml:"storageOwner"`
	RegistryOwner string            `yaml:"registryOwner"`
	Balances      map[string]string `yaml:"balances"`
}

// Allocation is an initial balance.
type Allocation struct {
	Address common.Address
	Amount  *uint256.Int
}

// GenesisPlan is the validated form of Genesis.
type GenesisPlan struct {
	StorageOwner  common.Address
	RegistryOwner common.Address
	Allocations   []Allocation
}

// LoadGenesis reads and validates the genesis file at path.
func LoadGenesis(path string) (*GenesisPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes and validates a genesis document. Allocations are
// returned ordered by address.
func ParseGenesis(data []byte) (*GenesisPlan, error) {
	var g Genesis
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	storageOwner, err := parseAddress("storageOwner", g.StorageOwner)
	if err != nil {
		return nil, err
	}
	registryOwner := storageOwner
	if strings.TrimSpace(g.RegistryOwner) != "" {
		if registryOwner, err = parseAddress("registryOwner", g.RegistryOwner); err != nil {
			return nil, err
		}
	}

	plan := &GenesisPlan{StorageOwner: storageOwner, RegistryOwner: registryOwner}
	for rawAddr, rawAmount := range g.Balances {
		addr, err := parseAddress("balances", rawAddr)
		if err != nil {
			return nil, err
		}
		amount, err := uint256.FromDecimal(strings.TrimSpace(rawAmount))
		if err != nil {
			return nil, fmt.Errorf("genesis: balance of %s: %w", addr.Hex(), err)
		}
		plan.Allocations = append(plan.Allocations, Allocation{Address: addr, Amount: amount})
	}
	sort.Slice(plan.Allocations, func(i, j int) bool {
		return bytes.Compare(plan.Allocations[i].Address.Bytes(), plan.Allocations[j].Address.Bytes()) < 0
	})
	return plan, nil
}

func parseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("genesis: %s: invalid address %q", field, raw)
	}
	addr := common.HexToAddress(raw)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("genesis: %s: zero address", field)
	}
	return addr, nil
}
