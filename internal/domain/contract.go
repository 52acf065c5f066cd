package domain

import (
	"fmt"
	"sort"
	"sync"
)

// ProductClass identifies the kind of instrument a contract describes.
type ProductClass string

const (
	ProductFutures ProductClass = "FUTURES"
	ProductSpot    ProductClass = "SPOT"
	ProductIndex   ProductClass = "INDEX"
)

// Contract is the immutable identity of a tradable instrument.
// Instances are owned by the registry and are only ever copied, never mutated.
type Contract struct {
	UnifiedSymbol string       `json:"unified_symbol" yaml:"unified_symbol"` // "<symbol>@<exchange>@<productClass>"
	Symbol        string       `json:"symbol" yaml:"symbol"`
	Name          string       `json:"name" yaml:"name"`
	Exchange      string       `json:"exchange" yaml:"exchange"`
	ProductClass  ProductClass `json:"product_class" yaml:"product_class"`
	GatewayID     string       `json:"gateway_id" yaml:"gateway_id"`
	PriceTick     float64      `json:"price_tick" yaml:"price_tick"` // minimum price increment
	Multiplier    float64      `json:"multiplier" yaml:"multiplier"` // contract size per lot
}

// UnifiedSymbolOf builds the canonical unified symbol.
func UnifiedSymbolOf(symbol, exchange string, pc ProductClass) string {
	return fmt.Sprintf("%s@%s@%s", symbol, exchange, pc)
}

// ContractRegistry resolves unified symbols to contract descriptors.
type ContractRegistry interface {
	Contract(unifiedSymbol string) (Contract, error)
}

// MemoryRegistry is a map-backed ContractRegistry safe for concurrent lookups.
type MemoryRegistry struct {
	mu        sync.RWMutex
	contracts map[string]Contract
}

// NewMemoryRegistry creates a registry preloaded with the given contracts.
func NewMemoryRegistry(contracts ...Contract) *MemoryRegistry {
	r := &MemoryRegistry{contracts: make(map[string]Contract, len(contracts))}
	for _, c := range contracts {
		r.contracts[c.UnifiedSymbol] = c
	}
	return r
}

// Register adds or replaces a contract descriptor.
func (r *MemoryRegistry) Register(c Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[c.UnifiedSymbol] = c
}

// Contract implements ContractRegistry.
func (r *MemoryRegistry) Contract(unifiedSymbol string) (Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[unifiedSymbol]
	if !ok {
		return Contract{}, fmt.Errorf("%w: %s", ErrUnknownInstrument, unifiedSymbol)
	}
	return c, nil
}

// Symbols returns all registered unified symbols, sorted.
func (r *MemoryRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.contracts))
	for s := range r.contracts {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
