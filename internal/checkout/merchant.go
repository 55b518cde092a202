package checkout

import (
	"fmt"
	"sync"
)

// MerchantConfig holds the merchant settings the checkout screen is built
// for.
type MerchantConfig struct {
	ID              string
	Name            string
	CountryCode     string
	DefaultCurrency string
	// OrderPrefix starts generated order references.
	OrderPrefix string
}

// MerchantConfigRepository fetches merchant configurations.
type MerchantConfigRepository interface {
	Get(merchantID string) (MerchantConfig, error)
}

// InMemoryMerchantConfigRepository is a MerchantConfigRepository backed by a
// map. It is safe for concurrent use.
type InMemoryMerchantConfigRepository struct {
	mu      sync.RWMutex
	configs map[string]MerchantConfig
}

func NewInMemoryMerchantConfigRepository(configs ...MerchantConfig) *InMemoryMerchantConfigRepository {
	r := &InMemoryMerchantConfigRepository{configs: make(map[string]MerchantConfig)}
	for _, c := range configs {
		r.AddConfig(c)
	}
	return r
}

// AddConfig adds or replaces a merchant configuration.
func (r *InMemoryMerchantConfigRepository) AddConfig(config MerchantConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[config.ID] = config
}

// Get fetches a merchant configuration by ID.
func (r *InMemoryMerchantConfigRepository) Get(merchantID string) (MerchantConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	config, ok := r.configs[merchantID]
	if !ok {
		return MerchantConfig{}, fmt.Errorf("merchant config not found for ID: %s", merchantID)
	}
	return config, nil
}
