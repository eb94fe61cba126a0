package indicator

import (
	"fmt"
	"sort"
	"sync"
)

// IndicatorRegistry manages configured indicator instances by slot name.
// Two slots may hold the same indicator type with different parameters.
type IndicatorRegistry interface {
	RegisterIndicator(slot string, indicator Indicator) error
	GetIndicator(slot string) (Indicator, error)
	ListIndicators() []string
	RemoveIndicator(slot string) error
}

// IndicatorRegistryV1 manages all available indicators.
type IndicatorRegistryV1 struct {
	indicators map[string]Indicator
	mu         sync.RWMutex
}

// NewIndicatorRegistry creates a new indicator registry.
func NewIndicatorRegistry() IndicatorRegistry {
	return &IndicatorRegistryV1{
		indicators: make(map[string]Indicator),
		mu:         sync.RWMutex{},
	}
}

// RegisterIndicator adds an indicator under slot.
func (r *IndicatorRegistryV1) RegisterIndicator(slot string, indicator Indicator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[slot]; exists {
		return fmt.Errorf("RegisterIndicator: slot %s already registered", slot)
	}

	r.indicators[slot] = indicator

	return nil
}

// GetIndicator retrieves an indicator by slot.
func (r *IndicatorRegistryV1) GetIndicator(slot string) (Indicator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	indicator, exists := r.indicators[slot]
	if !exists {
		return nil, fmt.Errorf("GetIndicator: slot %s not found", slot)
	}

	return indicator, nil
}

// ListIndicators returns the registered slot names, sorted.
func (r *IndicatorRegistryV1) ListIndicators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.indicators))
	for name := range r.indicators {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// RemoveIndicator removes an indicator from the registry.
func (r *IndicatorRegistryV1) RemoveIndicator(slot string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.indicators[slot]; !exists {
		return fmt.Errorf("RemoveIndicator: slot %s not found", slot)
	}

	delete(r.indicators, slot)

	return nil
}
