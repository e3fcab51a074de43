package market

import (
	"fmt"

	"marketd/core/types"
)

// MaxFeeBps caps the platform fee at 10%.
const MaxFeeBps uint16 = 1000

// Marketplace captures the global marketplace configuration shared by every
// engine: admin authority, fee rate, treasury destination, pause flag, and
// the running sale statistics.
type Marketplace struct {
	Authority   types.Address `json:"authority"`
	Treasury    types.Address `json:"treasury"`
	FeeBps      uint16        `json:"feeBps"`
	Paused      bool          `json:"paused"`
	TotalVolume uint64        `json:"totalVolume"`
	TotalSales  uint64        `json:"totalSales"`
	CreatedAt   int64         `json:"createdAt"`
}

// Clone returns a copy of the marketplace record so callers can safely mutate
// it without affecting the stored instance.
func (m *Marketplace) Clone() *Marketplace {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// SanitizeMarketplace validates the supplied record, returning a cloned
// instance. The original value is not mutated.
func SanitizeMarketplace(m *Marketplace) (*Marketplace, error) {
	if m == nil {
		return nil, fmt.Errorf("nil marketplace")
	}
	if m.Authority.IsZero() {
		return nil, fmt.Errorf("marketplace authority required")
	}
	if m.Treasury.IsZero() {
		return nil, fmt.Errorf("marketplace treasury required")
	}
	if m.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("marketplace fee bps out of range: %d", m.FeeBps)
	}
	return m.Clone(), nil
}
