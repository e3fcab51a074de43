package royalty

import (
	"fmt"

	"marketd/core/types"
)

const (
	// MaxRoyaltyBpsBound caps the configurable royalty ceiling.
	MaxRoyaltyBpsBound uint16 = 10_000

	// MaxPlatformFeeBps caps the configurable platform fee rate.
	MaxPlatformFeeBps uint16 = 1_000
)

// Config holds the royalty module configuration and its running fee counter.
// The maxRoyaltyBps ceiling bounds configuration writes only; payout math
// uses the asset's own recorded seller fee unclamped.
type Config struct {
	Authority          types.Address `json:"authority"`
	MaxRoyaltyBps      uint16        `json:"maxRoyaltyBps"`
	PlatformFeeBps     uint16        `json:"platformFeeBps"`
	TotalFeesCollected uint64        `json:"totalFeesCollected"`
}

// Clone returns a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// SanitizeConfig validates the supplied config and returns a cloned instance.
func SanitizeConfig(c *Config) (*Config, error) {
	if c == nil {
		return nil, fmt.Errorf("nil royalty config")
	}
	clone := c.Clone()
	if clone.Authority.IsZero() {
		return nil, fmt.Errorf("royalty config authority required")
	}
	if clone.MaxRoyaltyBps > MaxRoyaltyBpsBound {
		return nil, fmt.Errorf("royalty ceiling out of range: %d", clone.MaxRoyaltyBps)
	}
	if clone.PlatformFeeBps > MaxPlatformFeeBps {
		return nil, fmt.Errorf("platform fee out of range: %d", clone.PlatformFeeBps)
	}
	return clone, nil
}

// Creator is one entry of an asset's creator-share table. Only verified
// creators participate in payouts; an unverified creator's share stays with
// the seller.
type Creator struct {
	Address  types.Address `json:"address"`
	Verified bool          `json:"verified"`
	Share    uint8         `json:"share"`
}

// CreatorPayout is the computed payout for one verified creator.
type CreatorPayout struct {
	Address types.Address `json:"address"`
	Share   uint8         `json:"share"`
	Amount  uint64        `json:"amount"`
}

// Breakdown is the full fee/royalty/seller split for one sale price.
type Breakdown struct {
	SalePrice       uint64          `json:"salePrice"`
	PlatformFee     uint64          `json:"platformFee"`
	TotalRoyaltyFee uint64          `json:"totalRoyaltyFee"`
	SellerAmount    uint64          `json:"sellerAmount"`
	Creators        []CreatorPayout `json:"creators"`
}
