package royalty

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeConfigInitialized = "royalty.config_initialized"
	EventTypeConfigUpdated     = "royalty.config_updated"
	EventTypeDistributed       = "royalty.distributed"
	EventTypeFeesWithdrawn     = "royalty.fees_withdrawn"
)

func configAttributes(cfg *Config) map[string]string {
	attrs := make(map[string]string)
	if cfg == nil {
		return attrs
	}
	attrs["authority"] = hex.EncodeToString(cfg.Authority[:])
	attrs["maxRoyaltyBps"] = strconv.FormatUint(uint64(cfg.MaxRoyaltyBps), 10)
	attrs["platformFeeBps"] = strconv.FormatUint(uint64(cfg.PlatformFeeBps), 10)
	attrs["totalFeesCollected"] = strconv.FormatUint(cfg.TotalFeesCollected, 10)
	return attrs
}

// NewConfigInitializedEvent returns the payload emitted when the royalty
// config is created.
func NewConfigInitializedEvent(cfg *Config) *types.Event {
	return &types.Event{Type: EventTypeConfigInitialized, Attributes: configAttributes(cfg)}
}

// NewConfigUpdatedEvent returns the payload emitted after a config mutation.
func NewConfigUpdatedEvent(cfg *Config) *types.Event {
	return &types.Event{Type: EventTypeConfigUpdated, Attributes: configAttributes(cfg)}
}

// NewDistributedEvent returns the payload emitted after a completed payout.
func NewDistributedEvent(buyer, seller types.Address, breakdown *Breakdown) *types.Event {
	attrs := map[string]string{
		"buyer":  hex.EncodeToString(buyer[:]),
		"seller": hex.EncodeToString(seller[:]),
	}
	if breakdown != nil {
		attrs["salePrice"] = strconv.FormatUint(breakdown.SalePrice, 10)
		attrs["platformFee"] = strconv.FormatUint(breakdown.PlatformFee, 10)
		attrs["totalRoyaltyFee"] = strconv.FormatUint(breakdown.TotalRoyaltyFee, 10)
		attrs["sellerAmount"] = strconv.FormatUint(breakdown.SellerAmount, 10)
		attrs["creators"] = strconv.Itoa(len(breakdown.Creators))
	}
	return &types.Event{Type: EventTypeDistributed, Attributes: attrs}
}

// NewFeesWithdrawnEvent returns the payload emitted when platform fees leave
// the royalty treasury.
func NewFeesWithdrawnEvent(amount uint64, caller types.Address) *types.Event {
	return &types.Event{Type: EventTypeFeesWithdrawn, Attributes: map[string]string{
		"amount": strconv.FormatUint(amount, 10),
		"caller": hex.EncodeToString(caller[:]),
	}}
}
