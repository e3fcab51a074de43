package market

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeInitialized      = "market.initialized"
	EventTypeFeeUpdated       = "market.fee_updated"
	EventTypeAuthorityUpdated = "market.authority_updated"
	EventTypePaused           = "market.paused"
	EventTypeFeesWithdrawn    = "market.fees_withdrawn"
)

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// NewInitializedEvent returns the canonical payload emitted when the
// marketplace configuration is created.
func NewInitializedEvent(mp *Marketplace) *types.Event {
	attrs := make(map[string]string)
	if mp != nil {
		attrs["authority"] = hex.EncodeToString(mp.Authority[:])
		attrs["treasury"] = hex.EncodeToString(mp.Treasury[:])
		attrs["feeBps"] = strconv.FormatUint(uint64(mp.FeeBps), 10)
		attrs["createdAt"] = strconv.FormatInt(mp.CreatedAt, 10)
	}
	return &types.Event{Type: EventTypeInitialized, Attributes: attrs}
}

// NewFeeUpdatedEvent returns the payload emitted when the platform fee rate
// changes.
func NewFeeUpdatedEvent(oldFee, newFee uint16, caller types.Address) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"oldFeeBps": strconv.FormatUint(uint64(oldFee), 10),
		"newFeeBps": strconv.FormatUint(uint64(newFee), 10),
		"caller":    hex.EncodeToString(caller[:]),
	}}
}

// NewAuthorityUpdatedEvent returns the payload emitted when administration is
// handed to a new authority.
func NewAuthorityUpdatedEvent(old, next types.Address) *types.Event {
	return &types.Event{Type: EventTypeAuthorityUpdated, Attributes: map[string]string{
		"oldAuthority": hex.EncodeToString(old[:]),
		"newAuthority": hex.EncodeToString(next[:]),
	}}
}

// NewPausedEvent returns the payload emitted when the global pause flag flips.
func NewPausedEvent(paused bool, caller types.Address) *types.Event {
	return &types.Event{Type: EventTypePaused, Attributes: map[string]string{
		"paused": strconv.FormatBool(paused),
		"caller": hex.EncodeToString(caller[:]),
	}}
}

// NewFeesWithdrawnEvent returns the payload emitted when accumulated platform
// fees leave the treasury.
func NewFeesWithdrawnEvent(amount uint64, caller types.Address) *types.Event {
	return &types.Event{Type: EventTypeFeesWithdrawn, Attributes: map[string]string{
		"amount": strconv.FormatUint(amount, 10),
		"caller": hex.EncodeToString(caller[:]),
	}}
}
