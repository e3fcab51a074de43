package listing

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeCreated          = "listing.created"
	EventTypeUpdated          = "listing.updated"
	EventTypeCanceled         = "listing.canceled"
	EventTypeSold             = "listing.sold"
	EventTypeExpiredRecovered = "listing.expired_recovered"
)

func baseAttributes(lst *Listing) map[string]string {
	attrs := make(map[string]string)
	if lst == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(lst.ID[:])
	attrs["seller"] = hex.EncodeToString(lst.Seller[:])
	attrs["itemId"] = hex.EncodeToString(lst.ItemID[:])
	attrs["price"] = strconv.FormatUint(lst.Price, 10)
	attrs["createdAt"] = strconv.FormatInt(lst.CreatedAt, 10)
	if lst.Expiry != nil {
		attrs["expiry"] = strconv.FormatInt(*lst.Expiry, 10)
	}
	return attrs
}

// NewCreatedEvent returns the canonical event payload for a new listing.
func NewCreatedEvent(lst *Listing) *types.Event {
	return &types.Event{Type: EventTypeCreated, Attributes: baseAttributes(lst)}
}

// NewUpdatedEvent returns the payload emitted after a seller mutation.
func NewUpdatedEvent(lst *Listing) *types.Event {
	return &types.Event{Type: EventTypeUpdated, Attributes: baseAttributes(lst)}
}

// NewCanceledEvent returns the payload emitted when a seller cancels.
func NewCanceledEvent(lst *Listing) *types.Event {
	return &types.Event{Type: EventTypeCanceled, Attributes: baseAttributes(lst)}
}

// NewSoldEvent returns the payload emitted when a purchase settles.
func NewSoldEvent(lst *Listing, buyer types.Address, fee, proceeds uint64) *types.Event {
	attrs := baseAttributes(lst)
	attrs["buyer"] = hex.EncodeToString(buyer[:])
	attrs["fee"] = strconv.FormatUint(fee, 10)
	attrs["proceeds"] = strconv.FormatUint(proceeds, 10)
	return &types.Event{Type: EventTypeSold, Attributes: attrs}
}

// NewExpiredRecoveredEvent returns the payload emitted when an expired
// listing's item goes back to its seller.
func NewExpiredRecoveredEvent(lst *Listing) *types.Event {
	return &types.Event{Type: EventTypeExpiredRecovered, Attributes: baseAttributes(lst)}
}
