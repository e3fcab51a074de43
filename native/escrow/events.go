package escrow

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeCreated            = "escrow.created"
	EventTypeItemDeposited      = "escrow.item_deposited"
	EventTypeValueDeposited     = "escrow.value_deposited"
	EventTypeReleased           = "escrow.released"
	EventTypeEmergencyWithdrawn = "escrow.emergency_withdrawn"
)

func baseAttributes(esc *Escrow) map[string]string {
	attrs := make(map[string]string)
	if esc == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(esc.ID[:])
	attrs["authority"] = hex.EncodeToString(esc.Authority[:])
	attrs["kind"] = esc.Kind.String()
	attrs["valueAmount"] = strconv.FormatUint(esc.ValueAmount, 10)
	attrs["createdAt"] = strconv.FormatInt(esc.CreatedAt, 10)
	if esc.ExpiresAt != nil {
		attrs["expiresAt"] = strconv.FormatInt(*esc.ExpiresAt, 10)
	}
	if esc.ItemID != nil {
		attrs["itemId"] = hex.EncodeToString(esc.ItemID[:])
	}
	return attrs
}

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(esc *Escrow) *types.Event {
	return &types.Event{Type: EventTypeCreated, Attributes: baseAttributes(esc)}
}

// NewItemDepositedEvent returns the payload emitted when the item enters
// custody.
func NewItemDepositedEvent(esc *Escrow, depositor types.Address) *types.Event {
	attrs := baseAttributes(esc)
	attrs["depositor"] = hex.EncodeToString(depositor[:])
	return &types.Event{Type: EventTypeItemDeposited, Attributes: attrs}
}

// NewValueDepositedEvent returns the payload emitted when value enters
// custody.
func NewValueDepositedEvent(esc *Escrow, depositor types.Address, amount uint64) *types.Event {
	attrs := baseAttributes(esc)
	attrs["depositor"] = hex.EncodeToString(depositor[:])
	attrs["amount"] = strconv.FormatUint(amount, 10)
	return &types.Event{Type: EventTypeValueDeposited, Attributes: attrs}
}

// NewReleasedEvent returns the payload emitted when custody pays out.
func NewReleasedEvent(esc *Escrow, itemRecipient, valueRecipient types.Address) *types.Event {
	attrs := baseAttributes(esc)
	if esc != nil && esc.ItemID != nil {
		attrs["itemRecipient"] = hex.EncodeToString(itemRecipient[:])
	}
	if esc != nil && esc.ValueAmount > 0 {
		attrs["valueRecipient"] = hex.EncodeToString(valueRecipient[:])
	}
	return &types.Event{Type: EventTypeReleased, Attributes: attrs}
}

// NewEmergencyWithdrawnEvent returns the payload emitted when the admin
// escape hatch drains the escrow.
func NewEmergencyWithdrawnEvent(esc *Escrow, caller types.Address) *types.Event {
	attrs := baseAttributes(esc)
	attrs["caller"] = hex.EncodeToString(caller[:])
	return &types.Event{Type: EventTypeEmergencyWithdrawn, Attributes: attrs}
}
