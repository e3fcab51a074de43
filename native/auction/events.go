package auction

import (
	"encoding/hex"
	"strconv"

	"marketd/core/types"
)

const (
	EventTypeCreated         = "auction.created"
	EventTypeBidPlaced       = "auction.bid_placed"
	EventTypeBidRefunded     = "auction.bid_refunded"
	EventTypeSettled         = "auction.settled"
	EventTypeSettledNoSale   = "auction.settled_no_sale"
	EventTypeCanceled        = "auction.canceled"
	EventTypeEmergencyRefund = "auction.emergency_refund"
)

func baseAttributes(auc *Auction) map[string]string {
	attrs := make(map[string]string)
	if auc == nil {
		return attrs
	}
	attrs["id"] = hex.EncodeToString(auc.ID[:])
	attrs["seller"] = hex.EncodeToString(auc.Seller[:])
	attrs["itemId"] = hex.EncodeToString(auc.ItemID[:])
	attrs["startTime"] = strconv.FormatInt(auc.StartTime, 10)
	attrs["endTime"] = strconv.FormatInt(auc.EndTime, 10)
	attrs["reservePrice"] = strconv.FormatUint(auc.ReservePrice, 10)
	attrs["minBidIncrement"] = strconv.FormatUint(auc.MinBidIncrement, 10)
	attrs["highestBid"] = strconv.FormatUint(auc.HighestBid, 10)
	attrs["totalBids"] = strconv.FormatUint(auc.TotalBids, 10)
	if auc.HighestBidder != nil {
		attrs["highestBidder"] = hex.EncodeToString(auc.HighestBidder[:])
	}
	return attrs
}

// NewCreatedEvent returns the canonical event payload for a new auction.
func NewCreatedEvent(auc *Auction) *types.Event {
	return &types.Event{Type: EventTypeCreated, Attributes: baseAttributes(auc)}
}

// NewBidPlacedEvent returns the payload emitted after an accepted bid.
func NewBidPlacedEvent(auc *Auction) *types.Event {
	return &types.Event{Type: EventTypeBidPlaced, Attributes: baseAttributes(auc)}
}

// NewBidRefundedEvent returns the payload emitted when a displaced bidder is
// refunded.
func NewBidRefundedEvent(auc *Auction, bidder types.Address, amount uint64) *types.Event {
	attrs := baseAttributes(auc)
	attrs["refundedBidder"] = hex.EncodeToString(bidder[:])
	attrs["refundedAmount"] = strconv.FormatUint(amount, 10)
	return &types.Event{Type: EventTypeBidRefunded, Attributes: attrs}
}

// NewSettledEvent returns the payload emitted when a sale settles.
func NewSettledEvent(auc *Auction, fee, proceeds uint64) *types.Event {
	attrs := baseAttributes(auc)
	attrs["fee"] = strconv.FormatUint(fee, 10)
	attrs["proceeds"] = strconv.FormatUint(proceeds, 10)
	return &types.Event{Type: EventTypeSettled, Attributes: attrs}
}

// NewSettledNoSaleEvent returns the payload emitted when the reserve was not
// met and the item went back to the seller.
func NewSettledNoSaleEvent(auc *Auction) *types.Event {
	return &types.Event{Type: EventTypeSettledNoSale, Attributes: baseAttributes(auc)}
}

// NewCanceledEvent returns the payload emitted when a seller cancels a
// bidless auction.
func NewCanceledEvent(auc *Auction) *types.Event {
	return &types.Event{Type: EventTypeCanceled, Attributes: baseAttributes(auc)}
}

// NewEmergencyRefundEvent returns the distinct audit payload for the admin
// escape hatch.
func NewEmergencyRefundEvent(auc *Auction, recipient types.Address, amount uint64) *types.Event {
	attrs := baseAttributes(auc)
	attrs["recipient"] = hex.EncodeToString(recipient[:])
	attrs["amount"] = strconv.FormatUint(amount, 10)
	return &types.Event{Type: EventTypeEmergencyRefund, Attributes: attrs}
}
