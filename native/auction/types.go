package auction

import (
	"fmt"

	"marketd/core/types"
)

const (
	// MinDuration and MaxDuration bound the auction window at creation.
	MinDuration int64 = 3_600
	MaxDuration int64 = 2_592_000

	// AntiSnipeWindow is the tail period during which an accepted bid pushes
	// the end time out to now plus the window.
	AntiSnipeWindow int64 = 600
)

// Auction captures an ascending-bid sale. The identifier is the keccak256
// hash of the item and the seller. Records are never deleted; a settled or
// canceled auction stays terminal forever.
type Auction struct {
	ID              types.Hash     `json:"id"`
	Seller          types.Address  `json:"seller"`
	ItemID          types.ItemID   `json:"itemId"`
	StartTime       int64          `json:"startTime"`
	EndTime         int64          `json:"endTime"`
	ReservePrice    uint64         `json:"reservePrice"`
	MinBidIncrement uint64         `json:"minBidIncrement"`
	HighestBid      uint64         `json:"highestBid"`
	HighestBidder   *types.Address `json:"highestBidder,omitempty"`
	TotalBids       uint64         `json:"totalBids"`
	IsSettled       bool           `json:"isSettled"`
	IsCanceled      bool           `json:"isCanceled"`
}

// Clone returns a deep copy of the auction so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	if a.HighestBidder != nil {
		bidder := *a.HighestBidder
		clone.HighestBidder = &bidder
	}
	return &clone
}

// SanitizeAuction validates the supplied auction definition and returns a
// cloned instance. The function does not mutate the original value.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if clone.Seller.IsZero() {
		return nil, fmt.Errorf("auction seller required")
	}
	if clone.EndTime <= clone.StartTime {
		return nil, fmt.Errorf("auction end must follow start")
	}
	if clone.ReservePrice == 0 {
		return nil, fmt.Errorf("auction reserve must be positive")
	}
	if clone.MinBidIncrement == 0 {
		return nil, fmt.Errorf("auction increment must be positive")
	}
	if (clone.HighestBid == 0) != (clone.HighestBidder == nil) {
		return nil, fmt.Errorf("auction highest bid and bidder must be set together")
	}
	if clone.IsSettled && clone.IsCanceled {
		return nil, fmt.Errorf("auction cannot be both settled and canceled")
	}
	return clone, nil
}
