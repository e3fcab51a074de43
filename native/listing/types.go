package listing

import (
	"fmt"

	"marketd/core/types"
)

// Listing captures a fixed-price sale. The identifier is the keccak256 hash
// of the item and the seller, so one seller can have at most one live listing
// per item.
type Listing struct {
	ID        types.Hash    `json:"id"`
	Seller    types.Address `json:"seller"`
	ItemID    types.ItemID  `json:"itemId"`
	Price     uint64        `json:"price"`
	CreatedAt int64         `json:"createdAt"`
	Expiry    *int64        `json:"expiry,omitempty"`
	IsActive  bool          `json:"isActive"`
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Expiry != nil {
		expiry := *l.Expiry
		clone.Expiry = &expiry
	}
	return &clone
}

// SanitizeListing validates the supplied listing definition and returns a
// cloned instance. The function does not mutate the original value.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Seller.IsZero() {
		return nil, fmt.Errorf("listing seller required")
	}
	if clone.Price == 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.Expiry != nil && *clone.Expiry <= clone.CreatedAt {
		return nil, fmt.Errorf("listing expiry must follow creation")
	}
	return clone, nil
}
