package escrow

import (
	"fmt"
	"strings"

	"marketd/core/types"
)

// Kind classifies what flow an escrow is holding funds for. It is metadata
// for operators and indexers; transfer semantics are identical across kinds.
type Kind uint8

const (
	KindListing Kind = iota
	KindAuction
	KindDirectSale
	KindSwap
)

// Valid reports whether the kind value is within the supported range.
func (k Kind) Valid() bool {
	switch k {
	case KindListing, KindAuction, KindDirectSale, KindSwap:
		return true
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case KindListing:
		return "listing"
	case KindAuction:
		return "auction"
	case KindDirectSale:
		return "direct_sale"
	case KindSwap:
		return "swap"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind resolves a kind from its canonical string form.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "listing":
		return KindListing, nil
	case "auction":
		return KindAuction, nil
	case "direct_sale", "directsale":
		return KindDirectSale, nil
	case "swap":
		return KindSwap, nil
	default:
		return 0, fmt.Errorf("unsupported escrow kind: %s", raw)
	}
}

// Status is the derived lifecycle view of an escrow. It is computed from the
// stored flags and clock on demand and never persisted.
type Status uint8

const (
	StatusActive Status = iota
	StatusExpired
	StatusReleased
	StatusEmergencyWithdrawn
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusExpired:
		return "expired"
	case StatusReleased:
		return "released"
	case StatusEmergencyWithdrawn:
		return "emergency_withdrawn"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Escrow captures a single typed holding account. The identifier is the
// keccak256 hash of the authority and the creation timestamp, so an authority
// can hold many escrows but never two created in the same second.
type Escrow struct {
	ID          types.Hash    `json:"id"`
	Authority   types.Address `json:"authority"`
	Kind        Kind          `json:"kind"`
	CreatedAt   int64         `json:"createdAt"`
	ExpiresAt   *int64        `json:"expiresAt,omitempty"`
	ItemID      *types.ItemID `json:"itemId,omitempty"`
	ValueAmount uint64        `json:"valueAmount"`
	IsReleased  bool          `json:"isReleased"`
	IsWithdrawn bool          `json:"isWithdrawn"`
}

// Clone returns a deep copy of the escrow so callers can safely mutate the
// copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.ExpiresAt != nil {
		expires := *e.ExpiresAt
		clone.ExpiresAt = &expires
	}
	if e.ItemID != nil {
		item := *e.ItemID
		clone.ItemID = &item
	}
	return &clone
}

// SanitizeEscrow validates the supplied escrow definition and returns a
// cloned instance. The function does not mutate the original value.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("nil escrow")
	}
	clone := e.Clone()
	if clone.Authority.IsZero() {
		return nil, fmt.Errorf("escrow authority required")
	}
	if !clone.Kind.Valid() {
		return nil, fmt.Errorf("invalid escrow kind: %d", clone.Kind)
	}
	if clone.IsReleased && clone.IsWithdrawn {
		return nil, fmt.Errorf("escrow cannot be both released and withdrawn")
	}
	if clone.ExpiresAt != nil && *clone.ExpiresAt <= clone.CreatedAt {
		return nil, fmt.Errorf("escrow expiry must follow creation")
	}
	return clone, nil
}
