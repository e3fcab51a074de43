package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Address identifies a party or a custodial holding account on the settlement
// ledger.
type Address [20]byte

// ItemID identifies the unique, non-divisible asset moved by the engines.
// Quantity is always exactly 1.
type ItemID [32]byte

// Account holds the fungible balance for a single address. Custodial accounts
// derived by the engines use the same representation as externally owned
// accounts; the difference is purely which code path may move funds out.
type Account struct {
	Balance uint64 `json:"balance"`
}

// Hash is a 32-byte entity identifier derived from the entity's identity
// fields.
type Hash [32]byte

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) IsZero() bool {
	return a == Address{}
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (i ItemID) String() string {
	return hex.EncodeToString(i[:])
}

// ParseAddress decodes a 0x-prefixed (or bare) hex address.
func ParseAddress(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != 20 {
		return Address{}, fmt.Errorf("invalid address length: %d", len(raw))
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

// ParseHash decodes a 64-character hex entity identifier.
func ParseHash(s string) (Hash, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Hash{}, fmt.Errorf("invalid id: %w", err)
	}
	if len(raw) != 32 {
		return Hash{}, fmt.Errorf("invalid id length: %d", len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// ParseItemID decodes a 64-character hex item identifier.
func ParseItemID(s string) (ItemID, error) {
	h, err := ParseHash(s)
	if err != nil {
		return ItemID{}, err
	}
	return ItemID(h), nil
}
