package common

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"marketd/core/types"
)

// DeriveEntityID produces the content-derived identifier for a custodial
// entity. Identical seed material always yields the same ID, so an entity's
// identity fields fully determine its record key.
func DeriveEntityID(parts ...[]byte) types.Hash {
	return types.Hash(ethcrypto.Keccak256Hash(parts...))
}

// CustodyAddress derives the holding account for an entity. No private key
// exists for the address; only the owning engine's code path may move the
// item or value out of it.
func CustodyAddress(tag string, id types.Hash) types.Address {
	hash := ethcrypto.Keccak256Hash([]byte(tag), id[:])
	var addr types.Address
	copy(addr[:], hash[12:])
	return addr
}

// TimestampSeed encodes an epoch-second timestamp as fixed-width seed bytes
// for entity ID derivation.
func TimestampSeed(ts int64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(ts))
	return buf[:]
}
