package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"marketd/core/types"
	"marketd/native/auction"
	"marketd/native/escrow"
	"marketd/native/listing"
	"marketd/native/market"
	"marketd/native/royalty"
)

var (
	ErrInsufficientBalance = errors.New("storage: insufficient balance")
	ErrBalanceOverflow     = errors.New("storage: balance overflow")
	ErrItemNotFound        = errors.New("storage: item not registered")
	ErrNotItemOwner        = errors.New("storage: item not owned by sender")
	ErrItemExists          = errors.New("storage: item already registered")
)

const (
	keyMarketplace   = "marketplace"
	keyRoyaltyConfig = "royalty_config"

	prefixAuction = "auction/"
	prefixListing = "listing/"
	prefixEscrow  = "escrow/"
	prefixAccount = "account/"
	prefixItem    = "item/"
)

// Manager is the persistent settlement state: entity records, the fungible
// value ledger and the item ownership registry, all as JSON documents over a
// key-value Database. A single mutex serializes ledger and registry writes so
// the two-sided transfer primitives are all-or-nothing.
type Manager struct {
	db Database
	mu sync.Mutex
}

// NewManager wraps a key-value database in a state manager.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

func (m *Manager) getJSON(key string, out any) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: unmarshal %s: %w", key, err)
	}
	return true, nil
}

func auctionKey(id types.Hash) string { return prefixAuction + hex.EncodeToString(id[:]) }
func listingKey(id types.Hash) string { return prefixListing + hex.EncodeToString(id[:]) }
func escrowKey(id types.Hash) string  { return prefixEscrow + hex.EncodeToString(id[:]) }

func accountKey(addr types.Address) string { return prefixAccount + hex.EncodeToString(addr[:]) }
func itemKey(item types.ItemID) string     { return prefixItem + hex.EncodeToString(item[:]) }

// MarketplacePut stores the marketplace configuration record.
func (m *Manager) MarketplacePut(mp *market.Marketplace) error {
	sanitized, err := market.SanitizeMarketplace(mp)
	if err != nil {
		return err
	}
	return m.putJSON(keyMarketplace, sanitized)
}

// MarketplaceGet loads the marketplace configuration record.
func (m *Manager) MarketplaceGet() (*market.Marketplace, bool) {
	var mp market.Marketplace
	ok, err := m.getJSON(keyMarketplace, &mp)
	if err != nil || !ok {
		return nil, false
	}
	return &mp, true
}

// RoyaltyConfigPut stores the royalty configuration record.
func (m *Manager) RoyaltyConfigPut(cfg *royalty.Config) error {
	sanitized, err := royalty.SanitizeConfig(cfg)
	if err != nil {
		return err
	}
	return m.putJSON(keyRoyaltyConfig, sanitized)
}

// RoyaltyConfigGet loads the royalty configuration record.
func (m *Manager) RoyaltyConfigGet() (*royalty.Config, bool) {
	var cfg royalty.Config
	ok, err := m.getJSON(keyRoyaltyConfig, &cfg)
	if err != nil || !ok {
		return nil, false
	}
	return &cfg, true
}

// AuctionPut stores an auction record.
func (m *Manager) AuctionPut(auc *auction.Auction) error {
	sanitized, err := auction.SanitizeAuction(auc)
	if err != nil {
		return err
	}
	return m.putJSON(auctionKey(sanitized.ID), sanitized)
}

// AuctionGet loads an auction record by ID.
func (m *Manager) AuctionGet(id types.Hash) (*auction.Auction, bool) {
	var auc auction.Auction
	ok, err := m.getJSON(auctionKey(id), &auc)
	if err != nil || !ok {
		return nil, false
	}
	return &auc, true
}

// ListingPut stores a listing record.
func (m *Manager) ListingPut(lst *listing.Listing) error {
	sanitized, err := listing.SanitizeListing(lst)
	if err != nil {
		return err
	}
	return m.putJSON(listingKey(sanitized.ID), sanitized)
}

// ListingGet loads a listing record by ID.
func (m *Manager) ListingGet(id types.Hash) (*listing.Listing, bool) {
	var lst listing.Listing
	ok, err := m.getJSON(listingKey(id), &lst)
	if err != nil || !ok {
		return nil, false
	}
	return &lst, true
}

// EscrowPut stores an escrow record.
func (m *Manager) EscrowPut(esc *escrow.Escrow) error {
	sanitized, err := escrow.SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return m.putJSON(escrowKey(sanitized.ID), sanitized)
}

// EscrowGet loads an escrow record by ID.
func (m *Manager) EscrowGet(id types.Hash) (*escrow.Escrow, bool) {
	var esc escrow.Escrow
	ok, err := m.getJSON(escrowKey(id), &esc)
	if err != nil || !ok {
		return nil, false
	}
	return &esc, true
}

func (m *Manager) loadAccount(addr types.Address) (*types.Account, error) {
	var acc types.Account
	ok, err := m.getJSON(accountKey(addr), &acc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{}, nil
	}
	return &acc, nil
}

// BalanceOf returns the fungible balance held by an address. Unknown
// addresses hold zero.
func (m *Manager) BalanceOf(addr types.Address) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.loadAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// MoveValue transfers value between two addresses. Both sides are validated
// before either account is written. A transfer from an address to itself is
// validated against the balance and nets to zero.
func (m *Manager) MoveValue(from, to types.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount == 0 {
		return nil
	}
	source, err := m.loadAccount(from)
	if err != nil {
		return err
	}
	if source.Balance < amount {
		return ErrInsufficientBalance
	}
	if from == to {
		return nil
	}
	dest, err := m.loadAccount(to)
	if err != nil {
		return err
	}
	if dest.Balance+amount < dest.Balance {
		return ErrBalanceOverflow
	}
	source.Balance -= amount
	dest.Balance += amount
	if err := m.putJSON(accountKey(from), source); err != nil {
		return err
	}
	return m.putJSON(accountKey(to), dest)
}

// Settle applies a multi-leg settlement. Every value and item leg is
// validated against a working copy of the ledger before anything is written,
// so a failing leg aborts with no ledger change.
func (m *Manager) Settle(values []types.ValueLeg, items []types.ItemLeg) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := make(map[types.Address]*types.Account)
	load := func(addr types.Address) (*types.Account, error) {
		if acc, ok := accounts[addr]; ok {
			return acc, nil
		}
		acc, err := m.loadAccount(addr)
		if err != nil {
			return nil, err
		}
		accounts[addr] = acc
		return acc, nil
	}
	for _, leg := range values {
		if leg.Amount == 0 {
			continue
		}
		source, err := load(leg.From)
		if err != nil {
			return err
		}
		if source.Balance < leg.Amount {
			return ErrInsufficientBalance
		}
		if leg.From == leg.To {
			continue
		}
		dest, err := load(leg.To)
		if err != nil {
			return err
		}
		if dest.Balance+leg.Amount < dest.Balance {
			return ErrBalanceOverflow
		}
		source.Balance -= leg.Amount
		dest.Balance += leg.Amount
	}

	owners := make(map[types.ItemID]types.Address)
	for _, leg := range items {
		owner, ok := owners[leg.Item]
		if !ok {
			var stored types.Address
			found, err := m.getJSON(itemKey(leg.Item), &stored)
			if err != nil {
				return err
			}
			if !found {
				return ErrItemNotFound
			}
			owner = stored
		}
		if owner != leg.From {
			return ErrNotItemOwner
		}
		owners[leg.Item] = leg.To
	}

	for addr, acc := range accounts {
		if err := m.putJSON(accountKey(addr), acc); err != nil {
			return err
		}
	}
	for item, owner := range owners {
		if err := m.putJSON(itemKey(item), owner); err != nil {
			return err
		}
	}
	return nil
}

// CreditAccount mints value onto an address. Used by the host bootstrap and
// admin funding operations, never by the engines.
func (m *Manager) CreditAccount(addr types.Address, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, err := m.loadAccount(addr)
	if err != nil {
		return err
	}
	if acc.Balance+amount < acc.Balance {
		return ErrBalanceOverflow
	}
	acc.Balance += amount
	return m.putJSON(accountKey(addr), acc)
}

// RegisterItem records a newly minted item under its first owner.
func (m *Manager) RegisterItem(item types.ItemID, owner types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var existing types.Address
	ok, err := m.getJSON(itemKey(item), &existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrItemExists
	}
	return m.putJSON(itemKey(item), owner)
}

// ItemOwner returns the current owner of an item.
func (m *Manager) ItemOwner(item types.ItemID) (types.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owner types.Address
	ok, err := m.getJSON(itemKey(item), &owner)
	if err != nil {
		return types.Address{}, err
	}
	if !ok {
		return types.Address{}, ErrItemNotFound
	}
	return owner, nil
}

// MoveItem transfers item ownership. The sender must be the current owner.
func (m *Manager) MoveItem(item types.ItemID, from, to types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var owner types.Address
	ok, err := m.getJSON(itemKey(item), &owner)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}
	if owner != from {
		return ErrNotItemOwner
	}
	return m.putJSON(itemKey(item), to)
}
