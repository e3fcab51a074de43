package core

import (
	"encoding/hex"
	"sync"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/auction"
	"marketd/native/escrow"
	"marketd/native/listing"
	"marketd/native/market"
	"marketd/native/royalty"
	"marketd/storage"
)

// Node wires the settlement engines to shared state and serializes all
// state-changing operations per entity. No two operations may observe and
// mutate the same entity concurrently; unrelated entities proceed in
// parallel.
type Node struct {
	state *storage.Manager

	market  *market.Engine
	auction *auction.Engine
	listing *listing.Engine
	escrow  *escrow.Engine
	royalty *royalty.Engine

	locks sync.Map
}

// NewNode builds a node over the given database. Events from every engine
// flow through the supplied emitter; nil means no events.
func NewNode(db storage.Database, emitter events.Emitter) *Node {
	state := storage.NewManager(db)

	marketEngine := market.NewEngine()
	marketEngine.SetState(state)
	marketEngine.SetEmitter(emitter)

	auctionEngine := auction.NewEngine()
	auctionEngine.SetState(state)
	auctionEngine.SetMarket(marketEngine)
	auctionEngine.SetEmitter(emitter)

	listingEngine := listing.NewEngine()
	listingEngine.SetState(state)
	listingEngine.SetMarket(marketEngine)
	listingEngine.SetEmitter(emitter)

	escrowEngine := escrow.NewEngine()
	escrowEngine.SetState(state)
	escrowEngine.SetMarket(marketEngine)
	escrowEngine.SetEmitter(emitter)

	royaltyEngine := royalty.NewEngine()
	royaltyEngine.SetState(state)
	royaltyEngine.SetEmitter(emitter)

	return &Node{
		state:   state,
		market:  marketEngine,
		auction: auctionEngine,
		listing: listingEngine,
		escrow:  escrowEngine,
		royalty: royaltyEngine,
	}
}

// SetNowFunc overrides the time source of every engine. Intended for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.market.SetNowFunc(now)
	n.auction.SetNowFunc(now)
	n.listing.SetNowFunc(now)
	n.escrow.SetNowFunc(now)
	n.royalty.SetNowFunc(now)
}

// State exposes the underlying state manager.
func (n *Node) State() *storage.Manager { return n.state }

// Market exposes the marketplace engine for read views.
func (n *Node) Market() *market.Engine { return n.market }

// Royalty exposes the royalty engine for read views.
func (n *Node) Royalty() *royalty.Engine { return n.royalty }

func (n *Node) lock(key string) func() {
	value, _ := n.locks.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func entityKey(kind string, id types.Hash) string {
	return kind + "/" + hex.EncodeToString(id[:])
}

const (
	marketKey  = "market"
	royaltyKey = "royalty"
)

// --- marketplace operations ---

func (n *Node) MarketInitialize(authority, treasury types.Address, feeBps uint16) (*market.Marketplace, error) {
	defer n.lock(marketKey)()
	return n.market.Initialize(authority, treasury, feeBps)
}

func (n *Node) MarketUpdateFee(caller types.Address, feeBps uint16) error {
	defer n.lock(marketKey)()
	return n.market.UpdateFee(caller, feeBps)
}

func (n *Node) MarketUpdateAuthority(caller, newAuthority types.Address) error {
	defer n.lock(marketKey)()
	return n.market.UpdateAuthority(caller, newAuthority)
}

func (n *Node) MarketSetPaused(caller types.Address, paused bool) error {
	defer n.lock(marketKey)()
	return n.market.SetPaused(caller, paused)
}

func (n *Node) MarketWithdrawFees(caller types.Address, amount uint64) error {
	defer n.lock(marketKey)()
	return n.market.WithdrawFees(caller, amount)
}

func (n *Node) MarketGet() (*market.Marketplace, error) {
	return n.market.Marketplace()
}

// --- auction operations ---

func (n *Node) AuctionCreate(seller types.Address, item types.ItemID, start, end int64, reserve, minIncrement uint64) (*auction.Auction, error) {
	defer n.lock(entityKey("auction", auction.AuctionID(item, seller)))()
	return n.auction.Create(seller, item, start, end, reserve, minIncrement)
}

func (n *Node) AuctionPlaceBid(id types.Hash, bidder types.Address, amount uint64) error {
	defer n.lock(entityKey("auction", id))()
	return n.auction.PlaceBid(id, bidder, amount)
}

func (n *Node) AuctionClaim(id types.Hash) error {
	defer n.lock(entityKey("auction", id))()
	return n.auction.Claim(id)
}

func (n *Node) AuctionCancel(id types.Hash, seller types.Address) error {
	defer n.lock(entityKey("auction", id))()
	return n.auction.Cancel(id, seller)
}

func (n *Node) AuctionEmergencyRefund(id types.Hash, caller, recipient types.Address) error {
	defer n.lock(entityKey("auction", id))()
	return n.auction.EmergencyRefund(id, caller, recipient)
}

func (n *Node) AuctionGet(id types.Hash) (*auction.Auction, error) {
	return n.auction.Get(id)
}

// --- listing operations ---

func (n *Node) ListingList(seller types.Address, item types.ItemID, price uint64, expiry *int64) (*listing.Listing, error) {
	defer n.lock(entityKey("listing", listing.ListingID(item, seller)))()
	return n.listing.List(seller, item, price, expiry)
}

func (n *Node) ListingUpdate(id types.Hash, seller types.Address, price uint64, expiry *int64) error {
	defer n.lock(entityKey("listing", id))()
	return n.listing.Update(id, seller, price, expiry)
}

func (n *Node) ListingCancel(id types.Hash, seller types.Address) error {
	defer n.lock(entityKey("listing", id))()
	return n.listing.Cancel(id, seller)
}

func (n *Node) ListingBuy(id types.Hash, buyer types.Address) error {
	defer n.lock(entityKey("listing", id))()
	return n.listing.Buy(id, buyer)
}

func (n *Node) ListingRecoverExpired(id types.Hash) error {
	defer n.lock(entityKey("listing", id))()
	return n.listing.RecoverExpired(id)
}

func (n *Node) ListingGet(id types.Hash) (*listing.Listing, error) {
	return n.listing.Get(id)
}

// --- escrow operations ---

// EscrowCreate serializes on the authority: the escrow ID derives from the
// authority and the creation second, so two concurrent creations by one
// authority must not race.
func (n *Node) EscrowCreate(authority types.Address, kind escrow.Kind, duration *int64) (*escrow.Escrow, error) {
	defer n.lock("escrow-create/" + authority.String())()
	return n.escrow.Create(authority, kind, duration)
}

func (n *Node) EscrowDepositItem(id types.Hash, depositor types.Address, item types.ItemID) error {
	defer n.lock(entityKey("escrow", id))()
	return n.escrow.DepositItem(id, depositor, item)
}

func (n *Node) EscrowDepositValue(id types.Hash, depositor types.Address, amount uint64) error {
	defer n.lock(entityKey("escrow", id))()
	return n.escrow.DepositValue(id, depositor, amount)
}

func (n *Node) EscrowRelease(id types.Hash, caller, itemRecipient, valueRecipient types.Address) error {
	defer n.lock(entityKey("escrow", id))()
	return n.escrow.Release(id, caller, itemRecipient, valueRecipient)
}

func (n *Node) EscrowEmergencyWithdraw(id types.Hash, caller, itemRecovery, valueRecovery types.Address) error {
	defer n.lock(entityKey("escrow", id))()
	return n.escrow.EmergencyWithdraw(id, caller, itemRecovery, valueRecovery)
}

func (n *Node) EscrowStatus(id types.Hash) (escrow.Status, error) {
	return n.escrow.Status(id)
}

func (n *Node) EscrowGet(id types.Hash) (*escrow.Escrow, error) {
	return n.escrow.Get(id)
}

// --- royalty operations ---

func (n *Node) RoyaltyInitializeConfig(authority types.Address, maxRoyaltyBps, platformFeeBps uint16) (*royalty.Config, error) {
	defer n.lock(royaltyKey)()
	return n.royalty.InitializeConfig(authority, maxRoyaltyBps, platformFeeBps)
}

func (n *Node) RoyaltyUpdateConfig(caller types.Address, maxRoyaltyBps, platformFeeBps *uint16) error {
	defer n.lock(royaltyKey)()
	return n.royalty.UpdateConfig(caller, maxRoyaltyBps, platformFeeBps)
}

func (n *Node) RoyaltyDistribute(buyer, seller types.Address, salePrice uint64, sellerFeeBps uint16, creators []royalty.Creator, accounts []types.Address) (*royalty.Breakdown, error) {
	defer n.lock(royaltyKey)()
	return n.royalty.Distribute(buyer, seller, salePrice, sellerFeeBps, creators, accounts)
}

func (n *Node) RoyaltyCalculate(salePrice uint64, sellerFeeBps uint16, creators []royalty.Creator) (*royalty.Breakdown, error) {
	return n.royalty.Calculate(salePrice, sellerFeeBps, creators)
}

func (n *Node) RoyaltyWithdrawFees(caller types.Address, amount uint64) error {
	defer n.lock(royaltyKey)()
	return n.royalty.WithdrawFees(caller, amount)
}

func (n *Node) RoyaltyConfig() (*royalty.Config, error) {
	return n.royalty.Config()
}

// --- host bootstrap ---

// RegisterItem records a newly minted item under its first owner. Minting
// itself happens outside this process; the node only tracks custody.
func (n *Node) RegisterItem(item types.ItemID, owner types.Address) error {
	return n.state.RegisterItem(item, owner)
}

// CreditAccount funds an address with fungible value.
func (n *Node) CreditAccount(addr types.Address, amount uint64) error {
	return n.state.CreditAccount(addr, amount)
}

// BalanceOf reports the fungible balance of an address.
func (n *Node) BalanceOf(addr types.Address) (uint64, error) {
	return n.state.BalanceOf(addr)
}

// ItemOwner reports the current owner of an item.
func (n *Node) ItemOwner(item types.ItemID) (types.Address, error) {
	return n.state.ItemOwner(item)
}
