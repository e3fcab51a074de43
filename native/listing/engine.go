package listing

import (
	"errors"
	"time"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

var (
	ErrNilState            = errors.New("listing engine: state not configured")
	ErrMarketNotConfigured = errors.New("listing engine: marketplace view not configured")
	ErrNotFound            = errors.New("listing engine: listing not found")
	ErrAlreadyListed       = errors.New("listing engine: item already listed by seller")
	ErrInvalidSeller       = errors.New("listing engine: seller address required")
	ErrInvalidBuyer        = errors.New("listing engine: buyer address required")
	ErrInvalidPrice        = errors.New("listing engine: price must be positive")
	ErrInvalidExpiry       = errors.New("listing engine: expiry must be in the future")
	ErrNotActive           = errors.New("listing engine: listing not active")
	ErrExpired             = errors.New("listing engine: listing expired")
	ErrNotExpired          = errors.New("listing engine: listing not expired")
	ErrNoExpiry            = errors.New("listing engine: listing has no expiry")
	ErrUnauthorized        = errors.New("listing engine: unauthorized caller")
	ErrInsufficientFunds   = errors.New("listing engine: buyer balance below price")
	ErrArithmetic          = errors.New("listing engine: arithmetic underflow")
)

const (
	ModuleName = "listing"

	custodyTag = "listing"
)

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(id types.Hash) (*Listing, bool)
	MoveItem(item types.ItemID, from, to types.Address) error
	BalanceOf(addr types.Address) (uint64, error)
	Settle(values []types.ValueLeg, items []types.ItemLeg) error
}

type marketView interface {
	common.PauseView
	Fee(amount uint64) (uint64, error)
	Treasury() (types.Address, error)
	RecordSale(price uint64) error
}

type listingEvent struct {
	evt *types.Event
}

func (e listingEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e listingEvent) Event() *types.Event { return e.evt }

// Engine implements the fixed-price sale state machine. The listed item sits
// in a derived custody account until exactly one of buy, cancel or expiry
// recovery wins.
type Engine struct {
	state   engineState
	market  marketView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a listing engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetMarket configures the marketplace view supplying the pause flag, fee
// rule and treasury address.
func (e *Engine) SetMarket(market marketView) { e.market = market }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(listingEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// ListingID derives the deterministic identifier for a listing of the given
// item by the given seller.
func ListingID(item types.ItemID, seller types.Address) types.Hash {
	return common.DeriveEntityID([]byte("listing"), item[:], seller[:])
}

// CustodyAddress returns the derived holding account for a listing.
func CustodyAddress(id types.Hash) types.Address {
	return common.CustodyAddress(custodyTag, id)
}

func (e *Engine) load(id types.Hash) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	lst, ok := e.state.ListingGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return lst, nil
}

// List moves the item into custody and opens a fixed-price sale. A previous
// terminal listing of the same item by the same seller is replaced.
func (e *Engine) List(seller types.Address, item types.ItemID, price uint64, expiry *int64) (*Listing, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if e.market == nil {
		return nil, ErrMarketNotConfigured
	}
	if err := common.Guard(e.market, ModuleName); err != nil {
		return nil, err
	}
	if seller.IsZero() {
		return nil, ErrInvalidSeller
	}
	if price == 0 {
		return nil, ErrInvalidPrice
	}
	now := e.now()
	if expiry != nil && *expiry <= now {
		return nil, ErrInvalidExpiry
	}
	id := ListingID(item, seller)
	if existing, ok := e.state.ListingGet(id); ok && existing.IsActive {
		return nil, ErrAlreadyListed
	}
	if err := e.state.MoveItem(item, seller, CustodyAddress(id)); err != nil {
		return nil, err
	}
	lst := &Listing{
		ID:        id,
		Seller:    seller,
		ItemID:    item,
		Price:     price,
		CreatedAt: now,
		IsActive:  true,
	}
	if expiry != nil {
		deadline := *expiry
		lst.Expiry = &deadline
	}
	if err := e.state.ListingPut(lst); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(lst))
	return lst.Clone(), nil
}

// Update changes the price and expiry of an active listing. Seller only;
// custody is untouched.
func (e *Engine) Update(id types.Hash, seller types.Address, newPrice uint64, newExpiry *int64) error {
	lst, err := e.load(id)
	if err != nil {
		return err
	}
	if seller != lst.Seller {
		return ErrUnauthorized
	}
	if !lst.IsActive {
		return ErrNotActive
	}
	if newPrice == 0 {
		return ErrInvalidPrice
	}
	if newExpiry != nil && *newExpiry <= e.now() {
		return ErrInvalidExpiry
	}
	lst.Price = newPrice
	lst.Expiry = nil
	if newExpiry != nil {
		deadline := *newExpiry
		lst.Expiry = &deadline
	}
	if err := e.state.ListingPut(lst); err != nil {
		return err
	}
	e.emit(NewUpdatedEvent(lst))
	return nil
}

// Cancel returns the item to the seller and retires the listing.
func (e *Engine) Cancel(id types.Hash, seller types.Address) error {
	lst, err := e.load(id)
	if err != nil {
		return err
	}
	if seller != lst.Seller {
		return ErrUnauthorized
	}
	if !lst.IsActive {
		return ErrNotActive
	}
	if err := e.state.MoveItem(lst.ItemID, CustodyAddress(id), lst.Seller); err != nil {
		return err
	}
	lst.IsActive = false
	if err := e.state.ListingPut(lst); err != nil {
		return err
	}
	e.emit(NewCanceledEvent(lst))
	return nil
}

// Buy settles the sale: platform fee to the treasury, remainder to the
// seller, item to the buyer. All legs settle in one atomic step, so a
// failing leg leaves the ledger untouched.
func (e *Engine) Buy(id types.Hash, buyer types.Address) error {
	lst, err := e.load(id)
	if err != nil {
		return err
	}
	if e.market == nil {
		return ErrMarketNotConfigured
	}
	if buyer.IsZero() {
		return ErrInvalidBuyer
	}
	if !lst.IsActive {
		return ErrNotActive
	}
	if err := common.Guard(e.market, ModuleName); err != nil {
		return err
	}
	now := e.now()
	if lst.Expiry != nil && now > *lst.Expiry {
		return ErrExpired
	}
	fee, err := e.market.Fee(lst.Price)
	if err != nil {
		return err
	}
	if fee > lst.Price {
		return ErrArithmetic
	}
	proceeds := lst.Price - fee
	balance, err := e.state.BalanceOf(buyer)
	if err != nil {
		return err
	}
	if balance < lst.Price {
		return ErrInsufficientFunds
	}
	values := make([]types.ValueLeg, 0, 2)
	if fee > 0 {
		treasury, err := e.market.Treasury()
		if err != nil {
			return err
		}
		values = append(values, types.ValueLeg{From: buyer, To: treasury, Amount: fee})
	}
	if proceeds > 0 {
		values = append(values, types.ValueLeg{From: buyer, To: lst.Seller, Amount: proceeds})
	}
	items := []types.ItemLeg{{Item: lst.ItemID, From: CustodyAddress(id), To: buyer}}
	if err := e.state.Settle(values, items); err != nil {
		return err
	}
	lst.IsActive = false
	if err := e.state.ListingPut(lst); err != nil {
		return err
	}
	// Volume counters are operator bookkeeping; a counter failure must not
	// unwind a settled sale.
	_ = e.market.RecordSale(lst.Price)
	e.emit(NewSoldEvent(lst, buyer, fee, proceeds))
	return nil
}

// RecoverExpired returns the item of an expired listing to its seller. Any
// caller may trigger the recovery.
func (e *Engine) RecoverExpired(id types.Hash) error {
	lst, err := e.load(id)
	if err != nil {
		return err
	}
	if !lst.IsActive {
		return ErrNotActive
	}
	if lst.Expiry == nil {
		return ErrNoExpiry
	}
	if e.now() <= *lst.Expiry {
		return ErrNotExpired
	}
	if err := e.state.MoveItem(lst.ItemID, CustodyAddress(id), lst.Seller); err != nil {
		return err
	}
	lst.IsActive = false
	if err := e.state.ListingPut(lst); err != nil {
		return err
	}
	e.emit(NewExpiredRecoveredEvent(lst))
	return nil
}

// Get returns a copy of the stored listing record.
func (e *Engine) Get(id types.Hash) (*Listing, error) {
	lst, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return lst.Clone(), nil
}
