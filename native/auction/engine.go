package auction

import (
	"errors"
	"time"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

var (
	ErrNilState            = errors.New("auction engine: state not configured")
	ErrMarketNotConfigured = errors.New("auction engine: marketplace view not configured")
	ErrNotFound            = errors.New("auction engine: auction not found")
	ErrAlreadyExists       = errors.New("auction engine: item already on auction by seller")
	ErrInvalidSeller       = errors.New("auction engine: seller address required")
	ErrInvalidBidder       = errors.New("auction engine: bidder address required")
	ErrInvalidTiming       = errors.New("auction engine: invalid start or end time")
	ErrInvalidReserve      = errors.New("auction engine: reserve price must be positive")
	ErrInvalidIncrement    = errors.New("auction engine: bid increment must be positive")
	ErrDurationTooShort    = errors.New("auction engine: duration below minimum")
	ErrDurationTooLong     = errors.New("auction engine: duration above maximum")
	ErrSettled             = errors.New("auction engine: auction already settled")
	ErrCanceled            = errors.New("auction engine: auction canceled")
	ErrNotStarted          = errors.New("auction engine: auction not started")
	ErrEnded               = errors.New("auction engine: auction ended")
	ErrNotEnded            = errors.New("auction engine: auction not ended")
	ErrBelowReserve        = errors.New("auction engine: bid below reserve")
	ErrBidTooLow           = errors.New("auction engine: bid below required minimum")
	ErrHasBids             = errors.New("auction engine: auction has bids")
	ErrOverflow            = errors.New("auction engine: arithmetic overflow")
	ErrUnauthorized        = errors.New("auction engine: unauthorized caller")
	ErrInsufficientFunds   = errors.New("auction engine: bidder balance below bid")
	ErrInvalidRecipient    = errors.New("auction engine: recipient address required")
)

const (
	ModuleName = "auction"

	custodyTag = "auction"
)

type engineState interface {
	AuctionPut(*Auction) error
	AuctionGet(id types.Hash) (*Auction, bool)
	MoveValue(from, to types.Address, amount uint64) error
	MoveItem(item types.ItemID, from, to types.Address) error
	BalanceOf(addr types.Address) (uint64, error)
	Settle(values []types.ValueLeg, items []types.ItemLeg) error
}

type marketView interface {
	common.PauseView
	Fee(amount uint64) (uint64, error)
	Treasury() (types.Address, error)
	Authority() (types.Address, error)
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine implements the ascending-bid state machine. Bids displace each other
// with an immediate refund, a late bid extends the window, and settlement
// branches on whether the reserve was met.
type Engine struct {
	state   engineState
	market  marketView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an auction engine with a no-op emitter. Callers can
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
// rule, treasury and admin identity.
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
	e.emitter.Emit(auctionEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// AuctionID derives the deterministic identifier for an auction of the given
// item by the given seller.
func AuctionID(item types.ItemID, seller types.Address) types.Hash {
	return common.DeriveEntityID([]byte("auction"), item[:], seller[:])
}

// CustodyAddress returns the derived holding account for an auction. It holds
// the item for the whole run and the current highest bid between bids.
func CustodyAddress(id types.Hash) types.Address {
	return common.CustodyAddress(custodyTag, id)
}

func (e *Engine) load(id types.Hash) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	auc, ok := e.state.AuctionGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return auc, nil
}

func checkOpen(auc *Auction) error {
	if auc.IsSettled {
		return ErrSettled
	}
	if auc.IsCanceled {
		return ErrCanceled
	}
	return nil
}

// Create moves the item into custody and opens an ascending-bid auction. The
// window must start no earlier than now and run between MinDuration and
// MaxDuration seconds.
func (e *Engine) Create(seller types.Address, item types.ItemID, start, end int64, reserve, minIncrement uint64) (*Auction, error) {
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
	now := e.now()
	if start < now || end <= start {
		return nil, ErrInvalidTiming
	}
	if reserve == 0 {
		return nil, ErrInvalidReserve
	}
	if minIncrement == 0 {
		return nil, ErrInvalidIncrement
	}
	duration := end - start
	if duration < MinDuration {
		return nil, ErrDurationTooShort
	}
	if duration > MaxDuration {
		return nil, ErrDurationTooLong
	}
	id := AuctionID(item, seller)
	if existing, ok := e.state.AuctionGet(id); ok && !existing.IsSettled && !existing.IsCanceled {
		return nil, ErrAlreadyExists
	}
	if err := e.state.MoveItem(item, seller, CustodyAddress(id)); err != nil {
		return nil, err
	}
	auc := &Auction{
		ID:              id,
		Seller:          seller,
		ItemID:          item,
		StartTime:       start,
		EndTime:         end,
		ReservePrice:    reserve,
		MinBidIncrement: minIncrement,
	}
	if err := e.state.AuctionPut(auc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(auc))
	return auc.Clone(), nil
}

// PlaceBid accepts a bid, refunding the displaced bidder first and collecting
// from the new bidder second. A bid landing inside the anti-snipe window
// pushes the end time out.
func (e *Engine) PlaceBid(id types.Hash, bidder types.Address, amount uint64) error {
	auc, err := e.load(id)
	if err != nil {
		return err
	}
	if bidder.IsZero() {
		return ErrInvalidBidder
	}
	if err := checkOpen(auc); err != nil {
		return err
	}
	now := e.now()
	if now < auc.StartTime {
		return ErrNotStarted
	}
	if now >= auc.EndTime {
		return ErrEnded
	}
	if amount < auc.ReservePrice {
		return ErrBelowReserve
	}
	required := auc.ReservePrice
	if auc.HighestBid > 0 {
		required = auc.HighestBid + auc.MinBidIncrement
		if required < auc.HighestBid {
			return ErrOverflow
		}
	}
	if amount < required {
		return ErrBidTooLow
	}
	if auc.TotalBids+1 < auc.TotalBids {
		return ErrOverflow
	}
	// The bidder's balance is checked before the refund leg so the collect
	// leg cannot fail for insufficient funds after the refund went out.
	balance, err := e.state.BalanceOf(bidder)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	custody := CustodyAddress(id)
	if auc.HighestBidder != nil && auc.HighestBid > 0 {
		displaced := *auc.HighestBidder
		if err := e.state.MoveValue(custody, displaced, auc.HighestBid); err != nil {
			return err
		}
		e.emit(NewBidRefundedEvent(auc, displaced, auc.HighestBid))
	}
	if err := e.state.MoveValue(bidder, custody, amount); err != nil {
		return err
	}
	auc.HighestBid = amount
	auc.HighestBidder = &bidder
	auc.TotalBids++
	if auc.EndTime-now <= AntiSnipeWindow {
		auc.EndTime = now + AntiSnipeWindow
	}
	if err := e.state.AuctionPut(auc); err != nil {
		return err
	}
	e.emit(NewBidPlacedEvent(auc))
	return nil
}

// Claim settles an ended auction. Anyone may call it; the outcome is a pure
// function of the highest bid against the reserve.
func (e *Engine) Claim(id types.Hash) error {
	auc, err := e.load(id)
	if err != nil {
		return err
	}
	if e.market == nil {
		return ErrMarketNotConfigured
	}
	if err := checkOpen(auc); err != nil {
		return err
	}
	if e.now() < auc.EndTime {
		return ErrNotEnded
	}
	custody := CustodyAddress(id)
	if auc.HighestBid < auc.ReservePrice {
		var values []types.ValueLeg
		if auc.HighestBidder != nil && auc.HighestBid > 0 {
			values = append(values, types.ValueLeg{From: custody, To: *auc.HighestBidder, Amount: auc.HighestBid})
		}
		items := []types.ItemLeg{{Item: auc.ItemID, From: custody, To: auc.Seller}}
		if err := e.state.Settle(values, items); err != nil {
			return err
		}
		auc.IsSettled = true
		if err := e.state.AuctionPut(auc); err != nil {
			return err
		}
		e.emit(NewSettledNoSaleEvent(auc))
		return nil
	}
	fee, err := e.market.Fee(auc.HighestBid)
	if err != nil {
		return err
	}
	if fee > auc.HighestBid {
		return ErrOverflow
	}
	proceeds := auc.HighestBid - fee
	values := make([]types.ValueLeg, 0, 2)
	if fee > 0 {
		treasury, err := e.market.Treasury()
		if err != nil {
			return err
		}
		values = append(values, types.ValueLeg{From: custody, To: treasury, Amount: fee})
	}
	if proceeds > 0 {
		values = append(values, types.ValueLeg{From: custody, To: auc.Seller, Amount: proceeds})
	}
	items := []types.ItemLeg{{Item: auc.ItemID, From: custody, To: *auc.HighestBidder}}
	if err := e.state.Settle(values, items); err != nil {
		return err
	}
	auc.IsSettled = true
	if err := e.state.AuctionPut(auc); err != nil {
		return err
	}
	e.emit(NewSettledEvent(auc, fee, proceeds))
	return nil
}

// Cancel returns the item to the seller. Only the seller, and only before any
// bid has been accepted.
func (e *Engine) Cancel(id types.Hash, seller types.Address) error {
	auc, err := e.load(id)
	if err != nil {
		return err
	}
	if seller != auc.Seller {
		return ErrUnauthorized
	}
	if err := checkOpen(auc); err != nil {
		return err
	}
	if auc.TotalBids > 0 {
		return ErrHasBids
	}
	if err := e.state.MoveItem(auc.ItemID, CustodyAddress(id), auc.Seller); err != nil {
		return err
	}
	auc.IsCanceled = true
	if err := e.state.AuctionPut(auc); err != nil {
		return err
	}
	e.emit(NewCanceledEvent(auc))
	return nil
}

// EmergencyRefund moves the currently held highest bid out of custody to a
// designated recipient. It is gated on the marketplace authority, leaves the
// auction record untouched and always emits its own audit event.
func (e *Engine) EmergencyRefund(id types.Hash, caller, recipient types.Address) error {
	auc, err := e.load(id)
	if err != nil {
		return err
	}
	if e.market == nil {
		return ErrMarketNotConfigured
	}
	admin, err := e.market.Authority()
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrUnauthorized
	}
	if recipient.IsZero() {
		return ErrInvalidRecipient
	}
	if auc.HighestBid > 0 {
		if err := e.state.MoveValue(CustodyAddress(id), recipient, auc.HighestBid); err != nil {
			return err
		}
	}
	e.emit(NewEmergencyRefundEvent(auc, recipient, auc.HighestBid))
	return nil
}

// Get returns a copy of the stored auction record.
func (e *Engine) Get(id types.Hash) (*Auction, error) {
	auc, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return auc.Clone(), nil
}
