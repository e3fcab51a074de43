package market

import (
	"errors"
	"math/big"
	"time"

	"marketd/core/events"
	"marketd/core/types"
)

var (
	ErrNilState           = errors.New("market engine: state not configured")
	ErrNotInitialized     = errors.New("market engine: marketplace not initialized")
	ErrAlreadyInitialized = errors.New("market engine: marketplace already initialized")
	ErrFeeTooHigh         = errors.New("market engine: fee basis points cannot exceed 1000")
	ErrInvalidTreasury    = errors.New("market engine: treasury address required")
	ErrInvalidAuthority   = errors.New("market engine: authority address required")
	ErrUnauthorized       = errors.New("market engine: unauthorized caller")
	ErrInsufficientFees   = errors.New("market engine: insufficient treasury balance")
	ErrCounterOverflow    = errors.New("market engine: statistics counter overflow")
)

type engineState interface {
	MarketplacePut(*Marketplace) error
	MarketplaceGet() (*Marketplace, bool)
	MoveValue(from, to types.Address, amount uint64) error
	BalanceOf(addr types.Address) (uint64, error)
}

// Engine owns the global marketplace configuration. The trading engines read
// it through the fee/pause views; only the configured authority may mutate it.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a marketplace engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(marketEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) load() (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	mp, ok := e.state.MarketplaceGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	return mp, nil
}

// Initialize creates the marketplace configuration record. It may run exactly
// once.
func (e *Engine) Initialize(authority, treasury types.Address, feeBps uint16) (*Marketplace, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if authority.IsZero() {
		return nil, ErrInvalidAuthority
	}
	if treasury.IsZero() {
		return nil, ErrInvalidTreasury
	}
	if feeBps > MaxFeeBps {
		return nil, ErrFeeTooHigh
	}
	if _, ok := e.state.MarketplaceGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	mp := &Marketplace{
		Authority: authority,
		Treasury:  treasury,
		FeeBps:    feeBps,
		CreatedAt: e.now(),
	}
	if err := e.state.MarketplacePut(mp); err != nil {
		return nil, err
	}
	e.emit(NewInitializedEvent(mp))
	return mp.Clone(), nil
}

// UpdateFee changes the platform fee rate. Authority only.
func (e *Engine) UpdateFee(caller types.Address, newFeeBps uint16) error {
	mp, err := e.load()
	if err != nil {
		return err
	}
	if caller != mp.Authority {
		return ErrUnauthorized
	}
	if newFeeBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	oldFee := mp.FeeBps
	mp.FeeBps = newFeeBps
	if err := e.state.MarketplacePut(mp); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(oldFee, newFeeBps, caller))
	return nil
}

// UpdateAuthority hands marketplace administration to a new authority.
func (e *Engine) UpdateAuthority(caller, newAuthority types.Address) error {
	mp, err := e.load()
	if err != nil {
		return err
	}
	if caller != mp.Authority {
		return ErrUnauthorized
	}
	if newAuthority.IsZero() {
		return ErrInvalidAuthority
	}
	old := mp.Authority
	mp.Authority = newAuthority
	if err := e.state.MarketplacePut(mp); err != nil {
		return err
	}
	e.emit(NewAuthorityUpdatedEvent(old, newAuthority))
	return nil
}

// SetPaused flips the global pause flag. Authority only.
func (e *Engine) SetPaused(caller types.Address, paused bool) error {
	mp, err := e.load()
	if err != nil {
		return err
	}
	if caller != mp.Authority {
		return ErrUnauthorized
	}
	mp.Paused = paused
	if err := e.state.MarketplacePut(mp); err != nil {
		return err
	}
	e.emit(NewPausedEvent(paused, caller))
	return nil
}

// WithdrawFees moves accumulated platform fees from the treasury to the
// authority. Authority only.
func (e *Engine) WithdrawFees(caller types.Address, amount uint64) error {
	mp, err := e.load()
	if err != nil {
		return err
	}
	if caller != mp.Authority {
		return ErrUnauthorized
	}
	balance, err := e.state.BalanceOf(mp.Treasury)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFees
	}
	if err := e.state.MoveValue(mp.Treasury, caller, amount); err != nil {
		return err
	}
	e.emit(NewFeesWithdrawnEvent(amount, caller))
	return nil
}

// RecordSale adds a completed sale to the running volume/sale counters. The
// counters are bookkeeping for operators, not settlement state, but they
// still fail loudly on overflow instead of wrapping.
func (e *Engine) RecordSale(price uint64) error {
	mp, err := e.load()
	if err != nil {
		return err
	}
	volume, ok := checkedAdd(mp.TotalVolume, price)
	if !ok {
		return ErrCounterOverflow
	}
	sales, ok := checkedAdd(mp.TotalSales, 1)
	if !ok {
		return ErrCounterOverflow
	}
	mp.TotalVolume = volume
	mp.TotalSales = sales
	return e.state.MarketplacePut(mp)
}

// Marketplace returns a copy of the current configuration record.
func (e *Engine) Marketplace() (*Marketplace, error) {
	mp, err := e.load()
	if err != nil {
		return nil, err
	}
	return mp.Clone(), nil
}

// IsPaused implements common.PauseView for all trading engines. The pause
// flag is global; the module name only segments the guard call sites.
func (e *Engine) IsPaused(string) bool {
	mp, err := e.load()
	if err != nil {
		return false
	}
	return mp.Paused
}

// FeeBps reports the configured platform fee rate.
func (e *Engine) FeeBps() (uint16, error) {
	mp, err := e.load()
	if err != nil {
		return 0, err
	}
	return mp.FeeBps, nil
}

// Treasury reports the configured fee destination.
func (e *Engine) Treasury() (types.Address, error) {
	mp, err := e.load()
	if err != nil {
		return types.Address{}, err
	}
	return mp.Treasury, nil
}

// Authority reports the marketplace admin identity used by the emergency
// escape hatches.
func (e *Engine) Authority() (types.Address, error) {
	mp, err := e.load()
	if err != nil {
		return types.Address{}, err
	}
	return mp.Authority, nil
}

// Fee computes floor(amount * feeBps / 10000). The multiplication widens
// through big.Int so no u64 intermediate can overflow.
func (e *Engine) Fee(amount uint64) (uint64, error) {
	mp, err := e.load()
	if err != nil {
		return 0, err
	}
	return FeeAmount(amount, mp.FeeBps), nil
}

// FeeAmount is the shared basis-point fee rule used across the engines.
func FeeAmount(amount uint64, feeBps uint16) uint64 {
	fee := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	return fee.Uint64()
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}
