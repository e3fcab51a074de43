package royalty

import (
	"errors"
	"time"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

var (
	ErrNilState               = errors.New("royalty engine: state not configured")
	ErrNotInitialized         = errors.New("royalty engine: config not initialized")
	ErrAlreadyInitialized     = errors.New("royalty engine: config already initialized")
	ErrInvalidAuthority       = errors.New("royalty engine: authority address required")
	ErrInvalidRoyaltyBps      = errors.New("royalty engine: royalty ceiling cannot exceed 10000")
	ErrInvalidPlatformFee     = errors.New("royalty engine: platform fee cannot exceed 1000")
	ErrUnauthorized           = errors.New("royalty engine: unauthorized caller")
	ErrCreatorAccountNotFound = errors.New("royalty engine: creator account not resolvable")
	ErrInsufficientFunds      = errors.New("royalty engine: buyer balance below sale price")
	ErrInsufficientFees       = errors.New("royalty engine: insufficient treasury balance")
	ErrOverflow               = errors.New("royalty engine: fee counter overflow")
)

type engineState interface {
	RoyaltyConfigPut(*Config) error
	RoyaltyConfigGet() (*Config, bool)
	MoveValue(from, to types.Address, amount uint64) error
	BalanceOf(addr types.Address) (uint64, error)
}

type royaltyEvent struct {
	evt *types.Event
}

func (e royaltyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e royaltyEvent) Event() *types.Event { return e.evt }

// TreasuryAddress returns the derived holding account that accumulates the
// royalty module's platform fees. It is distinct from the marketplace
// treasury.
func TreasuryAddress() types.Address {
	return common.CustodyAddress("royalty_treasury", common.DeriveEntityID([]byte("royalty_config")))
}

// Engine owns the royalty configuration and performs sale payouts split per
// the asset's creator-share table.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a royalty engine with a no-op emitter. Callers can
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
	e.emitter.Emit(royaltyEvent{evt: evt})
}

func (e *Engine) load() (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	cfg, ok := e.state.RoyaltyConfigGet()
	if !ok {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}

// InitializeConfig creates the royalty configuration record. It may run
// exactly once.
func (e *Engine) InitializeConfig(authority types.Address, maxRoyaltyBps, platformFeeBps uint16) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if authority.IsZero() {
		return nil, ErrInvalidAuthority
	}
	if maxRoyaltyBps > MaxRoyaltyBpsBound {
		return nil, ErrInvalidRoyaltyBps
	}
	if platformFeeBps > MaxPlatformFeeBps {
		return nil, ErrInvalidPlatformFee
	}
	if _, ok := e.state.RoyaltyConfigGet(); ok {
		return nil, ErrAlreadyInitialized
	}
	cfg := &Config{
		Authority:      authority,
		MaxRoyaltyBps:  maxRoyaltyBps,
		PlatformFeeBps: platformFeeBps,
	}
	if err := e.state.RoyaltyConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewConfigInitializedEvent(cfg))
	return cfg.Clone(), nil
}

// UpdateConfig changes the royalty ceiling and/or platform fee. Nil fields
// are left untouched. Authority only.
func (e *Engine) UpdateConfig(caller types.Address, maxRoyaltyBps, platformFeeBps *uint16) error {
	cfg, err := e.load()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	if maxRoyaltyBps != nil {
		if *maxRoyaltyBps > MaxRoyaltyBpsBound {
			return ErrInvalidRoyaltyBps
		}
		cfg.MaxRoyaltyBps = *maxRoyaltyBps
	}
	if platformFeeBps != nil {
		if *platformFeeBps > MaxPlatformFeeBps {
			return ErrInvalidPlatformFee
		}
		cfg.PlatformFeeBps = *platformFeeBps
	}
	if err := e.state.RoyaltyConfigPut(cfg); err != nil {
		return err
	}
	e.emit(NewConfigUpdatedEvent(cfg))
	return nil
}

// Distribute pays out one sale: platform fee to the royalty treasury, one
// transfer per verified creator with a nonzero fee, and the remainder to the
// seller. Every creator owed a payout must appear in the resolvable account
// set; an unresolved creator fails the whole distribution before any value
// moves.
func (e *Engine) Distribute(buyer, seller types.Address, salePrice uint64, sellerFeeBps uint16, creators []Creator, accounts []types.Address) (*Breakdown, error) {
	cfg, err := e.load()
	if err != nil {
		return nil, err
	}
	breakdown, err := Compute(salePrice, cfg.PlatformFeeBps, sellerFeeBps, creators)
	if err != nil {
		return nil, err
	}
	newTotal := cfg.TotalFeesCollected + breakdown.PlatformFee
	if newTotal < cfg.TotalFeesCollected {
		return nil, ErrOverflow
	}
	resolvable := make(map[types.Address]struct{}, len(accounts))
	for _, addr := range accounts {
		resolvable[addr] = struct{}{}
	}
	for _, payout := range breakdown.Creators {
		if payout.Amount == 0 {
			continue
		}
		if _, ok := resolvable[payout.Address]; !ok {
			return nil, ErrCreatorAccountNotFound
		}
	}
	balance, err := e.state.BalanceOf(buyer)
	if err != nil {
		return nil, err
	}
	if balance < salePrice {
		return nil, ErrInsufficientFunds
	}
	if breakdown.PlatformFee > 0 {
		if err := e.state.MoveValue(buyer, TreasuryAddress(), breakdown.PlatformFee); err != nil {
			return nil, err
		}
	}
	for _, payout := range breakdown.Creators {
		if payout.Amount == 0 {
			continue
		}
		if err := e.state.MoveValue(buyer, payout.Address, payout.Amount); err != nil {
			return nil, err
		}
	}
	if breakdown.SellerAmount > 0 {
		if err := e.state.MoveValue(buyer, seller, breakdown.SellerAmount); err != nil {
			return nil, err
		}
	}
	cfg.TotalFeesCollected = newTotal
	if err := e.state.RoyaltyConfigPut(cfg); err != nil {
		return nil, err
	}
	e.emit(NewDistributedEvent(buyer, seller, breakdown))
	return breakdown, nil
}

// Calculate returns the split without moving any value.
func (e *Engine) Calculate(salePrice uint64, sellerFeeBps uint16, creators []Creator) (*Breakdown, error) {
	cfg, err := e.load()
	if err != nil {
		return nil, err
	}
	return Compute(salePrice, cfg.PlatformFeeBps, sellerFeeBps, creators)
}

// WithdrawFees moves accumulated platform fees from the royalty treasury to
// the authority. Authority only.
func (e *Engine) WithdrawFees(caller types.Address, amount uint64) error {
	cfg, err := e.load()
	if err != nil {
		return err
	}
	if caller != cfg.Authority {
		return ErrUnauthorized
	}
	treasury := TreasuryAddress()
	balance, err := e.state.BalanceOf(treasury)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFees
	}
	if err := e.state.MoveValue(treasury, caller, amount); err != nil {
		return err
	}
	e.emit(NewFeesWithdrawnEvent(amount, caller))
	return nil
}

// Config returns a copy of the stored configuration.
func (e *Engine) Config() (*Config, error) {
	cfg, err := e.load()
	if err != nil {
		return nil, err
	}
	return cfg.Clone(), nil
}
