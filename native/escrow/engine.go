package escrow

import (
	"errors"
	"time"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

var (
	ErrNilState             = errors.New("escrow engine: state not configured")
	ErrMarketNotConfigured  = errors.New("escrow engine: marketplace view not configured")
	ErrNotFound             = errors.New("escrow engine: escrow not found")
	ErrAlreadyExists        = errors.New("escrow engine: escrow already exists")
	ErrInvalidAuthority     = errors.New("escrow engine: authority address required")
	ErrInvalidKind          = errors.New("escrow engine: invalid escrow kind")
	ErrInvalidDuration      = errors.New("escrow engine: duration must be positive")
	ErrInvalidAmount        = errors.New("escrow engine: amount must be positive")
	ErrInvalidRecipient     = errors.New("escrow engine: recipient address required")
	ErrItemAlreadyDeposited = errors.New("escrow engine: item already deposited")
	ErrExpired              = errors.New("escrow engine: escrow expired")
	ErrAlreadyReleased      = errors.New("escrow engine: escrow already released")
	ErrAlreadyWithdrawn     = errors.New("escrow engine: escrow already withdrawn")
	ErrUnauthorized         = errors.New("escrow engine: unauthorized caller")
	ErrOverflow             = errors.New("escrow engine: value amount overflow")
)

const custodyTag = "escrow"

type engineState interface {
	EscrowPut(*Escrow) error
	EscrowGet(id types.Hash) (*Escrow, bool)
	MoveValue(from, to types.Address, amount uint64) error
	MoveItem(item types.ItemID, from, to types.Address) error
	Settle(values []types.ValueLeg, items []types.ItemLeg) error
}

type marketView interface {
	Authority() (types.Address, error)
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine implements the typed holding state machine. An escrow collects an
// item and/or value into a derived custody account and pays everything out in
// a single authority-gated release or an admin emergency withdrawal.
type Engine struct {
	state   engineState
	market  marketView
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates an escrow engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetMarket configures the marketplace view used for admin authorization.
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
	e.emitter.Emit(escrowEvent{evt: evt})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// EscrowID derives the deterministic identifier for an escrow created by the
// given authority at the given timestamp.
func EscrowID(authority types.Address, createdAt int64) types.Hash {
	return common.DeriveEntityID([]byte("escrow"), authority[:], common.TimestampSeed(createdAt))
}

// CustodyAddress returns the derived holding account for an escrow.
func CustodyAddress(id types.Hash) types.Address {
	return common.CustodyAddress(custodyTag, id)
}

func (e *Engine) load(id types.Hash) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	esc, ok := e.state.EscrowGet(id)
	if !ok {
		return nil, ErrNotFound
	}
	return esc, nil
}

func checkOpen(esc *Escrow) error {
	if esc.IsReleased {
		return ErrAlreadyReleased
	}
	if esc.IsWithdrawn {
		return ErrAlreadyWithdrawn
	}
	return nil
}

func (e *Engine) checkNotExpired(esc *Escrow, now int64) error {
	if esc.ExpiresAt != nil && now >= *esc.ExpiresAt {
		return ErrExpired
	}
	return nil
}

// Create registers a new empty escrow. The optional duration, in seconds,
// sets a deadline after which deposits are rejected.
func (e *Engine) Create(authority types.Address, kind Kind, duration *int64) (*Escrow, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if authority.IsZero() {
		return nil, ErrInvalidAuthority
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if duration != nil && *duration <= 0 {
		return nil, ErrInvalidDuration
	}
	now := e.now()
	id := EscrowID(authority, now)
	if _, ok := e.state.EscrowGet(id); ok {
		return nil, ErrAlreadyExists
	}
	esc := &Escrow{
		ID:        id,
		Authority: authority,
		Kind:      kind,
		CreatedAt: now,
	}
	if duration != nil {
		expires := now + *duration
		esc.ExpiresAt = &expires
	}
	if err := e.state.EscrowPut(esc); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// DepositItem moves the item from the depositor into escrow custody. Each
// escrow holds at most one item.
func (e *Engine) DepositItem(id types.Hash, depositor types.Address, item types.ItemID) error {
	esc, err := e.load(id)
	if err != nil {
		return err
	}
	if err := checkOpen(esc); err != nil {
		return err
	}
	if esc.ItemID != nil {
		return ErrItemAlreadyDeposited
	}
	if err := e.checkNotExpired(esc, e.now()); err != nil {
		return err
	}
	if err := e.state.MoveItem(item, depositor, CustodyAddress(id)); err != nil {
		return err
	}
	esc.ItemID = &item
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewItemDepositedEvent(esc, depositor))
	return nil
}

// DepositValue moves value from the depositor into escrow custody. Deposits
// accumulate; the running total uses a checked add.
func (e *Engine) DepositValue(id types.Hash, depositor types.Address, amount uint64) error {
	esc, err := e.load(id)
	if err != nil {
		return err
	}
	if err := checkOpen(esc); err != nil {
		return err
	}
	if amount == 0 {
		return ErrInvalidAmount
	}
	if err := e.checkNotExpired(esc, e.now()); err != nil {
		return err
	}
	total := esc.ValueAmount + amount
	if total < esc.ValueAmount {
		return ErrOverflow
	}
	if err := e.state.MoveValue(depositor, CustodyAddress(id), amount); err != nil {
		return err
	}
	esc.ValueAmount = total
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewValueDepositedEvent(esc, depositor, amount))
	return nil
}

// Release pays everything held in custody out to the designated recipients.
// Only the escrow authority may release.
func (e *Engine) Release(id types.Hash, caller, itemRecipient, valueRecipient types.Address) error {
	esc, err := e.load(id)
	if err != nil {
		return err
	}
	if caller != esc.Authority {
		return ErrUnauthorized
	}
	if err := checkOpen(esc); err != nil {
		return err
	}
	custody := CustodyAddress(id)
	var values []types.ValueLeg
	var items []types.ItemLeg
	if esc.ItemID != nil {
		if itemRecipient.IsZero() {
			return ErrInvalidRecipient
		}
		items = append(items, types.ItemLeg{Item: *esc.ItemID, From: custody, To: itemRecipient})
	}
	if esc.ValueAmount > 0 {
		if valueRecipient.IsZero() {
			return ErrInvalidRecipient
		}
		values = append(values, types.ValueLeg{From: custody, To: valueRecipient, Amount: esc.ValueAmount})
	}
	if err := e.state.Settle(values, items); err != nil {
		return err
	}
	esc.IsReleased = true
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewReleasedEvent(esc, itemRecipient, valueRecipient))
	return nil
}

// EmergencyWithdraw moves the held item and value to recovery accounts. It is
// gated on the marketplace authority and exists for genuinely stuck escrows.
func (e *Engine) EmergencyWithdraw(id types.Hash, caller, itemRecovery, valueRecovery types.Address) error {
	esc, err := e.load(id)
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
	if err := checkOpen(esc); err != nil {
		return err
	}
	custody := CustodyAddress(id)
	var values []types.ValueLeg
	var items []types.ItemLeg
	if esc.ItemID != nil {
		if itemRecovery.IsZero() {
			return ErrInvalidRecipient
		}
		items = append(items, types.ItemLeg{Item: *esc.ItemID, From: custody, To: itemRecovery})
	}
	if esc.ValueAmount > 0 {
		if valueRecovery.IsZero() {
			return ErrInvalidRecipient
		}
		values = append(values, types.ValueLeg{From: custody, To: valueRecovery, Amount: esc.ValueAmount})
	}
	if err := e.state.Settle(values, items); err != nil {
		return err
	}
	esc.IsWithdrawn = true
	if err := e.state.EscrowPut(esc); err != nil {
		return err
	}
	e.emit(NewEmergencyWithdrawnEvent(esc, caller))
	return nil
}

// Status derives the lifecycle view of an escrow from its stored flags and
// the current clock.
func (e *Engine) Status(id types.Hash) (Status, error) {
	esc, err := e.load(id)
	if err != nil {
		return 0, err
	}
	switch {
	case esc.IsReleased:
		return StatusReleased, nil
	case esc.IsWithdrawn:
		return StatusEmergencyWithdrawn, nil
	case esc.ExpiresAt != nil && e.now() >= *esc.ExpiresAt:
		return StatusExpired, nil
	default:
		return StatusActive, nil
	}
}

// Get returns a copy of the stored escrow record.
func (e *Engine) Get(id types.Hash) (*Escrow, error) {
	esc, err := e.load(id)
	if err != nil {
		return nil, err
	}
	return esc.Clone(), nil
}
