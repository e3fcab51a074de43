package royalty

import (
	"bytes"
	"errors"
	"testing"

	"marketd/core/events"
	"marketd/core/types"
)

type mockState struct {
	config   *Config
	balances map[types.Address]uint64
}

func newMockState() *mockState {
	return &mockState{balances: make(map[types.Address]uint64)}
}

func (m *mockState) RoyaltyConfigPut(cfg *Config) error {
	m.config = cfg.Clone()
	return nil
}

func (m *mockState) RoyaltyConfigGet() (*Config, bool) {
	if m.config == nil {
		return nil, false
	}
	return m.config.Clone(), true
}

func (m *mockState) MoveValue(from, to types.Address, amount uint64) error {
	if m.balances[from] < amount {
		return errors.New("insufficient balance")
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *mockState) BalanceOf(addr types.Address) (uint64, error) {
	return m.balances[addr], nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) lastType() string {
	if len(c.events) == 0 {
		return ""
	}
	return c.events[len(c.events)-1].EventType()
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestEngine(state *mockState) (*Engine, *capturingEmitter) {
	engine := NewEngine()
	engine.SetState(state)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	return engine, emitter
}

func uint16Ptr(v uint16) *uint16 { return &v }

func TestInitializeConfig(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	authority := newTestAddress(0x01)

	cfg, err := engine.InitializeConfig(authority, 5_000, 250)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if cfg.Authority != authority || cfg.MaxRoyaltyBps != 5_000 || cfg.PlatformFeeBps != 250 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.TotalFeesCollected != 0 {
		t.Fatal("fee counter must start at zero")
	}
	if emitter.lastType() != EventTypeConfigInitialized {
		t.Fatalf("expected %s event, got %s", EventTypeConfigInitialized, emitter.lastType())
	}
	if _, err := engine.InitializeConfig(authority, 5_000, 250); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeConfigBounds(t *testing.T) {
	engine, _ := newTestEngine(newMockState())
	authority := newTestAddress(0x01)

	if _, err := engine.InitializeConfig(authority, 10_001, 250); !errors.Is(err, ErrInvalidRoyaltyBps) {
		t.Fatalf("expected ErrInvalidRoyaltyBps, got %v", err)
	}
	if _, err := engine.InitializeConfig(authority, 5_000, 1_001); !errors.Is(err, ErrInvalidPlatformFee) {
		t.Fatalf("expected ErrInvalidPlatformFee, got %v", err)
	}
	if _, err := engine.InitializeConfig(types.Address{}, 5_000, 250); !errors.Is(err, ErrInvalidAuthority) {
		t.Fatalf("expected ErrInvalidAuthority, got %v", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	authority := newTestAddress(0x01)
	if _, err := engine.InitializeConfig(authority, 5_000, 250); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if err := engine.UpdateConfig(newTestAddress(0x02), uint16Ptr(100), nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.UpdateConfig(authority, uint16Ptr(10_001), nil); !errors.Is(err, ErrInvalidRoyaltyBps) {
		t.Fatalf("expected ErrInvalidRoyaltyBps, got %v", err)
	}
	if err := engine.UpdateConfig(authority, nil, uint16Ptr(1_001)); !errors.Is(err, ErrInvalidPlatformFee) {
		t.Fatalf("expected ErrInvalidPlatformFee, got %v", err)
	}
	if err := engine.UpdateConfig(authority, uint16Ptr(8_000), nil); err != nil {
		t.Fatalf("update: %v", err)
	}
	cfg, err := engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.MaxRoyaltyBps != 8_000 || cfg.PlatformFeeBps != 250 {
		t.Fatalf("nil field must be untouched: %+v", cfg)
	}
	if emitter.lastType() != EventTypeConfigUpdated {
		t.Fatalf("expected %s event, got %s", EventTypeConfigUpdated, emitter.lastType())
	}
}

func TestDistribute(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	authority := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	seller := newTestAddress(0x03)
	creatorA := newTestAddress(0x0A)
	creatorB := newTestAddress(0x0B)
	state.balances[buyer] = 10_000

	if _, err := engine.InitializeConfig(authority, 5_000, 250); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	creators := []Creator{
		{Address: creatorA, Verified: true, Share: 60},
		{Address: creatorB, Verified: true, Share: 40},
	}
	breakdown, err := engine.Distribute(buyer, seller, 10_000, 500, creators, []types.Address{creatorA, creatorB})
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if state.balances[TreasuryAddress()] != 250 {
		t.Fatalf("expected treasury to hold 250, got %d", state.balances[TreasuryAddress()])
	}
	if state.balances[creatorA] != 300 || state.balances[creatorB] != 200 {
		t.Fatalf("unexpected creator balances: %d / %d", state.balances[creatorA], state.balances[creatorB])
	}
	if state.balances[seller] != 9_250 {
		t.Fatalf("expected seller to hold 9250, got %d", state.balances[seller])
	}
	if state.balances[buyer] != 0 {
		t.Fatalf("buyer should be fully debited, got %d", state.balances[buyer])
	}
	if breakdown.SellerAmount != 9_250 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}
	cfg, err := engine.Config()
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.TotalFeesCollected != 250 {
		t.Fatalf("expected fee counter 250, got %d", cfg.TotalFeesCollected)
	}
	if emitter.lastType() != EventTypeDistributed {
		t.Fatalf("expected %s event, got %s", EventTypeDistributed, emitter.lastType())
	}
}

func TestDistributeUnresolvedCreator(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	buyer := newTestAddress(0x02)
	seller := newTestAddress(0x03)
	creator := newTestAddress(0x0A)
	state.balances[buyer] = 10_000

	if _, err := engine.InitializeConfig(newTestAddress(0x01), 5_000, 250); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	creators := []Creator{{Address: creator, Verified: true, Share: 100}}
	if _, err := engine.Distribute(buyer, seller, 10_000, 500, creators, nil); !errors.Is(err, ErrCreatorAccountNotFound) {
		t.Fatalf("expected ErrCreatorAccountNotFound, got %v", err)
	}
	if state.balances[buyer] != 10_000 {
		t.Fatal("failed distribution must not move any value")
	}
}

func TestDistributeInsufficientFunds(t *testing.T) {
	state := newMockState()
	engine, _ := newTestEngine(state)
	buyer := newTestAddress(0x02)
	state.balances[buyer] = 9_999

	if _, err := engine.InitializeConfig(newTestAddress(0x01), 5_000, 250); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := engine.Distribute(buyer, newTestAddress(0x03), 10_000, 0, nil, nil); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if state.balances[buyer] != 9_999 {
		t.Fatal("rejected distribution must not move any value")
	}
}

func TestWithdrawFees(t *testing.T) {
	state := newMockState()
	engine, emitter := newTestEngine(state)
	authority := newTestAddress(0x01)
	buyer := newTestAddress(0x02)
	state.balances[buyer] = 10_000

	if _, err := engine.InitializeConfig(authority, 5_000, 1_000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := engine.Distribute(buyer, newTestAddress(0x03), 10_000, 0, nil, nil); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if err := engine.WithdrawFees(newTestAddress(0x04), 100); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.WithdrawFees(authority, 1_001); !errors.Is(err, ErrInsufficientFees) {
		t.Fatalf("expected ErrInsufficientFees, got %v", err)
	}
	if err := engine.WithdrawFees(authority, 1_000); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if state.balances[authority] != 1_000 {
		t.Fatalf("expected authority to hold 1000, got %d", state.balances[authority])
	}
	if emitter.lastType() != EventTypeFeesWithdrawn {
		t.Fatalf("expected %s event, got %s", EventTypeFeesWithdrawn, emitter.lastType())
	}
}
