package auction

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"marketd/core/events"
	"marketd/core/types"
	"marketd/native/common"
)

type mockState struct {
	auctions map[types.Hash]*Auction
	balances map[types.Address]uint64
	items    map[types.ItemID]types.Address
}

func newMockState() *mockState {
	return &mockState{
		auctions: make(map[types.Hash]*Auction),
		balances: make(map[types.Address]uint64),
		items:    make(map[types.ItemID]types.Address),
	}
}

func (m *mockState) AuctionPut(auc *Auction) error {
	m.auctions[auc.ID] = auc.Clone()
	return nil
}

func (m *mockState) AuctionGet(id types.Hash) (*Auction, bool) {
	auc, ok := m.auctions[id]
	if !ok {
		return nil, false
	}
	return auc.Clone(), true
}

func (m *mockState) MoveValue(from, to types.Address, amount uint64) error {
	if m.balances[from] < amount {
		return errors.New("insufficient balance")
	}
	m.balances[from] -= amount
	m.balances[to] += amount
	return nil
}

func (m *mockState) MoveItem(item types.ItemID, from, to types.Address) error {
	owner, ok := m.items[item]
	if !ok || owner != from {
		return errors.New("item not owned by sender")
	}
	m.items[item] = to
	return nil
}

func (m *mockState) Settle(values []types.ValueLeg, items []types.ItemLeg) error {
	balances := make(map[types.Address]uint64, len(m.balances))
	for addr, bal := range m.balances {
		balances[addr] = bal
	}
	for _, leg := range values {
		if leg.Amount == 0 {
			continue
		}
		if balances[leg.From] < leg.Amount {
			return errors.New("insufficient balance")
		}
		if leg.From == leg.To {
			continue
		}
		if balances[leg.To]+leg.Amount < balances[leg.To] {
			return errors.New("balance overflow")
		}
		balances[leg.From] -= leg.Amount
		balances[leg.To] += leg.Amount
	}
	owners := make(map[types.ItemID]types.Address, len(m.items))
	for item, owner := range m.items {
		owners[item] = owner
	}
	for _, leg := range items {
		if owners[leg.Item] != leg.From {
			return errors.New("item not owned by sender")
		}
		owners[leg.Item] = leg.To
	}
	m.balances = balances
	m.items = owners
	return nil
}

func (m *mockState) BalanceOf(addr types.Address) (uint64, error) {
	return m.balances[addr], nil
}

type mockMarket struct {
	paused    bool
	feeBps    uint16
	treasury  types.Address
	authority types.Address
}

func (m *mockMarket) IsPaused(string) bool { return m.paused }

func (m *mockMarket) Fee(amount uint64) (uint64, error) {
	fee := new(big.Int).Mul(new(big.Int).SetUint64(amount), big.NewInt(int64(m.feeBps)))
	fee.Div(fee, big.NewInt(10_000))
	return fee.Uint64(), nil
}

func (m *mockMarket) Treasury() (types.Address, error) { return m.treasury, nil }

func (m *mockMarket) Authority() (types.Address, error) { return m.authority, nil }

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

func (c *capturingEmitter) countType(eventType string) int {
	count := 0
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			count++
		}
	}
	return count
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestItem(fill byte) types.ItemID {
	var item types.ItemID
	copy(item[:], bytes.Repeat([]byte{fill}, 32))
	return item
}

const baseTime int64 = 1_700_000_000

type testClock struct {
	now int64
}

func newTestEngine(state *mockState, market *mockMarket) (*Engine, *capturingEmitter, *testClock) {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetMarket(market)
	emitter := &capturingEmitter{}
	engine.SetEmitter(emitter)
	clock := &testClock{now: baseTime}
	engine.SetNowFunc(func() int64 { return clock.now })
	return engine, emitter, clock
}

func openAuction(t *testing.T, engine *Engine, state *mockState, seller types.Address, item types.ItemID, reserve, increment uint64) *Auction {
	t.Helper()
	state.items[item] = seller
	auc, err := engine.Create(seller, item, baseTime, baseTime+MinDuration, reserve, increment)
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	return auc
}

func TestCreate(t *testing.T) {
	state := newMockState()
	engine, emitter, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	item := newTestItem(0x10)

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if auc.ID != AuctionID(item, seller) {
		t.Fatal("auction ID must derive from item and seller")
	}
	if state.items[item] != CustodyAddress(auc.ID) {
		t.Fatal("item should be held by auction custody")
	}
	if auc.HighestBid != 0 || auc.HighestBidder != nil || auc.TotalBids != 0 {
		t.Fatalf("new auction should have no bids: %+v", auc)
	}
	if emitter.lastType() != EventTypeCreated {
		t.Fatalf("expected %s event, got %s", EventTypeCreated, emitter.lastType())
	}

	if _, err := engine.Create(seller, item, baseTime, baseTime+MinDuration, 1_000, 100); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	seller := newTestAddress(0x01)
	item := newTestItem(0x10)
	cases := []struct {
		name      string
		start     int64
		end       int64
		reserve   uint64
		increment uint64
		paused    bool
		wantErr   error
	}{
		{"paused", baseTime, baseTime + MinDuration, 1_000, 100, true, common.ErrModulePaused},
		{"start in past", baseTime - 1, baseTime + MinDuration, 1_000, 100, false, ErrInvalidTiming},
		{"end before start", baseTime, baseTime, 1_000, 100, false, ErrInvalidTiming},
		{"zero reserve", baseTime, baseTime + MinDuration, 0, 100, false, ErrInvalidReserve},
		{"zero increment", baseTime, baseTime + MinDuration, 1_000, 0, false, ErrInvalidIncrement},
		{"duration below minimum", baseTime, baseTime + MinDuration - 1, 1_000, 100, false, ErrDurationTooShort},
		{"duration above maximum", baseTime, baseTime + MaxDuration + 1, 1_000, 100, false, ErrDurationTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := newMockState()
			state.items[item] = seller
			engine, _, _ := newTestEngine(state, &mockMarket{paused: tc.paused})
			if _, err := engine.Create(seller, item, tc.start, tc.end, tc.reserve, tc.increment); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	state := newMockState()
	state.items[item] = seller
	engine, _, _ := newTestEngine(state, &mockMarket{})
	if _, err := engine.Create(seller, item, baseTime, baseTime+MaxDuration, 1_000, 100); err != nil {
		t.Fatalf("maximum duration should be accepted: %v", err)
	}
}

func TestPlaceBidSequence(t *testing.T) {
	state := newMockState()
	engine, emitter, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x02)
	bidderB := newTestAddress(0x03)
	item := newTestItem(0x10)
	state.balances[bidderA] = 2_000
	state.balances[bidderB] = 2_000

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	custody := CustodyAddress(auc.ID)

	if err := engine.PlaceBid(auc.ID, bidderA, 999); !errors.Is(err, ErrBelowReserve) {
		t.Fatalf("expected ErrBelowReserve, got %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidderA, 1_000); err != nil {
		t.Fatalf("first bid at reserve: %v", err)
	}
	if state.balances[custody] != 1_000 {
		t.Fatalf("expected custody to hold 1000, got %d", state.balances[custody])
	}
	if err := engine.PlaceBid(auc.ID, bidderB, 1_099); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("expected ErrBidTooLow, got %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidderB, 1_100); err != nil {
		t.Fatalf("second bid: %v", err)
	}
	if state.balances[bidderA] != 2_000 {
		t.Fatalf("displaced bidder should be made whole, got %d", state.balances[bidderA])
	}
	if state.balances[custody] != 1_100 {
		t.Fatalf("custody should hold exactly the highest bid, got %d", state.balances[custody])
	}

	stored, err := engine.Get(auc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.HighestBid != 1_100 || stored.HighestBidder == nil || *stored.HighestBidder != bidderB {
		t.Fatalf("unexpected highest bid state: %+v", stored)
	}
	if stored.TotalBids != 2 {
		t.Fatalf("expected 2 accepted bids, got %d", stored.TotalBids)
	}
	if emitter.countType(EventTypeBidPlaced) != 2 {
		t.Fatalf("expected 2 bid_placed events, got %d", emitter.countType(EventTypeBidPlaced))
	}
	if emitter.countType(EventTypeBidRefunded) != 1 {
		t.Fatalf("expected 1 bid_refunded event, got %d", emitter.countType(EventTypeBidRefunded))
	}
}

func TestPlaceBidWindow(t *testing.T) {
	state := newMockState()
	engine, _, clock := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	item := newTestItem(0x10)
	state.items[item] = seller
	state.balances[bidder] = 5_000

	auc, err := engine.Create(seller, item, baseTime+100, baseTime+100+MinDuration, 1_000, 100)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := engine.PlaceBid(auc.ID, bidder, 1_000); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	clock.now = baseTime + 100 + MinDuration
	if err := engine.PlaceBid(auc.ID, bidder, 1_000); !errors.Is(err, ErrEnded) {
		t.Fatalf("expected ErrEnded, got %v", err)
	}
}

func TestPlaceBidAntiSnipe(t *testing.T) {
	state := newMockState()
	engine, _, clock := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	item := newTestItem(0x10)
	state.balances[bidder] = 10_000

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	end := auc.EndTime

	// Outside the window the end time is untouched.
	clock.now = end - AntiSnipeWindow - 1
	if err := engine.PlaceBid(auc.ID, bidder, 1_000); err != nil {
		t.Fatalf("bid: %v", err)
	}
	stored, _ := engine.Get(auc.ID)
	if stored.EndTime != end {
		t.Fatalf("end time must not move outside the window, got %d", stored.EndTime)
	}

	// Inside the window the end time becomes now plus the window.
	clock.now = end - AntiSnipeWindow
	if err := engine.PlaceBid(auc.ID, bidder, 1_100); err != nil {
		t.Fatalf("bid: %v", err)
	}
	stored, _ = engine.Get(auc.ID)
	if stored.EndTime != clock.now+AntiSnipeWindow {
		t.Fatalf("expected end pushed to %d, got %d", clock.now+AntiSnipeWindow, stored.EndTime)
	}
}

func TestPlaceBidRequiredOverflow(t *testing.T) {
	state := newMockState()
	engine, _, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	item := newTestItem(0x10)
	state.balances[bidder] = ^uint64(0)

	auc := openAuction(t, engine, state, seller, item, 1, ^uint64(0))
	if err := engine.PlaceBid(auc.ID, bidder, 2); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidder, 3); !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow on required minimum, got %v", err)
	}
}

func TestPlaceBidInsufficientFunds(t *testing.T) {
	state := newMockState()
	engine, _, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x02)
	bidderB := newTestAddress(0x03)
	item := newTestItem(0x10)
	state.balances[bidderA] = 1_000
	state.balances[bidderB] = 1_099

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if err := engine.PlaceBid(auc.ID, bidderA, 1_000); err != nil {
		t.Fatalf("first bid: %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidderB, 1_100); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	// The underfunded bid must not have triggered the refund leg.
	if state.balances[bidderA] != 0 {
		t.Fatalf("displaced bidder must not be refunded on a rejected bid, got %d", state.balances[bidderA])
	}
	if state.balances[CustodyAddress(auc.ID)] != 1_000 {
		t.Fatal("custody must still hold the standing bid")
	}
}

func TestClaimSale(t *testing.T) {
	state := newMockState()
	treasury := newTestAddress(0xFE)
	engine, emitter, clock := newTestEngine(state, &mockMarket{feeBps: 250, treasury: treasury})
	seller := newTestAddress(0x01)
	bidderA := newTestAddress(0x02)
	bidderB := newTestAddress(0x03)
	item := newTestItem(0x10)
	state.balances[bidderA] = 1_000
	state.balances[bidderB] = 1_100

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if err := engine.PlaceBid(auc.ID, bidderA, 1_000); err != nil {
		t.Fatalf("bid A: %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidderB, 1_100); err != nil {
		t.Fatalf("bid B: %v", err)
	}

	if err := engine.Claim(auc.ID); !errors.Is(err, ErrNotEnded) {
		t.Fatalf("expected ErrNotEnded, got %v", err)
	}
	stored, _ := engine.Get(auc.ID)
	clock.now = stored.EndTime
	if err := engine.Claim(auc.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if state.balances[treasury] != 27 {
		t.Fatalf("expected treasury fee 27, got %d", state.balances[treasury])
	}
	if state.balances[seller] != 1_073 {
		t.Fatalf("expected seller proceeds 1073, got %d", state.balances[seller])
	}
	if state.items[item] != bidderB {
		t.Fatal("winning bidder should own the item")
	}
	if state.balances[bidderA] != 1_000 {
		t.Fatalf("displaced bidder should be whole, got %d", state.balances[bidderA])
	}
	if emitter.lastType() != EventTypeSettled {
		t.Fatalf("expected %s event, got %s", EventTypeSettled, emitter.lastType())
	}

	if err := engine.Claim(auc.ID); !errors.Is(err, ErrSettled) {
		t.Fatalf("second claim should fail terminal, got %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidderA, 5_000); !errors.Is(err, ErrSettled) {
		t.Fatalf("bid after settlement should fail, got %v", err)
	}
}

func TestClaimReserveNotMet(t *testing.T) {
	state := newMockState()
	engine, emitter, clock := newTestEngine(state, &mockMarket{feeBps: 250, treasury: newTestAddress(0xFE)})
	seller := newTestAddress(0x01)
	item := newTestItem(0x10)

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	clock.now = auc.EndTime
	if err := engine.Claim(auc.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if state.items[item] != seller {
		t.Fatal("item should return to seller when reserve not met")
	}
	if emitter.lastType() != EventTypeSettledNoSale {
		t.Fatalf("expected %s event, got %s", EventTypeSettledNoSale, emitter.lastType())
	}
	stored, _ := engine.Get(auc.ID)
	if !stored.IsSettled {
		t.Fatal("no-sale outcome still marks the auction settled")
	}
}

func TestCancel(t *testing.T) {
	state := newMockState()
	engine, emitter, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	item := newTestItem(0x10)
	state.balances[bidder] = 2_000

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if err := engine.Cancel(auc.ID, bidder); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.Cancel(auc.ID, seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if state.items[item] != seller {
		t.Fatal("item should return to seller on cancel")
	}
	if emitter.lastType() != EventTypeCanceled {
		t.Fatalf("expected %s event, got %s", EventTypeCanceled, emitter.lastType())
	}
	if err := engine.Cancel(auc.ID, seller); !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
	if err := engine.PlaceBid(auc.ID, bidder, 1_000); !errors.Is(err, ErrCanceled) {
		t.Fatalf("bid after cancel should fail, got %v", err)
	}
}

func TestCancelWithBids(t *testing.T) {
	state := newMockState()
	engine, _, _ := newTestEngine(state, &mockMarket{})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	item := newTestItem(0x10)
	state.balances[bidder] = 2_000

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if err := engine.PlaceBid(auc.ID, bidder, 1_000); err != nil {
		t.Fatalf("bid: %v", err)
	}
	if err := engine.Cancel(auc.ID, seller); !errors.Is(err, ErrHasBids) {
		t.Fatalf("expected ErrHasBids, got %v", err)
	}
}

func TestEmergencyRefund(t *testing.T) {
	admin := newTestAddress(0xAD)
	state := newMockState()
	engine, emitter, _ := newTestEngine(state, &mockMarket{authority: admin})
	seller := newTestAddress(0x01)
	bidder := newTestAddress(0x02)
	recipient := newTestAddress(0x05)
	item := newTestItem(0x10)
	state.balances[bidder] = 2_000

	auc := openAuction(t, engine, state, seller, item, 1_000, 100)
	if err := engine.PlaceBid(auc.ID, bidder, 1_000); err != nil {
		t.Fatalf("bid: %v", err)
	}

	if err := engine.EmergencyRefund(auc.ID, seller, recipient); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := engine.EmergencyRefund(auc.ID, admin, recipient); err != nil {
		t.Fatalf("emergency refund: %v", err)
	}
	if state.balances[recipient] != 1_000 {
		t.Fatalf("expected recipient to hold 1000, got %d", state.balances[recipient])
	}
	if emitter.lastType() != EventTypeEmergencyRefund {
		t.Fatalf("expected %s event, got %s", EventTypeEmergencyRefund, emitter.lastType())
	}
	stored, _ := engine.Get(auc.ID)
	if stored.IsSettled || stored.IsCanceled {
		t.Fatal("emergency refund must not flip terminal flags")
	}
}
