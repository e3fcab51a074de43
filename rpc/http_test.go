package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketd/core"
	"marketd/core/events"
	"marketd/core/types"
	"marketd/storage"
)

const (
	testAdminToken = "test-admin-token"
	testJWTSecret  = "test-jwt-secret"
	testBaseTime   = int64(1_700_000_000)
)

type testEnv struct {
	t      *testing.T
	server *Server
	node   *core.Node
	admin  types.Address
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	node := core.NewNode(storage.NewMemDB(), events.NoopEmitter{})
	node.SetNowFunc(func() int64 { return testBaseTime })
	admin := testAddress(0xAD)
	treasury := testAddress(0xFE)
	if _, err := node.MarketInitialize(admin, treasury, 250); err != nil {
		t.Fatalf("initialize marketplace: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(node, logger, Options{AdminToken: testAdminToken, JWTSecret: testJWTSecret})
	return &testEnv{t: t, server: server, node: node, admin: admin}
}

func testAddress(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testItem(fill byte) types.ItemID {
	var item types.ItemID
	for i := range item {
		item[i] = fill
	}
	return item
}

func marshalParam(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal param: %v", err)
	}
	return raw
}

// call posts a full JSON-RPC request through the dispatch path so auth
// and routing are exercised alongside the handler.
func (env *testEnv) call(method string, payload interface{}, bearer string) (json.RawMessage, *RPCError) {
	env.t.Helper()
	req := RPCRequest{JSONRPC: jsonRPCVersion, Method: method, ID: 1}
	if payload != nil {
		req.Params = []json.RawMessage{marshalParam(env.t, payload)}
	}
	body, err := json.Marshal(req)
	if err != nil {
		env.t.Fatalf("marshal request: %v", err)
	}
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	env.server.handle(recorder, httpReq)

	decoded := struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      interface{}     `json:"id"`
		Result  json.RawMessage `json:"result"`
		Error   *RPCError       `json:"error"`
	}{}
	if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
		env.t.Fatalf("decode response: %v", err)
	}
	return decoded.Result, decoded.Error
}

func decodeResult(t *testing.T, raw json.RawMessage, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func TestHandleUnknownMethod(t *testing.T) {
	env := newTestEnv(t)
	_, rpcErr := env.call("market_doesNotExist", nil, "")
	if rpcErr == nil || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %+v", rpcErr)
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	env := newTestEnv(t)
	httpReq := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	recorder := httptest.NewRecorder()
	env.server.handle(recorder, httpReq)
	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != codeParseError {
		t.Fatalf("expected parse error, got %+v", resp.Error)
	}
}

func TestRouterServesHTTPSurface(t *testing.T) {
	env := newTestEnv(t)
	router := env.server.Router()

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if recorder.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", recorder.Code, http.StatusOK)
	}
	var health map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode healthz: %v", err)
	}
	if health["status"] != "ok" {
		t.Fatalf("healthz status = %q, want ok", health["status"])
	}

	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: "market_get", ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body)))
	if recorder.Code != http.StatusOK {
		t.Fatalf("rpc status = %d, want %d", recorder.Code, http.StatusOK)
	}
	var resp RPCResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestPrivilegedMethodRequiresAuth(t *testing.T) {
	env := newTestEnv(t)
	payload := map[string]interface{}{
		"item":  testItem(0x11).String(),
		"owner": testAddress(0x01).String(),
	}
	_, rpcErr := env.call("item_register", payload, "")
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", rpcErr)
	}
	_, rpcErr = env.call("item_register", payload, "wrong-token")
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized for bad token, got %+v", rpcErr)
	}
	if _, rpcErr = env.call("item_register", payload, testAdminToken); rpcErr != nil {
		t.Fatalf("expected static token accepted, got %+v", rpcErr)
	}
}

func TestJWTAuth(t *testing.T) {
	env := newTestEnv(t)
	signed := func(role string) string {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":  "ops",
			"role": role,
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		raw, err := token.SignedString([]byte(testJWTSecret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return raw
	}
	payload := map[string]interface{}{
		"address": testAddress(0x02).String(),
		"amount":  uint64(1_000),
	}
	_, rpcErr := env.call("account_credit", payload, signed("viewer"))
	if rpcErr == nil || rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected viewer role rejected, got %+v", rpcErr)
	}
	if _, rpcErr = env.call("account_credit", payload, signed("admin")); rpcErr != nil {
		t.Fatalf("expected admin jwt accepted, got %+v", rpcErr)
	}
	balanceRaw, rpcErr := env.call("account_balance", map[string]string{"address": testAddress(0x02).String()}, "")
	if rpcErr != nil {
		t.Fatalf("balance query: %+v", rpcErr)
	}
	var balance struct {
		Balance uint64 `json:"balance"`
	}
	decodeResult(t, balanceRaw, &balance)
	if balance.Balance != 1_000 {
		t.Fatalf("expected balance 1000, got %d", balance.Balance)
	}
}

func TestListingFlowOverRPC(t *testing.T) {
	env := newTestEnv(t)
	seller := testAddress(0x0A)
	buyer := testAddress(0x0B)
	item := testItem(0x33)
	if err := env.node.RegisterItem(item, seller); err != nil {
		t.Fatalf("register item: %v", err)
	}
	if err := env.node.CreditAccount(buyer, 5_000); err != nil {
		t.Fatalf("credit buyer: %v", err)
	}

	listRaw, rpcErr := env.call("listing_list", map[string]interface{}{
		"seller": seller.String(),
		"item":   item.String(),
		"price":  uint64(1_000),
	}, "")
	if rpcErr != nil {
		t.Fatalf("list: %+v", rpcErr)
	}
	var listed listingJSON
	decodeResult(t, listRaw, &listed)
	if !listed.Active {
		t.Fatalf("expected active listing")
	}

	if _, rpcErr = env.call("listing_buy", map[string]string{"id": listed.ID, "buyer": buyer.String()}, ""); rpcErr != nil {
		t.Fatalf("buy: %+v", rpcErr)
	}

	getRaw, rpcErr := env.call("listing_get", map[string]string{"id": listed.ID}, "")
	if rpcErr != nil {
		t.Fatalf("get: %+v", rpcErr)
	}
	var after listingJSON
	decodeResult(t, getRaw, &after)
	if after.Active {
		t.Fatalf("expected listing inactive after sale")
	}

	sellerBalance, err := env.node.BalanceOf(seller)
	if err != nil {
		t.Fatalf("seller balance: %v", err)
	}
	if sellerBalance != 975 {
		t.Fatalf("expected seller proceeds 975, got %d", sellerBalance)
	}
}

func TestAuctionErrorMapping(t *testing.T) {
	env := newTestEnv(t)
	unknown := testItem(0x77)
	_, rpcErr := env.call("auction_get", map[string]string{"id": types.Hash(unknown).String()}, "")
	if rpcErr == nil || rpcErr.Code != codeAuctionNotFound {
		t.Fatalf("expected auction not found, got %+v", rpcErr)
	}
	_, rpcErr = env.call("auction_get", map[string]string{"id": "zz"}, "")
	if rpcErr == nil || rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for bad id, got %+v", rpcErr)
	}
}

func TestEscrowCreateBadKind(t *testing.T) {
	env := newTestEnv(t)
	_, rpcErr := env.call("escrow_create", map[string]interface{}{
		"authority": testAddress(0x05).String(),
		"kind":      "raffle",
	}, "")
	if rpcErr == nil || rpcErr.Code != codeEscrowInvalidParams {
		t.Fatalf("expected invalid kind rejected, got %+v", rpcErr)
	}
}

func TestEscrowFlowOverRPC(t *testing.T) {
	env := newTestEnv(t)
	authority := testAddress(0x05)
	createRaw, rpcErr := env.call("escrow_create", map[string]interface{}{
		"authority": authority.String(),
		"kind":      "direct_sale",
	}, "")
	if rpcErr != nil {
		t.Fatalf("create: %+v", rpcErr)
	}
	var created escrowJSON
	decodeResult(t, createRaw, &created)
	if created.Status != "active" {
		t.Fatalf("expected active escrow, got %s", created.Status)
	}

	depositor := testAddress(0x06)
	if err := env.node.CreditAccount(depositor, 2_000); err != nil {
		t.Fatalf("credit depositor: %v", err)
	}
	if _, rpcErr = env.call("escrow_depositValue", map[string]interface{}{
		"id":        created.ID,
		"depositor": depositor.String(),
		"amount":    uint64(750),
	}, ""); rpcErr != nil {
		t.Fatalf("deposit value: %+v", rpcErr)
	}

	getRaw, rpcErr := env.call("escrow_get", map[string]string{"id": created.ID}, "")
	if rpcErr != nil {
		t.Fatalf("get: %+v", rpcErr)
	}
	var after escrowJSON
	decodeResult(t, getRaw, &after)
	if after.ValueAmount != 750 {
		t.Fatalf("expected held value 750, got %d", after.ValueAmount)
	}
}
