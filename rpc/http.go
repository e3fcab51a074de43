package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketd/core"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server exposes the marketplace node over JSON-RPC plus a websocket
// event stream, health, and metrics endpoints.
type Server struct {
	node       *core.Node
	log        *slog.Logger
	adminToken string
	jwtSecret  []byte
	stream     *Stream
}

// Options configures the credentials accepted for privileged methods.
// AdminToken enables static bearer auth; JWTSecret enables HS256 tokens
// carrying an admin role claim. At least one must be set for privileged
// methods to be callable.
type Options struct {
	AdminToken string
	JWTSecret  string

	// Stream lets the caller hand in a broadcaster that is already wired
	// into the node's emitter chain. When nil the server creates its own.
	Stream *Stream
}

func NewServer(node *core.Node, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	stream := opts.Stream
	if stream == nil {
		stream = NewStream()
	}
	srv := &Server{
		node:       node,
		log:        logger,
		adminToken: opts.AdminToken,
		stream:     stream,
	}
	if opts.JWTSecret != "" {
		srv.jwtSecret = []byte(opts.JWTSecret)
	}
	return srv
}

// Stream returns the websocket broadcaster. Wire it into the node's
// emitter chain so connected clients receive marketplace events.
func (s *Server) Stream() *Stream { return s.stream }

// Router assembles the HTTP surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws", s.handleEventsWS)
	r.Post("/", s.handle)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// handle is the main request handler that routes to specific handlers.
func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	requestID := uuid.NewString()
	s.log.Info("rpc request", "requestId", requestID, "method", req.Method, "remote", r.RemoteAddr)

	switch req.Method {
	case "market_initialize":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleMarketInitialize(w, req)
	case "market_updateFee":
		s.handleMarketUpdateFee(w, req)
	case "market_updateAuthority":
		s.handleMarketUpdateAuthority(w, req)
	case "market_setPaused":
		s.handleMarketSetPaused(w, req)
	case "market_withdrawFees":
		s.handleMarketWithdrawFees(w, req)
	case "market_get":
		s.handleMarketGet(w, req)
	case "auction_create":
		s.handleAuctionCreate(w, req)
	case "auction_placeBid":
		s.handleAuctionPlaceBid(w, req)
	case "auction_claim":
		s.handleAuctionClaim(w, req)
	case "auction_cancel":
		s.handleAuctionCancel(w, req)
	case "auction_emergencyRefund":
		s.handleAuctionEmergencyRefund(w, req)
	case "auction_get":
		s.handleAuctionGet(w, req)
	case "listing_list":
		s.handleListingList(w, req)
	case "listing_update":
		s.handleListingUpdate(w, req)
	case "listing_cancel":
		s.handleListingCancel(w, req)
	case "listing_buy":
		s.handleListingBuy(w, req)
	case "listing_recoverExpired":
		s.handleListingRecoverExpired(w, req)
	case "listing_get":
		s.handleListingGet(w, req)
	case "escrow_create":
		s.handleEscrowCreate(w, req)
	case "escrow_depositItem":
		s.handleEscrowDepositItem(w, req)
	case "escrow_depositValue":
		s.handleEscrowDepositValue(w, req)
	case "escrow_release":
		s.handleEscrowRelease(w, req)
	case "escrow_emergencyWithdraw":
		s.handleEscrowEmergencyWithdraw(w, req)
	case "escrow_status":
		s.handleEscrowStatus(w, req)
	case "escrow_get":
		s.handleEscrowGet(w, req)
	case "royalty_initializeConfig":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleRoyaltyInitializeConfig(w, req)
	case "royalty_updateConfig":
		s.handleRoyaltyUpdateConfig(w, req)
	case "royalty_distribute":
		s.handleRoyaltyDistribute(w, req)
	case "royalty_calculate":
		s.handleRoyaltyCalculate(w, req)
	case "royalty_withdrawFees":
		s.handleRoyaltyWithdrawFees(w, req)
	case "royalty_config":
		s.handleRoyaltyConfig(w, req)
	case "item_register":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleItemRegister(w, req)
	case "account_credit":
		if authErr := s.requireAuth(r); authErr != nil {
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
		s.handleAccountCredit(w, req)
	case "account_balance":
		s.handleAccountBalance(w, req)
	case "item_owner":
		s.handleItemOwner(w, req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("method %q not found", req.Method), nil)
	}
}
