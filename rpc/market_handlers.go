package rpc

import (
	"errors"
	"net/http"

	"marketd/native/market"
)

const (
	codeMarketInvalidParams = -32011
	codeMarketNotFound      = -32012
	codeMarketForbidden     = -32013
	codeMarketConflict      = -32014
)

type marketInitializeParams struct {
	Authority string `json:"authority"`
	Treasury  string `json:"treasury"`
	FeeBps    uint16 `json:"feeBps"`
}

type marketUpdateFeeParams struct {
	Caller string `json:"caller"`
	FeeBps uint16 `json:"feeBps"`
}

type marketUpdateAuthorityParams struct {
	Caller       string `json:"caller"`
	NewAuthority string `json:"newAuthority"`
}

type marketSetPausedParams struct {
	Caller string `json:"caller"`
	Paused bool   `json:"paused"`
}

type marketWithdrawFeesParams struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

type marketplaceJSON struct {
	Authority   string `json:"authority"`
	Treasury    string `json:"treasury"`
	FeeBps      uint16 `json:"feeBps"`
	Paused      bool   `json:"paused"`
	TotalVolume uint64 `json:"totalVolume"`
	TotalSales  uint64 `json:"totalSales"`
	CreatedAt   int64  `json:"createdAt"`
}

func marketplaceToJSON(m *market.Marketplace) marketplaceJSON {
	return marketplaceJSON{
		Authority:   m.Authority.String(),
		Treasury:    m.Treasury.String(),
		FeeBps:      m.FeeBps,
		Paused:      m.Paused,
		TotalVolume: m.TotalVolume,
		TotalSales:  m.TotalSales,
		CreatedAt:   m.CreatedAt,
	}
}

func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, market.ErrNotInitialized):
		writeError(w, http.StatusNotFound, id, codeMarketNotFound, "marketplace_not_initialized", err.Error())
	case errors.Is(err, market.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeMarketForbidden, "forbidden", err.Error())
	case errors.Is(err, market.ErrAlreadyInitialized),
		errors.Is(err, market.ErrInsufficientFees),
		errors.Is(err, market.ErrCounterOverflow):
		writeError(w, http.StatusConflict, id, codeMarketConflict, "conflict", err.Error())
	case errors.Is(err, market.ErrFeeTooHigh),
		errors.Is(err, market.ErrInvalidTreasury),
		errors.Is(err, market.ErrInvalidAuthority):
		writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleMarketInitialize(w http.ResponseWriter, req *RPCRequest) {
	var params marketInitializeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	authority, rpcErr := parseAddr(params.Authority)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	treasury, rpcErr := parseAddr(params.Treasury)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	marketplace, err := s.node.MarketInitialize(authority, treasury, params.FeeBps)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketplaceToJSON(marketplace))
}

func (s *Server) handleMarketUpdateFee(w http.ResponseWriter, req *RPCRequest) {
	var params marketUpdateFeeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MarketUpdateFee(caller, params.FeeBps); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketUpdateAuthority(w http.ResponseWriter, req *RPCRequest) {
	var params marketUpdateAuthorityParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	newAuthority, rpcErr := parseAddr(params.NewAuthority)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MarketUpdateAuthority(caller, newAuthority); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketSetPaused(w http.ResponseWriter, req *RPCRequest) {
	var params marketSetPausedParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MarketSetPaused(caller, params.Paused); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketWithdrawFees(w http.ResponseWriter, req *RPCRequest) {
	var params marketWithdrawFeesParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.MarketWithdrawFees(caller, params.Amount); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMarketGet(w http.ResponseWriter, req *RPCRequest) {
	marketplace, err := s.node.MarketGet()
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, marketplaceToJSON(marketplace))
}
