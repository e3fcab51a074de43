package rpc

import (
	"errors"
	"net/http"

	"marketd/storage"
)

const (
	codeHostNotFound = -32062
	codeHostConflict = -32064
)

type itemRegisterParams struct {
	Item  string `json:"item"`
	Owner string `json:"owner"`
}

type accountCreditParams struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type accountBalanceParams struct {
	Address string `json:"address"`
}

type itemOwnerParams struct {
	Item string `json:"item"`
}

func writeHostError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, storage.ErrItemNotFound):
		writeError(w, http.StatusNotFound, id, codeHostNotFound, "item_not_found", err.Error())
	case errors.Is(err, storage.ErrItemExists),
		errors.Is(err, storage.ErrBalanceOverflow):
		writeError(w, http.StatusConflict, id, codeHostConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleItemRegister(w http.ResponseWriter, req *RPCRequest) {
	var params itemRegisterParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	item, rpcErr := parseItem(params.Item)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	owner, rpcErr := parseAddr(params.Owner)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.RegisterItem(item, owner); err != nil {
		writeHostError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAccountCredit(w http.ResponseWriter, req *RPCRequest) {
	var params accountCreditParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.CreditAccount(addr, params.Amount); err != nil {
		writeHostError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAccountBalance(w http.ResponseWriter, req *RPCRequest) {
	var params accountBalanceParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		writeHostError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{"address": addr.String(), "balance": balance})
}

func (s *Server) handleItemOwner(w http.ResponseWriter, req *RPCRequest) {
	var params itemOwnerParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	item, rpcErr := parseItem(params.Item)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	owner, err := s.node.ItemOwner(item)
	if err != nil {
		writeHostError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"item": item.String(), "owner": owner.String()})
}
