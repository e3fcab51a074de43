package rpc

import (
	"errors"
	"net/http"

	"marketd/native/escrow"
)

const (
	codeEscrowInvalidParams = -32041
	codeEscrowNotFound      = -32042
	codeEscrowForbidden     = -32043
	codeEscrowConflict      = -32044
)

type escrowCreateParams struct {
	Authority string `json:"authority"`
	Kind      string `json:"kind"`
	Duration  *int64 `json:"duration,omitempty"`
}

type escrowIDParams struct {
	ID string `json:"id"`
}

type escrowDepositItemParams struct {
	ID        string `json:"id"`
	Depositor string `json:"depositor"`
	Item      string `json:"item"`
}

type escrowDepositValueParams struct {
	ID        string `json:"id"`
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
}

type escrowReleaseParams struct {
	ID             string `json:"id"`
	Caller         string `json:"caller"`
	ItemRecipient  string `json:"itemRecipient"`
	ValueRecipient string `json:"valueRecipient"`
}

type escrowWithdrawParams struct {
	ID            string `json:"id"`
	Caller        string `json:"caller"`
	ItemRecovery  string `json:"itemRecovery"`
	ValueRecovery string `json:"valueRecovery"`
}

type escrowJSON struct {
	ID          string  `json:"id"`
	Authority   string  `json:"authority"`
	Kind        string  `json:"kind"`
	CreatedAt   int64   `json:"createdAt"`
	ExpiresAt   *int64  `json:"expiresAt,omitempty"`
	Item        *string `json:"item,omitempty"`
	ValueAmount uint64  `json:"valueAmount"`
	Released    bool    `json:"released"`
	Withdrawn   bool    `json:"withdrawn"`
	Status      string  `json:"status"`
}

func escrowToJSON(esc *escrow.Escrow, status escrow.Status) escrowJSON {
	out := escrowJSON{
		ID:          esc.ID.String(),
		Authority:   esc.Authority.String(),
		Kind:        esc.Kind.String(),
		CreatedAt:   esc.CreatedAt,
		ExpiresAt:   esc.ExpiresAt,
		ValueAmount: esc.ValueAmount,
		Released:    esc.IsReleased,
		Withdrawn:   esc.IsWithdrawn,
		Status:      status.String(),
	}
	if esc.ItemID != nil {
		item := esc.ItemID.String()
		out.Item = &item
	}
	return out
}

func writeEscrowError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeEscrowNotFound, "escrow_not_found", err.Error())
	case errors.Is(err, escrow.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeEscrowForbidden, "forbidden", err.Error())
	case errors.Is(err, escrow.ErrInvalidAuthority),
		errors.Is(err, escrow.ErrInvalidKind),
		errors.Is(err, escrow.ErrInvalidDuration),
		errors.Is(err, escrow.ErrInvalidAmount),
		errors.Is(err, escrow.ErrInvalidRecipient):
		writeError(w, http.StatusBadRequest, id, codeEscrowInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, escrow.ErrAlreadyExists),
		errors.Is(err, escrow.ErrItemAlreadyDeposited),
		errors.Is(err, escrow.ErrExpired),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, escrow.ErrAlreadyWithdrawn),
		errors.Is(err, escrow.ErrOverflow):
		writeError(w, http.StatusConflict, id, codeEscrowConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, req *RPCRequest) {
	var params escrowCreateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	authority, rpcErr := parseAddr(params.Authority)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	kind, err := escrow.ParseKind(params.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeEscrowInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.node.EscrowCreate(authority, kind, params.Duration)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(created, escrow.StatusActive))
}

func (s *Server) handleEscrowDepositItem(w http.ResponseWriter, req *RPCRequest) {
	var params escrowDepositItemParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	depositor, rpcErr := parseAddr(params.Depositor)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	item, rpcErr := parseItem(params.Item)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.EscrowDepositItem(id, depositor, item); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowDepositValue(w http.ResponseWriter, req *RPCRequest) {
	var params escrowDepositValueParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	depositor, rpcErr := parseAddr(params.Depositor)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.EscrowDepositValue(id, depositor, params.Amount); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowRelease(w http.ResponseWriter, req *RPCRequest) {
	var params escrowReleaseParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	itemRecipient, rpcErr := parseAddr(params.ItemRecipient)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	valueRecipient, rpcErr := parseAddr(params.ValueRecipient)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.EscrowRelease(id, caller, itemRecipient, valueRecipient); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowEmergencyWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params escrowWithdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	itemRecovery, rpcErr := parseAddr(params.ItemRecovery)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	valueRecovery, rpcErr := parseAddr(params.ValueRecovery)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.EscrowEmergencyWithdraw(id, caller, itemRecovery, valueRecovery); err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleEscrowStatus(w http.ResponseWriter, req *RPCRequest) {
	var params escrowIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	status, err := s.node.EscrowStatus(id)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"status": status.String()})
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, req *RPCRequest) {
	var params escrowIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	found, err := s.node.EscrowGet(id)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	status, err := s.node.EscrowStatus(id)
	if err != nil {
		writeEscrowError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(found, status))
}
