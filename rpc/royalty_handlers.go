package rpc

import (
	"errors"
	"net/http"

	"marketd/core/types"
	"marketd/native/royalty"
)

const (
	codeRoyaltyInvalidParams = -32051
	codeRoyaltyNotFound      = -32052
	codeRoyaltyForbidden     = -32053
	codeRoyaltyConflict      = -32054
)

type royaltyInitializeParams struct {
	Authority      string `json:"authority"`
	MaxRoyaltyBps  uint16 `json:"maxRoyaltyBps"`
	PlatformFeeBps uint16 `json:"platformFeeBps"`
}

type royaltyUpdateParams struct {
	Caller         string  `json:"caller"`
	MaxRoyaltyBps  *uint16 `json:"maxRoyaltyBps,omitempty"`
	PlatformFeeBps *uint16 `json:"platformFeeBps,omitempty"`
}

type royaltyCreatorParam struct {
	Address  string `json:"address"`
	Verified bool   `json:"verified"`
	Share    uint8  `json:"share"`
}

type royaltyDistributeParams struct {
	Buyer        string                `json:"buyer"`
	Seller       string                `json:"seller"`
	SalePrice    uint64                `json:"salePrice"`
	SellerFeeBps uint16                `json:"sellerFeeBps"`
	Creators     []royaltyCreatorParam `json:"creators"`
	Accounts     []string              `json:"accounts"`
}

type royaltyCalculateParams struct {
	SalePrice    uint64                `json:"salePrice"`
	SellerFeeBps uint16                `json:"sellerFeeBps"`
	Creators     []royaltyCreatorParam `json:"creators"`
}

type royaltyWithdrawParams struct {
	Caller string `json:"caller"`
	Amount uint64 `json:"amount"`
}

type royaltyConfigJSON struct {
	Authority          string `json:"authority"`
	Treasury           string `json:"treasury"`
	MaxRoyaltyBps      uint16 `json:"maxRoyaltyBps"`
	PlatformFeeBps     uint16 `json:"platformFeeBps"`
	TotalFeesCollected uint64 `json:"totalFeesCollected"`
}

type creatorPayoutJSON struct {
	Address string `json:"address"`
	Share   uint8  `json:"share"`
	Amount  uint64 `json:"amount"`
}

type breakdownJSON struct {
	SalePrice       uint64              `json:"salePrice"`
	PlatformFee     uint64              `json:"platformFee"`
	TotalRoyaltyFee uint64              `json:"totalRoyaltyFee"`
	SellerAmount    uint64              `json:"sellerAmount"`
	Creators        []creatorPayoutJSON `json:"creators"`
}

func royaltyConfigToJSON(cfg *royalty.Config) royaltyConfigJSON {
	return royaltyConfigJSON{
		Authority:          cfg.Authority.String(),
		Treasury:           royalty.TreasuryAddress().String(),
		MaxRoyaltyBps:      cfg.MaxRoyaltyBps,
		PlatformFeeBps:     cfg.PlatformFeeBps,
		TotalFeesCollected: cfg.TotalFeesCollected,
	}
}

func breakdownToJSON(b *royalty.Breakdown) breakdownJSON {
	out := breakdownJSON{
		SalePrice:       b.SalePrice,
		PlatformFee:     b.PlatformFee,
		TotalRoyaltyFee: b.TotalRoyaltyFee,
		SellerAmount:    b.SellerAmount,
		Creators:        make([]creatorPayoutJSON, 0, len(b.Creators)),
	}
	for _, payout := range b.Creators {
		out.Creators = append(out.Creators, creatorPayoutJSON{
			Address: payout.Address.String(),
			Share:   payout.Share,
			Amount:  payout.Amount,
		})
	}
	return out
}

func parseCreators(raw []royaltyCreatorParam) ([]royalty.Creator, *RPCError) {
	creators := make([]royalty.Creator, 0, len(raw))
	for _, c := range raw {
		addr, rpcErr := parseAddr(c.Address)
		if rpcErr != nil {
			return nil, rpcErr
		}
		creators = append(creators, royalty.Creator{Address: addr, Verified: c.Verified, Share: c.Share})
	}
	return creators, nil
}

func writeRoyaltyError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, royalty.ErrNotInitialized):
		writeError(w, http.StatusNotFound, id, codeRoyaltyNotFound, "royalty_not_initialized", err.Error())
	case errors.Is(err, royalty.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeRoyaltyForbidden, "forbidden", err.Error())
	case errors.Is(err, royalty.ErrInvalidAuthority),
		errors.Is(err, royalty.ErrInvalidRoyaltyBps),
		errors.Is(err, royalty.ErrInvalidPlatformFee),
		errors.Is(err, royalty.ErrCreatorAccountNotFound):
		writeError(w, http.StatusBadRequest, id, codeRoyaltyInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, royalty.ErrAlreadyInitialized),
		errors.Is(err, royalty.ErrInsufficientFunds),
		errors.Is(err, royalty.ErrInsufficientFees),
		errors.Is(err, royalty.ErrOverflow),
		errors.Is(err, royalty.ErrArithmetic):
		writeError(w, http.StatusConflict, id, codeRoyaltyConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleRoyaltyInitializeConfig(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyInitializeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	authority, rpcErr := parseAddr(params.Authority)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	cfg, err := s.node.RoyaltyInitializeConfig(authority, params.MaxRoyaltyBps, params.PlatformFeeBps)
	if err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, royaltyConfigToJSON(cfg))
}

func (s *Server) handleRoyaltyUpdateConfig(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyUpdateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.RoyaltyUpdateConfig(caller, params.MaxRoyaltyBps, params.PlatformFeeBps); err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleRoyaltyDistribute(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyDistributeParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	buyer, rpcErr := parseAddr(params.Buyer)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	seller, rpcErr := parseAddr(params.Seller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	creators, rpcErr := parseCreators(params.Creators)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	accounts := make([]types.Address, 0, len(params.Accounts))
	for _, raw := range params.Accounts {
		addr, rpcErr := parseAddr(raw)
		if rpcErr != nil {
			writeParamError(w, req.ID, rpcErr)
			return
		}
		accounts = append(accounts, addr)
	}
	breakdown, err := s.node.RoyaltyDistribute(buyer, seller, params.SalePrice, params.SellerFeeBps, creators, accounts)
	if err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, breakdownToJSON(breakdown))
}

func (s *Server) handleRoyaltyCalculate(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyCalculateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	creators, rpcErr := parseCreators(params.Creators)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	breakdown, err := s.node.RoyaltyCalculate(params.SalePrice, params.SellerFeeBps, creators)
	if err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, breakdownToJSON(breakdown))
}

func (s *Server) handleRoyaltyWithdrawFees(w http.ResponseWriter, req *RPCRequest) {
	var params royaltyWithdrawParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	caller, rpcErr := parseAddr(params.Caller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.RoyaltyWithdrawFees(caller, params.Amount); err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleRoyaltyConfig(w http.ResponseWriter, req *RPCRequest) {
	cfg, err := s.node.RoyaltyConfig()
	if err != nil {
		writeRoyaltyError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, royaltyConfigToJSON(cfg))
}
