package rpc

import (
	"errors"
	"net/http"

	"marketd/native/auction"
	"marketd/native/common"
)

const (
	codeAuctionInvalidParams = -32021
	codeAuctionNotFound      = -32022
	codeAuctionForbidden     = -32023
	codeAuctionConflict      = -32024
)

type auctionCreateParams struct {
	Seller          string `json:"seller"`
	Item            string `json:"item"`
	StartTime       int64  `json:"startTime"`
	EndTime         int64  `json:"endTime"`
	ReservePrice    uint64 `json:"reservePrice"`
	MinBidIncrement uint64 `json:"minBidIncrement"`
}

type auctionBidParams struct {
	ID     string `json:"id"`
	Bidder string `json:"bidder"`
	Amount uint64 `json:"amount"`
}

type auctionIDParams struct {
	ID string `json:"id"`
}

type auctionActorParams struct {
	ID     string `json:"id"`
	Caller string `json:"caller"`
}

type auctionRefundParams struct {
	ID        string `json:"id"`
	Caller    string `json:"caller"`
	Recipient string `json:"recipient"`
}

type auctionJSON struct {
	ID              string  `json:"id"`
	Seller          string  `json:"seller"`
	Item            string  `json:"item"`
	StartTime       int64   `json:"startTime"`
	EndTime         int64   `json:"endTime"`
	ReservePrice    uint64  `json:"reservePrice"`
	MinBidIncrement uint64  `json:"minBidIncrement"`
	HighestBid      uint64  `json:"highestBid"`
	HighestBidder   *string `json:"highestBidder,omitempty"`
	TotalBids       uint64  `json:"totalBids"`
	Settled         bool    `json:"settled"`
	Canceled        bool    `json:"canceled"`
}

func auctionToJSON(a *auction.Auction) auctionJSON {
	return auctionJSON{
		ID:              a.ID.String(),
		Seller:          a.Seller.String(),
		Item:            a.ItemID.String(),
		StartTime:       a.StartTime,
		EndTime:         a.EndTime,
		ReservePrice:    a.ReservePrice,
		MinBidIncrement: a.MinBidIncrement,
		HighestBid:      a.HighestBid,
		HighestBidder:   addressString(a.HighestBidder),
		TotalBids:       a.TotalBids,
		Settled:         a.IsSettled,
		Canceled:        a.IsCanceled,
	}
}

func writeAuctionError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, auction.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeAuctionNotFound, "auction_not_found", err.Error())
	case errors.Is(err, auction.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeAuctionForbidden, "forbidden", err.Error())
	case errors.Is(err, auction.ErrInvalidSeller),
		errors.Is(err, auction.ErrInvalidBidder),
		errors.Is(err, auction.ErrInvalidTiming),
		errors.Is(err, auction.ErrInvalidReserve),
		errors.Is(err, auction.ErrInvalidIncrement),
		errors.Is(err, auction.ErrInvalidRecipient),
		errors.Is(err, auction.ErrDurationTooShort),
		errors.Is(err, auction.ErrDurationTooLong):
		writeError(w, http.StatusBadRequest, id, codeAuctionInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, auction.ErrAlreadyExists),
		errors.Is(err, auction.ErrSettled),
		errors.Is(err, auction.ErrCanceled),
		errors.Is(err, auction.ErrNotStarted),
		errors.Is(err, auction.ErrEnded),
		errors.Is(err, auction.ErrNotEnded),
		errors.Is(err, auction.ErrBelowReserve),
		errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrHasBids),
		errors.Is(err, auction.ErrInsufficientFunds),
		errors.Is(err, auction.ErrOverflow),
		errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusConflict, id, codeAuctionConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleAuctionCreate(w http.ResponseWriter, req *RPCRequest) {
	var params auctionCreateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	seller, rpcErr := parseAddr(params.Seller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	item, rpcErr := parseItem(params.Item)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	created, err := s.node.AuctionCreate(seller, item, params.StartTime, params.EndTime, params.ReservePrice, params.MinBidIncrement)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(created))
}

func (s *Server) handleAuctionPlaceBid(w http.ResponseWriter, req *RPCRequest) {
	var params auctionBidParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	bidder, rpcErr := parseAddr(params.Bidder)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.AuctionPlaceBid(id, bidder, params.Amount); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAuctionClaim(w http.ResponseWriter, req *RPCRequest) {
	var params auctionIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.AuctionClaim(id); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAuctionCancel(w http.ResponseWriter, req *RPCRequest) {
	var params auctionActorParams
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
	if err := s.node.AuctionCancel(id, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAuctionEmergencyRefund(w http.ResponseWriter, req *RPCRequest) {
	var params auctionRefundParams
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
	recipient, rpcErr := parseAddr(params.Recipient)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.AuctionEmergencyRefund(id, caller, recipient); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAuctionGet(w http.ResponseWriter, req *RPCRequest) {
	var params auctionIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	found, err := s.node.AuctionGet(id)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(found))
}
