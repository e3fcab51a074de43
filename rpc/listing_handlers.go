package rpc

import (
	"errors"
	"net/http"

	"marketd/native/common"
	"marketd/native/listing"
)

const (
	codeListingInvalidParams = -32031
	codeListingNotFound      = -32032
	codeListingForbidden     = -32033
	codeListingConflict      = -32034
)

type listingListParams struct {
	Seller string `json:"seller"`
	Item   string `json:"item"`
	Price  uint64 `json:"price"`
	Expiry *int64 `json:"expiry,omitempty"`
}

type listingUpdateParams struct {
	ID     string `json:"id"`
	Seller string `json:"seller"`
	Price  uint64 `json:"price"`
	Expiry *int64 `json:"expiry,omitempty"`
}

type listingIDParams struct {
	ID string `json:"id"`
}

type listingActorParams struct {
	ID     string `json:"id"`
	Seller string `json:"seller"`
}

type listingBuyParams struct {
	ID    string `json:"id"`
	Buyer string `json:"buyer"`
}

type listingJSON struct {
	ID        string `json:"id"`
	Seller    string `json:"seller"`
	Item      string `json:"item"`
	Price     uint64 `json:"price"`
	CreatedAt int64  `json:"createdAt"`
	Expiry    *int64 `json:"expiry,omitempty"`
	Active    bool   `json:"active"`
}

func listingToJSON(l *listing.Listing) listingJSON {
	return listingJSON{
		ID:        l.ID.String(),
		Seller:    l.Seller.String(),
		Item:      l.ItemID.String(),
		Price:     l.Price,
		CreatedAt: l.CreatedAt,
		Expiry:    l.Expiry,
		Active:    l.IsActive,
	}
}

func writeListingError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, listing.ErrNotFound):
		writeError(w, http.StatusNotFound, id, codeListingNotFound, "listing_not_found", err.Error())
	case errors.Is(err, listing.ErrUnauthorized):
		writeError(w, http.StatusForbidden, id, codeListingForbidden, "forbidden", err.Error())
	case errors.Is(err, listing.ErrInvalidSeller),
		errors.Is(err, listing.ErrInvalidBuyer),
		errors.Is(err, listing.ErrInvalidPrice),
		errors.Is(err, listing.ErrInvalidExpiry),
		errors.Is(err, listing.ErrNoExpiry):
		writeError(w, http.StatusBadRequest, id, codeListingInvalidParams, "invalid_params", err.Error())
	case errors.Is(err, listing.ErrAlreadyListed),
		errors.Is(err, listing.ErrNotActive),
		errors.Is(err, listing.ErrExpired),
		errors.Is(err, listing.ErrNotExpired),
		errors.Is(err, listing.ErrInsufficientFunds),
		errors.Is(err, listing.ErrArithmetic),
		errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusConflict, id, codeListingConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeServerError, "internal_error", err.Error())
	}
}

func (s *Server) handleListingList(w http.ResponseWriter, req *RPCRequest) {
	var params listingListParams
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
	created, err := s.node.ListingList(seller, item, params.Price, params.Expiry)
	if err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(created))
}

func (s *Server) handleListingUpdate(w http.ResponseWriter, req *RPCRequest) {
	var params listingUpdateParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	seller, rpcErr := parseAddr(params.Seller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.ListingUpdate(id, seller, params.Price, params.Expiry); err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleListingCancel(w http.ResponseWriter, req *RPCRequest) {
	var params listingActorParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	seller, rpcErr := parseAddr(params.Seller)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.ListingCancel(id, seller); err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleListingBuy(w http.ResponseWriter, req *RPCRequest) {
	var params listingBuyParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	buyer, rpcErr := parseAddr(params.Buyer)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.ListingBuy(id, buyer); err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleListingRecoverExpired(w http.ResponseWriter, req *RPCRequest) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	if err := s.node.ListingRecoverExpired(id); err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleListingGet(w http.ResponseWriter, req *RPCRequest) {
	var params listingIDParams
	if rpcErr := decodeParams(req, &params); rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	id, rpcErr := parseEntityID(params.ID)
	if rpcErr != nil {
		writeParamError(w, req.ID, rpcErr)
		return
	}
	found, err := s.node.ListingGet(id)
	if err != nil {
		writeListingError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(found))
}
