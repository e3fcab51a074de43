package rpc

import (
	"encoding/json"
	"net/http"

	"marketd/core/types"
)

// decodeParams unpacks the single positional parameter object every
// marketplace method expects.
func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func parseAddr(raw string) (types.Address, *RPCError) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return types.Address{}, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return addr, nil
}

func parseEntityID(raw string) (types.Hash, *RPCError) {
	id, err := types.ParseHash(raw)
	if err != nil {
		return types.Hash{}, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return id, nil
}

func parseItem(raw string) (types.ItemID, *RPCError) {
	item, err := types.ParseItemID(raw)
	if err != nil {
		return types.ItemID{}, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return item, nil
}

func writeParamError(w http.ResponseWriter, id interface{}, rpcErr *RPCError) {
	writeError(w, http.StatusBadRequest, id, rpcErr.Code, rpcErr.Message, rpcErr.Data)
}

func addressString(addr *types.Address) *string {
	if addr == nil {
		return nil
	}
	s := addr.String()
	return &s
}
