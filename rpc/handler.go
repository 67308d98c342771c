// Package rpc exposes the read-only JSON-RPC API and the websocket event
// feed. All game mutations happen through the engine's Go API (driven by the
// relayer process); the RPC surface only observes.
package rpc

import (
	"encoding/json"
	"errors"

	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/game"
	"github.com/cipherword/cipherword/history"
	"github.com/cipherword/cipherword/metrics"
)

// JSON-RPC 2.0 error codes.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
)

// Backend is the read surface the handler queries. Satisfied by *game.Engine.
type Backend interface {
	RoomInfo(roomID uint64) (game.RoomView, error)
	PlayerInfo(roomID uint64, wallet types.Address) (game.PlayerView, error)
	RoundInfo(roundID uint64) (game.RoundView, error)
	QualifiedPlayers(roundID uint64) ([]types.Address, error)
	XPOf(roomID uint64, wallet types.Address) (uint64, error)
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// Handler dispatches JSON-RPC method calls against the backend.
type Handler struct {
	backend Backend
	store   *history.Store
}

// NewHandler creates a Handler over the given backend. store may be nil when
// the node runs without a journal; history methods then report an error.
func NewHandler(backend Backend, store *history.Store) *Handler {
	return &Handler{backend: backend, store: store}
}

func errorResponse(id json.RawMessage, code int, msg string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: msg}}
}

func resultResponse(id json.RawMessage, result any) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

// Handle processes one raw JSON-RPC request body and returns the response.
func (h *Handler) Handle(body []byte) rpcResponse {
	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, codeParseError, "invalid JSON")
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request")
	}
	result, err := h.dispatch(req.Method, req.Params)
	if err != nil {
		return errorResponse(req.ID, errorCode(err), err.Error())
	}
	return resultResponse(req.ID, result)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, errUnknownMethod):
		return codeMethodNotFound
	case errors.Is(err, errBadParams):
		return codeInvalidParams
	case errors.Is(err, game.ErrRoomNotFound),
		errors.Is(err, game.ErrRoundNotFound),
		errors.Is(err, game.ErrNotMember),
		errors.Is(err, history.ErrNotFound):
		return codeInvalidParams
	default:
		return codeInternalError
	}
}

var (
	errUnknownMethod = errors.New("rpc: method not found")
	errBadParams     = errors.New("rpc: invalid params")
)

func (h *Handler) dispatch(method string, params json.RawMessage) (any, error) {
	switch method {
	case "word_getRoom":
		var p struct {
			RoomID uint64 `json:"roomId"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return h.backend.RoomInfo(p.RoomID)

	case "word_getPlayer":
		var p struct {
			RoomID uint64 `json:"roomId"`
			Wallet string `json:"wallet"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return h.backend.PlayerInfo(p.RoomID, types.HexToAddress(p.Wallet))

	case "word_getRound":
		var p struct {
			RoundID uint64 `json:"roundId"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return h.backend.RoundInfo(p.RoundID)

	case "word_getQualified":
		var p struct {
			RoundID uint64 `json:"roundId"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return h.backend.QualifiedPlayers(p.RoundID)

	case "word_getXP":
		var p struct {
			RoomID uint64 `json:"roomId"`
			Wallet string `json:"wallet"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		return h.backend.XPOf(p.RoomID, types.HexToAddress(p.Wallet))

	case "word_getRoundSummary":
		var p struct {
			RoundID uint64 `json:"roundId"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if h.store == nil {
			return nil, errors.New("rpc: history journal disabled")
		}
		return h.store.GetRoundSummary(p.RoundID)

	case "word_getEvents":
		var p struct {
			From  uint64 `json:"from"`
			Limit int    `json:"limit"`
		}
		if err := unmarshalParams(params, &p); err != nil {
			return nil, err
		}
		if h.store == nil {
			return nil, errors.New("rpc: history journal disabled")
		}
		return h.store.Events(p.From, p.Limit)

	case "word_metrics":
		return metrics.DefaultRegistry.Snapshot(), nil

	default:
		return nil, errUnknownMethod
	}
}

// unmarshalParams accepts either an object or a one-element positional array
// wrapping the object.
func unmarshalParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadParams
	}
	if raw[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(raw, &arr); err != nil || len(arr) != 1 {
			return errBadParams
		}
		raw = arr[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadParams
	}
	return nil
}
