package rpc

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tokenmart/explorer"
	"tokenmart/native/common"
	"tokenmart/native/market"
	"tokenmart/native/registry"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
	codeUnauthorized   = -32001
	codeRateLimited    = -32020
)

// Server exposes the marketplace facade and the event archive over JSON-RPC.
type Server struct {
	facade  *market.Marketplace
	archive *explorer.Archive

	authToken string
	limiter   *rate.Limiter
}

// NewServer constructs an RPC server. The bearer token guarding mutating
// methods is read from TOKENMART_RPC_TOKEN; an empty token disables auth.
// The archive is optional; market_events reports an error without one.
func NewServer(facade *market.Marketplace, archive *explorer.Archive) *Server {
	return &Server{
		facade:    facade,
		archive:   archive,
		authToken: strings.TrimSpace(os.Getenv("TOKENMART_RPC_TOKEN")),
		limiter:   rate.NewLimiter(rate.Limit(50), 100),
	}
}

// Router assembles the HTTP surface: the JSON-RPC endpoint plus health and
// Prometheus metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)
	return r
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
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

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

var mutatingMethods = map[string]bool{
	"market_create":       true,
	"market_bulkCreate":   true,
	"market_relist":       true,
	"market_setPrice":     true,
	"market_purchase":     true,
	"market_bulkPurchase": true,
}

func (s *Server) authorized(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	supplied := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(supplied), []byte(s.authToken)) == 1
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, nil, codeRateLimited, "rate limit exceeded")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required")
		return
	}
	if mutatingMethods[req.Method] && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "missing or invalid bearer token")
		return
	}

	switch req.Method {
	case "market_create":
		s.handleCreate(w, &req)
	case "market_bulkCreate":
		s.handleBulkCreate(w, &req)
	case "market_relist":
		s.handleRelist(w, &req)
	case "market_setPrice":
		s.handleSetPrice(w, &req)
	case "market_purchase":
		s.handlePurchase(w, &req)
	case "market_bulkPurchase":
		s.handleBulkPurchase(w, &req)
	case "market_get":
		s.handleGet(w, &req)
	case "market_listed":
		s.handleListed(w, &req)
	case "market_ownerAssets":
		s.handleOwnerAssets(w, &req)
	case "market_keywordAssets":
		s.handleKeywordAssets(w, &req)
	case "market_metadata":
		s.handleMetadata(w, &req)
	case "market_events":
		s.handleEvents(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method)
	}
}

// errorCode maps domain failures onto JSON-RPC error codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, market.ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, market.ErrNotFound),
		errors.Is(err, registry.ErrUnknownAsset):
		return codeInvalidParams
	case errors.Is(err, market.ErrAlreadySold),
		errors.Is(err, market.ErrSelfPurchase),
		errors.Is(err, market.ErrInsufficientPayment),
		errors.Is(err, market.ErrInsufficientFunds),
		errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidRoyalty),
		errors.Is(err, market.ErrInvalidCommission),
		errors.Is(err, market.ErrDuplicateMetadata),
		errors.Is(err, market.ErrArityMismatch),
		errors.Is(err, market.ErrReentrancy),
		errors.Is(err, common.ErrModulePaused):
		return codeInvalidRequest
	default:
		return codeServerError
	}
}

func writeDomainError(w http.ResponseWriter, id interface{}, err error) {
	status := http.StatusBadRequest
	if errorCode(err) == codeServerError {
		status = http.StatusInternalServerError
	}
	writeError(w, status, id, errorCode(err), err.Error())
}
