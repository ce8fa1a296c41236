/*
Package rpcsrv implements the JSON-RPC 2.0 server of the node. Besides a few
chain and mempool methods it serves long-poll event delivery: clients
subscribe to events and then repeatedly call waitevents, the call returns
queued events at once or is suspended until they arrive.
*/
package rpcsrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/block"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"github.com/nspcc-dev/eventbridge/pkg/services/notifier"
	"github.com/nspcc-dev/eventbridge/pkg/services/rpcsrv/params"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Ledger abstracts away the Blockchain as used by the RPC server.
	Ledger interface {
		BlockHeight() uint32
		PushBlock(ctx context.Context, b *block.Block) error
		PopBlock(ctx context.Context) (*block.Block, error)
		GenerateBlock(ctx context.Context, generator uint64) (*block.Block, error)
	}

	// Mempool accepts new transactions and resolves the pending ones.
	Mempool interface {
		Add(ctx context.Context, tx *transaction.Transaction) error
		Remove(ctx context.Context, ids ...uint64) []*transaction.Transaction
		ReleasePhased(ctx context.Context, ids ...uint64) ([]*transaction.Transaction, error)
		RejectPhased(ctx context.Context, ids ...uint64) ([]*transaction.Transaction, error)
	}

	// PeerRegistry is the peer set managed by the node operator.
	PeerRegistry interface {
		Peers() []network.Peer
		AddPeer(ctx context.Context, address string, inbound bool) (*network.Peer, error)
		Connect(ctx context.Context, address string, version string) error
		Deactivate(ctx context.Context, address string) error
		Blacklist(ctx context.Context, address string, cause string) error
		Unblacklist(ctx context.Context, address string) error
		Remove(ctx context.Context, address string) error
	}

	// Server represents the JSON-RPC 2.0 server.
	Server struct {
		http     []*http.Server
		chain    Ledger
		pool     Mempool
		peers    PeerRegistry
		notifier *notifier.Service
		config   config.RPC
		log      *zap.Logger
		shutdown chan struct{}
		started  atomic.Bool
		errChan  chan error
	}

	// caller is the origin of an event delivery call.
	caller struct {
		ctx context.Context
		// address is the session key, the remote host without port.
		address string
	}
)

var rpcHandlers = map[string]func(*Server, params.Params) (any, *neorpc.Error){
	"getblockcount": (*Server).getBlockCount,
	"getpeers":      (*Server).getPeers,
}

var rpcCallerHandlers = map[string]func(*Server, *caller, params.Params) (any, *neorpc.Error){
	"addpeer":            (*Server).addPeer,
	"blacklistpeer":      (*Server).blacklistPeer,
	"connectpeer":        (*Server).connectPeer,
	"disconnectpeer":     (*Server).disconnectPeer,
	"generateblock":      (*Server).generateBlock,
	"popblock":           (*Server).popBlock,
	"rejectphased":       (*Server).rejectPhased,
	"releasephased":      (*Server).releasePhased,
	"removepeer":         (*Server).removePeer,
	"removetransaction":  (*Server).removeTransaction,
	"sendrawtransaction": (*Server).sendRawTransaction,
	"submitblock":        (*Server).submitBlock,
	"subscribe":          (*Server).subscribe,
	"unblacklistpeer":    (*Server).unblacklistPeer,
	"unsubscribe":        (*Server).unsubscribe,
	"waitevents":         (*Server).waitEvents,
}

// New creates a new Server struct.
func New(chain Ledger, pool Mempool, peers PeerRegistry, svc *notifier.Service, conf config.RPC,
	log *zap.Logger, errChan chan error) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	addrs := conf.GetAddresses()
	servers := make([]*http.Server, len(addrs))
	for i, addr := range addrs {
		servers[i] = &http.Server{
			Addr:           addr,
			MaxHeaderBytes: conf.MaxRequestHeaderBytes,
		}
	}
	return &Server{
		http:     servers,
		chain:    chain,
		pool:     pool,
		peers:    peers,
		notifier: svc,
		config:   conf,
		log:      log.With(zap.String("service", "rpc")),
		shutdown: make(chan struct{}),
		errChan:  errChan,
	}
}

// Name returns service name.
func (s *Server) Name() string {
	return "rpc"
}

// Addresses returns the list of addresses the server is listening on, they're
// the actual ones after Start.
func (s *Server) Addresses() []string {
	res := make([]string, len(s.http))
	for i, srv := range s.http {
		res[i] = srv.Addr
	}
	return res
}

// Start creates a new JSON-RPC server listening on the configured addresses.
// It returns listener errors via errChan passed to New(). The Server only
// starts once, subsequent calls to Start are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("RPC server is not enabled")
		return
	}
	if !s.started.CompareAndSwap(false, true) {
		s.log.Info("RPC server already started")
		return
	}
	for _, srv := range s.http {
		srv.Handler = http.HandlerFunc(s.handleHTTPRequest)
		s.log.Info("starting rpc-server", zap.String("endpoint", srv.Addr))

		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			s.errChan <- fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			return
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start RPC server", zap.Error(err))
				s.errChan <- err
			}
		}(srv)
	}
}

// Shutdown stops the RPC server if it's running. Suspended waits are
// interrupted. It can only be called once, subsequent calls to Shutdown on
// the same instance are no-op.
func (s *Server) Shutdown() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	close(s.shutdown)
	for _, srv := range s.http {
		s.log.Info("shutting down RPC server", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during RPC server shutdown", zap.Error(err))
		}
	}
}

func (s *Server) handleHTTPRequest(w http.ResponseWriter, httpRequest *http.Request) {
	req := params.NewRequest()

	if httpRequest.Method == http.MethodOptions && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Max-Age", "21600") // 6 hours.
		return
	}

	if httpRequest.Method != http.MethodPost {
		s.writeHTTPErrorResponse(
			params.NewIn(),
			w,
			neorpc.NewInvalidParamsError(fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)),
		)
		return
	}

	if s.config.MaxRequestBodyBytes > 0 {
		httpRequest.Body = http.MaxBytesReader(w, httpRequest.Body, int64(s.config.MaxRequestBodyBytes))
	}
	err := req.DecodeData(httpRequest.Body)
	if err != nil {
		s.writeHTTPErrorResponse(params.NewIn(), w, neorpc.NewParseError(err.Error()))
		return
	}

	c := &caller{
		ctx:     httpRequest.Context(),
		address: remoteHost(httpRequest.RemoteAddr),
	}
	resp := s.handleRequest(req, c)
	s.writeHTTPServerResponse(req, w, resp)
}

// remoteHost strips the port from the remote address.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (s *Server) handleRequest(req *params.Request, c *caller) abstractResult {
	if req.In != nil {
		req.In.Method = escapeForLog(req.In.Method) // No valid method name will be changed by it.
		return s.handleIn(req.In, c)
	}
	resp := make(abstractBatch, len(req.Batch))
	for i, in := range req.Batch {
		in.Method = escapeForLog(in.Method) // No valid method name will be changed by it.
		resp[i] = s.handleIn(&in, c)
	}
	return resp
}

func (s *Server) handleIn(req *params.In, c *caller) abstract {
	var res any
	var resErr *neorpc.Error
	if req.JSONRPC != neorpc.JSONRPCVersion {
		return s.packResponse(req, nil, neorpc.NewInvalidParamsError(fmt.Sprintf("problem parsing JSON: invalid version, expected 2.0 got '%s'", req.JSONRPC)))
	}

	reqParams := params.Params(req.RawParams)

	s.log.Debug("processing rpc request",
		zap.String("method", req.Method),
		zap.String("caller", c.address),
		zap.Any("params", reqParams))

	start := time.Now()
	defer func() { addReqTimeMetric(req.Method, time.Since(start)) }()

	resErr = neorpc.NewMethodNotFoundError(fmt.Sprintf("method %q not supported", req.Method))
	if handler, ok := rpcHandlers[req.Method]; ok {
		res, resErr = handler(s, reqParams)
	} else if handler, ok := rpcCallerHandlers[req.Method]; ok {
		res, resErr = handler(s, c, reqParams)
	}
	return s.packResponse(req, res, resErr)
}

func (s *Server) getBlockCount(_ params.Params) (any, *neorpc.Error) {
	return s.chain.BlockHeight() + 1, nil
}

func (s *Server) getPeers(_ params.Params) (any, *neorpc.Error) {
	peers := result.NewGetPeers()
	peers.AddPeers(s.peers.Peers())
	return peers, nil
}

// submitBlock pushes the block given as a JSON object.
func (s *Server) submitBlock(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	b := new(block.Block)
	if err := reqParams.Value(0).GetObject(b); err != nil {
		return nil, neorpc.NewInvalidParamsError(fmt.Sprintf("missing parameter or not a block: %s", err))
	}
	err := s.chain.PushBlock(c.ctx, b)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrBadHeight):
			return nil, neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
		default:
			return nil, neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
		}
	}
	return &result.RelayResult{
		Hash: b.ID,
	}, nil
}

// popBlock removes the chain tip.
func (s *Server) popBlock(c *caller, _ params.Params) (any, *neorpc.Error) {
	b, err := s.chain.PopBlock(c.ctx)
	if err != nil {
		if errors.Is(err, core.ErrEmptyChain) {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknownBlock, err.Error())
		}
		return nil, neorpc.NewInternalServerError(err.Error())
	}
	return &result.RelayResult{
		Hash: b.ID,
	}, nil
}

// sendRawTransaction adds the transaction given as a JSON object to the
// mempool.
func (s *Server) sendRawTransaction(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	tx := new(transaction.Transaction)
	if err := reqParams.Value(0).GetObject(tx); err != nil {
		return nil, neorpc.NewInvalidParamsError(fmt.Sprintf("missing parameter or not a transaction: %s", err))
	}
	if err := tx.Validate(); err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
	}
	err := s.pool.Add(c.ctx, tx)
	if err != nil {
		switch {
		case errors.Is(err, mempool.ErrDup):
			return nil, neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
		case errors.Is(err, mempool.ErrOOM):
			return nil, neorpc.WrapErrorWithData(neorpc.ErrOutOfMemory, err.Error())
		default:
			return nil, neorpc.WrapErrorWithData(neorpc.ErrUnknown, err.Error())
		}
	}
	return &result.RelayResult{
		Hash: tx.ID,
	}, nil
}

func (s *Server) packResponse(r *params.In, result any, respErr *neorpc.Error) abstract {
	resp := abstract{
		Header: neorpc.Header{
			JSONRPC: r.JSONRPC,
			ID:      r.RawID,
		},
	}
	if respErr != nil {
		resp.Error = respErr
	} else {
		resp.Result = result
	}
	return resp
}

// logRequestError is a request error logger.
func (s *Server) logRequestError(r *params.Request, jsonErr *neorpc.Error) {
	logFields := []zap.Field{
		zap.Int64("code", jsonErr.Code),
	}
	if len(jsonErr.Data) != 0 {
		logFields = append(logFields, zap.String("cause", jsonErr.Data))
	}

	if r.In != nil {
		logFields = append(logFields, zap.String("method", r.In.Method))
		params := params.Params(r.In.RawParams)
		logFields = append(logFields, zap.Any("params", params))
	}

	logText := "Error encountered with rpc request"
	switch jsonErr.Code {
	case neorpc.InternalServerErrorCode:
		s.log.Error(logText, logFields...)
	default:
		s.log.Info(logText, logFields...)
	}
}

// writeHTTPErrorResponse writes an error response to the ResponseWriter.
func (s *Server) writeHTTPErrorResponse(r *params.In, w http.ResponseWriter, jsonErr *neorpc.Error) {
	resp := s.packResponse(r, nil, jsonErr)
	s.writeHTTPServerResponse(&params.Request{In: r}, w, resp)
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeHTTPServerResponse(r *params.Request, w http.ResponseWriter, resp abstractResult) {
	// Errors can happen in many places and we can only catch ALL of them here.
	resp.RunForErrors(func(jsonErr *neorpc.Error) {
		s.logRequestError(r, jsonErr)
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}
	if r.In != nil {
		resp := resp.(abstract)
		if resp.Error != nil {
			w.WriteHeader(getHTTPCodeForError(resp.Error))
		}
	}

	encoder := json.NewEncoder(w)
	err := encoder.Encode(resp)

	if err != nil {
		switch {
		case r.In != nil:
			s.log.Error("Error encountered while encoding response",
				zap.String("err", err.Error()),
				zap.String("method", r.In.Method))
		case r.Batch != nil:
			s.log.Error("Error encountered while encoding batch response",
				zap.String("err", err.Error()))
		}
	}
}

// escapeForLog drops non-printable characters from the method name, it's
// logged.
func escapeForLog(in string) string {
	return strings.Map(func(c rune) rune {
		if !strconv.IsGraphic(c) {
			return -1
		}
		return c
	}, in)
}
