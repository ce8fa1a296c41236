package rpcsrv

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/config"
	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/ledger"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/storage"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"github.com/nspcc-dev/eventbridge/pkg/services/notifier"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testNode struct {
	chain *core.Blockchain
	pool  *mempool.Pool
	peers *network.Registry
	svc   *notifier.Service
}

func testNotifierConfig() config.Notifier {
	return config.Notifier{
		DefaultWaitTimeout: 2 * time.Second,
		MaxWaitTimeout:     5 * time.Second,
		IdleTimeout:        time.Minute,
		MaxSessions:        2,
	}
}

func newTestServer(t *testing.T, rpcCfg config.RPC) (*Server, *testNode) {
	log := zaptest.NewLogger(t)
	store := storage.NewMemoryStore()
	n := &testNode{
		pool:  mempool.New(0, log),
		peers: network.NewRegistry(log),
	}
	l := ledger.New(store, log)
	var err error
	n.chain, err = core.NewBlockchain(store, n.pool, l, log)
	require.NoError(t, err)

	reg := notifier.NewRegistry(testNotifierConfig(), notifier.Sources{
		Peers:        n.peers,
		Blocks:       n.chain,
		Transactions: n.pool,
		Ledger:       l,
	}, notifier.StorageBoundary, log)
	t.Cleanup(reg.Shutdown)
	n.svc = notifier.NewService(reg, log)

	s := New(n.chain, n.pool, n.peers, n.svc, rpcCfg, log, make(chan error, 1))
	return s, n
}

// call performs the request through the handler as if it came from the remote
// address.
func call(t *testing.T, s *Server, remote string, method string, ps ...any) (*neorpc.Response, int) {
	if ps == nil {
		ps = []any{}
	}
	body, err := json.Marshal(neorpc.Request{
		JSONRPC: neorpc.JSONRPCVersion,
		Method:  method,
		Params:  ps,
		ID:      1,
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	s.handleHTTPRequest(w, req)

	resp := new(neorpc.Response)
	require.NoError(t, json.NewDecoder(w.Body).Decode(resp))
	return resp, w.Code
}

func checkErrCode(t *testing.T, resp *neorpc.Response, code int64) {
	require.NotNil(t, resp.Error, "expected error %d", code)
	require.Equal(t, code, resp.Error.Code, resp.Error.Error())
}

func checkResult(t *testing.T, resp *neorpc.Response, v any) {
	require.Nil(t, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Result, v))
}

const client1 = "10.0.0.1:40000"

func TestSubscribeAndWait(t *testing.T) {
	s, _ := newTestServer(t, config.RPC{})

	resp, _ := call(t, s, client1, "subscribe", []string{"Block.Pushed"})
	var ok bool
	checkResult(t, resp, &ok)
	require.True(t, ok)

	done := make(chan *neorpc.Response, 1)
	go func() {
		r, _ := call(t, s, "10.0.0.1:40001", "waitevents", 3)
		done <- r
	}()

	resp, _ = call(t, s, client1, "submitblock", map[string]any{"id": "123"})
	var relay result.RelayResult
	checkResult(t, resp, &relay)
	require.EqualValues(t, 123, relay.Hash)

	var r *neorpc.Response
	select {
	case r = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waitevents didn't return")
	}
	var evs result.Events
	checkResult(t, r, &evs)
	require.Equal(t, []result.Event{{Name: "Block.Pushed", IDs: []uint64{123}}}, evs.Events)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(r.Result, &raw))
	require.Equal(t, []any{map[string]any{"name": "Block.Pushed", "ids": []any{"123"}}}, raw["events"])
}

func TestWaitEventsTimeout(t *testing.T) {
	s, _ := newTestServer(t, config.RPC{})

	resp, _ := call(t, s, client1, "subscribe")
	require.Nil(t, resp.Error)

	start := time.Now()
	resp, _ = call(t, s, client1, "waitevents", 0)
	var evs result.Events
	checkResult(t, resp, &evs)
	require.Empty(t, evs.Events)
	require.Less(t, time.Since(start), time.Second)

	// Negative timeout is clamped to zero rather than treated as absent.
	start = time.Now()
	resp, _ = call(t, s, client1, "waitevents", -5)
	checkResult(t, resp, &evs)
	require.Empty(t, evs.Events)
	require.Less(t, time.Since(start), time.Second)

	// No timeout means the default one.
	start = time.Now()
	resp, _ = call(t, s, client1, "waitevents")
	checkResult(t, resp, &evs)
	require.Empty(t, evs.Events)
	require.GreaterOrEqual(t, time.Since(start), testNotifierConfig().DefaultWaitTimeout)

	// The expired wait doesn't steal later events.
	resp, _ = call(t, s, client1, "sendrawtransaction", map[string]any{"id": "5", "sender": "1", "recipient": "2", "amount": 10})
	require.Nil(t, resp.Error)
	resp, _ = call(t, s, client1, "waitevents", 1)
	checkResult(t, resp, &evs)
	require.Len(t, evs.Events, 1)
	require.Equal(t, "Transaction.AddedUnconfirmed", evs.Events[0].Name)
	require.Equal(t, []uint64{5}, evs.Events[0].IDs)
}

func TestEventErrors(t *testing.T) {
	s, _ := newTestServer(t, config.RPC{})

	resp, code := call(t, s, client1, "waitevents")
	checkErrCode(t, resp, neorpc.NoSessionRegisteredCode)
	require.Equal(t, http.StatusNotFound, code)

	resp, _ = call(t, s, client1, "unsubscribe")
	checkErrCode(t, resp, neorpc.NoSessionRegisteredCode)

	resp, code = call(t, s, client1, "subscribe", []string{"Block.Pushed", "Block.Unknown"})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)
	require.Equal(t, http.StatusUnprocessableEntity, code)

	resp, _ = call(t, s, client1, "subscribe", "Block.Pushed")
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "subscribe", nil, map[string]bool{"add": true, "replace": true})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "subscribe", nil, map[string]bool{"merge": true})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "subscribe", []string{"Ledger.AddEntry.notanaccount"})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "subscribe")
	require.Nil(t, resp.Error)
	resp, _ = call(t, s, client1, "waitevents", "soon")
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, "10.0.0.2:1", "subscribe")
	require.Nil(t, resp.Error)
	resp, code = call(t, s, "10.0.0.3:1", "subscribe")
	checkErrCode(t, resp, neorpc.TooManySessionsCode)
	require.Equal(t, http.StatusServiceUnavailable, code)
	// Known addresses still can resubscribe.
	resp, _ = call(t, s, "10.0.0.2:2", "subscribe", []string{"Peer.NewPeer"}, map[string]bool{"add": true})
	require.Nil(t, resp.Error)

	resp, _ = call(t, s, client1, "nosuchmethod")
	checkErrCode(t, resp, neorpc.MethodNotFoundCode)
}

func TestUnsubscribeDeactivates(t *testing.T) {
	s, n := newTestServer(t, config.RPC{})

	resp, _ := call(t, s, client1, "subscribe", []string{"Block.Pushed", "Block.Popped"})
	require.Nil(t, resp.Error)
	resp, _ = call(t, s, client1, "unsubscribe", []string{"Block.Pushed"})
	require.Nil(t, resp.Error)
	require.Equal(t, 1, n.svc.Registry().Len())

	resp, _ = call(t, s, client1, "unsubscribe")
	require.Nil(t, resp.Error)
	require.Zero(t, n.svc.Registry().Len())
}

func TestChainMethods(t *testing.T) {
	s, n := newTestServer(t, config.RPC{})

	resp, _ := call(t, s, client1, "popblock")
	checkErrCode(t, resp, neorpc.ErrUnknownBlock.Code)

	resp, _ = call(t, s, client1, "submitblock", map[string]any{"id": "7", "height": 4})
	checkErrCode(t, resp, neorpc.ErrAlreadyExists.Code)
	resp, _ = call(t, s, client1, "submitblock", map[string]any{"id": "0"})
	checkErrCode(t, resp, neorpc.ErrValidationFailed.Code)
	resp, _ = call(t, s, client1, "submitblock", "block")
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "submitblock", map[string]any{"id": "7"})
	require.Nil(t, resp.Error)
	var count uint32
	resp, _ = call(t, s, client1, "getblockcount")
	checkResult(t, resp, &count)
	require.EqualValues(t, 2, count)

	var relay result.RelayResult
	resp, _ = call(t, s, client1, "popblock")
	checkResult(t, resp, &relay)
	require.EqualValues(t, 7, relay.Hash)

	tx := map[string]any{"id": "5", "sender": "1", "recipient": "2", "amount": 10}
	resp, _ = call(t, s, client1, "sendrawtransaction", tx)
	checkResult(t, resp, &relay)
	require.EqualValues(t, 5, relay.Hash)
	resp, _ = call(t, s, client1, "sendrawtransaction", tx)
	checkErrCode(t, resp, neorpc.ErrAlreadyExists.Code)
	resp, _ = call(t, s, client1, "sendrawtransaction", map[string]any{"id": "6", "sender": "1"})
	checkErrCode(t, resp, neorpc.ErrValidationFailed.Code)

	_, err := n.peers.AddPeer(context.Background(), "10.1.1.1:7874", false)
	require.NoError(t, err)
	require.NoError(t, n.peers.Connect(context.Background(), "10.1.1.1:7874", "1.0"))
	var peers result.GetPeers
	resp, _ = call(t, s, client1, "getpeers")
	checkResult(t, resp, &peers)
	require.Len(t, peers.Connected, 1)
	require.Equal(t, network.PeerID("10.1.1.1:7874"), peers.Connected[0].ID)
}

func TestNodeControlMethods(t *testing.T) {
	s, n := newTestServer(t, config.RPC{})

	resp, _ := call(t, s, client1, "subscribe", []string{
		"Peer.NewPeer", "Peer.AddedActivePeer", "Peer.Blacklisted", "Peer.Deactivated",
		"Peer.Unblacklisted", "Peer.Removed", "Block.Generated",
		"Transaction.ReleasePhased", "Transaction.RejectPhased", "Transaction.RemovedUnconfirmed",
	})
	require.Nil(t, resp.Error)

	const peer = "10.1.1.1:7874"
	for _, c := range []struct {
		method string
		params []any
		code   int64
	}{
		{"addpeer", []any{peer}, 0},
		{"addpeer", []any{peer}, neorpc.ErrAlreadyExists.Code},
		{"addpeer", []any{"nowhere"}, neorpc.InvalidParamsCode},
		{"addpeer", nil, neorpc.InvalidParamsCode},
		{"connectpeer", []any{peer, "1.0"}, 0},
		{"blacklistpeer", []any{peer, "spam"}, 0},
		{"connectpeer", []any{peer, "1.0"}, neorpc.ErrValidationFailed.Code},
		{"unblacklistpeer", []any{peer}, 0},
		{"disconnectpeer", []any{peer}, 0},
		{"removepeer", []any{peer}, 0},
		{"removepeer", []any{peer}, neorpc.ErrUnknownPeer.Code},
	} {
		resp, _ = call(t, s, client1, c.method, c.params...)
		if c.code != 0 {
			checkErrCode(t, resp, c.code)
			continue
		}
		var ok bool
		checkResult(t, resp, &ok)
		require.True(t, ok, c.method)
	}
	require.Empty(t, n.peers.Peers())

	for _, tx := range []map[string]any{
		{"id": "5", "sender": "1", "recipient": "2", "amount": 1, "phased": true},
		{"id": "6", "sender": "1", "recipient": "2", "amount": 1, "phased": true},
		{"id": "7", "sender": "1", "recipient": "2", "amount": 1},
	} {
		resp, _ = call(t, s, client1, "sendrawtransaction", tx)
		require.Nil(t, resp.Error)
	}
	var ids []string
	resp, _ = call(t, s, client1, "releasephased", []string{"5"})
	checkResult(t, resp, &ids)
	require.Equal(t, []string{"5"}, ids)
	resp, _ = call(t, s, client1, "rejectphased", []string{"7"})
	checkErrCode(t, resp, neorpc.ErrUnknownTransaction.Code)
	resp, _ = call(t, s, client1, "rejectphased", []string{"6"})
	checkResult(t, resp, &ids)
	require.Equal(t, []string{"6"}, ids)
	resp, _ = call(t, s, client1, "removetransaction", []string{"7", "99"})
	checkResult(t, resp, &ids)
	require.Equal(t, []string{"7"}, ids)
	resp, _ = call(t, s, client1, "removetransaction", []string{})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)
	resp, _ = call(t, s, client1, "removetransaction", []string{"x"})
	checkErrCode(t, resp, neorpc.InvalidParamsCode)

	resp, _ = call(t, s, client1, "generateblock", "not an account")
	checkErrCode(t, resp, neorpc.InvalidParamsCode)
	var relay result.RelayResult
	resp, _ = call(t, s, client1, "generateblock", "42")
	checkResult(t, resp, &relay)
	b, err := n.chain.GetBlock(n.chain.BlockHeight())
	require.NoError(t, err)
	require.Equal(t, relay.Hash, b.ID)
	require.EqualValues(t, 42, b.Generator)
	require.Len(t, b.Transactions, 1)
	require.EqualValues(t, 5, b.Transactions[0].ID)

	var evs result.Events
	resp, _ = call(t, s, client1, "waitevents", 0)
	checkResult(t, resp, &evs)
	names := make([]string, len(evs.Events))
	for i, e := range evs.Events {
		names[i] = e.Name
	}
	require.Equal(t, []string{
		"Peer.NewPeer", "Peer.AddedActivePeer", "Peer.Blacklisted", "Peer.Deactivated",
		"Peer.Unblacklisted", "Peer.Removed",
		"Transaction.ReleasePhased", "Transaction.RejectPhased", "Transaction.RemovedUnconfirmed",
		"Block.Generated",
	}, names)
	require.Equal(t, []uint64{network.PeerID(peer)}, evs.Events[0].IDs)
	require.Equal(t, []uint64{relay.Hash}, evs.Events[9].IDs)
}

func TestBatchAndMalformedRequests(t *testing.T) {
	s, _ := newTestServer(t, config.RPC{EnableCORSWorkaround: true})

	body := `[{"jsonrpc":"2.0","method":"subscribe","params":[["Block.Pushed"]],"id":1},` +
		`{"jsonrpc":"2.0","method":"submitblock","params":[{"id":"9"}],"id":2},` +
		`{"jsonrpc":"2.0","method":"waitevents","params":[1],"id":3},` +
		`{"jsonrpc":"1.0","method":"waitevents","id":4}]`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(body)))
	req.RemoteAddr = client1
	w := httptest.NewRecorder()
	s.handleHTTPRequest(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var batch []neorpc.Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&batch))
	require.Len(t, batch, 4)
	var evs result.Events
	checkResult(t, &batch[2], &evs)
	require.Equal(t, []uint64{9}, evs.Events[0].IDs)
	checkErrCode(t, &batch[3], neorpc.InvalidParamsCode)

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte(`{"jsonrpc":`)))
	w = httptest.NewRecorder()
	s.handleHTTPRequest(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	s.handleHTTPRequest(w, req)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	w = httptest.NewRecorder()
	s.handleHTTPRequest(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "POST", w.Header().Get("Access-Control-Allow-Methods"))
}

func TestRemoteHost(t *testing.T) {
	require.Equal(t, "10.0.0.1", remoteHost("10.0.0.1:5"))
	require.Equal(t, "::1", remoteHost("[::1]:5"))
	require.Equal(t, "pipe", remoteHost("pipe"))
}
