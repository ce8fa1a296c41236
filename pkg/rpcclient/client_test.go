package rpcclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/stretchr/testify/require"
)

// replyServer answers every request with the given status and body and
// records the last decoded request.
func replyServer(t *testing.T, status int, body string, last *neorpc.Request) *Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		if last != nil {
			require.NoError(t, json.Unmarshal(raw, last))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), srv.URL, Options{})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNew(t *testing.T) {
	for _, bad := range []string{"127.0.0.1:20332", "ws://127.0.0.1:20332", ":bad"} {
		_, err := New(context.Background(), bad, Options{})
		require.Error(t, err, bad)
	}

	c, err := New(context.Background(), "http://127.0.0.1:20332", Options{RequestTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, time.Second, c.opts.RequestTimeout)
	require.Equal(t, defaultDialTimeout, c.opts.DialTimeout)
	require.Equal(t, defaultMaxWaitTimeout, c.opts.MaxWaitTimeout)
}

func TestCall(t *testing.T) {
	t.Run("result", func(t *testing.T) {
		var req neorpc.Request
		c := replyServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":7}`, &req)
		count, err := c.GetBlockCount()
		require.NoError(t, err)
		require.EqualValues(t, 7, count)
		require.Equal(t, "getblockcount", req.Method)
		require.Equal(t, []any{}, req.Params)
		require.EqualValues(t, 1, req.ID)

		_, err = c.GetBlockCount()
		require.NoError(t, err)
		require.EqualValues(t, 2, req.ID)
	})

	t.Run("node error", func(t *testing.T) {
		c := replyServer(t, http.StatusNotFound,
			`{"jsonrpc":"2.0","id":1,"error":{"code":-402,"message":"No session registered"}}`, nil)
		_, err := c.WaitEvents(0)
		require.ErrorIs(t, err, neorpc.ErrNoSessionRegistered)
	})

	t.Run("http error", func(t *testing.T) {
		c := replyServer(t, http.StatusBadGateway, `oops`, nil)
		_, err := c.GetBlockCount()
		require.ErrorContains(t, err, "HTTP 502")
	})

	t.Run("bad json", func(t *testing.T) {
		c := replyServer(t, http.StatusOK, `oops`, nil)
		_, err := c.GetBlockCount()
		require.ErrorContains(t, err, "JSON decoding")
	})

	t.Run("no result", func(t *testing.T) {
		c := replyServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1}`, nil)
		_, err := c.PopBlock()
		require.Error(t, err)
	})
}

func TestSubscribeParams(t *testing.T) {
	var req neorpc.Request
	c := replyServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":true}`, &req)

	require.NoError(t, c.Subscribe([]string{"Block.Pushed"}, neorpc.SubscribeOptions{}))
	require.Equal(t, []any{[]any{"Block.Pushed"}}, req.Params)

	require.NoError(t, c.Subscribe(nil, neorpc.SubscribeOptions{Add: true}))
	require.Equal(t, []any{nil, map[string]any{"add": true}}, req.Params)

	require.NoError(t, c.Unsubscribe([]string{"Peer.NewPeer"}))
	require.Equal(t, "unsubscribe", req.Method)
}

func TestWaitEventsTimeout(t *testing.T) {
	var req neorpc.Request
	c := replyServer(t, http.StatusOK, `{"jsonrpc":"2.0","id":1,"result":{"events":[]}}`, &req)

	_, err := c.WaitEvents(2500 * time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, []any{float64(2)}, req.Params)

	_, err = c.WaitEvents(-1)
	require.NoError(t, err)
	require.Equal(t, []any{}, req.Params)
}
