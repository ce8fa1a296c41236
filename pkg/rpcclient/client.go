/*
Package rpcclient implements a JSON-RPC client of the event bridge node. It
covers event delivery calls (subscribe, unsubscribe, waitevents) and a few
node methods producing events.
*/
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"go.uber.org/atomic"
)

const (
	defaultDialTimeout    = 4 * time.Second
	defaultRequestTimeout = 4 * time.Second
	defaultMaxWaitTimeout = 60 * time.Second
)

// Client talks to a single node endpoint over HTTP JSON-RPC. It's safe for
// concurrent use, every call is an independent HTTP request.
type Client struct {
	cli      *http.Client
	endpoint *url.URL
	ctx      context.Context
	opts     Options

	nextID atomic.Uint64
}

// Options holds client settings, zero values are replaced with defaults
// (4 seconds for timeouts).
type Options struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	// MaxWaitTimeout is the longest wait the node can suspend waitevents
	// for, it's 60 seconds by default.
	MaxWaitTimeout time.Duration
	// Limit total number of connections per host. No limit by default.
	MaxConnsPerHost int
}

// New creates a client for the given endpoint, ctx bounds all of its calls.
func New(ctx context.Context, endpoint string, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("bad endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bad endpoint %q: http(s) URL expected", endpoint)
	}
	setDefault(&opts.DialTimeout, defaultDialTimeout)
	setDefault(&opts.RequestTimeout, defaultRequestTimeout)
	setDefault(&opts.MaxWaitTimeout, defaultMaxWaitTimeout)

	dialer := &net.Dialer{Timeout: opts.DialTimeout}
	return &Client{
		cli: &http.Client{Transport: &http.Transport{
			DialContext:     dialer.DialContext,
			MaxConnsPerHost: opts.MaxConnsPerHost,
		}},
		endpoint: u,
		ctx:      ctx,
		opts:     opts,
	}, nil
}

func setDefault(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Close closes unused underlying networks connections.
func (c *Client) Close() {
	c.cli.CloseIdleConnections()
}

// Endpoint returns the node URL.
func (c *Client) Endpoint() string {
	return c.endpoint.String()
}

// call invokes method and decodes its result into v. The request deadline is
// RequestTimeout plus extra (suspended calls need it). Node errors are
// returned as *neorpc.Error.
func (c *Client) call(method string, extra time.Duration, p []any, v any) error {
	if p == nil {
		p = []any{}
	}
	body, err := json.Marshal(neorpc.Request{
		JSONRPC: neorpc.JSONRPCVersion,
		Method:  method,
		Params:  p,
		ID:      c.nextID.Inc(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.RequestTimeout+extra)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Error responses come with non-200 codes, but they still carry a
	// proper JSON-RPC error which is more specific than the status.
	var raw neorpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d/%s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return fmt.Errorf("JSON decoding: %w", err)
	}
	switch {
	case raw.Error != nil:
		return raw.Error
	case raw.Result == nil:
		return errors.New("no result returned")
	}
	return json.Unmarshal(raw.Result, v)
}

// Ping checks whether the endpoint accepts TCP connections.
func (c *Client) Ping() error {
	conn, err := net.DialTimeout("tcp", c.endpoint.Host, c.opts.DialTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}
