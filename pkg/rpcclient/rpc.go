package rpcclient

import (
	"time"

	"github.com/nspcc-dev/eventbridge/pkg/core/block"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
)

// Subscribe registers the client address for the given events, all events are
// subscribed to if the list is empty. The node replaces the existing session
// unless opts.Add is set.
func (c *Client) Subscribe(events []string, opts neorpc.SubscribeOptions) error {
	var resp bool
	p := []any{events}
	if opts.Add || opts.Replace {
		p = append(p, opts)
	}
	return c.call("subscribe", 0, p, &resp)
}

// Unsubscribe drops subscriptions for the given events, all of them if the
// list is empty.
func (c *Client) Unsubscribe(events []string) error {
	var resp bool
	return c.call("unsubscribe", 0, []any{events}, &resp)
}

// WaitEvents returns events queued for the client or waits for them at most
// timeout (rounded down to seconds). A negative timeout means the node
// default, the request deadline is extended by Options.MaxWaitTimeout then.
func (c *Client) WaitEvents(timeout time.Duration) (*result.Events, error) {
	var (
		resp  = new(result.Events)
		p     []any
		extra = c.opts.MaxWaitTimeout
	)
	if timeout >= 0 {
		p = []any{int(timeout / time.Second)}
		extra = timeout
	}
	if err := c.call("waitevents", extra, p, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SubmitBlock pushes the block to the node chain and returns its id.
func (c *Client) SubmitBlock(b *block.Block) (uint64, error) {
	var resp = new(result.RelayResult)
	if err := c.call("submitblock", 0, []any{b}, resp); err != nil {
		return 0, err
	}
	return resp.Hash, nil
}

// PopBlock removes the chain tip and returns its id.
func (c *Client) PopBlock() (uint64, error) {
	var resp = new(result.RelayResult)
	if err := c.call("popblock", 0, nil, resp); err != nil {
		return 0, err
	}
	return resp.Hash, nil
}

// SendRawTransaction adds the transaction to the node mempool.
func (c *Client) SendRawTransaction(tx *transaction.Transaction) (uint64, error) {
	var resp = new(result.RelayResult)
	if err := c.call("sendrawtransaction", 0, []any{tx}, resp); err != nil {
		return 0, err
	}
	return resp.Hash, nil
}

// GetBlockCount returns the number of blocks in the chain.
func (c *Client) GetBlockCount() (uint32, error) {
	var resp uint32
	if err := c.call("getblockcount", 0, nil, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}

// GetPeers returns the list of nodes the node is aware of.
func (c *Client) GetPeers() (*result.GetPeers, error) {
	var resp = new(result.GetPeers)
	if err := c.call("getpeers", 0, nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
