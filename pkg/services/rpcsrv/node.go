package rpcsrv

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/nspcc-dev/eventbridge/pkg/core"
	"github.com/nspcc-dev/eventbridge/pkg/core/mempool"
	"github.com/nspcc-dev/eventbridge/pkg/core/transaction"
	"github.com/nspcc-dev/eventbridge/pkg/encoding/address"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc"
	"github.com/nspcc-dev/eventbridge/pkg/neorpc/result"
	"github.com/nspcc-dev/eventbridge/pkg/network"
	"github.com/nspcc-dev/eventbridge/pkg/services/rpcsrv/params"
)

// generateBlock forges a block out of the mempool, the optional parameter is
// the generator account (address or decimal id).
func (s *Server) generateBlock(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	var generator uint64
	if p := reqParams.Value(0); p != nil && !p.IsNull() {
		str, err := p.GetString()
		if err == nil {
			generator, err = address.ParseAccount(str)
		}
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad generator: %s", err))
		}
	}
	b, err := s.chain.GenerateBlock(c.ctx, generator)
	if err != nil {
		if errors.Is(err, core.ErrBadHeight) {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
		}
		return nil, neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
	}
	return &result.RelayResult{
		Hash: b.ID,
	}, nil
}

// txIDsFromParam parses a non-empty list of decimal transaction ids.
func txIDsFromParam(p *params.Param) ([]uint64, *neorpc.Error) {
	strs, err := p.GetStrings()
	if err == nil && len(strs) == 0 {
		err = errors.New("empty list")
	}
	if err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("transaction id list expected: %s", err))
	}
	ids := make([]uint64, len(strs))
	for i := range strs {
		ids[i], err = strconv.ParseUint(strs[i], 10, 64)
		if err != nil {
			return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad transaction id %q", strs[i]))
		}
	}
	return ids, nil
}

func txIDs(txes []*transaction.Transaction) []string {
	res := make([]string, len(txes))
	for i, tx := range txes {
		res[i] = strconv.FormatUint(tx.ID, 10)
	}
	return res
}

// removeTransaction drops unconfirmed transactions from the mempool and
// returns the ids actually removed.
func (s *Server) removeTransaction(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	ids, respErr := txIDsFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	return txIDs(s.pool.Remove(c.ctx, ids...)), nil
}

func (s *Server) releasePhased(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	ids, respErr := txIDsFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	txes, err := s.pool.ReleasePhased(c.ctx, ids...)
	if err != nil {
		return nil, phasedError(err)
	}
	return txIDs(txes), nil
}

func (s *Server) rejectPhased(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	ids, respErr := txIDsFromParam(reqParams.Value(0))
	if respErr != nil {
		return nil, respErr
	}
	txes, err := s.pool.RejectPhased(c.ctx, ids...)
	if err != nil {
		return nil, phasedError(err)
	}
	return txIDs(txes), nil
}

func phasedError(err error) *neorpc.Error {
	if errors.Is(err, mempool.ErrNotPhased) {
		return neorpc.WrapErrorWithData(neorpc.ErrUnknownTransaction, err.Error())
	}
	return neorpc.NewInternalServerError(err.Error())
}

// peerParams returns the mandatory peer address and the optional second
// string parameter.
func peerParams(reqParams params.Params) (string, string, *neorpc.Error) {
	addr, err := reqParams.Value(0).GetString()
	if err != nil {
		return "", "", neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("peer address expected: %s", err))
	}
	var extra string
	if p := reqParams.Value(1); p != nil && !p.IsNull() {
		if extra, err = p.GetString(); err != nil {
			return "", "", neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad parameter: %s", err))
		}
	}
	return addr, extra, nil
}

func peerError(err error) *neorpc.Error {
	switch {
	case errors.Is(err, network.ErrUnknownPeer):
		return neorpc.WrapErrorWithData(neorpc.ErrUnknownPeer, err.Error())
	case errors.Is(err, network.ErrPeerExists):
		return neorpc.WrapErrorWithData(neorpc.ErrAlreadyExists, err.Error())
	case errors.Is(err, network.ErrBlacklisted):
		return neorpc.WrapErrorWithData(neorpc.ErrValidationFailed, err.Error())
	default:
		return neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, err.Error())
	}
}

// addPeer registers an outbound peer.
func (s *Server) addPeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, _, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, neorpc.WrapErrorWithData(neorpc.ErrInvalidParams, fmt.Sprintf("bad peer address: %s", err))
	}
	if _, err := s.peers.AddPeer(c.ctx, addr, false); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}

// connectPeer marks the peer connected, the second parameter is the version
// it announced.
func (s *Server) connectPeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, version, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if err := s.peers.Connect(c.ctx, addr, version); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}

func (s *Server) disconnectPeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, _, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if err := s.peers.Deactivate(c.ctx, addr); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}

// blacklistPeer blacklists the peer, the second parameter is the cause.
func (s *Server) blacklistPeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, cause, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if cause == "" {
		cause = "manual"
	}
	if err := s.peers.Blacklist(c.ctx, addr, cause); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}

func (s *Server) unblacklistPeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, _, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if err := s.peers.Unblacklist(c.ctx, addr); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}

func (s *Server) removePeer(c *caller, reqParams params.Params) (any, *neorpc.Error) {
	addr, _, respErr := peerParams(reqParams)
	if respErr != nil {
		return nil, respErr
	}
	if err := s.peers.Remove(c.ctx, addr); err != nil {
		return nil, peerError(err)
	}
	return true, nil
}
