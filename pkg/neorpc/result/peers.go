package result

import (
	"net"
	"strconv"

	"github.com/nspcc-dev/eventbridge/pkg/network"
)

type (
	// GetPeers payload for outputting peers in `getpeers` RPC call.
	GetPeers struct {
		Unconnected Peers `json:"unconnected"`
		Connected   Peers `json:"connected"`
		Bad         Peers `json:"bad"`
	}

	// Peers represents a slice of peers.
	Peers []Peer

	// Peer represents a peer.
	Peer struct {
		Address string `json:"address"`
		Port    uint16 `json:"port"`
		ID      uint64 `json:"id,string"`
		Inbound bool   `json:"inbound,omitempty"`
		Version string `json:"version,omitempty"`
	}
)

// NewGetPeers creates a new GetPeers structure.
func NewGetPeers() GetPeers {
	return GetPeers{
		Unconnected: []Peer{},
		Connected:   []Peer{},
		Bad:         []Peer{},
	}
}

// AddPeers sorts registry peers into unconnected, connected and bad ones.
// Peers with addresses that can't be split into host and port are skipped.
func (g *GetPeers) AddPeers(peers []network.Peer) {
	for _, p := range peers {
		host, portStr, err := net.SplitHostPort(p.Address)
		if err != nil {
			continue
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			continue
		}
		rp := Peer{
			Address: host,
			Port:    uint16(port),
			ID:      p.ID,
			Inbound: p.Inbound,
			Version: p.Version,
		}
		switch {
		case p.Blacklisted:
			g.Bad = append(g.Bad, rp)
		case p.IsActive():
			g.Connected = append(g.Connected, rp)
		default:
			g.Unconnected = append(g.Unconnected, rp)
		}
	}
}
