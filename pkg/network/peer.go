package network

import (
	"github.com/twmb/murmur3"
)

// PeerEvent is the type of peer registry event.
type PeerEvent byte

// Peer events fired by Registry.
const (
	AddInbound PeerEvent = iota
	AddedActivePeer
	Blacklisted
	ChangedActivePeer
	Deactivated
	NewPeer
	Removed
	RemoveInbound
	Unblacklisted
)

var peerEventNames = [...]string{
	AddInbound:        "AddInbound",
	AddedActivePeer:   "AddedActivePeer",
	Blacklisted:       "Blacklisted",
	ChangedActivePeer: "ChangedActivePeer",
	Deactivated:       "Deactivated",
	NewPeer:           "NewPeer",
	Removed:           "Removed",
	RemoveInbound:     "RemoveInbound",
	Unblacklisted:     "Unblacklisted",
}

// PeerEvents lists all peer events in declaration order.
func PeerEvents() []PeerEvent {
	res := make([]PeerEvent, len(peerEventNames))
	for i := range res {
		res[i] = PeerEvent(i)
	}
	return res
}

// String implements the fmt.Stringer interface.
func (e PeerEvent) String() string {
	if int(e) < len(peerEventNames) {
		return peerEventNames[e]
	}
	return "unknown"
}

// PeerState is the connection state of a peer.
type PeerState byte

// Peer states.
const (
	NonConnected PeerState = iota
	Connected
	Disconnected
)

func (s PeerState) String() string {
	switch s {
	case Connected:
		return "CONNECTED"
	case Disconnected:
		return "DISCONNECTED"
	default:
		return "NON_CONNECTED"
	}
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s PeerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Peer is a snapshot of a remote node known to the registry. Listeners get
// copies, so they're free to keep them.
type Peer struct {
	ID          uint64    `json:"id,string"`
	Address     string    `json:"address"`
	Inbound     bool      `json:"inbound"`
	State       PeerState `json:"state"`
	Version     string    `json:"version,omitempty"`
	Blacklisted bool      `json:"blacklisted"`
	BlacklistBy string    `json:"blacklistcause,omitempty"`
}

// PeerID derives the numeric peer id from its announced address.
func PeerID(address string) uint64 {
	return murmur3.Sum64([]byte(address))
}

// IsActive tells whether the peer is connected and not blacklisted.
func (p *Peer) IsActive() bool {
	return p.State == Connected && !p.Blacklisted
}
