/*
Package network contains the peer registry of the node. It keeps track of known
remote nodes, their connection and blacklisting state and fires PeerEvent
notifications on every change.
*/
package network

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/nspcc-dev/eventbridge/pkg/core/event"
	"go.uber.org/zap"
)

var (
	// ErrUnknownPeer is returned for operations on peers not in the registry.
	ErrUnknownPeer = errors.New("unknown peer")
	// ErrPeerExists is returned when adding an already known peer.
	ErrPeerExists = errors.New("peer already exists")
	// ErrBlacklisted is returned on attempts to activate a blacklisted peer.
	ErrBlacklisted = errors.New("peer is blacklisted")
)

// Registry is a set of known peers.
type Registry struct {
	lock      sync.RWMutex
	peers     map[string]*Peer
	listeners *event.Listeners[PeerEvent, *Peer]
	log       *zap.Logger
}

// NewRegistry creates an empty peer registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		peers:     make(map[string]*Peer),
		listeners: event.NewListeners[PeerEvent, *Peer](log),
		log:       log,
	}
}

// AddListener registers l for the given event.
func (r *Registry) AddListener(l event.Listener[*Peer], e PeerEvent) bool {
	return r.listeners.AddListener(l, e)
}

// RemoveListener unregisters l from the given event.
func (r *Registry) RemoveListener(l event.Listener[*Peer], e PeerEvent) bool {
	return r.listeners.RemoveListener(l, e)
}

// AddPeer adds a new non-connected peer. Inbound peers also fire AddInbound.
func (r *Registry) AddPeer(ctx context.Context, address string, inbound bool) (*Peer, error) {
	r.lock.Lock()
	if _, ok := r.peers[address]; ok {
		r.lock.Unlock()
		return nil, ErrPeerExists
	}
	p := &Peer{
		ID:      PeerID(address),
		Address: address,
		Inbound: inbound,
	}
	r.peers[address] = p
	snap := *p
	r.lock.Unlock()

	r.log.Debug("new peer", zap.String("address", address), zap.Bool("inbound", inbound))
	r.fire(ctx, NewPeer, &snap)
	if inbound {
		r.fire(ctx, AddInbound, &snap)
	}
	return &snap, nil
}

// Connect marks the peer as connected. It fires AddedActivePeer for a peer
// that was not connected and ChangedActivePeer if the announced version of an
// already connected one changes.
func (r *Registry) Connect(ctx context.Context, address string, version string) error {
	r.lock.Lock()
	p, ok := r.peers[address]
	if !ok {
		r.lock.Unlock()
		return ErrUnknownPeer
	}
	if p.Blacklisted {
		r.lock.Unlock()
		return ErrBlacklisted
	}
	var e PeerEvent
	switch {
	case p.State != Connected:
		e = AddedActivePeer
	case p.Version != version:
		e = ChangedActivePeer
	default:
		r.lock.Unlock()
		return nil
	}
	p.State = Connected
	p.Version = version
	snap := *p
	r.lock.Unlock()

	r.fire(ctx, e, &snap)
	return nil
}

// Deactivate disconnects the peer, it stays known to the registry.
func (r *Registry) Deactivate(ctx context.Context, address string) error {
	r.lock.Lock()
	p, ok := r.peers[address]
	if !ok {
		r.lock.Unlock()
		return ErrUnknownPeer
	}
	if p.State != Connected {
		r.lock.Unlock()
		return nil
	}
	p.State = Disconnected
	snap := *p
	r.lock.Unlock()

	r.fire(ctx, Deactivated, &snap)
	return nil
}

// Blacklist marks the peer as blacklisted and disconnects it.
func (r *Registry) Blacklist(ctx context.Context, address string, cause string) error {
	r.lock.Lock()
	p, ok := r.peers[address]
	if !ok {
		r.lock.Unlock()
		return ErrUnknownPeer
	}
	if p.Blacklisted {
		r.lock.Unlock()
		return nil
	}
	wasActive := p.State == Connected
	p.Blacklisted = true
	p.BlacklistBy = cause
	if wasActive {
		p.State = Disconnected
	}
	snap := *p
	r.lock.Unlock()

	r.log.Info("peer blacklisted", zap.String("address", address), zap.String("cause", cause))
	r.fire(ctx, Blacklisted, &snap)
	if wasActive {
		r.fire(ctx, Deactivated, &snap)
	}
	return nil
}

// Unblacklist lifts the blacklisting.
func (r *Registry) Unblacklist(ctx context.Context, address string) error {
	r.lock.Lock()
	p, ok := r.peers[address]
	if !ok {
		r.lock.Unlock()
		return ErrUnknownPeer
	}
	if !p.Blacklisted {
		r.lock.Unlock()
		return nil
	}
	p.Blacklisted = false
	p.BlacklistBy = ""
	snap := *p
	r.lock.Unlock()

	r.fire(ctx, Unblacklisted, &snap)
	return nil
}

// Remove drops the peer from the registry. Inbound peers also fire
// RemoveInbound.
func (r *Registry) Remove(ctx context.Context, address string) error {
	r.lock.Lock()
	p, ok := r.peers[address]
	if !ok {
		r.lock.Unlock()
		return ErrUnknownPeer
	}
	delete(r.peers, address)
	snap := *p
	r.lock.Unlock()

	r.fire(ctx, Removed, &snap)
	if snap.Inbound {
		r.fire(ctx, RemoveInbound, &snap)
	}
	return nil
}

// Peer returns a copy of the peer with the given address.
func (r *Registry) Peer(address string) (*Peer, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	p, ok := r.peers[address]
	if !ok {
		return nil, false
	}
	snap := *p
	return &snap, true
}

// Peers returns copies of all known peers sorted by address.
func (r *Registry) Peers() []Peer {
	r.lock.RLock()
	res := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		res = append(res, *p)
	}
	r.lock.RUnlock()
	sort.Slice(res, func(i, j int) bool { return res[i].Address < res[j].Address })
	return res
}

func (r *Registry) fire(ctx context.Context, e PeerEvent, p *Peer) {
	r.listeners.Notify(ctx, e, p)
}
