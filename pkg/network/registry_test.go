package network

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	lock   sync.Mutex
	events []string
}

type recordingListener struct {
	r *recorder
	e PeerEvent
}

func (l *recordingListener) Notify(_ context.Context, p *Peer) {
	l.r.lock.Lock()
	l.r.events = append(l.r.events, l.e.String()+" "+p.Address)
	l.r.lock.Unlock()
}

func newRecordedRegistry(t *testing.T) (*Registry, *recorder) {
	r := NewRegistry(nil)
	rec := new(recorder)
	for _, e := range PeerEvents() {
		require.True(t, r.AddListener(&recordingListener{r: rec, e: e}, e))
	}
	return r, rec
}

func TestPeerEventNames(t *testing.T) {
	require.Len(t, PeerEvents(), 9)
	require.Equal(t, "Blacklisted", Blacklisted.String())
	require.Equal(t, "unknown", PeerEvent(100).String())
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	r, rec := newRecordedRegistry(t)

	p, err := r.AddPeer(ctx, "10.0.0.1:7874", true)
	require.NoError(t, err)
	require.Equal(t, PeerID("10.0.0.1:7874"), p.ID)
	_, err = r.AddPeer(ctx, "10.0.0.1:7874", false)
	require.ErrorIs(t, err, ErrPeerExists)

	require.NoError(t, r.Connect(ctx, "10.0.0.1:7874", "1.0"))
	require.NoError(t, r.Connect(ctx, "10.0.0.1:7874", "1.0"))
	require.NoError(t, r.Connect(ctx, "10.0.0.1:7874", "1.1"))
	require.NoError(t, r.Deactivate(ctx, "10.0.0.1:7874"))
	require.NoError(t, r.Blacklist(ctx, "10.0.0.1:7874", "spam"))
	require.ErrorIs(t, r.Connect(ctx, "10.0.0.1:7874", "1.1"), ErrBlacklisted)
	require.NoError(t, r.Unblacklist(ctx, "10.0.0.1:7874"))
	require.NoError(t, r.Remove(ctx, "10.0.0.1:7874"))

	require.Equal(t, []string{
		"NewPeer 10.0.0.1:7874",
		"AddInbound 10.0.0.1:7874",
		"AddedActivePeer 10.0.0.1:7874",
		"ChangedActivePeer 10.0.0.1:7874",
		"Deactivated 10.0.0.1:7874",
		"Blacklisted 10.0.0.1:7874",
		"Unblacklisted 10.0.0.1:7874",
		"Removed 10.0.0.1:7874",
		"RemoveInbound 10.0.0.1:7874",
	}, rec.events)

	_, ok := r.Peer("10.0.0.1:7874")
	require.False(t, ok)
	require.ErrorIs(t, r.Remove(ctx, "10.0.0.1:7874"), ErrUnknownPeer)
}

func TestRegistryBlacklistActive(t *testing.T) {
	ctx := context.Background()
	r, rec := newRecordedRegistry(t)

	_, err := r.AddPeer(ctx, "b:1", false)
	require.NoError(t, err)
	_, err = r.AddPeer(ctx, "a:1", false)
	require.NoError(t, err)
	require.NoError(t, r.Connect(ctx, "b:1", ""))
	require.NoError(t, r.Blacklist(ctx, "b:1", "bad"))
	require.Equal(t, []string{"NewPeer b:1", "NewPeer a:1", "AddedActivePeer b:1", "Blacklisted b:1", "Deactivated b:1"}, rec.events)

	peers := r.Peers()
	require.Len(t, peers, 2)
	require.Equal(t, "a:1", peers[0].Address)
	require.True(t, peers[1].Blacklisted)
	require.False(t, peers[1].IsActive())
}
