// Package channel implements the per-card live collaboration fabric: the
// connection registry, the handshake gate and the per-connection session.
package channel

import (
	"encoding/json"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
)

var (
	// ErrPeerClosed is returned by Deliver once a peer has left the channel.
	ErrPeerClosed = errors.New("channel: peer closed") //nolint:gochecknoglobals // sentinel error

	// ErrSlowConsumer is returned by Deliver when a peer's send queue is full.
	ErrSlowConsumer = errors.New("channel: send queue full") //nolint:gochecknoglobals // sentinel error
)

// Peer is one admitted connection. Deliver must not block: it either queues
// msg for the peer's writer or fails.
type Peer interface {
	Deliver(msg []byte) error
}

type peerSet struct {
	mu    sync.Mutex
	peers []Peer // admission order
}

// Registry maps card ids to their live connections. Lock order is
// Registry.mu before peerSet.mu; broadcasts hold only the peerSet lock.
type Registry struct {
	mu       sync.Mutex
	channels map[int64]*peerSet
	owners   map[Peer]int64
	metrics  *Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(metrics *Metrics) *Registry {
	return &Registry{
		channels: make(map[int64]*peerSet),
		owners:   make(map[Peer]int64),
		metrics:  metrics,
	}
}

// Admit registers p under key for userID, creating the channel on first use.
// Admitting the same peer twice is a no-op.
func (r *Registry) Admit(key int64, p Peer, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[key]
	if !ok {
		set = &peerSet{}
		r.channels[key] = set
		r.metrics.channelOpened()
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	if slices.Contains(set.peers, p) {
		return
	}
	set.peers = append(set.peers, p)
	r.owners[p] = userID
	r.metrics.peerAdmitted()
}

// Remove unregisters p from key and drops the channel once it is empty.
// It reports whether p was registered.
func (r *Registry) Remove(key int64, p Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.channels[key]
	if !ok {
		return false
	}

	set.mu.Lock()
	defer set.mu.Unlock()

	idx := slices.Index(set.peers, p)
	if idx < 0 {
		return false
	}
	set.peers = slices.Delete(set.peers, idx, idx+1)
	delete(r.owners, p)
	r.metrics.peerRemoved()

	if len(set.peers) == 0 {
		delete(r.channels, key)
		r.metrics.channelClosed()
	}

	return true
}

// Broadcast sends ev to every peer on key except exclude and returns the
// number of successful deliveries. Peers whose delivery fails are removed;
// the remaining peers still receive the event. Broadcasts on one channel are
// serialized, so every peer observes them in invocation order.
func (r *Registry) Broadcast(key int64, ev domain.Event, exclude Peer) int {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Int64("card_id", key).Msg("channel: marshal event")
		return 0
	}

	r.mu.Lock()
	set, ok := r.channels[key]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	delivered, failed := r.deliver(key, set, msg, exclude)
	if len(failed) > 0 {
		r.forget(key, set, failed)
	}

	r.metrics.eventRelayed()
	return delivered
}

// deliver hands msg to every peer in set except exclude and filters out the
// peers that failed. The set lock is released even if a peer panics.
func (r *Registry) deliver(key int64, set *peerSet, msg []byte, exclude Peer) (delivered int, failed []Peer) {
	set.mu.Lock()
	defer set.mu.Unlock()

	kept := make([]Peer, 0, len(set.peers))
	for _, p := range set.peers {
		if p != exclude {
			if err := p.Deliver(msg); err != nil {
				failed = append(failed, p)
				r.metrics.deliveryFailed()
				log.Warn().Err(err).Int64("card_id", key).Msg("channel: delivery failed, dropping peer")
				continue
			}
			delivered++
		}
		kept = append(kept, p)
	}
	set.peers = kept

	return delivered, failed
}

// forget drops bookkeeping for peers already filtered out of set.
func (r *Registry) forget(key int64, set *peerSet, peers []Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range peers {
		if _, ok := r.owners[p]; ok {
			delete(r.owners, p)
			r.metrics.peerRemoved()
		}
	}

	set.mu.Lock()
	empty := len(set.peers) == 0
	set.mu.Unlock()

	if empty && r.channels[key] == set {
		delete(r.channels, key)
		r.metrics.channelClosed()
	}
}

// Peers returns a snapshot of the peers on key in admission order. The
// boolean is false when no such channel exists.
func (r *Registry) Peers(key int64) ([]Peer, bool) {
	r.mu.Lock()
	set, ok := r.channels[key]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	return slices.Clone(set.peers), true
}

// UserOf returns the user a peer was admitted as.
func (r *Registry) UserOf(p Peer) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.owners[p]
	return id, ok
}

// ChannelCount returns the number of cards with at least one peer.
func (r *Registry) ChannelCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// PeerCount returns the number of admitted peers across all channels.
func (r *Registry) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners)
}
