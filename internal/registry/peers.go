package registry

import (
	"sync"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
)

// PeerList is the ordered list of trackers to federate with. It has its own
// lock, independent of the Registry one.
type PeerList struct {
	mu    sync.Mutex
	peers []domain.PeerTracker
}

// NewPeerList creates a list seeded with peers.
func NewPeerList(peers []domain.PeerTracker) *PeerList {
	l := &PeerList{}
	l.peers = append(l.peers, peers...)
	return l
}

// Add appends p.
func (l *PeerList) Add(p domain.PeerTracker) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.peers = append(l.peers, p)
}

// RemoveAt deletes the peer at index i and reports whether i was valid.
func (l *PeerList) RemoveAt(i int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.peers) {
		return false
	}
	l.peers = append(l.peers[:i], l.peers[i+1:]...)
	return true
}

// Snapshot returns a copy of the list.
func (l *PeerList) Snapshot() []domain.PeerTracker {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.PeerTracker, len(l.peers))
	copy(out, l.peers)
	return out
}

// Len returns the number of peers.
func (l *PeerList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.peers)
}
