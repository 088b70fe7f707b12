package presence

import (
	"sort"

	"github.com/samber/lo"
)

// Handle is the transport side of a live connection. Send must not block;
// it reports false when the frame could not be queued.
type Handle interface {
	Send(frame []byte) bool
	Close()
}

// Registry maps a user id to its single live handle.
// It is not safe for concurrent use: the hub loop owns it.
type Registry struct {
	conns map[string]Handle
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]Handle)} }

// Register inserts or overwrites the mapping for userID and returns the
// handle it replaced, if any. Last registration wins.
func (r *Registry) Register(userID string, h Handle) (prev Handle, replaced bool) {
	prev, replaced = r.conns[userID]
	r.conns[userID] = h
	return prev, replaced
}

// Unregister removes userID. Unknown ids are ignored.
func (r *Registry) Unregister(userID string) {
	delete(r.conns, userID)
}

func (r *Registry) Lookup(userID string) (Handle, bool) {
	h, ok := r.conns[userID]
	return h, ok
}

// SnapshotIDs returns the registered user ids in ascending order.
func (r *Registry) SnapshotIDs() []string {
	ids := lo.Keys(r.conns)
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int { return len(r.conns) }

func (r *Registry) each(fn func(userID string, h Handle)) {
	for id, h := range r.conns {
		fn(id, h)
	}
}
