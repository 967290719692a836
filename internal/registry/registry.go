package registry

import (
	"sync"

	"github.com/MrSnakeDoc/npdstracker/internal/domain"
)

// Registry holds the host records in insertion order.
//
// A single mutex covers every read and write: traffic is low compared to the
// network I/O around it. Records are stored by value and handed out as copies,
// so callers never hold a reference into the registry between calls. Slow work
// (probing) must run on a Snapshot, never under the lock.
type Registry struct {
	mu      sync.Mutex
	records []domain.HostRecord
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

// indexLocked returns the position of name or -1. Callers hold mu.
func (r *Registry) indexLocked(name string) int {
	for i := range r.records {
		if r.records[i].Name == name {
			return i
		}
	}
	return -1
}

// Insert appends rec. It fails with ErrDuplicateKey when the name is taken.
func (r *Registry) Insert(rec domain.HostRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(rec.Name) != -1 {
		return domain.ErrDuplicateKey
	}
	r.records = append(r.records, rec)
	return nil
}

// Remove deletes the record called name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i == -1 {
		return false
	}
	r.records = append(r.records[:i], r.records[i+1:]...)
	return true
}

// Lookup returns the index of name, or -1 when it is not registered.
func (r *Registry) Lookup(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.indexLocked(name)
}

// Contains reports whether name is registered.
func (r *Registry) Contains(name string) bool {
	return r.Lookup(name) != -1
}

// Get returns a copy of the record called name.
func (r *Registry) Get(name string) (domain.HostRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i == -1 {
		return domain.HostRecord{}, false
	}
	return r.records[i], true
}

// Snapshot returns a point-in-time copy of all records in registry order.
func (r *Registry) Snapshot() []domain.HostRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.HostRecord, len(r.records))
	copy(out, r.records)
	return out
}

// UpdateByName applies fn to the live record called name. It reports false,
// and does nothing, when the record has been removed in the meantime.
func (r *Registry) UpdateByName(name string, fn func(rec *domain.HostRecord)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(name)
	if i == -1 {
		return false
	}
	fn(&r.records[i])
	return true
}

// EvictWhere removes every record matching pred and returns the removed
// records. The sweep runs from the last index to the first so removals never
// shift an index that is still to be visited.
func (r *Registry) EvictWhere(pred func(rec domain.HostRecord) bool) []domain.HostRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []domain.HostRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		if !pred(r.records[i]) {
			continue
		}
		evicted = append(evicted, r.records[i])
		r.records = append(r.records[:i], r.records[i+1:]...)
	}
	return evicted
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}
