// Package roomlock provides a per-room mutual-exclusion primitive, one
// sync.Mutex per room id, created lazily. It generalizes the teacher's
// pattern of embedding a mutex directly in an in-memory Room struct (see
// internal/v1/session/room.go's Room.mu) to a table keyed by room id, since
// rooms here are store-backed rather than permanently resident in the
// process's memory (§4.1, §5 of the design).
package roomlock

import (
	"sync"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

type entry struct {
	mu       sync.Mutex
	refCount int
}

// Table hands out one lock per room id. Zero value is ready to use.
type Table struct {
	mu      sync.Mutex
	entries map[types.RoomID]*entry
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{entries: make(map[types.RoomID]*entry)}
}

// Lock acquires the mutex for roomID, creating it if necessary. It returns
// an Unlock function that must be called exactly once to release the lock
// and allow the entry to be garbage-collected once unreferenced.
func (t *Table) Lock(roomID types.RoomID) (unlock func()) {
	t.mu.Lock()
	if t.entries == nil {
		t.entries = make(map[types.RoomID]*entry)
	}
	e, ok := t.entries[roomID]
	if !ok {
		e = &entry{}
		t.entries[roomID] = e
	}
	e.refCount++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		t.mu.Lock()
		e.refCount--
		if e.refCount == 0 {
			delete(t.entries, roomID)
		}
		t.mu.Unlock()
	}
}

// WithLock runs fn with the room's lock held.
func (t *Table) WithLock(roomID types.RoomID, fn func()) {
	unlock := t.Lock(roomID)
	defer unlock()
	fn()
}
