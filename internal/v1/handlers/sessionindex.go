package handlers

import (
	"sync"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// sessionIndex maps a live transport session to the player it authenticated
// as, set on a successful JOIN_ROOM/REJOIN_ROOM and cleared on disconnect.
// The transport layer only knows about sessions and rooms; this is the
// thin piece of connection-scoped state the handler layer needs to resolve
// "who is making this request" without round-tripping through the store.
type sessionIndex struct {
	mu        sync.RWMutex
	bySession map[types.SessionID]types.PlayerID
}

func newSessionIndex() *sessionIndex {
	return &sessionIndex{bySession: make(map[types.SessionID]types.PlayerID)}
}

func (s *sessionIndex) set(sid types.SessionID, playerID types.PlayerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySession[sid] = playerID
}

func (s *sessionIndex) get(sid types.SessionID) (types.PlayerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	playerID, ok := s.bySession[sid]
	return playerID, ok
}

func (s *sessionIndex) delete(sid types.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bySession, sid)
}
