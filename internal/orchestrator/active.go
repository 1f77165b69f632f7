package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// ActiveTracker holds the reference to "the active session": the session
// most recently started and not yet ended. Starting a session displaces
// whatever was held before; ending clears the reference only if it still
// points at that session. Swap in a registry via WithActiveTracker when one
// orchestrator drives several concurrent interviews.
type ActiveTracker interface {
	Activate(sessionID uuid.UUID)
	Deactivate(sessionID uuid.UUID)
	Active() (uuid.UUID, bool)
}

// singleActiveSession is the default tracker: one slot per process.
type singleActiveSession struct {
	mu sync.Mutex
	id uuid.UUID
}

func (s *singleActiveSession) Activate(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = sessionID
}

func (s *singleActiveSession) Deactivate(sessionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == sessionID {
		s.id = uuid.Nil
	}
}

func (s *singleActiveSession) Active() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id, s.id != uuid.Nil
}
