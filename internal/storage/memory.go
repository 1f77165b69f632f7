package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
)

// MemoryStore is an in-process store for local development and tests. It
// implements the same three persistence interfaces as PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]session.Session
	turns    map[uuid.UUID][]session.Turn
	usage    map[uuid.UUID][]tokens.UsageRecord
	reports  map[uuid.UUID]evaluation.Report
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]session.Session),
		turns:    make(map[uuid.UUID][]session.Turn),
		usage:    make(map[uuid.UUID][]tokens.UsageRecord),
		reports:  make(map[uuid.UUID]evaluation.Report),
	}
}

var _ session.Repository = (*MemoryStore)(nil)
var _ tokens.Store = (*MemoryStore)(nil)
var _ evaluation.Store = (*MemoryStore)(nil)

func (s *MemoryStore) SaveSession(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, filter session.ListFilter) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*session.Session
	for id := range s.sessions {
		sess := s.sessions[id]
		if filter.UserID != "" && sess.UserID != filter.UserID {
			continue
		}
		all = append(all, &sess)
	}
	// newest first, matching the Postgres ordering
	sort.Slice(all, func(a, b int) bool {
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			return nil, nil
		}
		all = all[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(all) {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, t *session.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[t.SessionID] = append(s.turns[t.SessionID], *t)
	return nil
}

func (s *MemoryStore) GetTurns(_ context.Context, sessionID uuid.UUID) ([]session.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := append([]session.Turn(nil), s.turns[sessionID]...)
	sort.Slice(turns, func(a, b int) bool { return turns[a].Seq < turns[b].Seq })
	return turns, nil
}

func (s *MemoryStore) SaveUsage(_ context.Context, rec *tokens.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage[rec.SessionID] = append(s.usage[rec.SessionID], *rec)
	return nil
}

func (s *MemoryStore) ListUsage(_ context.Context, sessionID uuid.UUID) ([]tokens.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]tokens.UsageRecord(nil), s.usage[sessionID]...), nil
}

func (s *MemoryStore) SaveReport(_ context.Context, r *evaluation.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.SessionID] = *r
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, sessionID uuid.UUID) (*evaluation.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &r, nil
}
