package session

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows and pages a session listing. Results are always ordered
// by creation time descending.
type ListFilter struct {
	UserID string // empty means all owners
	Limit  int    // <=0 means repository default
	Offset int
}

// Repository is the persistence contract for sessions and their turns.
// Implementations must return ErrNotFound for unknown ids and keep writes
// atomic per logical operation, scoped by session id.
type Repository interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	ListSessions(ctx context.Context, filter ListFilter) ([]*Session, error)
	AppendTurn(ctx context.Context, t *Turn) error
	GetTurns(ctx context.Context, sessionID uuid.UUID) ([]Turn, error)
}
