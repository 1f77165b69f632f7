package session

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the interview produced a turn.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleCandidate   Role = "candidate"
)

// Turn is one utterance in a session's ordered conversation. Turns are
// append-only while the session is active and totally ordered by Seq.
type Turn struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	Seq        int       `json:"seq"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	ArtifactID string    `json:"artifact_id,omitempty"` // opaque media-store reference
	CreatedAt  time.Time `json:"created_at"`
}
