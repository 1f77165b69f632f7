package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Legal transitions: created->active, active<->paused, active->completed,
// paused->completed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusActive
	case StatusActive:
		return next == StatusPaused || next == StatusCompleted
	case StatusPaused:
		return next == StatusActive || next == StatusCompleted
	default:
		return false
	}
}

// Mode is an enabled communication channel for a session. The core tracks
// modes only by enablement and artifact counts; it never reads media bytes.
type Mode string

const (
	ModeText       Mode = "text"
	ModeAudio      Mode = "audio"
	ModeVideo      Mode = "video"
	ModeWhiteboard Mode = "whiteboard"
	ModeScreen     Mode = "screen"
)

// KnownMode reports whether m is one of the supported communication modes.
func KnownMode(m Mode) bool {
	switch m {
	case ModeText, ModeAudio, ModeVideo, ModeWhiteboard, ModeScreen:
		return true
	}
	return false
}

// ExperienceTier buckets a candidate's seniority for prompt construction.
type ExperienceTier string

const (
	TierJunior    ExperienceTier = "junior"
	TierMid       ExperienceTier = "mid"
	TierSenior    ExperienceTier = "senior"
	TierStaff     ExperienceTier = "staff"
	TierPrincipal ExperienceTier = "principal"
)

// Background is the candidate summary supplied by the external resume
// analyzer at session start. It only biases agent phrasing and difficulty.
type Background struct {
	Tier            ExperienceTier `json:"tier"`
	Expertise       []string       `json:"expertise,omitempty"`
	YearsExperience int            `json:"years_experience"`
}

// Config is the immutable configuration snapshot taken at session creation.
type Config struct {
	Modes      []Mode      `json:"modes"`
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	Background *Background `json:"background,omitempty"`
}

// HasMode reports whether the given communication mode is enabled.
func (c Config) HasMode(m Mode) bool {
	for _, enabled := range c.Modes {
		if enabled == m {
			return true
		}
	}
	return false
}

// Validate checks that the config names at least one known communication mode
// and a resolvable provider/model pair.
func (c Config) Validate(supportedProviders []string) error {
	if len(c.Modes) == 0 {
		return &ConfigurationError{Reason: "at least one communication mode is required"}
	}
	for _, m := range c.Modes {
		if !KnownMode(m) {
			return &ConfigurationError{Reason: "unknown communication mode " + string(m)}
		}
	}
	provider := strings.TrimSpace(c.Provider)
	if provider == "" {
		return &ConfigurationError{Reason: "ai provider is required"}
	}
	found := false
	for _, p := range supportedProviders {
		if p == provider {
			found = true
			break
		}
	}
	if !found {
		return &ConfigurationError{Reason: "unsupported ai provider " + provider}
	}
	if strings.TrimSpace(c.Model) == "" {
		return &ConfigurationError{Reason: "ai model is required"}
	}
	return nil
}

// Session is one practice-interview instance.
type Session struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	Status    Status     `json:"status"`
	Config    Config     `json:"config"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
