package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/prepview/interview-ai-platform/internal/session"
)

// Interview state lives for the working life of a session; completed
// sessions no longer need it.
const stateTTL = 24 * time.Hour

// interviewState is the per-session conversational memory: the background
// summary captured at initialize time, the provider/model pair the session
// was configured with, and the current difficulty hint.
type interviewState struct {
	Provider   string              `json:"provider"`
	Model      string              `json:"model"`
	Background *session.Background `json:"background,omitempty"`
	Difficulty string              `json:"difficulty,omitempty"`
}

type memoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
}

func newMemoryStore(redisClient *redis.Client, tracer trace.Tracer) *memoryStore {
	if redisClient == nil {
		panic("agent: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("interview.internal.agent.memory")
	}
	return &memoryStore{redis: redisClient, tracer: tracer}
}

func (s *memoryStore) Save(ctx context.Context, sessionID uuid.UUID, state interviewState) error {
	ctx, span := s.tracer.Start(ctx, "agent.save_state")
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("agent: failed to marshal interview state: %w", err)
	}
	if err := s.redis.Set(ctx, stateKey(sessionID), data, stateTTL).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("agent: failed to persist interview state: %w", err)
	}
	return nil
}

func (s *memoryStore) Load(ctx context.Context, sessionID uuid.UUID) (interviewState, error) {
	ctx, span := s.tracer.Start(ctx, "agent.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, stateKey(sessionID)).Bytes()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return interviewState{}, fmt.Errorf("agent: session %s is not initialized", sessionID)
		}
		return interviewState{}, fmt.Errorf("agent: failed to load interview state: %w", err)
	}

	var state interviewState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return interviewState{}, fmt.Errorf("agent: failed to decode interview state: %w", err)
	}
	return state, nil
}

func stateKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("interview:state:%s", sessionID)
}
