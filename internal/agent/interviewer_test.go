package agent

import (
	"context"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

type capturingClient struct {
	mu       sync.Mutex
	requests []LLMRequest
	reply    string
}

func (c *capturingClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return LLMResponse{
		Text:  c.reply,
		Usage: TokenUsage{InputTokens: 100, OutputTokens: 40, TotalTokens: 140},
	}, nil
}

func (c *capturingClient) last() LLMRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requests[len(c.requests)-1]
}

type memUsageStore struct {
	mu      sync.Mutex
	records []tokens.UsageRecord
}

func (s *memUsageStore) SaveUsage(ctx context.Context, rec *tokens.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *rec)
	return nil
}

func (s *memUsageStore) ListUsage(ctx context.Context, sessionID uuid.UUID) ([]tokens.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tokens.UsageRecord
	for _, rec := range s.records {
		if rec.SessionID == sessionID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newTestInterviewer(t *testing.T) (*Interviewer, *capturingClient, *memUsageStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	llm := &capturingClient{reply: "Let's design a URL shortener. Where would you start?"}
	registry := NewRegistry()
	registry.Register(ProviderOpenAI, llm)

	usage := &memUsageStore{}
	tracker := tokens.NewTracker(usage, logging.Default())
	return NewInterviewer(registry, redisClient, tracker, logging.Default()), llm, usage
}

func testConfig() session.Config {
	return session.Config{
		Modes:    []session.Mode{session.ModeText},
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
		Background: &session.Background{
			Tier:            session.TierSenior,
			Expertise:       []string{"distributed systems", "storage"},
			YearsExperience: 9,
		},
	}
}

func TestOpeningTurnConditionsOnBackground(t *testing.T) {
	interviewer, llm, usage := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))

	text, err := interviewer.OpeningTurn(ctx, sessionID)
	require.NoError(t, err)
	require.Contains(t, text, "URL shortener")

	req := llm.last()
	require.Equal(t, "gpt-4o-mini", req.Model)
	joined := strings.Join(req.System, "\n")
	require.Contains(t, joined, "senior")
	require.Contains(t, joined, "distributed systems")
	require.Contains(t, joined, "Years of experience: 9")

	require.Len(t, usage.records, 1)
	require.Equal(t, tokens.OpQuestionGeneration, usage.records[0].Operation)
	require.Equal(t, int32(140), usage.records[0].TotalTokens)
}

func TestRespondSendsCompleteHistory(t *testing.T) {
	interviewer, llm, _ := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))

	history := []session.Turn{
		{Role: session.RoleInterviewer, Content: "Design a URL shortener."},
		{Role: session.RoleCandidate, Content: "I'd start with the API surface."},
		{Role: session.RoleInterviewer, Content: "What does redirect lookup hit?"},
		{Role: session.RoleCandidate, Content: "I'd shard by user id"},
	}

	_, err := interviewer.Respond(ctx, sessionID, history, "wb-snap-17")
	require.NoError(t, err)

	req := llm.last()
	require.Len(t, req.Messages, len(history)+1) // history plus artifact note
	require.Equal(t, ChatRoleAssistant, req.Messages[0].Role)
	require.Equal(t, ChatRoleUser, req.Messages[3].Role)
	require.Equal(t, ChatRoleSystem, req.Messages[4].Role)
	require.Contains(t, req.Messages[4].Content, "wb-snap-17")
}

func TestAdaptDifficultyBiasesNextRespond(t *testing.T) {
	interviewer, llm, _ := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))

	interviewer.AdaptDifficulty(ctx, sessionID, SignalLow)

	_, err := interviewer.Respond(ctx, sessionID, []session.Turn{
		{Role: session.RoleCandidate, Content: "Not sure."},
	}, "")
	require.NoError(t, err)

	joined := strings.Join(llm.last().System, "\n")
	require.Contains(t, joined, "struggling")
}

func TestAdaptDifficultyIgnoresUnknownSignal(t *testing.T) {
	interviewer, llm, _ := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))

	interviewer.AdaptDifficulty(ctx, sessionID, "ludicrous")

	_, err := interviewer.Respond(ctx, sessionID, []session.Turn{
		{Role: session.RoleCandidate, Content: "hello"},
	}, "")
	require.NoError(t, err)
	require.NotContains(t, strings.Join(llm.last().System, "\n"), "ludicrous")
}

func TestInitializeIsIdempotent(t *testing.T) {
	interviewer, _, _ := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()

	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))
	interviewer.AdaptDifficulty(ctx, sessionID, SignalHigh)

	// Re-initializing resets memory, clearing the difficulty hint.
	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))
	state, err := interviewer.memory.Load(ctx, sessionID)
	require.NoError(t, err)
	require.Empty(t, state.Difficulty)
}

func TestRespondFailsForUninitializedSession(t *testing.T) {
	interviewer, _, _ := newTestInterviewer(t)
	_, err := interviewer.Respond(context.Background(), uuid.New(), nil, "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not initialized")
}

func TestClarifyRecordsUsage(t *testing.T) {
	interviewer, _, usage := newTestInterviewer(t)
	ctx := context.Background()
	sessionID := uuid.New()
	require.NoError(t, interviewer.Initialize(ctx, sessionID, testConfig()))

	_, err := interviewer.Clarify(ctx, sessionID, "it depends")
	require.NoError(t, err)
	require.Len(t, usage.records, 1)
}
