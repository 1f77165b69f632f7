package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

// Performance signals accepted by AdaptDifficulty.
const (
	SignalHigh   = "high"
	SignalMedium = "medium"
	SignalLow    = "low"
)

var agentTracer = otel.Tracer("interview.internal.agent")

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

// Interviewer is the conversational agent. It assembles prompt context from
// the full ordered turn history, dispatches to the session's configured
// provider, and reports token usage for every call.
//
// Every call receives the complete history; no truncation is applied.
type Interviewer struct {
	registry *Registry
	memory   *memoryStore
	tracker  *tokens.Tracker
	logger   *logging.Logger

	maxTokens   int32
	temperature float32
}

// InterviewerOption configures the Interviewer.
type InterviewerOption func(*Interviewer)

// WithMaxTokens overrides the completion token cap.
func WithMaxTokens(n int32) InterviewerOption {
	return func(i *Interviewer) {
		if n > 0 {
			i.maxTokens = n
		}
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float32) InterviewerOption {
	return func(i *Interviewer) {
		i.temperature = t
	}
}

// NewInterviewer builds the agent over a provider registry, a Redis client
// for per-session memory, and a token tracker.
func NewInterviewer(registry *Registry, redisClient *redis.Client, tracker *tokens.Tracker, logger *logging.Logger, opts ...InterviewerOption) *Interviewer {
	if registry == nil {
		panic("agent: registry cannot be nil")
	}
	if tracker == nil {
		panic("agent: token tracker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	i := &Interviewer{
		registry:    registry,
		memory:      newMemoryStore(redisClient, agentTracer),
		tracker:     tracker,
		logger:      logger,
		maxTokens:   defaultMaxTokens,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Providers lists the provider identifiers the agent can dispatch to.
func (i *Interviewer) Providers() []string {
	return i.registry.Providers()
}

// Initialize resets the per-session conversational memory and stores the
// background summary for prompt construction. Idempotent per session id.
func (i *Interviewer) Initialize(ctx context.Context, sessionID uuid.UUID, cfg session.Config) error {
	if _, err := i.registry.Resolve(cfg.Provider); err != nil {
		return err
	}
	return i.memory.Save(ctx, sessionID, interviewState{
		Provider:   cfg.Provider,
		Model:      cfg.Model,
		Background: cfg.Background,
	})
}

// OpeningTurn produces the first interviewer utterance for a session.
func (i *Interviewer) OpeningTurn(ctx context.Context, sessionID uuid.UUID) (string, error) {
	ctx, span := agentTracer.Start(ctx, "agent.opening_turn")
	defer span.End()
	span.SetAttributes(attribute.String("interview.session_id", sessionID.String()))

	state, err := i.memory.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	messages := []ChatMessage{{
		Role:    ChatRoleUser,
		Content: "Open the interview: greet the candidate briefly, present the design problem, and ask them to begin.",
	}}
	return i.complete(ctx, sessionID, state, messages, "")
}

// Respond produces the next interviewer utterance given the full ordered
// turn history and an optional newly attached artifact reference.
func (i *Interviewer) Respond(ctx context.Context, sessionID uuid.UUID, history []session.Turn, artifactID string) (string, error) {
	ctx, span := agentTracer.Start(ctx, "agent.respond")
	defer span.End()
	span.SetAttributes(
		attribute.String("interview.session_id", sessionID.String()),
		attribute.Int("interview.history_turns", len(history)),
	)

	state, err := i.memory.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	messages := historyMessages(history)
	if strings.TrimSpace(artifactID) != "" {
		messages = append(messages, ChatMessage{Role: ChatRoleSystem, Content: artifactNote(artifactID)})
	}
	return i.complete(ctx, sessionID, state, messages, state.Difficulty)
}

// Clarify produces a clarifying follow-up for an ambiguous candidate answer.
func (i *Interviewer) Clarify(ctx context.Context, sessionID uuid.UUID, ambiguousText string) (string, error) {
	ctx, span := agentTracer.Start(ctx, "agent.clarify")
	defer span.End()
	span.SetAttributes(attribute.String("interview.session_id", sessionID.String()))

	state, err := i.memory.Load(ctx, sessionID)
	if err != nil {
		return "", err
	}

	messages := []ChatMessage{{
		Role:    ChatRoleUser,
		Content: fmt.Sprintf("The candidate said something ambiguous: %q. Ask one short clarifying question about what they meant.", ambiguousText),
	}}
	return i.complete(ctx, sessionID, state, messages, state.Difficulty)
}

// AdaptDifficulty records a qualitative performance signal that biases
// subsequent Respond calls. Unknown signals are ignored with a warning;
// the hint is fire-and-forget, so memory write failures are only logged.
func (i *Interviewer) AdaptDifficulty(ctx context.Context, sessionID uuid.UUID, signal string) {
	switch signal {
	case SignalHigh, SignalMedium, SignalLow:
	default:
		i.logger.Warn("ignoring unknown performance signal", "session_id", sessionID, "signal", signal)
		return
	}

	state, err := i.memory.Load(ctx, sessionID)
	if err != nil {
		i.logger.Warn("cannot adapt difficulty for uninitialized session", "session_id", sessionID, "error", err)
		return
	}
	state.Difficulty = signal
	if err := i.memory.Save(ctx, sessionID, state); err != nil {
		i.logger.Warn("failed to persist difficulty hint", "session_id", sessionID, "error", err)
	}
}

func (i *Interviewer) complete(ctx context.Context, sessionID uuid.UUID, state interviewState, messages []ChatMessage, difficulty string) (string, error) {
	client, err := i.registry.Resolve(state.Provider)
	if err != nil {
		return "", err
	}

	system := []string{interviewerSystemPrompt}
	if directive := backgroundDirective(state.Background); directive != "" {
		system = append(system, directive)
	}
	if directive := difficultyDirective(difficulty); directive != "" {
		system = append(system, directive)
	}

	resp, err := client.Complete(ctx, LLMRequest{
		Model:       state.Model,
		System:      system,
		Messages:    messages,
		MaxTokens:   i.maxTokens,
		Temperature: i.temperature,
	})
	if err != nil {
		return "", err
	}

	i.recordUsage(ctx, sessionID, state, resp.Usage)
	return resp.Text, nil
}

func (i *Interviewer) recordUsage(ctx context.Context, sessionID uuid.UUID, state interviewState, usage TokenUsage) {
	if usage.InputTokens == 0 && usage.OutputTokens == 0 {
		return
	}
	if _, err := i.tracker.Record(ctx, sessionID, tokens.OpQuestionGeneration,
		state.Provider, state.Model, usage.InputTokens, usage.OutputTokens); err != nil {
		// Accounting must not break the interview itself.
		i.logger.Error("failed to record token usage", "session_id", sessionID, "error", err)
	}
}

// historyMessages maps the ordered turn history onto chat messages: the
// interviewer speaks as the assistant, the candidate as the user.
func historyMessages(history []session.Turn) []ChatMessage {
	messages := make([]ChatMessage, 0, len(history))
	for _, turn := range history {
		role := ChatRoleUser
		if turn.Role == session.RoleInterviewer {
			role = ChatRoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	return messages
}
