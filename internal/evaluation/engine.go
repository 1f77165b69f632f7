package evaluation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prepview/interview-ai-platform/internal/agent"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

var evalTracer = otel.Tracer("interview.internal.evaluation")

const (
	evalMaxTokens   = 2048
	evalTemperature = 0.2
	planAreaCount   = 3
)

// confidenceWeight discounts a score by how sure the evaluator was, for
// ranking priority areas only.
var confidenceWeight = map[string]float64{
	ConfidenceHigh:   1.0,
	ConfidenceMedium: 0.75,
	ConfidenceLow:    0.5,
}

// ArtifactCounter reports how many media artifacts the external store holds
// for a session and mode. The engine only ever uses counts, never bytes.
type ArtifactCounter interface {
	CountArtifacts(ctx context.Context, sessionID uuid.UUID, mode session.Mode) (int, error)
}

// Engine generates the scored evaluation report for a completed session.
// Each of its three LLM sub-calls is independently retried (via the registry
// clients) and independently token-tracked; a sub-call whose output cannot
// be parsed falls back to documented defaults without failing the pipeline.
type Engine struct {
	repo      session.Repository
	store     Store
	registry  *agent.Registry
	tracker   *tokens.Tracker
	artifacts ArtifactCounter
	logger    *logging.Logger
	weights   map[string]float64
	now       func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithArtifactCounter wires the external media store's artifact counts into
// communication-mode analysis.
func WithArtifactCounter(counter ArtifactCounter) EngineOption {
	return func(e *Engine) {
		e.artifacts = counter
	}
}

// WithScoreWeights overrides the per-competency weights used for the overall
// score. Competencies without an entry keep weight 1.
func WithScoreWeights(weights map[string]float64) EngineOption {
	return func(e *Engine) {
		e.weights = weights
	}
}

// NewEngine builds an evaluation engine.
func NewEngine(repo session.Repository, store Store, registry *agent.Registry, tracker *tokens.Tracker, logger *logging.Logger, opts ...EngineOption) *Engine {
	if repo == nil {
		panic("evaluation: session repository cannot be nil")
	}
	if store == nil {
		panic("evaluation: report store cannot be nil")
	}
	if registry == nil {
		panic("evaluation: provider registry cannot be nil")
	}
	if tracker == nil {
		panic("evaluation: token tracker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		repo:     repo,
		store:    store,
		registry: registry,
		tracker:  tracker,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generate builds, persists, and returns the evaluation report for a
// completed session. It is idempotent: regenerating overwrites the prior
// report rather than duplicating it.
func (e *Engine) Generate(ctx context.Context, sessionID uuid.UUID) (*Report, error) {
	ctx, span := evalTracer.Start(ctx, "evaluation.generate")
	defer span.End()
	span.SetAttributes(attribute.String("interview.session_id", sessionID.String()))

	sess, err := e.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusCompleted {
		return nil, fmt.Errorf("evaluation: session %s is not completed: %w", sessionID, session.ErrNotFound)
	}

	turns, err := e.repo.GetTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	client, err := e.registry.Resolve(sess.Config.Provider)
	if err != nil {
		return nil, err
	}

	transcript := formatTranscript(turns)

	scores, err := e.competencyAnalysis(ctx, sess, client, transcript)
	if err != nil {
		return nil, err
	}
	feedback, err := e.feedbackCategorization(ctx, sess, client, transcript)
	if err != nil {
		return nil, err
	}
	priorityAreas := rankPriorityAreas(scores)
	plan, err := e.improvementPlan(ctx, sess, client, transcript, priorityAreas)
	if err != nil {
		return nil, err
	}

	report := &Report{
		SessionID:             sessionID,
		OverallScore:          e.overallScore(scores),
		CompetencyScores:      scores,
		Feedback:              feedback,
		Plan:                  plan,
		CommunicationAnalysis: e.modeAnalysis(ctx, sess, turns),
		GeneratedAt:           e.now().UTC(),
	}

	if err := e.store.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("evaluation: failed to persist report: %w", err)
	}
	e.logger.Info("evaluation report generated",
		"session_id", sessionID,
		"overall_score", report.OverallScore,
	)
	return report, nil
}

// Report returns the stored report for a session without regenerating it.
func (e *Engine) Report(ctx context.Context, sessionID uuid.UUID) (*Report, error) {
	return e.store.GetReport(ctx, sessionID)
}

// complete runs one sub-call against the session's provider and records its
// token usage under the given operation category.
func (e *Engine) complete(ctx context.Context, sess *session.Session, client agent.LLMClient, op tokens.Operation, prompt string) (string, error) {
	resp, err := client.Complete(ctx, agent.LLMRequest{
		Model:       sess.Config.Model,
		System:      []string{evaluatorSystemPrompt},
		Messages:    []agent.ChatMessage{{Role: agent.ChatRoleUser, Content: prompt}},
		MaxTokens:   evalMaxTokens,
		Temperature: evalTemperature,
	})
	if err != nil {
		return "", err
	}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		if _, recErr := e.tracker.Record(ctx, sess.ID, op,
			sess.Config.Provider, sess.Config.Model, resp.Usage.InputTokens, resp.Usage.OutputTokens); recErr != nil {
			e.logger.Error("failed to record evaluation token usage", "session_id", sess.ID, "error", recErr)
		}
	}
	return resp.Text, nil
}

func (e *Engine) competencyAnalysis(ctx context.Context, sess *session.Session, client agent.LLMClient, transcript string) (map[string]CompetencyScore, error) {
	text, err := e.complete(ctx, sess, client, tokens.OpResponseAnalysis, competencyPrompt(transcript))
	if err != nil {
		return nil, err
	}

	var wire struct {
		Competencies map[string]struct {
			Score      float64  `json:"score"`
			Confidence string   `json:"confidence"`
			Evidence   []string `json:"evidence"`
		} `json:"competencies"`
	}
	if parseErr := extractJSON(text, &wire); parseErr != nil || len(wire.Competencies) == 0 {
		e.logger.Warn("competency analysis output was unusable, applying defaults",
			"session_id", sess.ID, "error", parseErr)
		return defaultCompetencyScores(), nil
	}

	scores := make(map[string]CompetencyScore, len(Competencies))
	for _, name := range Competencies {
		entry, ok := wire.Competencies[name]
		if !ok {
			scores[name] = defaultCompetencyScore()
			continue
		}
		evidence := entry.Evidence
		if len(evidence) == 0 {
			evidence = []string{"no evidence provided"}
		}
		scores[name] = CompetencyScore{
			Score:      clampScore(entry.Score),
			Confidence: normalizeConfidence(entry.Confidence),
			Evidence:   evidence,
		}
	}
	return scores, nil
}

func (e *Engine) feedbackCategorization(ctx context.Context, sess *session.Session, client agent.LLMClient, transcript string) (Feedback, error) {
	text, err := e.complete(ctx, sess, client, tokens.OpFeedbackGeneration, feedbackPrompt(transcript))
	if err != nil {
		return Feedback{}, err
	}

	var wire Feedback
	if parseErr := extractJSON(text, &wire); parseErr != nil {
		e.logger.Warn("feedback output was unusable, applying defaults",
			"session_id", sess.ID, "error", parseErr)
		return defaultFeedback(), nil
	}
	if len(wire.WentWell) == 0 && len(wire.WentOkay) == 0 && len(wire.NeedsImprovement) == 0 {
		return defaultFeedback(), nil
	}
	return wire, nil
}

func (e *Engine) improvementPlan(ctx context.Context, sess *session.Session, client agent.LLMClient, transcript string, priorityAreas []string) (ImprovementPlan, error) {
	text, err := e.complete(ctx, sess, client, tokens.OpEvaluation, planPrompt(transcript, priorityAreas))
	if err != nil {
		return ImprovementPlan{}, err
	}

	var wire struct {
		Steps     []PlanStep `json:"steps"`
		Resources []string   `json:"resources"`
	}
	if parseErr := extractJSON(text, &wire); parseErr != nil || len(wire.Steps) == 0 {
		e.logger.Warn("improvement plan output was unusable, applying defaults",
			"session_id", sess.ID, "error", parseErr)
		return defaultPlan(priorityAreas), nil
	}
	return ImprovementPlan{
		PriorityAreas: priorityAreas,
		Steps:         wire.Steps,
		Resources:     wire.Resources,
	}, nil
}

// overallScore is the weighted mean of competency scores. All weights
// default to 1, which makes it an unweighted average.
func (e *Engine) overallScore(scores map[string]CompetencyScore) float64 {
	var sum, weightSum float64
	for name, cs := range scores {
		weight := 1.0
		if w, ok := e.weights[name]; ok && w > 0 {
			weight = w
		}
		sum += cs.Score * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// rankPriorityAreas picks the competencies with the lowest
// confidence-weighted scores.
func rankPriorityAreas(scores map[string]CompetencyScore) []string {
	type ranked struct {
		name     string
		weighted float64
	}
	all := make([]ranked, 0, len(scores))
	for name, cs := range scores {
		weight, ok := confidenceWeight[cs.Confidence]
		if !ok {
			weight = confidenceWeight[ConfidenceLow]
		}
		all = append(all, ranked{name: name, weighted: cs.Score * weight})
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].weighted != all[b].weighted {
			return all[a].weighted < all[b].weighted
		}
		return all[a].name < all[b].name
	})

	count := planAreaCount
	if count > len(all) {
		count = len(all)
	}
	areas := make([]string, 0, count)
	for _, r := range all[:count] {
		areas = append(areas, r.name)
	}
	return areas
}

// modeAnalysis synthesizes one short assessment per enabled mode from
// artifact counts, plus an overall sentence.
func (e *Engine) modeAnalysis(ctx context.Context, sess *session.Session, turns []session.Turn) ModeAnalysis {
	var analysis ModeAnalysis
	var parts []string

	candidateTurns := 0
	attachedArtifacts := 0
	for _, turn := range turns {
		if turn.Role == session.RoleCandidate {
			candidateTurns++
			if turn.ArtifactID != "" {
				attachedArtifacts++
			}
		}
	}

	for _, mode := range sess.Config.Modes {
		var summary string
		switch mode {
		case session.ModeText:
			summary = fmt.Sprintf("%d text responses submitted", candidateTurns)
		case session.ModeWhiteboard:
			if attachedArtifacts > 0 {
				summary = fmt.Sprintf("%d whiteboard snapshots attached to responses", attachedArtifacts)
			} else {
				summary = "whiteboard enabled but no snapshots saved"
			}
			analysis.WhiteboardUsage = &summary
		case session.ModeAudio:
			summary = e.countSummary(ctx, sess.ID, mode, "audio recordings captured", "audio enabled but no recordings captured")
			analysis.AudioQuality = &summary
		case session.ModeVideo:
			summary = e.countSummary(ctx, sess.ID, mode, "video segments captured", "video enabled but no segments captured")
			analysis.VideoPresence = &summary
		case session.ModeScreen:
			summary = e.countSummary(ctx, sess.ID, mode, "screen captures saved", "screen sharing enabled but no captures saved")
			analysis.ScreenActivity = &summary
		}
		if mode == session.ModeText {
			analysis.TextActivity = &summary
		}
		parts = append(parts, summary)
	}

	if len(parts) == 0 {
		analysis.Overall = "no communication modes were used in this session"
	} else {
		analysis.Overall = fmt.Sprintf("communication across %d enabled mode(s): %s", len(parts), strings.Join(parts, "; "))
	}
	return analysis
}

func (e *Engine) countSummary(ctx context.Context, sessionID uuid.UUID, mode session.Mode, haveFmt, none string) string {
	if e.artifacts == nil {
		return none
	}
	count, err := e.artifacts.CountArtifacts(ctx, sessionID, mode)
	if err != nil {
		e.logger.Warn("artifact count unavailable", "session_id", sessionID, "mode", string(mode), "error", err)
		return none
	}
	if count == 0 {
		return none
	}
	return fmt.Sprintf("%d %s", count, haveFmt)
}

func defaultCompetencyScore() CompetencyScore {
	return CompetencyScore{
		Score:      50,
		Confidence: ConfidenceLow,
		Evidence:   []string{"analysis was unavailable for this competency"},
	}
}

func defaultCompetencyScores() map[string]CompetencyScore {
	scores := make(map[string]CompetencyScore, len(Competencies))
	for _, name := range Competencies {
		scores[name] = defaultCompetencyScore()
	}
	return scores
}

func defaultFeedback() Feedback {
	return Feedback{
		WentWell: []FeedbackItem{{Description: "feedback analysis was unavailable", Evidence: "the evaluator response could not be parsed"}},
		NeedsImprovement: []FeedbackItem{{
			Description: "re-run the evaluation to get detailed feedback",
			Evidence:    "the evaluator response could not be parsed",
		}},
	}
}

func defaultPlan(priorityAreas []string) ImprovementPlan {
	steps := make([]PlanStep, 0, len(priorityAreas))
	for _, area := range priorityAreas {
		steps = append(steps, PlanStep{
			Description: fmt.Sprintf("review fundamentals of %s and practice one focused exercise", strings.ReplaceAll(area, "_", " ")),
		})
	}
	return ImprovementPlan{PriorityAreas: priorityAreas, Steps: steps}
}
