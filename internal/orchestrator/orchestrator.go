package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/prepview/interview-ai-platform/internal/agent"
	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/observability/metrics"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("interview.internal.orchestrator")

// Orchestrator owns the session lifecycle. It is the only component that
// mutates session state, so every transition funnels through its methods.
// A per-session in-flight guard serializes response submission: turn order
// within a session is the ordering guarantee, not cross-session ordering.
type Orchestrator struct {
	repo        session.Repository
	interviewer *agent.Interviewer
	engine      *evaluation.Engine
	tracker     *tokens.Tracker
	logger      *logging.Logger
	metrics     *metrics.SessionMetrics
	active      ActiveTracker
	now         func() time.Time

	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMetrics wires Prometheus session metrics.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithActiveTracker replaces the default single-slot active-session holder.
func WithActiveTracker(t ActiveTracker) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.active = t
		}
	}
}

// New builds the orchestrator. All dependencies except the logger are hard
// requirements.
func New(repo session.Repository, interviewer *agent.Interviewer, engine *evaluation.Engine, tracker *tokens.Tracker, logger *logging.Logger, opts ...Option) *Orchestrator {
	if repo == nil {
		panic("orchestrator: session repository cannot be nil")
	}
	if interviewer == nil {
		panic("orchestrator: interviewer cannot be nil")
	}
	if engine == nil {
		panic("orchestrator: evaluation engine cannot be nil")
	}
	if tracker == nil {
		panic("orchestrator: token tracker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	o := &Orchestrator{
		repo:        repo,
		interviewer: interviewer,
		engine:      engine,
		tracker:     tracker,
		logger:      logger,
		active:      &singleActiveSession{},
		now:         time.Now,
		inFlight:    make(map[uuid.UUID]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Create validates the configuration and persists a new session in the
// created state. The agent is not touched until Start.
func (o *Orchestrator) Create(ctx context.Context, userID string, cfg session.Config) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.create")
	defer span.End()

	if userID == "" {
		return nil, &session.ConfigurationError{Reason: "user id is required"}
	}
	if err := cfg.Validate(o.interviewer.Providers()); err != nil {
		return nil, err
	}

	sess := &session.Session{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    session.StatusCreated,
		Config:    cfg,
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("orchestrator: failed to persist session: %w", err)
	}
	span.SetAttributes(attribute.String("interview.session_id", sess.ID.String()))
	o.logger.Info("session created",
		"session_id", sess.ID,
		"user_id", userID,
		"provider", cfg.Provider,
		"model", cfg.Model,
	)
	return sess, nil
}

// Start activates a created session and returns the interviewer's opening
// turn. The agent round-trip runs before the transition is persisted: a
// failed opening call leaves the session created, so Start can be retried.
func (o *Orchestrator) Start(ctx context.Context, sessionID uuid.UUID) (*session.Session, *session.Turn, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.start")
	defer span.End()

	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status != session.StatusCreated {
		o.metrics.ObserveTransition("start", "rejected")
		return nil, nil, &session.InvalidStateError{SessionID: sessionID, From: sess.Status, Op: "start"}
	}

	if err := o.interviewer.Initialize(ctx, sessionID, sess.Config); err != nil {
		o.metrics.ObserveTransition("start", "error")
		return nil, nil, err
	}
	opening, err := o.interviewer.OpeningTurn(ctx, sessionID)
	if err != nil {
		o.metrics.ObserveTransition("start", "error")
		return nil, nil, err
	}

	now := o.now().UTC()
	sess.Status = session.StatusActive
	sess.StartedAt = &now
	if err := o.repo.SaveSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: failed to persist session: %w", err)
	}
	o.metrics.ObserveTransition("start", "ok")
	o.active.Activate(sessionID)

	turn := &session.Turn{
		ID:        uuid.New(),
		SessionID: sessionID,
		Seq:       1,
		Role:      session.RoleInterviewer,
		Content:   opening,
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.AppendTurn(ctx, turn); err != nil {
		return nil, nil, fmt.Errorf("orchestrator: failed to persist opening turn: %w", err)
	}
	o.logger.Info("session started", "session_id", sessionID)
	return sess, turn, nil
}

// SubmitResponse records a candidate response and returns the interviewer's
// reply. At most one submission per session is in flight; an overlapping
// call fails immediately instead of queueing. If the agent fails after all
// retries, neither turn is persisted and the session stays active, so the
// candidate can resubmit the same response.
func (o *Orchestrator) SubmitResponse(ctx context.Context, sessionID uuid.UUID, content, artifactID string) (*session.Turn, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.submit_response")
	defer span.End()

	if content == "" {
		return nil, &session.ConfigurationError{Reason: "response content is required"}
	}
	if err := o.acquire(sessionID); err != nil {
		return nil, err
	}
	defer o.release(sessionID)

	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusActive {
		return nil, &session.InvalidStateError{SessionID: sessionID, From: sess.Status, Op: "submit response"}
	}

	turns, err := o.repo.GetTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	candidate := session.Turn{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Seq:        len(turns) + 1,
		Role:       session.RoleCandidate,
		Content:    content,
		ArtifactID: artifactID,
		CreatedAt:  o.now().UTC(),
	}

	started := o.now()
	reply, err := o.interviewer.Respond(ctx, sessionID, append(turns, candidate), artifactID)
	if err != nil {
		o.metrics.ObserveTransition("submit_response", "error")
		return nil, err
	}
	o.metrics.ObserveTurnLatency(sess.Config.Provider, time.Since(started).Seconds())

	if err := o.repo.AppendTurn(ctx, &candidate); err != nil {
		return nil, fmt.Errorf("orchestrator: failed to persist candidate turn: %w", err)
	}
	interviewerTurn := &session.Turn{
		ID:        uuid.New(),
		SessionID: sessionID,
		Seq:       candidate.Seq + 1,
		Role:      session.RoleInterviewer,
		Content:   reply,
		CreatedAt: o.now().UTC(),
	}
	if err := o.repo.AppendTurn(ctx, interviewerTurn); err != nil {
		return nil, fmt.Errorf("orchestrator: failed to persist interviewer turn: %w", err)
	}
	o.metrics.ObserveTransition("submit_response", "ok")
	return interviewerTurn, nil
}

// Clarify rephrases an ambiguous interviewer question without advancing the
// conversation. Nothing is persisted.
func (o *Orchestrator) Clarify(ctx context.Context, sessionID uuid.UUID, ambiguousText string) (string, error) {
	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Status != session.StatusActive {
		return "", &session.InvalidStateError{SessionID: sessionID, From: sess.Status, Op: "clarify"}
	}
	return o.interviewer.Clarify(ctx, sessionID, ambiguousText)
}

// AdaptDifficulty nudges subsequent questions easier or harder. Unknown
// signals are ignored by the agent.
func (o *Orchestrator) AdaptDifficulty(ctx context.Context, sessionID uuid.UUID, signal string) error {
	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != session.StatusActive {
		return &session.InvalidStateError{SessionID: sessionID, From: sess.Status, Op: "adapt difficulty"}
	}
	o.interviewer.AdaptDifficulty(ctx, sessionID, signal)
	return nil
}

// Pause transitions an active session to paused.
func (o *Orchestrator) Pause(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	sess, err := o.transition(ctx, sessionID, session.StatusPaused, "pause", nil)
	if err != nil {
		return nil, err
	}
	o.logger.Info("session paused", "session_id", sessionID)
	return sess, nil
}

// Resume transitions a paused session back to active.
func (o *Orchestrator) Resume(ctx context.Context, sessionID uuid.UUID) (*session.Session, error) {
	sess, err := o.transition(ctx, sessionID, session.StatusActive, "resume", nil)
	if err != nil {
		return nil, err
	}
	o.logger.Info("session resumed", "session_id", sessionID)
	return sess, nil
}

// EndResult is the outcome of ending a session. EvalErr is set when the
// session completed but report generation failed; the session stays
// completed and the report can be regenerated later.
type EndResult struct {
	Session *session.Session
	Report  *evaluation.Report
	EvalErr error
}

// End completes a session from the active or paused state, then triggers
// evaluation. Completion is never rolled back on evaluation failure.
func (o *Orchestrator) End(ctx context.Context, sessionID uuid.UUID) (*EndResult, error) {
	ctx, span := tracer.Start(ctx, "orchestrator.end")
	defer span.End()

	sess, err := o.transition(ctx, sessionID, session.StatusCompleted, "end", func(s *session.Session) {
		now := o.now().UTC()
		s.EndedAt = &now
	})
	if err != nil {
		return nil, err
	}
	o.active.Deactivate(sessionID)
	o.logger.Info("session completed", "session_id", sessionID)

	result := &EndResult{Session: sess}
	report, evalErr := o.engine.Generate(ctx, sessionID)
	if evalErr != nil {
		o.logger.Error("evaluation failed after session end", "session_id", sessionID, "error", evalErr)
		o.metrics.ObserveEvaluation("error")
		result.EvalErr = evalErr
		return result, nil
	}
	o.metrics.ObserveEvaluation("ok")
	result.Report = report
	return result, nil
}

// Evaluate regenerates the report for an already-completed session.
func (o *Orchestrator) Evaluate(ctx context.Context, sessionID uuid.UUID) (*evaluation.Report, error) {
	return o.engine.Generate(ctx, sessionID)
}

// Report returns the stored evaluation report.
func (o *Orchestrator) Report(ctx context.Context, sessionID uuid.UUID) (*evaluation.Report, error) {
	return o.engine.Report(ctx, sessionID)
}

// ActiveSession reports the session currently marked active, if any.
func (o *Orchestrator) ActiveSession() (uuid.UUID, bool) {
	return o.active.Active()
}

// Get returns a session with its transcript.
func (o *Orchestrator) Get(ctx context.Context, sessionID uuid.UUID) (*session.Session, []session.Turn, error) {
	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	turns, err := o.repo.GetTurns(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, turns, nil
}

// List returns sessions matching the filter.
func (o *Orchestrator) List(ctx context.Context, filter session.ListFilter) ([]*session.Session, error) {
	return o.repo.ListSessions(ctx, filter)
}

// Usage returns the session's token totals and per-operation breakdown.
func (o *Orchestrator) Usage(ctx context.Context, sessionID uuid.UUID) (tokens.Totals, map[tokens.Operation]tokens.Totals, error) {
	if _, err := o.repo.GetSession(ctx, sessionID); err != nil {
		return tokens.Totals{}, nil, err
	}
	totals, err := o.tracker.SessionTotals(ctx, sessionID)
	if err != nil {
		return tokens.Totals{}, nil, err
	}
	breakdown, err := o.tracker.Breakdown(ctx, sessionID)
	if err != nil {
		return tokens.Totals{}, nil, err
	}
	return totals, breakdown, nil
}

// transition loads, validates, mutates, and persists one status change.
func (o *Orchestrator) transition(ctx context.Context, sessionID uuid.UUID, next session.Status, op string, mutate func(*session.Session)) (*session.Session, error) {
	sess, err := o.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Status.CanTransitionTo(next) {
		o.metrics.ObserveTransition(op, "rejected")
		return nil, &session.InvalidStateError{SessionID: sessionID, From: sess.Status, Op: op}
	}
	sess.Status = next
	if mutate != nil {
		mutate(sess)
	}
	if err := o.repo.SaveSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("orchestrator: failed to persist session: %w", err)
	}
	o.metrics.ObserveTransition(op, "ok")
	return sess, nil
}

func (o *Orchestrator) acquire(sessionID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return &session.ConcurrentOperationError{SessionID: sessionID}
	}
	o.inFlight[sessionID] = struct{}{}
	return nil
}

func (o *Orchestrator) release(sessionID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, sessionID)
}
