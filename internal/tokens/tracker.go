package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

// Operation categorizes what an LLM call was spent on.
type Operation string

const (
	OpQuestionGeneration Operation = "question_generation"
	OpResponseAnalysis   Operation = "response_analysis"
	OpFeedbackGeneration Operation = "feedback_generation"
	OpEvaluation         Operation = "evaluation"
)

// UsageRecord is one immutable accounting entry, created once per LLM call.
type UsageRecord struct {
	ID           uuid.UUID `json:"id"`
	SessionID    uuid.UUID `json:"session_id"`
	Operation    Operation `json:"operation"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int32     `json:"input_tokens"`
	OutputTokens int32     `json:"output_tokens"`
	TotalTokens  int32     `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	CreatedAt    time.Time `json:"created_at"`
}

// Totals aggregates usage across all records of one session.
type Totals struct {
	InputTokens  int32   `json:"input_tokens"`
	OutputTokens int32   `json:"output_tokens"`
	TotalTokens  int32   `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// Store persists usage records, scoped by session id.
type Store interface {
	SaveUsage(ctx context.Context, rec *UsageRecord) error
	ListUsage(ctx context.Context, sessionID uuid.UUID) ([]UsageRecord, error)
}

// Tracker computes cost estimates and persists usage records. It is pure
// accounting; persistence failures propagate to the caller unretried.
type Tracker struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time
}

// NewTracker builds a tracker over the given store.
func NewTracker(store Store, logger *logging.Logger) *Tracker {
	if store == nil {
		panic("tokens: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{store: store, logger: logger, now: time.Now}
}

// Record computes the cost for one LLM call and persists a usage record.
func (t *Tracker) Record(ctx context.Context, sessionID uuid.UUID, op Operation, provider, model string, inputTokens, outputTokens int32) (*UsageRecord, error) {
	rec := &UsageRecord{
		ID:           uuid.New(),
		SessionID:    sessionID,
		Operation:    op,
		Provider:     provider,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      EstimateCost(provider, model, inputTokens, outputTokens),
		CreatedAt:    t.now().UTC(),
	}
	if err := t.store.SaveUsage(ctx, rec); err != nil {
		return nil, storeFailure("save usage record", err)
	}
	t.logger.Debug("token usage recorded",
		"session_id", sessionID,
		"operation", string(op),
		"model", model,
		"total_tokens", rec.TotalTokens,
	)
	return rec, nil
}

// SessionTotals sums input/output/total tokens and cost across a session.
func (t *Tracker) SessionTotals(ctx context.Context, sessionID uuid.UUID) (Totals, error) {
	records, err := t.store.ListUsage(ctx, sessionID)
	if err != nil {
		return Totals{}, storeFailure("load usage records", err)
	}
	var totals Totals
	for _, rec := range records {
		totals.InputTokens += rec.InputTokens
		totals.OutputTokens += rec.OutputTokens
		totals.TotalTokens += rec.TotalTokens
		totals.CostUSD += rec.CostUSD
	}
	return totals, nil
}

// Breakdown returns per-operation totals for a session.
func (t *Tracker) Breakdown(ctx context.Context, sessionID uuid.UUID) (map[Operation]Totals, error) {
	records, err := t.store.ListUsage(ctx, sessionID)
	if err != nil {
		return nil, storeFailure("load usage records", err)
	}
	breakdown := make(map[Operation]Totals)
	for _, rec := range records {
		totals := breakdown[rec.Operation]
		totals.InputTokens += rec.InputTokens
		totals.OutputTokens += rec.OutputTokens
		totals.TotalTokens += rec.TotalTokens
		totals.CostUSD += rec.CostUSD
		breakdown[rec.Operation] = totals
	}
	return breakdown, nil
}

// storeFailure classifies a usage-store failure as a DataStoreError unless
// the store already did.
func storeFailure(op string, err error) error {
	var dsErr *session.DataStoreError
	if errors.As(err, &dsErr) {
		return err
	}
	return &session.DataStoreError{Op: op, Err: err}
}
