package tokens

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

type memUsageStore struct {
	mu      sync.Mutex
	records map[uuid.UUID][]UsageRecord
	failing bool
}

func newMemUsageStore() *memUsageStore {
	return &memUsageStore{records: make(map[uuid.UUID][]UsageRecord)}
}

func (s *memUsageStore) SaveUsage(ctx context.Context, rec *UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("storage: write rejected")
	}
	s.records[rec.SessionID] = append(s.records[rec.SessionID], *rec)
	return nil
}

func (s *memUsageStore) ListUsage(ctx context.Context, sessionID uuid.UUID) ([]UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]UsageRecord(nil), s.records[sessionID]...), nil
}

func TestRecordComputesCost(t *testing.T) {
	store := newMemUsageStore()
	tracker := NewTracker(store, logging.Default())

	sessionID := uuid.New()
	rec, err := tracker.Record(context.Background(), sessionID, OpQuestionGeneration,
		"openai", "gpt-4o-mini", 1000, 2000)
	require.NoError(t, err)
	require.Equal(t, int32(3000), rec.TotalTokens)
	require.InDelta(t, 1.0*0.00015+2.0*0.0006, rec.CostUSD, 1e-9)
	require.Equal(t, OpQuestionGeneration, rec.Operation)
}

func TestRecordUnknownModelUsesDefaultRate(t *testing.T) {
	store := newMemUsageStore()
	tracker := NewTracker(store, logging.Default())

	rec, err := tracker.Record(context.Background(), uuid.New(), OpEvaluation,
		"acme", "quantum-9000", 1000, 1000)
	require.NoError(t, err)
	require.InDelta(t, defaultRate.InputPer1K+defaultRate.OutputPer1K, rec.CostUSD, 1e-9)
}

func TestSessionTotalsMatchesRecords(t *testing.T) {
	store := newMemUsageStore()
	tracker := NewTracker(store, logging.Default())
	ctx := context.Background()

	sessionA := uuid.New()
	sessionB := uuid.New()

	// Interleave records across two sessions; totals must stay per-session.
	_, err := tracker.Record(ctx, sessionA, OpQuestionGeneration, "openai", "gpt-4o", 100, 50)
	require.NoError(t, err)
	_, err = tracker.Record(ctx, sessionB, OpQuestionGeneration, "openai", "gpt-4o", 999, 999)
	require.NoError(t, err)
	_, err = tracker.Record(ctx, sessionA, OpResponseAnalysis, "openai", "gpt-4o", 200, 75)
	require.NoError(t, err)
	_, err = tracker.Record(ctx, sessionA, OpEvaluation, "openai", "gpt-4o", 300, 125)
	require.NoError(t, err)

	totals, err := tracker.SessionTotals(ctx, sessionA)
	require.NoError(t, err)
	require.Equal(t, int32(600), totals.InputTokens)
	require.Equal(t, int32(250), totals.OutputTokens)
	require.Equal(t, int32(850), totals.TotalTokens)
}

func TestBreakdownGroupsByOperation(t *testing.T) {
	store := newMemUsageStore()
	tracker := NewTracker(store, logging.Default())
	ctx := context.Background()
	sessionID := uuid.New()

	_, err := tracker.Record(ctx, sessionID, OpQuestionGeneration, "gemini", "gemini-2.5-flash", 10, 20)
	require.NoError(t, err)
	_, err = tracker.Record(ctx, sessionID, OpQuestionGeneration, "gemini", "gemini-2.5-flash", 30, 40)
	require.NoError(t, err)
	_, err = tracker.Record(ctx, sessionID, OpEvaluation, "gemini", "gemini-2.5-flash", 5, 5)
	require.NoError(t, err)

	breakdown, err := tracker.Breakdown(ctx, sessionID)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	require.Equal(t, int32(100), breakdown[OpQuestionGeneration].TotalTokens)
	require.Equal(t, int32(10), breakdown[OpEvaluation].TotalTokens)
}

func TestRecordPropagatesStoreFailure(t *testing.T) {
	store := newMemUsageStore()
	store.failing = true
	tracker := NewTracker(store, logging.Default())

	_, err := tracker.Record(context.Background(), uuid.New(), OpEvaluation, "openai", "gpt-4o", 1, 1)
	require.Error(t, err)

	var dsErr *session.DataStoreError
	require.ErrorAs(t, err, &dsErr)
	require.Equal(t, "save usage record", dsErr.Op)
}

func TestStoreFailureDoesNotDoubleWrap(t *testing.T) {
	inner := &session.DataStoreError{Op: "save usage record", Err: errors.New("connection reset")}
	require.Equal(t, inner, storeFailure("save usage record", inner))

	wrapped := storeFailure("load usage records", errors.New("connection reset"))
	var dsErr *session.DataStoreError
	require.ErrorAs(t, wrapped, &dsErr)
	require.Equal(t, "load usage records", dsErr.Op)
}
