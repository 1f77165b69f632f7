package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/tokens"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &session.Session{
		ID:        uuid.New(),
		UserID:    "user-1",
		Status:    session.StatusCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("got %+v", got)
	}

	// the stored copy is isolated from later caller mutations
	got.Status = session.StatusActive
	again, _ := store.GetSession(ctx, sess.ID)
	if again.Status != session.StatusCreated {
		t.Error("mutating a returned session leaked into the store")
	}

	if _, err := store.GetSession(ctx, uuid.New()); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListOrderingAndPaging(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		user := "alice"
		if i%2 == 1 {
			user = "bob"
		}
		_ = store.SaveSession(ctx, &session.Session{
			ID:        uuid.New(),
			UserID:    user,
			Status:    session.StatusCreated,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	all, err := store.ListSessions(ctx, session.ListFilter{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 sessions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].CreatedAt.After(all[i-1].CreatedAt) {
			t.Fatal("sessions are not newest first")
		}
	}

	alices, _ := store.ListSessions(ctx, session.ListFilter{UserID: "alice"})
	if len(alices) != 3 {
		t.Fatalf("expected 3 sessions for alice, got %d", len(alices))
	}

	page, _ := store.ListSessions(ctx, session.ListFilter{Limit: 2, Offset: 4})
	if len(page) != 1 {
		t.Fatalf("expected 1 session on the last page, got %d", len(page))
	}
	empty, _ := store.ListSessions(ctx, session.ListFilter{Offset: 99})
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}
}

func TestMemoryStoreTurnsSortBySeq(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	for _, seq := range []int{2, 1, 3} {
		_ = store.AppendTurn(ctx, &session.Turn{
			ID:        uuid.New(),
			SessionID: sessionID,
			Seq:       seq,
			Role:      session.RoleCandidate,
			Content:   "answer",
		})
	}

	turns, err := store.GetTurns(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetTurns: %v", err)
	}
	for i, turn := range turns {
		if turn.Seq != i+1 {
			t.Fatalf("turns out of order: %+v", turns)
		}
	}
}

func TestMemoryStoreUsageAndReports(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	sessionID := uuid.New()

	_ = store.SaveUsage(ctx, &tokens.UsageRecord{
		ID:        uuid.New(),
		SessionID: sessionID,
		Operation: tokens.OpEvaluation,
	})
	records, err := store.ListUsage(ctx, sessionID)
	if err != nil || len(records) != 1 {
		t.Fatalf("ListUsage: %v, %d records", err, len(records))
	}

	if _, err := store.GetReport(ctx, sessionID); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before save, got %v", err)
	}
	report := &evaluation.Report{SessionID: sessionID, OverallScore: 72}
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	// overwrite on regeneration
	report2 := &evaluation.Report{SessionID: sessionID, OverallScore: 75}
	_ = store.SaveReport(ctx, report2)
	got, err := store.GetReport(ctx, sessionID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.OverallScore != 75 {
		t.Fatalf("expected the regenerated report, got %+v", got)
	}
}
