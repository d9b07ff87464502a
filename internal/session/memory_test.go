package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deepscribe/researchd/internal/research"
)

func TestMemoryStoreSessionRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	sess := research.Session{ID: "s1", Topic: "topic", Status: research.StatePlanning, CreatedAt: time.Now()}
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Topic != "topic" || got.Status != research.StatePlanning {
		t.Fatalf("got %+v", got)
	}

	// Overwrite with a later state.
	sess.Status = research.StateComplete
	if err := s.SaveSession(ctx, sess); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetSession(ctx, "s1")
	if got.Status != research.StateComplete {
		t.Fatalf("status = %s, want complete", got.Status)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	if _, err := s.GetSession(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetReport(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListOrderedByCreation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"c", "a", "b"} {
		if err := s.SaveSession(ctx, research.Session{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(got) != 3 || got[0].ID != "c" || got[2].ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestMemoryStoreReportRoundTrip(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	report := research.ResearchReport{SessionID: "s1", Topic: "topic"}
	if err := s.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	got, err := s.GetReport(ctx, "s1")
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got.Topic != "topic" {
		t.Fatalf("got %+v", got)
	}
}
