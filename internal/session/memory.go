package session

import (
	"context"
	"sort"
	"sync"

	"github.com/deepscribe/researchd/internal/research"
)

// MemoryStore is the in-process Store used in development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]research.Session
	reports  map[string]research.ResearchReport
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]research.Session),
		reports:  make(map[string]research.ResearchReport),
	}
}

func (s *MemoryStore) SaveSession(_ context.Context, sess research.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (research.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return research.Session{}, ErrNotFound
	}
	return sess, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]research.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]research.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) SaveReport(_ context.Context, report research.ResearchReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.SessionID] = report
	return nil
}

func (s *MemoryStore) GetReport(_ context.Context, sessionID string) (research.ResearchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[sessionID]
	if !ok {
		return research.ResearchReport{}, ErrNotFound
	}
	return report, nil
}

func (s *MemoryStore) Close() error { return nil }
