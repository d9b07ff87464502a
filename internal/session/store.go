// Package session persists session records and finished reports so clients
// can poll status and re-fetch reports after the stream ends.
package session

import (
	"context"
	"errors"

	"github.com/deepscribe/researchd/internal/research"
)

// ErrNotFound is returned when a session or report id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// Store is the persistence boundary for sessions and their reports.
type Store interface {
	SaveSession(ctx context.Context, s research.Session) error
	GetSession(ctx context.Context, id string) (research.Session, error)
	ListSessions(ctx context.Context) ([]research.Session, error)
	SaveReport(ctx context.Context, report research.ResearchReport) error
	GetReport(ctx context.Context, sessionID string) (research.ResearchReport, error)
	Close() error
}
