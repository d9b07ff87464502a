package research

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/deepscribe/researchd/internal/telemetry"
)

// DocumentIndexer builds and queries the per-session chunk index.
type DocumentIndexer interface {
	Index(ctx context.Context, namespace string, docs []SourceDocument) (int, error)
	Search(ctx context.Context, namespace, intent string, k int) ([]RetrievedChunk, error)
}

// SessionPersister is the slice of the session store the coordinator needs.
type SessionPersister interface {
	SaveSession(ctx context.Context, s Session) error
	SaveReport(ctx context.Context, report ResearchReport) error
}

// stateRank enforces the one-directional stage order; a transition to a rank
// at or below the current one is a programming error and is refused.
var stateRank = map[SessionState]int{
	StateCreated:      0,
	StatePlanning:     1,
	StateRetrieving:   2,
	StateScoring:      3,
	StateIndexing:     4,
	StateSynthesizing: 5,
	StateAssembling:   6,
	StateComplete:     7,
	StateFailed:       7,
	StateCancelled:    7,
}

// Coordinator drives one research session through the pipeline stages,
// emitting progress events and persisting session state after every
// transition. A session moves forward only; cancellation and failure are
// terminal.
type Coordinator struct {
	planner     *Planner
	retriever   *Retriever
	scorer      *Scorer
	indexer     DocumentIndexer
	synthesizer *Synthesizer
	vectors     VectorStore
	store       SessionPersister
	logger      *log.Logger
}

func NewCoordinator(planner *Planner, retriever *Retriever, scorer *Scorer, indexer DocumentIndexer, synthesizer *Synthesizer, vectors VectorStore, store SessionPersister, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Coordinator{
		planner:     planner,
		retriever:   retriever,
		scorer:      scorer,
		indexer:     indexer,
		synthesizer: synthesizer,
		vectors:     vectors,
		store:       store,
		logger:      logger,
	}
}

// NewSession builds the initial session record for a topic.
func (c *Coordinator) NewSession(topic string, depth Depth, format string) Session {
	now := time.Now().UTC()
	return Session{
		ID:        uuid.NewString(),
		Topic:     topic,
		Depth:     depth,
		Format:    format,
		Status:    StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Run executes the session pipeline in a goroutine and returns the event
// stream. The channel is closed once the session reaches a terminal state;
// cancelling ctx stops the run at the next stage boundary.
func (c *Coordinator) Run(ctx context.Context, sess Session) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 16)
	go func() {
		defer close(events)
		c.run(ctx, sess, events)
	}()
	return events
}

type runState struct {
	sess   Session
	events chan<- ProgressEvent
}

func (c *Coordinator) run(ctx context.Context, sess Session, events chan<- ProgressEvent) {
	started := time.Now()
	rs := &runState{sess: sess, events: events}
	c.persist(rs)

	report, err := c.pipeline(ctx, rs)

	switch {
	case ctx.Err() != nil:
		c.finish(rs, StateCancelled, "")
		c.logger.Printf("session %s cancelled during %s", rs.sess.ID, rs.sess.Status)
	case err != nil:
		c.finish(rs, StateFailed, err.Error())
		events <- ProgressEvent{Type: EventError, Percent: rs.sess.Progress, Message: err.Error()}
		c.logger.Printf("session %s failed: %v", rs.sess.ID, err)
	default:
		rs.sess.Progress = 100
		c.finish(rs, StateComplete, "")
		events <- ProgressEvent{Type: EventComplete, Percent: 100, Message: "research complete", Report: report}
		telemetry.SessionDuration.Observe(time.Since(started).Seconds())
		c.logger.Printf("session %s complete in %s", rs.sess.ID, time.Since(started).Round(time.Millisecond))
	}

	c.purge(rs.sess.ID)
}

func (c *Coordinator) pipeline(ctx context.Context, rs *runState) (*ResearchReport, error) {
	sess := &rs.sess

	c.transition(rs, StatePlanning, 10, "planning search queries")
	queries := c.planner.Plan(ctx, sess.Topic, sess.Depth)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.transition(rs, StateRetrieving, 20, fmt.Sprintf("retrieving sources for %d queries", len(queries)))
	docs, totalHits, err := c.retriever.Retrieve(ctx, queries)
	if err != nil {
		return nil, err
	}

	c.transition(rs, StateScoring, 45, fmt.Sprintf("scoring %d documents", len(docs)))
	accepted := c.scorer.Score(ctx, sess.Topic, docs)
	if len(accepted) == 0 {
		return nil, ErrNoEvidence
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.transition(rs, StateIndexing, 55, fmt.Sprintf("indexing %d accepted documents", len(accepted)))
	if _, err := c.indexer.Index(ctx, sess.ID, accepted); err != nil {
		return nil, err
	}

	c.transition(rs, StateSynthesizing, 65, "generating report sections")
	outline := c.synthesizer.Sections()
	cm := NewCitationManager()
	sections := make([]SynthesisSection, 0, len(outline))
	for i, heading := range outline {
		section, err := c.synthesizer.Section(ctx, sess.ID, sess.Topic, heading, accepted, cm)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
		// Synthesis spans 65..90; each section advances its share.
		percent := 65 + (i+1)*25/len(outline)
		c.progress(rs, percent, fmt.Sprintf("wrote section %q", heading))
	}

	c.transition(rs, StateAssembling, 95, "assembling report and bibliography")
	report := &ResearchReport{
		SessionID:    sess.ID,
		Topic:        sess.Topic,
		Sections:     sections,
		Bibliography: cm.Bibliography(accepted),
		Format:       sess.Format,
		Metadata: ReportMetadata{
			TotalRetrieved:  totalHits,
			AcceptedSources: len(accepted),
			Depth:           sess.Depth,
			GeneratedAt:     time.Now().UTC(),
		},
	}
	if err := c.store.SaveReport(context.WithoutCancel(ctx), *report); err != nil {
		c.logger.Printf("session %s: persisting report failed: %v", sess.ID, err)
	}
	return report, nil
}

// transition advances the state machine, persists the session and emits a
// progress event. Backward transitions are refused.
func (c *Coordinator) transition(rs *runState, next SessionState, percent int, msg string) {
	if stateRank[next] <= stateRank[rs.sess.Status] && rs.sess.Status != StateCreated {
		c.logger.Printf("session %s: refusing transition %s -> %s", rs.sess.ID, rs.sess.Status, next)
		return
	}
	rs.sess.Status = next
	rs.sess.Progress = percent
	rs.sess.Log = append(rs.sess.Log, msg)
	c.persist(rs)
	rs.events <- ProgressEvent{Type: EventProgress, Percent: percent, Message: msg}
	c.logger.Printf("session %s -> %s (%d%%) %s", rs.sess.ID, next, percent, msg)
}

// progress emits an intra-stage update without changing state.
func (c *Coordinator) progress(rs *runState, percent int, msg string) {
	if percent <= rs.sess.Progress {
		return
	}
	rs.sess.Progress = percent
	c.persist(rs)
	rs.events <- ProgressEvent{Type: EventProgress, Percent: percent, Message: msg}
}

func (c *Coordinator) finish(rs *runState, state SessionState, errMsg string) {
	rs.sess.Status = state
	rs.sess.Error = errMsg
	c.persist(rs)
	telemetry.SessionsTotal.WithLabelValues(string(state)).Inc()
}

func (c *Coordinator) persist(rs *runState) {
	rs.sess.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.SaveSession(ctx, rs.sess); err != nil {
		c.logger.Printf("session %s: persisting state failed: %v", rs.sess.ID, err)
	}
}

// purge drops the session's vector namespace on any terminal state. Uses a
// background context so cancelled sessions still clean up.
func (c *Coordinator) purge(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.vectors.Delete(ctx, sessionID); err != nil {
		c.logger.Printf("session %s: namespace purge failed: %v", sessionID, err)
	}
}
