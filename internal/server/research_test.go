package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deepscribe/researchd/config"
	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/session"
)

// scriptedRunner replays a canned event sequence instead of running the
// pipeline. With block set it holds the stream open until cancellation.
type scriptedRunner struct {
	events []research.ProgressEvent
	block  bool
}

func (r *scriptedRunner) NewSession(topic string, depth research.Depth, format string) research.Session {
	return research.Session{ID: "sess-1", Topic: topic, Depth: depth, Format: format, Status: research.StateCreated}
}

func (r *scriptedRunner) Run(ctx context.Context, sess research.Session) <-chan research.ProgressEvent {
	ch := make(chan research.ProgressEvent, len(r.events))
	go func() {
		defer close(ch)
		for _, event := range r.events {
			select {
			case ch <- event:
			case <-ctx.Done():
				return
			}
		}
		if r.block {
			<-ctx.Done()
		}
	}()
	return ch
}

func serverConfig() config.ServerConfig {
	return config.ServerConfig{
		Address:       ":0",
		SSEKeepalive:  time.Minute,
		MaxActiveRuns: 2,
	}
}

func completedReport() research.ResearchReport {
	return research.ResearchReport{
		SessionID: "sess-1",
		Topic:     "solar",
		Sections:  []research.SynthesisSection{{Heading: "Introduction", Body: "Text [1]."}},
		Bibliography: []research.Reference{
			{Number: 1, Text: "Ref."},
		},
		Format: "markdown",
	}
}

func TestStreamResearchEmitsEvents(t *testing.T) {
	t.Parallel()

	report := completedReport()
	runner := &scriptedRunner{events: []research.ProgressEvent{
		{Type: research.EventProgress, Percent: 10, Message: "planning search queries"},
		{Type: research.EventComplete, Percent: 100, Message: "research complete", Report: &report},
	}}
	srv := New(serverConfig(), runner, session.NewMemoryStore(), nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/research/stream?topic=solar&depth=quick", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echoHeaderContentType); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	var eventNames []string
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventNames = append(eventNames, strings.TrimPrefix(line, "event: "))
		}
	}
	want := []string{"session", "progress", "complete"}
	if len(eventNames) != len(want) {
		t.Fatalf("events = %v, want %v", eventNames, want)
	}
	for i := range want {
		if eventNames[i] != want[i] {
			t.Fatalf("events = %v, want %v", eventNames, want)
		}
	}
}

const echoHeaderContentType = "Content-Type"

func TestStreamResearchRequiresTopic(t *testing.T) {
	t.Parallel()

	srv := New(serverConfig(), &scriptedRunner{}, session.NewMemoryStore(), nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/research/stream", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStreamResearchRejectsBadFormat(t *testing.T) {
	t.Parallel()

	srv := New(serverConfig(), &scriptedRunner{}, session.NewMemoryStore(), nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/research/stream?topic=x&format=docx", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCancelEndpointStopsStream(t *testing.T) {
	t.Parallel()

	runner := &scriptedRunner{block: true}
	srv := New(serverConfig(), runner, session.NewMemoryStore(), nil)
	e := srv.Echo()

	done := make(chan struct{})
	go func() {
		defer close(done)
		req := httptest.NewRequest(http.MethodGet, "/api/research/stream?topic=solar", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}()

	// Wait for the run to register, then cancel it.
	deadline := time.After(5 * time.Second)
	for {
		req := httptest.NewRequest(http.MethodPost, "/api/research/sess-1/cancel", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code == http.StatusAccepted {
			break
		}
		select {
		case <-deadline:
			t.Fatal("cancel endpoint never found the active session")
		case <-time.After(10 * time.Millisecond):
		}
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate after cancel")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/research/sess-1/cancel", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel after completion = %d, want 404", rec.Code)
	}
}

func TestGetSession(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	_ = store.SaveSession(context.Background(), research.Session{ID: "s1", Topic: "solar", Status: research.StateComplete})
	srv := New(serverConfig(), &scriptedRunner{}, store, nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/research/s1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got research.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Topic != "solar" {
		t.Fatalf("session = %+v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/research/ghost", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetReportRendersRequestedFormat(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	_ = store.SaveReport(context.Background(), completedReport())
	srv := New(serverConfig(), &scriptedRunner{}, store, nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/research/sess-1/report?format=html", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "<h1") {
		t.Fatalf("html body missing heading: %s", rec.Body.String())
	}
}

func TestExportEndpoint(t *testing.T) {
	t.Parallel()

	srv := New(serverConfig(), &scriptedRunner{}, session.NewMemoryStore(), nil)
	e := srv.Echo()

	payload, _ := json.Marshal(map[string]any{"format": "markdown", "report": completedReport()})
	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "# solar") {
		t.Fatalf("markdown missing title: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(`{"format":"markdown","report":{}}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for empty report", rec.Code)
	}
}

func TestStatsAggregatesSessions(t *testing.T) {
	t.Parallel()

	store := session.NewMemoryStore()
	_ = store.SaveSession(context.Background(), research.Session{ID: "a", Status: research.StateComplete})
	_ = store.SaveSession(context.Background(), research.Session{ID: "b", Status: research.StateComplete})
	_ = store.SaveSession(context.Background(), research.Session{ID: "c", Status: research.StateFailed})
	srv := New(serverConfig(), &scriptedRunner{}, store, nil)
	e := srv.Echo()

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Sessions        int            `json:"sessions"`
		SessionsByState map[string]int `json:"sessions_by_state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Sessions != 3 || got.SessionsByState["complete"] != 2 || got.SessionsByState["failed"] != 1 {
		t.Fatalf("stats = %+v", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	srv := New(serverConfig(), &scriptedRunner{}, session.NewMemoryStore(), nil)
	e := srv.Echo()

	for _, path := range []string{"/healthz", "/api/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rec.Code)
		}
	}
}
