package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deepscribe/researchd/internal/export"
	"github.com/deepscribe/researchd/internal/research"
	"github.com/deepscribe/researchd/internal/session"
)

// streamResearch starts a research session and streams its progress as
// Server-Sent Events. The stream ends with a complete or error event; closing
// the connection cancels the run.
func (s *Server) streamResearch(c echo.Context) error {
	topic := strings.TrimSpace(c.QueryParam("topic"))
	if topic == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "topic required")
	}
	depth := research.ParseDepth(c.QueryParam("depth"))
	format, err := export.NormalizeFormat(c.QueryParam("format"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	select {
	case s.active <- struct{}{}:
		defer func() { <-s.active }()
	default:
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many active research sessions")
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	sess := s.runner.NewSession(topic, depth, format)
	s.registerCancel(sess.ID, cancel)
	defer s.unregisterCancel(sess.ID)

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	// Session id first so clients can poll status after a dropped stream.
	writeSSE(resp, flusher, "session", map[string]string{"id": sess.ID})

	keepalive := s.cfg.SSEKeepalive
	if keepalive <= 0 {
		keepalive = 15 * time.Second
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	events := s.runner.Run(ctx, sess)
	for {
		select {
		case <-ctx.Done():
			// Client gone; the coordinator notices the same cancellation.
			return nil
		case <-ticker.C:
			resp.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return nil
			}
			writeSSE(resp, flusher, string(event.Type), event)
		}
	}
}

func writeSSE(resp *echo.Response, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp.Write([]byte("event: " + event + "\n"))
	resp.Write([]byte("data: " + string(data) + "\n\n"))
	flusher.Flush()
}

// cancelSession aborts a running session. The coordinator observes the
// cancellation and moves the session to its cancelled terminal state.
func (s *Server) cancelSession(c echo.Context) error {
	id := c.Param("id")
	if !s.cancelRun(id) {
		return echo.NewHTTPError(http.StatusNotFound, "no active session with that id")
	}
	return c.JSON(http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
}

// getSession returns the persisted session record.
func (s *Server) getSession(c echo.Context) error {
	sess, err := s.store.GetSession(c.Request().Context(), c.Param("id"))
	if err == session.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess)
}

// getReport renders a completed session's report in the requested format.
func (s *Server) getReport(c echo.Context) error {
	report, err := s.store.GetReport(c.Request().Context(), c.Param("id"))
	if err == session.ErrNotFound {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return err
	}

	format := c.QueryParam("format")
	if format == "" {
		format = report.Format
	}
	body, contentType, err := export.Render(report, format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Blob(http.StatusOK, contentType, body)
}

type exportRequest struct {
	Format string                  `json:"format"`
	Report research.ResearchReport `json:"report"`
}

// exportReport renders a client-supplied report payload, letting callers
// re-export a report they already hold in another format.
func (s *Server) exportReport(c echo.Context) error {
	var req exportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid export payload")
	}
	if len(req.Report.Sections) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "report has no sections")
	}
	body, contentType, err := export.Render(req.Report, req.Format)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Blob(http.StatusOK, contentType, body)
}

// health reports liveness plus store reachability.
func (s *Server) health(c echo.Context) error {
	status := "ok"
	if _, err := s.store.ListSessions(c.Request().Context()); err != nil {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

// stats aggregates persisted sessions by state.
func (s *Server) stats(c echo.Context) error {
	sessions, err := s.store.ListSessions(c.Request().Context())
	if err != nil {
		return err
	}
	byState := make(map[string]int)
	for _, sess := range sessions {
		byState[string(sess.Status)]++
	}
	return c.JSON(http.StatusOK, map[string]any{
		"sessions":          len(sessions),
		"sessions_by_state": byState,
		"active_runs":       len(s.active),
	})
}
