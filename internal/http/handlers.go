package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/memory"
	"github.com/fyrsmithlabs/teachd/internal/session"
	"github.com/fyrsmithlabs/teachd/internal/speech"
	"github.com/fyrsmithlabs/teachd/internal/workflow"
)

// httpError maps service-layer errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, workflow.ErrNoActiveRun):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrRunAlreadyActive),
		errors.Is(err, workflow.ErrStageNotSuspended),
		errors.Is(err, workflow.ErrRegenerationLimit):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrInvalidDecision),
		errors.Is(err, session.ErrEmptySessionID),
		errors.Is(err, memory.ErrEmptySessionID),
		errors.Is(err, memory.ErrEmptyContent),
		errors.Is(err, speech.ErrEmptyText),
		errors.Is(err, speech.ErrTextTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrClosed), errors.Is(err, speech.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func limitParam(c echo.Context) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// handleCreateSession registers a new teacher session.
func (s *Server) handleCreateSession(c echo.Context) error {
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	sess := &session.Session{
		Title:    req.Title,
		Subjects: req.Subjects,
		Grades:   req.Grades,
		Language: req.Language,
	}
	if err := s.registry.Sessions().CreateSession(c.Request().Context(), sess); err != nil {
		return httpError(err)
	}

	s.logger.Info("session created", zap.String("session_id", sess.ID))
	return c.JSON(http.StatusCreated, sess)
}

func (s *Server) handleListSessions(c echo.Context) error {
	sessions, err := s.registry.Sessions().ListSessions(c.Request().Context(), limitParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sessions)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.registry.Sessions().GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

// handleUpdateSession applies a partial update. Absent fields keep
// their stored values.
func (s *Server) handleUpdateSession(c echo.Context) error {
	var req UpdateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	sess, err := s.registry.Sessions().GetSession(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.Subjects != nil {
		sess.Subjects = *req.Subjects
	}
	if req.Grades != nil {
		sess.Grades = *req.Grades
	}
	if req.Language != nil {
		sess.Language = *req.Language
	}

	if err := s.registry.Sessions().UpdateSession(ctx, sess); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.registry.Sessions().DeleteSession(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListMessages(c echo.Context) error {
	messages, err := s.registry.Sessions().ListMessages(c.Request().Context(), c.Param("id"), limitParam(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messages)
}

// handleAppendMessage records a message. User messages are classified
// so the stored turn carries its intent.
func (s *Server) handleAppendMessage(c echo.Context) error {
	var req AppendMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	role := session.Role(req.Role)
	switch role {
	case session.RoleUser, session.RoleAssistant:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or assistant")
	}

	ctx := c.Request().Context()
	sess, err := s.registry.Sessions().GetSession(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	msg := &session.Message{
		SessionID: sess.ID,
		Role:      role,
		Content:   req.Content,
	}
	if role == session.RoleUser {
		in := s.registry.Classifier().Classify(req.Content, sess.Subjects, sess.Grades)
		msg.Intent = string(in.Type)
	}

	if err := s.registry.Sessions().AppendMessage(ctx, msg); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, msg)
}

// handleStartRun kicks off a workflow run for the session. Classroom
// profile comes from the stored session.
func (s *Server) handleStartRun(c echo.Context) error {
	var req StartRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Trigger) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "trigger field is required")
	}

	ctx := c.Request().Context()
	sess, err := s.registry.Sessions().GetSession(ctx, c.Param("id"))
	if err != nil {
		return httpError(err)
	}

	snap, err := s.registry.Workflow().StartRun(ctx, workflow.StartRequest{
		SessionID:  sess.ID,
		Trigger:    req.Trigger,
		Subjects:   sess.Subjects,
		Grades:     sess.Grades,
		Recipients: req.Recipients,
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusAccepted, snap)
}

func (s *Server) handleRunStatus(c echo.Context) error {
	snap, err := s.registry.Workflow().Status(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleCancelRun(c echo.Context) error {
	if err := s.registry.Workflow().CancelRun(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleResolveCheckpoint(c echo.Context) error {
	var req ResolveCheckpointRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	err := s.registry.Workflow().ResolveCheckpoint(
		c.Request().Context(),
		c.Param("id"),
		c.Param("stage"),
		workflow.Decision(req.Decision),
		req.Payload,
	)
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleClassify(c echo.Context) error {
	var req ClassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message field is required")
	}

	in := s.registry.Classifier().Classify(req.Message, req.Subjects, req.Grades)
	return c.JSON(http.StatusOK, in)
}

func (s *Server) handleSuggestions(c echo.Context) error {
	var subjects []string
	if raw := c.QueryParam("subjects"); raw != "" {
		subjects = strings.Split(raw, ",")
	}

	got := s.registry.Classifier().Suggestions(c.QueryParam("q"), subjects)
	return c.JSON(http.StatusOK, SuggestionsResponse{Suggestions: got})
}

// handleSearchMemory searches a session's memory. Without a query it
// falls back to the most recent items.
func (s *Server) handleSearchMemory(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("id")

	query := c.QueryParam("query")
	if query == "" {
		items := s.registry.Memory().Recent(ctx, sessionID, limitParam(c))
		return c.JSON(http.StatusOK, items)
	}

	items := s.registry.Memory().Search(ctx, sessionID, query)
	return c.JSON(http.StatusOK, items)
}

func (s *Server) handleMemoryStats(c echo.Context) error {
	stats := s.registry.Memory().Stats(c.Request().Context(), c.Param("id"))
	return c.JSON(http.StatusOK, stats)
}

// handleSynthesize renders text to audio through the speech backend.
func (s *Server) handleSynthesize(c echo.Context) error {
	sp := s.registry.Speech()
	if sp == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "speech synthesis not configured")
	}

	var req SynthesizeHTTPRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	audio, err := sp.Synthesize(c.Request().Context(), speech.SynthesizeRequest{
		Text:    req.Text,
		VoiceID: req.VoiceID,
		ModelID: req.ModelID,
	})
	if err != nil {
		return httpError(err)
	}

	return c.Blob(http.StatusOK, "audio/mpeg", audio)
}

func (s *Server) handleVoices(c echo.Context) error {
	sp := s.registry.Speech()
	if sp == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "speech synthesis not configured")
	}

	voices, err := sp.Voices(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, voices)
}
