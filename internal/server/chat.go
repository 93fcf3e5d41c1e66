package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/luxelabs/concierge/internal/chat"
)

type ChatHandler struct {
	Orch   *chat.Orchestrator
	Logger *log.Logger
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// chat runs one exchange over Server-Sent Events. Validation failures
// and pre-stream pipeline failures return plain JSON errors; once the
// stream is open, failures arrive as a terminal error event instead.
func (h *ChatHandler) chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "sessionId is required")
	}

	sink := newSSESink(c.Response())
	err := h.Orch.HandleMessage(c.Request().Context(), req.SessionID, req.Message, sink)
	if err != nil {
		if sink.opened {
			// should not happen: the orchestrator only returns errors
			// pre-stream. Close the stream honestly anyway.
			h.Logger.Printf("post-stream error: %v", err)
			_ = sink.Error(chat.UserSafeErrorMessage)
			return nil
		}
		h.Logger.Printf("exchange failed pre-stream: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, chat.UserSafeErrorMessage)
	}
	return nil
}

// sseSink writes chat stream events as Server-Sent Events. Headers are
// written lazily on the first event so pre-stream failures can still use
// a plain HTTP status.
type sseSink struct {
	resp    *echo.Response
	flusher http.Flusher
	opened  bool
}

func newSSESink(resp *echo.Response) *sseSink {
	return &sseSink{resp: resp}
}

func (s *sseSink) open() error {
	if s.opened {
		return nil
	}
	flusher, ok := s.resp.Writer.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}
	s.flusher = flusher
	s.resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	s.resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	s.resp.Header().Set("Connection", "keep-alive")
	s.resp.WriteHeader(http.StatusOK)
	s.opened = true
	return nil
}

func (s *sseSink) event(name string, payload any) error {
	if err := s.open(); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := s.resp.Write([]byte("event: " + name + "\ndata: " + string(data) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseSink) Token(text string) error {
	return s.event("token", text)
}

func (s *sseSink) Done(p chat.DonePayload) error {
	return s.event("done", p)
}

func (s *sseSink) Error(message string) error {
	return s.event("error", map[string]string{"message": message})
}
