package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/luxelabs/concierge/internal/chat"
	"github.com/luxelabs/concierge/models"
)

func newChatContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestChatRejectsMissingMessage(t *testing.T) {
	h := &ChatHandler{Logger: testLogger()}
	c, _ := newChatContext(`{"sessionId":"s1"}`)

	err := h.chat(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestChatRejectsMissingSessionID(t *testing.T) {
	h := &ChatHandler{Logger: testLogger()}
	c, _ := newChatContext(`{"message":"hello"}`)

	err := h.chat(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestChatRejectsMalformedBody(t *testing.T) {
	h := &ChatHandler{Logger: testLogger()}
	c, _ := newChatContext(`{"message":`)

	err := h.chat(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestSSESinkFraming(t *testing.T) {
	c, rec := newChatContext(`{}`)
	sink := newSSESink(c.Response())

	if err := sink.Token("Hello "); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if err := sink.Token("there"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if err := sink.Done(chat.DonePayload{
		Products:        []models.Product{{ID: "p1", Name: "Smart Watch"}},
		CartProducts:    []models.Product{},
		CompareProducts: []models.Product{},
	}); err != nil {
		t.Fatalf("Done: %v", err)
	}

	if ct := rec.Header().Get(echo.HeaderContentType); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	wantFrames := []string{
		"event: token\ndata: \"Hello \"\n\n",
		"event: token\ndata: \"there\"\n\n",
		"event: done\ndata: {\"products\":[",
	}
	for _, frame := range wantFrames {
		if !strings.Contains(body, frame) {
			t.Fatalf("body missing frame %q:\n%s", frame, body)
		}
	}
	if !strings.Contains(body, `"cartProducts":[]`) || !strings.Contains(body, `"compareProducts":[]`) {
		t.Fatalf("done payload must carry empty arrays, not null:\n%s", body)
	}
}

func TestSSESinkErrorEvent(t *testing.T) {
	c, rec := newChatContext(`{}`)
	sink := newSSESink(c.Response())

	if err := sink.Error(chat.UserSafeErrorMessage); err != nil {
		t.Fatalf("Error: %v", err)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: error\ndata: {\"message\":") {
		t.Fatalf("body = %q", body)
	}
	if !strings.Contains(body, chat.UserSafeErrorMessage) {
		t.Fatalf("error event must carry the user-safe message:\n%s", body)
	}
}

func TestSSESinkHeadersAreLazy(t *testing.T) {
	c, rec := newChatContext(`{}`)
	sink := newSSESink(c.Response())

	if sink.opened {
		t.Fatal("sink must not open before the first event")
	}
	if rec.Header().Get(echo.HeaderContentType) == "text/event-stream" {
		t.Fatal("stream headers must not be written before the first event")
	}
	if err := sink.Token("x"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if !sink.opened {
		t.Fatal("sink must open on the first event")
	}
}
