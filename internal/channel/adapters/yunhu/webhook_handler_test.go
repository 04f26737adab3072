package yunhu

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func serveWebhook(t *testing.T, h *WebhookHandler, appID string, body []byte) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/yunhu/"+appID, bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("app_id")
	c.SetParamValues(appID)
	return rec, h.Handle(c)
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	return he.Code
}

func TestWebhookHandlerAcceptsEvent(t *testing.T) {
	t.Parallel()

	handler := &recordingHandler{}
	d, _ := newTestDispatcher(handler)
	h := NewWebhookHandler(nil, d)

	rec, err := serveWebhook(t, h, "bot1", []byte(groupTextEvent))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
	if err := d.Drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(handler.received()) != 1 {
		t.Fatalf("expected one event to be handled")
	}
}

func TestWebhookHandlerUnknownBot(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&recordingHandler{})
	_, err := serveWebhook(t, NewWebhookHandler(nil, d), "other", []byte(groupTextEvent))
	if code := httpStatus(t, err); code != http.StatusNotFound {
		t.Fatalf("unexpected status code: %d", code)
	}
}

func TestWebhookHandlerNonObjectBody(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&recordingHandler{})
	rec, err := serveWebhook(t, NewWebhookHandler(nil, d), "bot1", []byte(`[1]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "non-JSON") {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestWebhookHandlerBodyTooLarge(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&recordingHandler{})
	body := bytes.Repeat([]byte("a"), int(webhookMaxBodyBytes)+1)
	_, err := serveWebhook(t, NewWebhookHandler(nil, d), "bot1", body)
	if code := httpStatus(t, err); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("unexpected status code: %d", code)
	}
}

func TestWebhookHandlerRegistersRoute(t *testing.T) {
	t.Parallel()

	d, _ := newTestDispatcher(&recordingHandler{})
	e := echo.New()
	NewWebhookHandler(nil, d).Register(e)

	req := httptest.NewRequest(http.MethodPost, "/yunhu/bot1", strings.NewReader(groupTextEvent))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	_ = d.Drain(context.Background())

	req = httptest.NewRequest(http.MethodPost, "/yunhu/missing", strings.NewReader(groupTextEvent))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
}
