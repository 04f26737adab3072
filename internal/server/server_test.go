package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/molanp/yunhu-adapter/internal/auth"
)

type routeHandler struct {
	path string
}

func (h routeHandler) Register(e *echo.Echo) {
	e.GET(h.path, func(c echo.Context) error {
		return c.String(http.StatusOK, h.path)
	})
}

type panicHandler struct{}

func (panicHandler) Register(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error {
		panic("boom")
	})
}

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", "", routeHandler{path: "/a"}, nil, routeHandler{path: "/b"})
	if srv.Addr() != ":8080" {
		t.Fatalf("unexpected default addr %q", srv.Addr())
	}
	for _, path := range []string{"/a", "/b"} {
		rec := httptest.NewRecorder()
		srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != path {
			t.Fatalf("path=%s code=%d body=%q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestServerRecoversAndLogsRequests(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	srv := NewServer(log, ":0", "", panicHandler{}, routeHandler{path: "/ok"})

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if !strings.Contains(buf.String(), "uri=/ok") || !strings.Contains(buf.String(), "status=200") {
		t.Fatalf("request was not logged: %q", buf.String())
	}
}

func TestShouldSkipJWT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		method string
		path   string
		want   bool
	}{
		{method: http.MethodGet, path: "/ping", want: true},
		{method: http.MethodHead, path: "/health", want: true},
		{method: http.MethodGet, path: "/metrics", want: true},
		{method: http.MethodPost, path: "/yunhu/bot1", want: true},
		{method: http.MethodGet, path: "/channels", want: true},
		{method: http.MethodGet, path: "/channels/yunhu", want: true},
		{method: http.MethodPost, path: "/channels/yunhu", want: false},
		{method: http.MethodPost, path: "/channels/yunhu/bots/bot1/messages", want: false},
		{method: http.MethodPost, path: "/yunhu/bot1/extra", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipJWT(tc.method, tc.path)
		if got != tc.want {
			t.Fatalf("method=%s path=%q want=%v got=%v", tc.method, tc.path, tc.want, got)
		}
	}
}

func TestServerRequiresTokenWhenSecretSet(t *testing.T) {
	t.Parallel()

	srv := NewServer(nil, "", "secret", routeHandler{path: "/ping"}, routeHandler{path: "/private"})

	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("public route blocked: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	if rec.Code == http.StatusOK {
		t.Fatalf("private route served without token")
	}

	token, _, err := auth.GenerateToken("svc", "", "secret", time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec = httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("token rejected: %d", rec.Code)
	}
}
