package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestLogger_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	handler := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rid := rec.Header().Get(echo.HeaderXRequestID)
	if rid == "" {
		t.Fatal("expected X-Request-ID response header")
	}
	if got := RequestIDFromEchoContext(c); got != rid {
		t.Errorf("context request id %q does not match header %q", got, rid)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if line["request_id"] != rid {
		t.Errorf("expected request_id %q in log line, got %v", rid, line["request_id"])
	}
	if line["method"] != http.MethodGet || line["path"] != "/patients" {
		t.Errorf("unexpected access fields: %v", line)
	}
}

func TestLogger_PreservesUpstreamRequestID(t *testing.T) {
	e := echo.New()
	handler := Logger(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "upstream-id-42")
	rec := httptest.NewRecorder()

	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rid := rec.Header().Get(echo.HeaderXRequestID); rid != "upstream-id-42" {
		t.Errorf("expected upstream request id to be preserved, got %q", rid)
	}
}

func TestLogger_ErrorStatusFromHTTPError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	handler := Logger(zerolog.New(&buf))(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_ = handler(e.NewContext(req, httptest.NewRecorder()))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if status, _ := line["status"].(float64); int(status) != http.StatusNotFound {
		t.Errorf("expected logged status 404, got %v", line["status"])
	}
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	handler := Recovery(zerolog.New(&buf))(func(c echo.Context) error {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	err := handler(e.NewContext(req, httptest.NewRecorder()))

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T (%v)", err, err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Error("expected panic value in the log output")
	}
}
