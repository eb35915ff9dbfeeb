package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/condoaccess/services/audit"
	"github.com/tech-arch1tect/condoaccess/testutils"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestMiddleware(t *testing.T) {
	e := echo.New()

	t.Run("limits after rate is exhausted", func(t *testing.T) {
		clock := testutils.NewClock(testutils.BaseTime)
		mw := Middleware(&Config{
			Rate:         2,
			Period:       time.Minute,
			KeyGenerator: func(echo.Context) string { return "test-key" },
			Now:          clock.Now,
		})

		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			if err := mw(okHandler)(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
				t.Fatalf("request %d: unexpected error: %v", i+1, err)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
			}
		}

		clock.Advance(20 * time.Second)
		rec := httptest.NewRecorder()
		err := mw(okHandler)(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec))

		httpErr, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("expected echo.HTTPError, got %T", err)
		}
		if httpErr.Code != http.StatusTooManyRequests {
			t.Errorf("expected 429, got %d", httpErr.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != "40" {
			t.Errorf("expected Retry-After 40, got %q", got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
			t.Errorf("expected remaining 0, got %q", got)
		}

		clock.Advance(40 * time.Second)
		rec = httptest.NewRecorder()
		if err := mw(okHandler)(e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)); err != nil {
			t.Errorf("expected new window to allow request, got %v", err)
		}
	})

	t.Run("headers on allowed request", func(t *testing.T) {
		mw := Middleware(&Config{Rate: 5, Now: func() time.Time { return testutils.BaseTime }})
		rec := httptest.NewRecorder()

		if err := mw(okHandler)(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "5" {
			t.Errorf("expected limit 5, got %q", got)
		}
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
			t.Errorf("expected remaining 4, got %q", got)
		}
		want := strconv.FormatInt(testutils.BaseTime.Add(time.Minute).Unix(), 10)
		if got := rec.Header().Get("X-RateLimit-Reset"); got != want {
			t.Errorf("unexpected reset header %q", got)
		}
	})

	t.Run("separate clients have separate budgets", func(t *testing.T) {
		mw := Middleware(&Config{Rate: 1})

		for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = ip + ":1234"
			if err := mw(okHandler)(e.NewContext(req, httptest.NewRecorder())); err != nil {
				t.Errorf("%s: unexpected error %v", ip, err)
			}
		}
	})
}

func TestLogin(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.RateLimit.LoginLimit = 1

	e := echo.New()
	recorder := &entryRecorder{}
	e.POST("/login", okHandler, Login(cfg, NewMemoryStore(), recorder))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.10:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(); rec.Code != http.StatusOK {
		t.Fatalf("expected first login to pass, got %d", rec.Code)
	}
	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(recorder.entries))
	}
	entry := recorder.entries[0]
	if entry.EventType != audit.EventLogin || entry.Success {
		t.Errorf("expected failed login entry, got %+v", entry)
	}
	if entry.Details != "rate limited" || entry.IPAddress != "192.0.2.10" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestLoginWithoutRecorder(t *testing.T) {
	cfg := testutils.GetTestConfig()
	cfg.RateLimit.LoginLimit = 1

	e := echo.New()
	e.POST("/login", okHandler, Login(cfg, NewMemoryStore(), nil))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.11:5555"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, rec.Code)
		}
	}
}

type entryRecorder struct {
	entries []audit.Entry
}

func (r *entryRecorder) Record(_ context.Context, entry audit.Entry) {
	r.entries = append(r.entries, entry)
}

func TestDefaultKeyGenerator(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:4000"

	if got := DefaultKeyGenerator(e.NewContext(req, httptest.NewRecorder())); got != "rate_limit:203.0.113.9" {
		t.Errorf("unexpected key %q", got)
	}
}
