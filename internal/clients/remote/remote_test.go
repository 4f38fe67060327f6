package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tradepost/composite-backend/internal/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func callerFor(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Caller, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	return NewCaller(newTestLogger(t), srv.URL, timeout), srv.Close
}

func TestDoDecodesSuccess(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"ok"}`))
	}, time.Second)
	defer done()

	var out struct {
		Name string `json:"name"`
	}
	if err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, &out); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if out.Name != "ok" {
		t.Fatalf("decoded name: want=ok got=%q", out.Name)
	}
}

func TestDoClassifies404AsNotFound(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"no such item"}`, http.StatusNotFound)
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil)
	if !IsNotFound(err) {
		t.Fatalf("want not-found got %v", err)
	}
}

func TestDoClassifies422WithDetailAsValidation(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["title"],"msg":"required"}]}`))
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodPost, "/x", nil, nil, map[string]string{}, nil)
	if !IsValidation(err) {
		t.Fatalf("want validation got %v", err)
	}
}

func TestDoClassifies422WithoutDetailAsUnavailable(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodPost, "/x", nil, nil, nil, nil)
	if !IsUnavailable(err) {
		t.Fatalf("unstructured 422: want unavailable got %v", err)
	}
}

func TestDoClassifies500AsUnavailable(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil)
	if !IsUnavailable(err) {
		t.Fatalf("want unavailable got %v", err)
	}
}

// A timeout must classify as unavailable, never as not-found: treating a
// slow service as "resource gone" would let callers tear down relations that
// still exist.
func TestDoTimeoutIsUnavailableNotNotFound(t *testing.T) {
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, 20*time.Millisecond)
	defer done()

	err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil)
	if err == nil {
		t.Fatalf("want error from timeout")
	}
	if IsNotFound(err) {
		t.Fatalf("timeout classified as not-found")
	}
	if !IsUnavailable(err) {
		t.Fatalf("want unavailable got %v", err)
	}
}

func TestDoRetriesGetOnServerError(t *testing.T) {
	var calls int
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}, time.Second)
	defer done()

	if err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil); err != nil {
		t.Fatalf("Do after recovery: %v", err)
	}
	if calls != 3 {
		t.Fatalf("attempts: want=3 got=%d", calls)
	}
}

func TestDoHonorsRetryAfterOnThrottle(t *testing.T) {
	var calls int
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}, 5*time.Second)
	defer done()

	start := time.Now()
	if err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil); err != nil {
		t.Fatalf("Do after throttle: %v", err)
	}
	if calls != 2 {
		t.Fatalf("attempts: want=2 got=%d", calls)
	}
	if elapsed := time.Since(start); elapsed < 700*time.Millisecond {
		t.Fatalf("Retry-After not honored: retried after %s", elapsed)
	}
}

func TestDoDoesNotRetryPost(t *testing.T) {
	var calls int
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodPost, "/x", nil, nil, nil, nil)
	if !IsUnavailable(err) {
		t.Fatalf("want unavailable got %v", err)
	}
	if calls != 1 {
		t.Fatalf("attempts: want=1 got=%d", calls)
	}
}

func TestDoDoesNotRetryNotFound(t *testing.T) {
	var calls int
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"detail":"gone"}`, http.StatusNotFound)
	}, time.Second)
	defer done()

	err := caller.Do(context.Background(), http.MethodGet, "/x", nil, nil, nil, nil)
	if !IsNotFound(err) {
		t.Fatalf("want not-found got %v", err)
	}
	if calls != 1 {
		t.Fatalf("attempts: want=1 got=%d", calls)
	}
}

func TestDoForwardsHeaders(t *testing.T) {
	var gotKey string
	caller, done := callerFor(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Idempotency-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}, time.Second)
	defer done()

	headers := http.Header{}
	headers.Set("X-Idempotency-Key", "abc-123")
	if err := caller.Do(context.Background(), http.MethodPost, "/x", nil, headers, nil, nil); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if gotKey != "abc-123" {
		t.Fatalf("idempotency key: want=abc-123 got=%q", gotKey)
	}
}
