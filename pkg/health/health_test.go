package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passingCheck() CheckFunc {
	return func(_ context.Context) error {
		return nil
	}
}

func failingCheck(msg string) CheckFunc {
	return func(_ context.Context) error {
		return errors.New(msg)
	}
}

func runN(c *check, n int) {
	for range n {
		c.run(context.Background())
	}
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, probeBody) {
	t.Helper()

	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		check      CheckFunc
		opts       []CheckOption
		runs       int
		wantStatus int
		wantChecks map[string]string
	}{
		{name: "NoRuns", check: failingCheck("down"), wantStatus: http.StatusOK},
		{name: "Passing", check: passingCheck(), runs: 3, wantStatus: http.StatusOK},
		{name: "BelowThreshold", check: failingCheck("temporary"), runs: 2, wantStatus: http.StatusOK},
		{
			name:       "AtThreshold",
			check:      failingCheck("connection refused"),
			runs:       3,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "connection refused"},
		},
		{
			name:       "CustomThreshold",
			check:      failingCheck("connection refused"),
			opts:       []CheckOption{WithFailureThreshold(1)},
			runs:       1,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"postgres": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLivenessCheck("postgres", time.Second, tt.check, tt.opts...)
			runN(h.liveness[0], tt.runs)

			status, body := probe(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantChecks == nil {
				assert.Equal(t, "ok", body.Status)
				assert.Empty(t, body.Checks)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
				assert.Equal(t, tt.wantChecks, body.Checks)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, passingCheck())
	h.AddReadinessCheck("cache", time.Second, failingCheck("cache miss"))

	status, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]string{"_readiness": "service is not ready"}, body.Checks)

	h.SetReady(true)
	status, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, status)

	runN(h.readiness[1], 3)
	status, body = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]string{"cache": "cache miss"}, body.Checks)

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestAPIEndpoint(t *testing.T) {
	h := New()
	h.now = func() time.Time { return time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC) }
	h.AddReadinessCheck("postgres", time.Second, failingCheck("no route to host"), WithFailureThreshold(1))

	serve := func() (int, map[string]any) {
		w := httptest.NewRecorder()
		h.APIEndpoint(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return w.Code, body
	}

	h.SetReady(true)
	status, body := serve()
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{
		"success":   true,
		"message":   "Farm to Cup POS API is running",
		"timestamp": "2024-03-01T01:30:00.000Z",
	}, body)

	runN(h.readiness[0], 1)
	status, body = serve()
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{"postgres": "no route to host"}, body["checks"])
}

func TestCheckRecovery(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}, WithSuccessThreshold(2))
	c := h.liveness[0]

	runN(c, 3)
	assert.Equal(t, "down", c.failure())

	failing = false
	runN(c, 1)
	assert.Equal(t, "down", c.failure(), "one success is below the threshold")
	runN(c, 1)
	assert.Empty(t, c.failure())
}

func TestStopCancelsChecks(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, passingCheck())

	h.Start(context.Background(), 100*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	// Stop should not panic and should be idempotent.
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("concurrent", time.Second, failingCheck("err"))
	h.AddReadinessCheck("concurrent", time.Second, passingCheck())
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
				h.APIEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/health", nil))
			}
		})
	}
	wg.Wait()
	h.Stop()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	ok := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck(pingerFunc(func(context.Context) error { return errors.New("refused") }))
	assert.EqualError(t, down(context.Background()), "ping: refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
