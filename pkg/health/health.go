// Package health serves the liveness and readiness probes and the
// /api/health status used by POS clients.
//
// Checks run in the background, one goroutine per check, and the endpoints
// only read their last outcome. A check turns unhealthy after a run of
// consecutive failures and healthy again after a run of successes, so a
// single slow ping does not flip readiness.
package health

import (
	"context"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc reports the health of one dependency. A nil error is healthy.
type CheckFunc func(ctx context.Context) error

// CheckOption tunes a registered check.
type CheckOption func(c *check)

// WithFailureThreshold sets how many failures in a row mark a check
// unhealthy. Defaults to 3.
func WithFailureThreshold(n int) CheckOption {
	return func(c *check) { c.failAfter = max(n, 1) }
}

// WithSuccessThreshold sets how many successes in a row mark an unhealthy
// check healthy again. Defaults to 1.
func WithSuccessThreshold(n int) CheckOption {
	return func(c *check) { c.recoverAfter = max(n, 1) }
}

// check is a registered CheckFunc and its outcome. streak is owned by the
// goroutine calling run. down and reason are read by the endpoints.
type check struct {
	name         string
	timeout      time.Duration
	fn           CheckFunc
	failAfter    int
	recoverAfter int

	// streak counts consecutive successes when positive and consecutive
	// failures when negative.
	streak int

	down   atomic.Bool
	reason atomic.Pointer[string]
}

func newCheck(name string, timeout time.Duration, fn CheckFunc, opts []CheckOption) *check {
	c := &check{
		name:         name,
		timeout:      timeout,
		fn:           fn,
		failAfter:    3,
		recoverAfter: 1,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// failure returns why the check is unhealthy, or "" while it is healthy.
func (c *check) failure() string {
	if !c.down.Load() {
		return ""
	}
	if r := c.reason.Load(); r != nil {
		return *r
	}
	return "check is unhealthy"
}

// run executes the check once.
func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.fn(ctx); err != nil {
		msg := err.Error()
		c.reason.Store(&msg)
		c.streak = min(c.streak, 0) - 1
		if -c.streak >= c.failAfter {
			c.down.Store(true)
		}
		return
	}
	c.streak = max(c.streak, 0) + 1
	if c.streak >= c.recoverAfter {
		c.down.Store(false)
	}
}

// Health holds the registered checks and the readiness flag.
type Health struct {
	marked atomic.Bool
	now    func() time.Time

	mu        sync.RWMutex
	liveness  []*check
	readiness []*check
	cancel    context.CancelFunc
}

// New creates a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{now: time.Now}
}

// AddLivenessCheck registers a check of the process itself, such as the
// goroutine count. Failing liveness fails /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newCheck(name, timeout, fn, opts))
}

// AddReadinessCheck registers a check of a dependency needed to serve
// traffic, such as the database. Failing readiness fails /readyz and
// /api/health.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc, opts ...CheckOption) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newCheck(name, timeout, fn, opts))
}

// Start runs every registered check now and then every interval until ctx
// is done or Stop is called. Checks added after Start are not run.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := slices.Concat(h.liveness, h.readiness)
	h.mu.Unlock()

	for _, c := range checks {
		go loop(ctx, c, interval)
	}
}

func loop(ctx context.Context, c *check, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.run(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetReady marks the service ready or, during shutdown, not ready.
func (h *Health) SetReady(ready bool) {
	h.marked.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	return len(h.readinessFailures()) == 0
}

// Stop cancels the background checks. It may be called more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

func (h *Health) livenessFailures() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return failures(h.liveness)
}

func (h *Health) readinessFailures() map[string]string {
	h.mu.RLock()
	f := failures(h.readiness)
	h.mu.RUnlock()

	if !h.marked.Load() {
		f["_readiness"] = "service is not ready"
	}
	return f
}

// failures maps the name of every unhealthy check to its last error.
func failures(checks []*check) map[string]string {
	f := make(map[string]string)
	for _, c := range checks {
		if msg := c.failure(); msg != "" {
			f[c.name] = msg
		}
	}
	return f
}

// LiveEndpoint serves /livez: 200 {"status":"ok"}, or 503
// {"status":"unhealthy","checks":{name: error}}.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, h.livenessFailures())
}

// ReadyEndpoint serves /readyz with the same body as LiveEndpoint. A
// service not yet marked ready reports the "_readiness" check.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeProbe(w, h.readinessFailures())
}

// APIEndpoint serves /api/health for POS clients:
//
//	{"success":true,"message":"Farm to Cup POS API is running","timestamp":"..."}
//
// While not ready it returns 503 with success false and the failing checks.
func (h *Health) APIEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.readinessFailures()
	ok := len(failures) == 0

	status, msg := http.StatusOK, "Farm to Cup POS API is running"
	if !ok {
		status, msg = http.StatusServiceUnavailable, "Farm to Cup POS API is not ready"
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("success")
		e.Bool(ok)
		e.FieldStart("message")
		e.Str(msg)
		e.FieldStart("timestamp")
		e.Str(h.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"))
		if !ok {
			e.FieldStart("checks")
			encodeChecks(e, failures)
		}
		e.ObjEnd()
	})
}

func writeProbe(w http.ResponseWriter, failures map[string]string) {
	status := http.StatusOK
	if len(failures) > 0 {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		if len(failures) == 0 {
			e.Str("ok")
		} else {
			e.Str("unhealthy")
			e.FieldStart("checks")
			encodeChecks(e, failures)
		}
		e.ObjEnd()
	})
}

func encodeChecks(e *jx.Encoder, failures map[string]string) {
	e.ObjStart()
	for _, name := range slices.Sorted(maps.Keys(failures)) {
		e.FieldStart(name)
		e.Str(failures[name])
	}
	e.ObjEnd()
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	// The status code is already written, a failed write means the client
	// went away.
	_, _ = w.Write(e.Bytes())
}
