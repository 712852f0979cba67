// Package health serves the liveness and readiness probes of the metrics
// endpoint.
//
// /healthz answers 200 whenever the process can serve HTTP at all. /readyz
// answers 200 only while every registered [Checker] passes — in this system
// that is the segment archive's database ping, so a broken archive connection
// shows up as not-ready while the session itself keeps running. Responses are
// JSON with a top-level "status" ("ok" or "fail") and a per-check "checks"
// map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds each readiness check so one stuck dependency cannot
// hang the probe.
const probeTimeout = 5 * time.Second

// Checker is one named readiness check. Check returns nil while the
// dependency is usable and must respect context cancellation.
type Checker struct {
	// Name keys the check in the JSON response (e.g. "archive").
	Name string

	Check func(ctx context.Context) error
}

// report is the JSON body written by both probes.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler answers the /healthz and /readyz routes. The checker list is fixed
// at construction, so a Handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that runs the given checkers, in order, on every
// /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz always reports ok: a process that reached this handler is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker under a [probeTimeout] deadline and reports 503
// when any of them fails, with the per-check outcome in the body.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := report{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}

	respond(w, status, res)
}

// Register adds both probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func respond(w http.ResponseWriter, status int, v report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
