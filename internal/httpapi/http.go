package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"vhsops/internal/config"
	"vhsops/internal/metrics"
	"vhsops/internal/store"
	"vhsops/internal/tape"
)

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	cfg     config.Config
	svc     *Service
	store   *store.Store // nil when history is disabled
	metrics *metrics.Metrics
	log     *zap.SugaredLogger
}

func NewRouter(cfg config.Config, svc *Service, st *store.Store, m *metrics.Metrics, log *zap.SugaredLogger) *Router {
	return &Router{cfg: cfg, svc: svc, store: st, metrics: m, log: log}
}

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/tapes", r.tapes)
	mux.HandleFunc("/api/tapes/", r.tapeDetail)
	mux.HandleFunc("/api/ops/summary", r.summary)
	mux.HandleFunc("/api/actions/status", r.actionStatus)
	mux.HandleFunc("/api/actions/notes", r.actionNotes)
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/history", r.history)
}

func (r *Router) tapes(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	search := strings.ToLower(q.Get("search"))
	stage := q.Get("stage")
	priority := q.Get("priority")
	hasIssues := q.Get("hasIssues") == "true"

	tapes, err := r.svc.Tapes(req.Context())
	if err != nil {
		r.respondError(w, "Failed to fetch tapes", err)
		return
	}

	filtered := make([]tape.Tape, 0, len(tapes))
	for _, t := range tapes {
		if search != "" && !strings.Contains(strings.ToLower(t.TapeID+" "+t.TapeName), search) {
			continue
		}
		if stage != "" && stage != "all" && string(t.Stage) != stage {
			continue
		}
		if priority != "" && priority != "all" && string(t.Priority) != priority {
			continue
		}
		if hasIssues && len(t.IssueTags) == 0 {
			continue
		}
		filtered = append(filtered, t)
	}
	respondJSON(w, map[string]any{"items": filtered, "total": len(filtered)})
}

func (r *Router) tapeDetail(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/api/tapes/")
	if id == "" {
		http.NotFound(w, req)
		return
	}
	tapes, err := r.svc.Tapes(req.Context())
	if err != nil {
		r.respondError(w, "Failed to fetch tape", err)
		return
	}
	var found *tape.Tape
	for i := range tapes {
		if tapes[i].ID == id {
			found = &tapes[i]
			break
		}
	}
	if found == nil {
		http.Error(w, `{"error":"Tape not found"}`, http.StatusNotFound)
		return
	}
	related := []tape.Tape{}
	for _, t := range tapes {
		if t.ID != found.ID && found.TapeSequence != "" && t.TapeSequence == found.TapeSequence {
			related = append(related, t)
		}
	}
	respondJSON(w, map[string]any{"tape": found, "related": related})
}

func (r *Router) summary(w http.ResponseWriter, req *http.Request) {
	report, err := r.svc.Summary(req.Context())
	if err != nil {
		r.respondError(w, "Failed to fetch ops summary", err)
		return
	}
	respondJSON(w, report)
}

func (r *Router) actionStatus(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(w, req) {
		return
	}
	var body struct {
		ID    string     `json:"id"`
		Stage tape.Stage `json:"stage"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.ID == "" || body.Stage == "" {
		http.Error(w, `{"error":"Missing id or stage"}`, http.StatusBadRequest)
		return
	}
	if err := r.svc.UpdateStatus(req.Context(), body.ID, body.Stage); err != nil {
		r.respondError(w, "Failed to update status", err)
		return
	}
	respondJSON(w, map[string]any{"ok": true, "id": body.ID})
}

func (r *Router) actionNotes(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(w, req) {
		return
	}
	var body struct {
		ID   string `json:"id"`
		Note string `json:"note"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.ID == "" || body.Note == "" {
		http.Error(w, `{"error":"Missing id or note"}`, http.StatusBadRequest)
		return
	}
	if err := r.svc.UpdateNotes(req.Context(), body.ID, body.Note); err != nil {
		r.respondError(w, "Failed to add note", err)
		return
	}
	respondJSON(w, map[string]any{"ok": true, "id": body.ID})
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, map[string]any{
		"app":     r.cfg.AppTitle,
		"metrics": r.metrics.Snapshot(),
		"stages":  r.cfg.PipelineStages,
	})
}

func (r *Router) history(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		respondJSON(w, []store.Snapshot{})
		return
	}
	limit := 100
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	snaps, err := r.store.ListSnapshots(req.Context(), limit)
	if err != nil {
		r.respondError(w, "Failed to read history", err)
		return
	}
	respondJSON(w, snaps)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if r.store != nil {
		if err := r.store.Health(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) authorized(w http.ResponseWriter, req *http.Request) bool {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	// An empty configured password disables the check.
	if r.cfg.InternalPassword != "" && req.Header.Get("X-Internal-Password") != r.cfg.InternalPassword {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	return true
}

func (r *Router) respondError(w http.ResponseWriter, msg string, err error) {
	detail := err.Error()
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		detail += " (" + strings.Join(hints, " ") + ")"
	}
	r.log.Warnw(msg, "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": msg, "detail": detail})
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
