package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akhil-rao/ap2-aani-demo/internal/audit"
	"github.com/akhil-rao/ap2-aani-demo/internal/config"
	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate/query"
	"github.com/akhil-rao/ap2-aani-demo/internal/risk"
	"github.com/akhil-rao/ap2-aani-demo/internal/session"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	sessions *session.Manager
	loader   *config.Loader
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes. Every config the
// loader reloads, from this handler or its file watcher, is handed to
// sessions. loader may be nil, in which case config reload is unavailable.
func New(sessions *session.Manager, loader *config.Loader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{sessions: sessions, loader: loader, logger: logger, mux: http.NewServeMux()}
	if loader != nil {
		loader.OnChange(sessions.SwapConfig)
	}

	h.mux.HandleFunc("POST /v1/sessions", h.createSession)
	h.mux.HandleFunc("DELETE /v1/sessions/{sid}", h.deleteSession)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/mandates", h.createMandate)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/mandates", h.listMandates)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/mandates/{mid}", h.exportMandate)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/mandates/{mid}/convert", h.convertMandate)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/mandates/{mid}/revoke", h.revokeMandate)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/mandates/{mid}/risk-screen", h.riskScreen)
	h.mux.HandleFunc("POST /v1/sessions/{sid}/mandates/{mid}/execute", h.executeMandate)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/audit", h.listAudit)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/audit/export", h.exportAudit)
	h.mux.HandleFunc("GET /v1/sessions/{sid}/audit/verify", h.verifyAudit)
	h.mux.HandleFunc("GET /v1/rails", h.listRails)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(logger, h.mux)
}

// POST /v1/sessions: start a session, seeded from the current config.
func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Create(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	var body map[string]interface{}
	err = h.sessions.With(s.ID(), func(s *session.Session) error {
		all, err := s.ListMandates(mandate.Filter{})
		if err != nil {
			return err
		}
		body = map[string]interface{}{
			"session_id": s.ID(),
			"agent":      s.Agent(),
			"rails":      s.Rails(),
			"mandates":   all,
		}
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, body)
}

// DELETE /v1/sessions/{sid}: discard a session and everything in it.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.PathValue("sid")); err != nil {
		writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/sessions/{sid}/mandates: issue a mandate.
func (h *Handler) createMandate(w http.ResponseWriter, r *http.Request) {
	var req mandate.NewRequest
	if err := decodeBody(w, r, createMandateBody, &req); err != nil {
		writeFailure(w, err)
		return
	}
	var m *mandate.Mandate
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		m, err = s.CreateMandate(r.Context(), req)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// GET /v1/sessions/{sid}/mandates: list mandates, newest first.
// Filters: status and type (comma-separated or repeated), q (query
// expression), view (payable or screenable).
func (h *Handler) listMandates(w http.ResponseWriter, r *http.Request) {
	filter, view, err := parseListParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	var out []*mandate.Mandate
	err = h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		switch view {
		case "payable":
			out = s.Payable()
			return nil
		case "screenable":
			out = s.Screenable()
			return nil
		}
		var err error
		out, err = s.ListMandates(filter)
		if err != nil && filter.Where != nil {
			return badRequest(err.Error())
		}
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if out == nil {
		out = []*mandate.Mandate{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(out),
		"mandates": out,
	})
}

func parseListParams(r *http.Request) (mandate.Filter, string, error) {
	var f mandate.Filter
	params := r.URL.Query()
	for _, v := range splitParam(params["status"]) {
		st := mandate.Status(v)
		if !st.Valid() {
			return f, "", badRequest("unknown status " + v)
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, v := range splitParam(params["type"]) {
		t := mandate.Type(v)
		if !t.Valid() {
			return f, "", badRequest("unknown mandate type " + v)
		}
		f.Types = append(f.Types, t)
	}
	if src := params.Get("q"); src != "" {
		q, err := query.Parse(src)
		if err != nil {
			return f, "", badRequest(err.Error())
		}
		f.Where = q
	}
	view := params.Get("view")
	switch view {
	case "", "payable", "screenable":
	default:
		return f, "", badRequest("unknown view " + view)
	}
	return f, view, nil
}

func splitParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// GET /v1/sessions/{sid}/mandates/{mid}: one mandate as a JSON document.
func (h *Handler) exportMandate(w http.ResponseWriter, r *http.Request) {
	mid := r.PathValue("mid")
	var doc []byte
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		doc, err = s.ExportMandate(mid)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeDownload(w, "mandate_"+mid+".json", doc)
}

// POST /v1/sessions/{sid}/mandates/{mid}/convert: intent to payment mandate.
func (h *Handler) convertMandate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*session.Session).ConvertMandate)
}

// POST /v1/sessions/{sid}/mandates/{mid}/revoke: withdraw consent.
func (h *Handler) revokeMandate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, (*session.Session).RevokeMandate)
}

type transitionFunc func(s *session.Session, ctx context.Context, id string) (*mandate.Mandate, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op transitionFunc) {
	var m *mandate.Mandate
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		m, err = op(s, r.Context(), r.PathValue("mid"))
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// POST /v1/sessions/{sid}/mandates/{mid}/risk-screen: simulated AML check.
func (h *Handler) riskScreen(w http.ResponseWriter, r *http.Request) {
	mid := r.PathValue("mid")
	var level risk.Level
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		level, err = s.RiskScreen(r.Context(), mid)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mandate_id": mid,
		"risk_level": level,
		"note":       risk.Note,
	})
}

type executeRequest struct {
	Rail string `json:"rail"`
}

// POST /v1/sessions/{sid}/mandates/{mid}/execute: settle on a rail.
func (h *Handler) executeMandate(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeBody(w, r, executeBody, &req); err != nil {
		writeFailure(w, err)
		return
	}
	var resp *gateway.SettlementResponse
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		resp, err = s.ExecuteMandate(r.Context(), r.PathValue("mid"), req.Rail)
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/sessions/{sid}/audit?order=: the audit trail, newest first by default.
func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	order, err := audit.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var events []audit.Event
	err = h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		events = s.ListAuditEvents(order)
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"order":  order.String(),
		"count":  len(events),
		"events": events,
	})
}

// GET /v1/sessions/{sid}/audit/export: the full trail as a download.
func (h *Handler) exportAudit(w http.ResponseWriter, r *http.Request) {
	var doc []byte
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		var err error
		doc, err = s.ExportAuditLog()
		return err
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeDownload(w, "audit_log.json", doc)
}

// GET /v1/sessions/{sid}/audit/verify: recheck every integrity tag.
func (h *Handler) verifyAudit(w http.ResponseWriter, r *http.Request) {
	var issues []audit.Issue
	err := h.sessions.With(r.PathValue("sid"), func(s *session.Session) error {
		issues = s.VerifyAuditLog()
		return nil
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	if issues == nil {
		issues = []audit.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"intact": len(issues) == 0,
		"issues": issues,
	})
}

// GET /v1/rails: rails offered to new sessions.
func (h *Handler) listRails(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"rails": h.sessions.Rails()})
}

// POST /v1/config/reload: re-read config from disk. Existing sessions keep
// their settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusServiceUnavailable, "config reload unavailable: no config file")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":    true,
		"version":     cfg.Version,
		"rails_count": len(cfg.Rails),
		"seed_count":  len(cfg.Seed),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 once the session limit is reached.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	n := h.sessions.Len()
	limit := h.sessions.Config().Sessions.MaxSessions
	if limit > 0 && n >= limit {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":   "saturated",
			"sessions": n,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"sessions": n,
	})
}
