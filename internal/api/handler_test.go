package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akhil-rao/ap2-aani-demo/internal/config"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/session"
	"github.com/akhil-rao/ap2-aani-demo/internal/sim"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newServer(t *testing.T, cfg *config.Config, loader *config.Loader) *httptest.Server {
	t.Helper()
	mgr := session.NewManager(cfg,
		session.WithRandom(sim.NewScripted(0)),
		session.WithClock(func() time.Time { return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC) }),
		session.WithLogger(quiet()),
	)
	srv := httptest.NewServer(New(mgr, loader, quiet()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func startSession(t *testing.T, base string) string {
	t.Helper()
	code, body := do(t, http.MethodPost, base+"/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, code, body)
	return body["session_id"].(string)
}

func TestAPI_Workflow(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	sid := startSession(t, srv.URL)
	base := srv.URL + "/v1/sessions/" + sid

	code, m := do(t, http.MethodPost, base+"/mandates", map[string]any{
		"mandate_type": "IntentMandate",
		"amount":       500,
		"currency":     "AED",
		"issued_by":    "Test User",
		"meta":         map[string]any{"purpose": "groceries"},
	})
	require.Equal(t, http.StatusCreated, code, m)
	assert.Equal(t, "ACTIVE", m["status"])
	mid := m["mandate_id"].(string)

	code, m = do(t, http.MethodPost, base+"/mandates/"+mid+"/convert", nil)
	require.Equal(t, http.StatusOK, code, m)
	assert.Equal(t, "PaymentMandate", m["mandate_type"])
	assert.Equal(t, "ISSUED", m["status"])

	code, r := do(t, http.MethodPost, base+"/mandates/"+mid+"/risk-screen", nil)
	require.Equal(t, http.StatusOK, code, r)
	assert.Equal(t, "LOW", r["risk_level"])

	code, r = do(t, http.MethodPost, base+"/mandates/"+mid+"/execute", map[string]any{"rail": "Aani"})
	require.Equal(t, http.StatusOK, code, r)
	assert.Equal(t, "SETTLED", r["status"])
	assert.Equal(t, "500.00", r["amount"])
	assert.Equal(t, "00", r["processing_code"])

	code, m = do(t, http.MethodGet, base+"/mandates/"+mid, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "EXECUTED", m["status"])

	code, a := do(t, http.MethodGet, base+"/audit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reverse_chronological", a["order"])
	events := a["events"].([]any)
	require.Len(t, events, 5)
	assert.Equal(t, "PAYMENT_EXECUTED", events[0].(map[string]any)["event"])
	assert.Equal(t, "MANDATE_ISSUED", events[4].(map[string]any)["event"])

	code, a = do(t, http.MethodGet, base+"/audit?order=chronological", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "MANDATE_ISSUED", a["events"].([]any)[0].(map[string]any)["event"])

	code, v := do(t, http.MethodGet, base+"/audit/verify", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, v["intact"])
	assert.Empty(t, v["issues"])

	resp, err := http.Get(base + "/audit/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "audit_log.json")
	var exported []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&exported))
	assert.Len(t, exported, 5)
}

func TestAPI_ErrorMapping(t *testing.T) {
	cfg := config.Default()
	cfg.Seed = []mandate.NewRequest{{MandateType: mandate.TypeCart, Amount: 20, Currency: mandate.CurrencyEUR, IssuedBy: "Seed"}}
	srv := newServer(t, cfg, nil)
	sid := startSession(t, srv.URL)
	base := srv.URL + "/v1/sessions/" + sid

	code, list := do(t, http.MethodGet, base+"/mandates", nil)
	require.Equal(t, http.StatusOK, code)
	cart := list["mandates"].([]any)[0].(map[string]any)["mandate_id"].(string)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"malformed json", http.MethodPost, "/mandates", "{", http.StatusBadRequest},
		{"schema violation", http.MethodPost, "/mandates", map[string]any{"mandate_type": "CartMandate", "amount": "ten", "currency": "AED"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/mandates", map[string]any{"mandate_type": "CartMandate", "amount": 1, "currency": "AED", "colour": "red"}, http.StatusBadRequest},
		{"non-positive amount", http.MethodPost, "/mandates", map[string]any{"mandate_type": "CartMandate", "amount": 0, "currency": "AED"}, http.StatusBadRequest},
		{"unsupported currency", http.MethodPost, "/mandates", map[string]any{"mandate_type": "CartMandate", "amount": 1, "currency": "GBP"}, http.StatusBadRequest},
		{"convert cart", http.MethodPost, "/mandates/" + cart + "/convert", nil, http.StatusConflict},
		{"execute cart", http.MethodPost, "/mandates/" + cart + "/execute", map[string]any{"rail": "Aani"}, http.StatusConflict},
		{"cart on unknown rail", http.MethodPost, "/mandates/" + cart + "/execute", map[string]any{"rail": "SWIFT"}, http.StatusConflict},
		{"execute without rail", http.MethodPost, "/mandates/" + cart + "/execute", map[string]any{}, http.StatusBadRequest},
		{"unknown mandate", http.MethodPost, "/mandates/M-0000000000/revoke", nil, http.StatusNotFound},
		{"export unknown mandate", http.MethodGet, "/mandates/M-0000000000", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/mandates?status=DONE", nil, http.StatusBadRequest},
		{"bad type filter", http.MethodGet, "/mandates?type=GiftMandate", nil, http.StatusBadRequest},
		{"bad query", http.MethodGet, "/mandates?q=amount+%3E%3E+1", nil, http.StatusBadRequest},
		{"bad view", http.MethodGet, "/mandates?view=all", nil, http.StatusBadRequest},
		{"bad order", http.MethodGet, "/audit?order=sideways", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, tt.method, base+tt.path, tt.body)
			assert.Equal(t, tt.want, code, body)
			assert.NotEmpty(t, body["error"])
		})
	}

	code, body := do(t, http.MethodGet, srv.URL+"/v1/sessions/nope/mandates", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])

	// None of the failures above touched the session.
	code, a := do(t, http.MethodGet, base+"/audit", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, a["count"])
}

func TestAPI_UnknownRailOnPayableMandate(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	base := srv.URL + "/v1/sessions/" + startSession(t, srv.URL)
	_, m := do(t, http.MethodPost, base+"/mandates", map[string]any{"mandate_type": "IntentMandate", "amount": 5, "currency": "USD"})
	code, body := do(t, http.MethodPost, base+"/mandates/"+m["mandate_id"].(string)+"/execute", map[string]any{"rail": "SWIFT"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "SWIFT")
}

func TestAPI_RevokeTwiceConflicts(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	base := srv.URL + "/v1/sessions/" + startSession(t, srv.URL)
	_, m := do(t, http.MethodPost, base+"/mandates", map[string]any{"mandate_type": "IntentMandate", "amount": 5, "currency": "USD"})
	mid := m["mandate_id"].(string)

	code, m := do(t, http.MethodPost, base+"/mandates/"+mid+"/revoke", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "REVOKED", m["status"])
	code, _ = do(t, http.MethodPost, base+"/mandates/"+mid+"/revoke", nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = do(t, http.MethodPost, base+"/mandates/"+mid+"/execute", map[string]any{"rail": "Aani"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestAPI_ListFilters(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	base := srv.URL + "/v1/sessions/" + startSession(t, srv.URL)
	for _, body := range []map[string]any{
		{"mandate_type": "IntentMandate", "amount": 50, "currency": "AED"},
		{"mandate_type": "CartMandate", "amount": 250, "currency": "AED"},
		{"mandate_type": "PaymentMandate", "amount": 900, "currency": "USD"},
	} {
		code, _ := do(t, http.MethodPost, base+"/mandates", body)
		require.Equal(t, http.StatusCreated, code)
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?status=ISSUED", 2},
		{"?status=ACTIVE,ISSUED", 3},
		{"?type=IntentMandate&type=CartMandate", 2},
		{"?q=amount+%3E+100+AND+currency+%3D%3D+%22AED%22", 1},
		{"?view=payable", 2},
		{"?view=screenable", 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, body := do(t, http.MethodGet, base+"/mandates"+tt.query, nil)
			require.Equal(t, http.StatusOK, code, body)
			assert.EqualValues(t, tt.want, body["count"])
		})
	}
}

func TestAPI_AuditFull(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.MaxEvents = 2
	srv := newServer(t, cfg, nil)
	base := srv.URL + "/v1/sessions/" + startSession(t, srv.URL)

	code, _ := do(t, http.MethodPost, base+"/mandates", map[string]any{"mandate_type": "IntentMandate", "amount": 5, "currency": "AED"})
	require.Equal(t, http.StatusCreated, code)
	code, body := do(t, http.MethodPost, base+"/mandates", map[string]any{"mandate_type": "CartMandate", "amount": 5, "currency": "AED"})
	assert.Equal(t, http.StatusInsufficientStorage, code)
	assert.NotEmpty(t, body["error"])
}

func TestAPI_SessionLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Sessions.MaxSessions = 1
	srv := newServer(t, cfg, nil)

	code, _ := do(t, http.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusOK, code)

	sid := startSession(t, srv.URL)
	code, _ = do(t, http.MethodPost, srv.URL+"/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = do(t, http.MethodGet, srv.URL+"/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = do(t, http.MethodDelete, srv.URL+"/v1/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = do(t, http.MethodDelete, srv.URL+"/v1/sessions/"+sid, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, http.MethodGet, srv.URL+"/v1/sessions/"+sid+"/audit", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAPI_ConfigReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ap2.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o644))
	loader, err := config.NewLoader(path, quiet())
	require.NoError(t, err)
	srv := newServer(t, loader.Config(), loader)

	code, body := do(t, http.MethodGet, srv.URL+"/v1/rails", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["rails"], 2)

	require.NoError(t, os.WriteFile(path, []byte("version: v2\nrails:\n  - {name: Aani, processor: Aani-live, mode: live}\n"), 0o644))
	code, body = do(t, http.MethodPost, srv.URL+"/v1/config/reload", nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "v2", body["version"])

	code, body = do(t, http.MethodGet, srv.URL+"/v1/rails", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["rails"], 1)

	require.NoError(t, os.WriteFile(path, []byte("rails: []\n"), 0o644))
	code, _ = do(t, http.MethodPost, srv.URL+"/v1/config/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
}

func TestAPI_LoaderReloadReachesSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ap2.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: v1\n"), 0o644))
	loader, err := config.NewLoader(path, quiet())
	require.NoError(t, err)
	srv := newServer(t, loader.Config(), loader)

	// A reload that does not come through the HTTP route, as the file
	// watcher triggers it.
	require.NoError(t, os.WriteFile(path, []byte("version: v2\nseed:\n  - {mandate_type: CartMandate, amount: 5, currency: AED}\n"), 0o644))
	_, err = loader.Reload()
	require.NoError(t, err)

	code, body := do(t, http.MethodPost, srv.URL+"/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, code, body)
	assert.Len(t, body["mandates"], 1)
}

func TestAPI_ReloadWithoutLoader(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	code, _ := do(t, http.MethodPost, srv.URL+"/v1/config/reload", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	srv := newServer(t, config.Default(), nil)
	code, body := do(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	startSession(t, srv.URL)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ap2_sessions_active")
	assert.Contains(t, string(raw), "ap2_http_request_duration_ms")
}
