package obs

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                            "/",
		"/metrics":                    "/metrics",
		"/v1/content":                 "/v1/content",
		"/v1/content/export":          "/v1/content/export",
		"/v1/content/12":              "/v1/content/:id",
		"/v1/content/12/approve":      "/v1/content/:id/approve",
		"/v1/content/12/purge?x=1":    "/v1/content/:id/purge",
		"/v1/auth/invites/abc":        "/v1/auth/invites/:token",
		"/v1/auth/password/reset/abc": "/v1/auth/password/reset/:token",
		"/v1/auth/password/reset":     "/v1/auth/password/reset",
		"/v1/audit?page=2":            "/v1/audit",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestInstrumentRecordsStatus(t *testing.T) {
	Init()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := metricValue(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/content/:id", "418"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/content/99", nil))
	after := metricValue(httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/content/:id", "418"))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
}

func TestSetReady(t *testing.T) {
	SetReady(true)
	if !IsReady() || metricValue(readyGauge) != 1 {
		t.Fatalf("expected ready")
	}
	SetReady(false)
	if IsReady() || metricValue(readyGauge) != 0 {
		t.Fatalf("expected not ready")
	}
}

func TestLoggerSetOutputAndLevel(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()
	defer SetLevel("info")

	SetLevel("warn")
	Logger().Info("hidden")
	Logger().Warn("shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatalf("log line is not json: %v", err)
	}
	if m["msg"] != "shown" || m["k"] != "v" {
		t.Fatalf("unexpected payload %v", m)
	}
}

func metricValue(c prometheus.Metric) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return -1
	}
	if m.Counter != nil {
		return m.GetCounter().GetValue()
	}
	return m.GetGauge().GetValue()
}

func TestInstrumentUsesMuxPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/things/{id}", func(w http.ResponseWriter, r *http.Request) {})
	h := Instrument(mux)

	counter := httpRequestsTotal.WithLabelValues(http.MethodGet, "/v1/things/{id}", "200")
	before := metricValue(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/things/7", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/things/8", nil))
	if got := metricValue(counter) - before; got != 2 {
		t.Fatalf("expected 2 requests on the pattern label, got %v", got)
	}
}
