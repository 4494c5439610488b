package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradebridge/config"
	"tradebridge/internal/metrics"
	"tradebridge/logger"
	"tradebridge/models"
	"tradebridge/session"
)

type staticReporter []session.Status

func (r staticReporter) Statuses() []session.Status {
	return r
}

func newTestServer(t *testing.T, reporter Reporter) *Server {
	t.Helper()
	srv := NewServer(config.StatusConfig{Enabled: true, History: 10}, reporter, func() int { return 3 }, logger.Logger())
	if srv == nil {
		t.Fatal("expected non-nil server")
	}
	t.Cleanup(srv.cleanup)
	return srv
}

func serve(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	router, err := srv.buildRouter()
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, path, nil))
	return res
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                            "0.0.0.0:8080",
		"  :9090  ":                   "0.0.0.0:9090",
		"localhost":                   "localhost:8080",
		"0.0.0.0:80":                  "0.0.0.0:80",
		"[::1]:443":                   "[::1]:443",
		"::1":                         "[::1]:8080",
		"*:8080":                      "0.0.0.0:8080",
		"http://10.0.0.7:8080":        "10.0.0.7:8080",
		"https://10.0.0.7":            "10.0.0.7:8080",
		"http://:7070":                "0.0.0.0:7070",
		"tcp://localhost:5050":        "localhost:5050",
		"https://status.example.com/": "status.example.com:8080",
	}
	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisabledServerIsNil(t *testing.T) {
	if srv := NewServer(config.StatusConfig{}, staticReporter{}, nil, logger.Logger()); srv != nil {
		t.Fatalf("disabled server must be nil")
	}
	var srv *Server
	if srv.Address() != "" {
		t.Fatalf("nil server has no address")
	}
}

func TestSessionsAndReadiness(t *testing.T) {
	reporter := staticReporter{
		{Exchange: "hyperliquid", State: session.StateSubscribed, Intents: []models.Subscription{{Exchange: "hyperliquid", SymbolID: "BTC", Field: models.SubscriptionFieldTrade, CorrelationID: "c1"}}},
		{Exchange: "okx", State: session.StateReconnecting},
	}
	srv := newTestServer(t, reporter)

	res := serve(t, srv, "/sessions")
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	var body struct {
		Sessions []session.Status `json:"sessions"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Sessions) != 2 || body.Sessions[0].Intents[0].CorrelationID != "c1" {
		t.Fatalf("unexpected sessions %+v", body.Sessions)
	}

	if res := serve(t, srv, "/readyz"); res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while okx reconnects, got %d", res.Code)
	}
	if res := serve(t, srv, "/healthz"); res.Code != http.StatusOK {
		t.Fatalf("healthz must always answer 200, got %d", res.Code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	srv := newTestServer(t, staticReporter{})
	metrics.ObserveDrop("okx", "malformed")

	if len(srv.metricStore.snapshot()) == 0 {
		t.Fatalf("metric store empty")
	}
	res := serve(t, srv, "/api/metrics")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "dropped_message") {
		t.Fatalf("unexpected /api/metrics response %d %s", res.Code, res.Body.String())
	}

	res = serve(t, srv, "/metrics")
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "tradebridge_dropped_messages_total") {
		t.Fatalf("prometheus output missing adapter counters")
	}
}
