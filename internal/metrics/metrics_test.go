package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"tradebridge/internal/channel"
	"tradebridge/logger"
	"tradebridge/models"
)

func TestObserveEventCounts(t *testing.T) {
	ObserveEvent("metrics-test", models.EventTypeSubscriptionData)
	ObserveEvent("metrics-test", models.EventTypeSubscriptionData)
	if got := testutil.ToFloat64(eventsTotal.WithLabelValues("metrics-test", string(models.EventTypeSubscriptionData))); got != 2 {
		t.Fatalf("events counter = %v, want 2", got)
	}
	if got := logger.AdapterCounters("metrics-test")["events"]; got != 2 {
		t.Fatalf("report counter = %d, want 2", got)
	}
}

func TestObserveDropEmitsSample(t *testing.T) {
	samples := make(chan Sample, 1)
	cancel := Listen(func(s Sample) {
		if s.Exchange == "metrics-drop" {
			samples <- s
		}
	})
	t.Cleanup(cancel)

	ObserveDrop("metrics-drop", "malformed")

	select {
	case s := <-samples:
		if s.Name != "dropped_message" || s.Kind != KindCounter || s.Value != 1 || s.Labels["reason"] != "malformed" {
			t.Fatalf("unexpected sample %+v", s)
		}
		if s.Time.IsZero() {
			t.Fatalf("sample must be stamped")
		}
	case <-time.After(50 * time.Millisecond):
		t.Fatal("drop metric not dispatched")
	}
	if got := testutil.ToFloat64(droppedTotal.WithLabelValues("metrics-drop", "malformed")); got != 1 {
		t.Fatalf("drop counter = %v, want 1", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	ObserveState("metrics-state", "SUBSCRIBED", true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `tradebridge_session_up{exchange="metrics-state"} 1`) {
		t.Fatalf("session gauge missing from output")
	}
}

func TestStartQueueMetrics(t *testing.T) {
	events := channel.NewEvents(4)
	events.Send(context.Background(), models.Event{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartQueueMetrics(ctx, events, 5*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(queueLength) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("queue gauge never sampled")
}
