package metrics

import (
	"context"
	"testing"
	"time"

	"tradebridge/internal/channel"
	"tradebridge/models"
)

func TestListenCancelStopsDelivery(t *testing.T) {
	var got []Sample
	cancel := Listen(func(s Sample) {
		if s.Exchange == "listen-test" {
			got = append(got, s)
		}
	})

	ObserveReconnect("listen-test")
	cancel()
	cancel()
	ObserveReconnect("listen-test")

	if len(got) != 1 || got[0].Name != "reconnect" {
		t.Fatalf("unexpected samples %+v", got)
	}
}

func TestListenNilIsNoop(t *testing.T) {
	cancel := Listen(nil)
	cancel()
}

func TestStateSampleIsGauge(t *testing.T) {
	samples := make(chan Sample, 2)
	cancel := Listen(func(s Sample) {
		if s.Exchange == "state-test" {
			samples <- s
		}
	})
	defer cancel()

	ObserveState("state-test", "SUBSCRIBED", true)
	ObserveState("state-test", "RECONNECTING", false)

	up, down := <-samples, <-samples
	if up.Kind != KindGauge || up.Value != 1 || up.Labels["state"] != "SUBSCRIBED" {
		t.Fatalf("unexpected up sample %+v", up)
	}
	if down.Value != 0 || down.Labels["state"] != "RECONNECTING" {
		t.Fatalf("unexpected down sample %+v", down)
	}
}

func TestQueueSampleCarriesStats(t *testing.T) {
	events := channel.NewEvents(4)
	events.Send(context.Background(), models.Event{})

	samples := make(chan Sample, 1)
	cancel := Listen(func(s Sample) {
		if s.Name == "event_queue_length" {
			select {
			case samples <- s:
			default:
			}
		}
	})
	defer cancel()

	sampleQueue(events)

	select {
	case s := <-samples:
		if s.Value != 1 || s.Labels["capacity"] != "4" || s.Labels["sent"] != "1" || s.Labels["dropped"] != "0" {
			t.Fatalf("unexpected queue sample %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("queue sample not emitted")
	}
}
