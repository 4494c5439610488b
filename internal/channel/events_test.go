package channel

import (
	"context"
	"testing"
	"time"

	"tradebridge/models"
)

func TestEventsSendBlocksUntilConsumed(t *testing.T) {
	ch := NewEvents(1)
	ctx := context.Background()
	if !ch.Send(ctx, models.Event{Type: models.EventTypeSubscriptionData}) {
		t.Fatalf("first send should fit the buffer")
	}

	done := make(chan bool)
	go func() {
		done <- ch.Send(ctx, models.Event{Type: models.EventTypeResponse})
	}()

	select {
	case <-done:
		t.Fatalf("send must block while the buffer is full")
	case <-time.After(20 * time.Millisecond):
	}

	if ev := <-ch.C; ev.Type != models.EventTypeSubscriptionData {
		t.Fatalf("unexpected first event %s", ev.Type)
	}
	if !<-done {
		t.Fatalf("blocked send should complete once consumed")
	}
	if ev := <-ch.C; ev.Type != models.EventTypeResponse {
		t.Fatalf("unexpected second event %s", ev.Type)
	}
	if stats := ch.GetStats(); stats.Sent != 2 || stats.Dropped != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEventsSendCountsDropOnCancel(t *testing.T) {
	ch := NewEvents(1)
	ch.Send(context.Background(), models.Event{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ch.Send(ctx, models.Event{}) {
		t.Fatalf("send on a full queue with a dead context must fail")
	}
	if stats := ch.GetStats(); stats.Sent != 1 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if ch.Len() != 1 || ch.Cap() != 1 {
		t.Fatalf("unexpected len/cap %d/%d", ch.Len(), ch.Cap())
	}
}

func TestEventsCloseIsIdempotent(t *testing.T) {
	ch := NewEvents(1)
	ch.Close()
	ch.Close()
	if _, ok := <-ch.C; ok {
		t.Fatalf("channel should be closed")
	}
}

func TestEventsSendAfterCloseIsDropped(t *testing.T) {
	ch := NewEvents(1)
	ch.Close()
	if ch.Send(context.Background(), models.Event{Type: models.EventTypeResponse}) {
		t.Fatalf("send on a closed queue must fail")
	}
	if stats := ch.GetStats(); stats.Sent != 0 || stats.Dropped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestEventsCloseWaitsForBlockedSender(t *testing.T) {
	ch := NewEvents(1)
	ch.Send(context.Background(), models.Event{})

	ctx, cancel := context.WithCancel(context.Background())
	sent := make(chan bool)
	go func() {
		sent <- ch.Send(ctx, models.Event{Type: models.EventTypeResponse})
	}()
	time.Sleep(10 * time.Millisecond)

	closed := make(chan struct{})
	go func() {
		ch.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("close must wait for the blocked sender")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	if <-sent {
		t.Fatalf("cancelled send must report a drop")
	}
	<-closed
}
