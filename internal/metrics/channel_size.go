package metrics

import (
	"context"
	"strconv"
	"time"

	"tradebridge/internal/channel"
)

// StartQueueMetrics samples the event queue occupancy every interval until ctx
// ends. A one-second cadence is used when interval <= 0.
func StartQueueMetrics(ctx context.Context, events *channel.Events, interval time.Duration) {
	if events == nil {
		return
	}
	if interval <= 0 {
		interval = time.Second
	}
	Init()

	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sampleQueue(events)
			}
		}
	}()
}

func sampleQueue(events *channel.Events) {
	length := float64(events.Len())
	queueLength.Set(length)
	stats := events.GetStats()
	emit(Sample{Name: "event_queue_length", Kind: KindGauge, Value: length, Labels: map[string]string{
		"capacity": strconv.Itoa(events.Cap()),
		"sent":     strconv.FormatInt(stats.Sent, 10),
		"dropped":  strconv.FormatInt(stats.Dropped, 10),
	}})
}
