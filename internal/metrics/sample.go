package metrics

import (
	"sync"
	"time"

	"tradebridge/logger"
)

// Kind tells a counter increment from a gauge reading.
type Kind string

const (
	KindCounter Kind = "counter"
	KindGauge   Kind = "gauge"
)

// Sample mirrors one Prometheus observation for in-process listeners such as
// the status server history.
type Sample struct {
	Time     time.Time         `json:"time"`
	Exchange string            `json:"exchange,omitempty"`
	Name     string            `json:"name"`
	Kind     Kind              `json:"kind"`
	Value    float64           `json:"value"`
	Labels   map[string]string `json:"labels,omitempty"`
}

type listener struct {
	id uint64
	fn func(Sample)
}

var (
	listenersMu  sync.RWMutex
	listeners    []listener
	nextListener uint64
)

// Listen calls fn for every emitted sample until cancel is called. fn runs on
// the emitting goroutine and must not block.
func Listen(fn func(Sample)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	listenersMu.Lock()
	nextListener++
	id := nextListener
	listeners = append(listeners, listener{id: id, fn: fn})
	listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			listenersMu.Lock()
			defer listenersMu.Unlock()
			for i, l := range listeners {
				if l.id == id {
					listeners = append(listeners[:i:i], listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func emit(s Sample) {
	if s.Time.IsZero() {
		s.Time = time.Now()
	}

	fields := make(logger.Fields, len(s.Labels)+3)
	for k, v := range s.Labels {
		fields[k] = v
	}
	fields["metric"] = s.Name
	fields["kind"] = s.Kind
	fields["value"] = s.Value
	entry := logger.GetLogger().WithComponent(component)
	if s.Exchange != "" {
		entry = entry.WithExchange(s.Exchange)
	}
	entry.WithFields(fields).Debug("metric")

	listenersMu.RLock()
	fns := make([]func(Sample), len(listeners))
	for i, l := range listeners {
		fns[i] = l.fn
	}
	listenersMu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}
