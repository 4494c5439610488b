// Registers:
//
//	#tradebridge_events_total{exchange,type}
//	#tradebridge_dropped_messages_total{exchange,reason}
//	#tradebridge_reconnects_total{exchange}
//	#tradebridge_requests_total{exchange,operation}
//	#tradebridge_response_errors_total{exchange}
//	#tradebridge_session_up{exchange}
//	#tradebridge_event_queue_length
//	#go_* and process_* system metrics
//
// Served by the status server under /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradebridge/logger"
	"tradebridge/models"
)

const component = "adapter_metrics"

var (
	once     sync.Once
	registry *prometheus.Registry

	eventsTotal     *prometheus.CounterVec
	droppedTotal    *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	responseErrors  *prometheus.CounterVec
	sessionUp       *prometheus.GaugeVec
	queueLength     prometheus.Gauge
)

func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		eventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebridge_events_total",
				Help: "Canonical events handed to the consumer",
			},
			[]string{"exchange", "type"},
		)
		droppedTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebridge_dropped_messages_total",
				Help: "Inbound messages discarded by the adapter",
			},
			[]string{"exchange", "reason"},
		)
		reconnectsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebridge_reconnects_total",
				Help: "Connection re-establishments",
			},
			[]string{"exchange"},
		)
		requestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebridge_requests_total",
				Help: "Execution requests sent",
			},
			[]string{"exchange", "operation"},
		)
		responseErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebridge_response_errors_total",
				Help: "Requests answered with RESPONSE_ERROR",
			},
			[]string{"exchange"},
		)
		sessionUp = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradebridge_session_up",
				Help: "1 while the exchange connection is subscribed",
			},
			[]string{"exchange"},
		)
		queueLength = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tradebridge_event_queue_length",
			Help: "Events waiting for the consumer",
		})

		registry.MustRegister(eventsTotal, droppedTotal, reconnectsTotal, requestsTotal, responseErrors, sessionUp, queueLength)
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler serves the adapter registry in the Prometheus text format.
func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveEvent counts one event published for exchange.
func ObserveEvent(exchange string, typ models.EventType) {
	Init()
	eventsTotal.WithLabelValues(exchange, string(typ)).Inc()
	logger.RecordEvent(exchange)
}

// ObserveDrop counts one inbound message discarded for reason.
func ObserveDrop(exchange, reason string) {
	Init()
	droppedTotal.WithLabelValues(exchange, reason).Inc()
	logger.RecordDrop(exchange)
	emit(Sample{Exchange: exchange, Name: "dropped_message", Kind: KindCounter, Value: 1, Labels: map[string]string{"reason": reason}})
}

func ObserveReconnect(exchange string) {
	Init()
	reconnectsTotal.WithLabelValues(exchange).Inc()
	logger.RecordReconnect(exchange)
	emit(Sample{Exchange: exchange, Name: "reconnect", Kind: KindCounter, Value: 1})
}

func ObserveRequest(exchange string, op models.Operation) {
	Init()
	requestsTotal.WithLabelValues(exchange, string(op)).Inc()
	emit(Sample{Exchange: exchange, Name: "request", Kind: KindCounter, Value: 1, Labels: map[string]string{"operation": string(op)}})
}

func ObserveResponseError(exchange string) {
	Init()
	responseErrors.WithLabelValues(exchange).Inc()
	logger.RecordResponseError(exchange)
	emit(Sample{Exchange: exchange, Name: "response_error", Kind: KindCounter, Value: 1})
}

// ObserveState records a session state transition.
func ObserveState(exchange, state string, up bool) {
	Init()
	v := 0.0
	if up {
		v = 1
	}
	sessionUp.WithLabelValues(exchange).Set(v)
	emit(Sample{Exchange: exchange, Name: "session_up", Kind: KindGauge, Value: v, Labels: map[string]string{"state": state}})
}
