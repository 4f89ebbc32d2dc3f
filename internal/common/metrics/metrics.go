package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Message results for MessagesHandled.
const (
	ResultProcessed    = "processed"
	ResultMalformed    = "malformed"
	ResultStoreError   = "store_error"
	ResultRetried      = "retried"
	ResultDeadLettered = "dead_lettered"
)

var OrdersCreated = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderflow_orders_created_total",
		Help: "Orders persisted with status CREATED",
	},
)

// PublishFailures counts orders that were stored but whose work message was not published.
var PublishFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "orderflow_publish_failures_total",
		Help: "Work messages that could not be published after the order was stored",
	},
)

var MessagesHandled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "orderflow_messages_total",
		Help: "Work messages handled by the processor, by result",
	},
	[]string{"result"},
)

var MessageLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "orderflow_message_handle_seconds",
		Help:    "Time spent handling one work message",
		Buckets: prometheus.DefBuckets,
	},
)

func init() {
	prometheus.MustRegister(OrdersCreated, PublishFailures, MessagesHandled, MessageLatency)
	// export every result series at zero before the first message arrives
	for _, r := range []string{ResultProcessed, ResultMalformed, ResultStoreError, ResultRetried, ResultDeadLettered} {
		MessagesHandled.WithLabelValues(r)
	}
}
