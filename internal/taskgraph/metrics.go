package taskgraph

import "github.com/prometheus/client_golang/prometheus"

var (
	rpcCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onhttp_taskgraph_rpc_calls_total",
			Help: "Total number of taskgraph scheduler RPC dispatches.",
		},
		[]string{"method", "result"},
	)

	rpcCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onhttp_taskgraph_rpc_duration_seconds",
			Help:    "Duration of a dispatch from discovery to decoded response, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	connsCached = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "onhttp_taskgraph_connections",
			Help: "Number of scheduler connections held in the connection pool.",
		},
	)
)

func init() {
	prometheus.MustRegister(rpcCallsTotal)
	prometheus.MustRegister(rpcCallDuration)
	prometheus.MustRegister(connsCached)
}

// resultLabel maps a dispatch error to the "result" label value.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorKind(err)
}
