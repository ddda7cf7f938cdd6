package argo

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values for engine requests.
const (
	outcomeSuccess  = "success"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Operation label values, one per Engine method.
const (
	opCreate  = "create"
	opList    = "list"
	opGet     = "get"
	opDelete  = "delete"
	opStop    = "stop"
	opSuspend = "suspend"
	opResume  = "resume"
	opLogs    = "logs"
)

var (
	engineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdt_workflow_engine_requests_total",
			Help: "Total number of requests sent to the Argo server.",
		},
		[]string{"op", "outcome"},
	)

	engineRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdt_workflow_engine_request_duration_seconds",
			Help:    "Argo server request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(engineRequestsTotal)
	prometheus.MustRegister(engineRequestDuration)

	for _, op := range []string{opCreate, opList, opGet, opDelete, opStop, opSuspend, opResume, opLogs} {
		engineRequestsTotal.WithLabelValues(op, outcomeSuccess)
		engineRequestsTotal.WithLabelValues(op, outcomeError)
	}
}

// outcomeOf classifies a finished request for the requests counter.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case IsNotFound(err):
		return outcomeNotFound
	default:
		return outcomeError
	}
}
