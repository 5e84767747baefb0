package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Resolution outcomes of the direct conversation resolver.
const (
	ResolveExisting = "existing"
	ResolveCreated  = "created"
	ResolveRaceLost = "race_lost"
)

type Metrics struct {
	MessagesCreated     *prometheus.CounterVec
	DecryptionFailures  prometheus.Counter
	ConversationResolve *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

// New registers the collectors on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "messages_created_total",
			Help:      "Messages created, by encryption type.",
		}, []string{"encryption_type"}),
		DecryptionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "message_decryption_failures_total",
			Help:      "Stored messages that could not be decrypted on read.",
		}),
		ConversationResolve: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "conversation_resolutions_total",
			Help:      "Direct conversation resolutions, by outcome.",
		}, []string{"outcome"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern and status.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.MessagesCreated, m.DecryptionFailures, m.ConversationResolve, m.HTTPRequests, m.HTTPDuration)
	return m
}

// NewNop returns collectors registered nowhere.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
