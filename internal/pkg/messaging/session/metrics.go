package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks conversation session activity for the /metrics endpoint.
type Metrics struct {
	SessionsOpen     prometheus.Gauge
	MessagesSent     prometheus.Counter
	FeedEvents       *prometheus.CounterVec
	RefetchFallbacks prometheus.Counter
	Errors           *prometheus.CounterVec
}

// NewMetrics builds and registers the session metric set.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streetconnect",
			Subsystem: "messaging",
			Name:      "sessions_open",
			Help:      "Number of conversation sessions currently open.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streetconnect",
			Subsystem: "messaging",
			Name:      "messages_sent_total",
			Help:      "Messages confirmed by the backend and appended to a session log.",
		}),
		FeedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streetconnect",
			Subsystem: "messaging",
			Name:      "feed_events_total",
			Help:      "Change-feed insert events processed, by origin classification.",
		}, []string{"origin"}),
		RefetchFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streetconnect",
			Subsystem: "messaging",
			Name:      "refetch_fallbacks_total",
			Help:      "Remote inserts rendered from the raw feed payload after a failed refetch.",
		}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streetconnect",
			Subsystem: "messaging",
			Name:      "session_errors_total",
			Help:      "Session failures by error code.",
		}, []string{"code"}),
	}
	if reg != nil {
		reg.MustRegister(m.SessionsOpen, m.MessagesSent, m.FeedEvents, m.RefetchFallbacks, m.Errors)
	}
	return m
}
