package kanban

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments the board channel. A nil *Metrics records nothing.
type Metrics struct {
	sessions          prometheus.Gauge
	commands          *prometheus.CounterVec
	broadcastFailures prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "crm",
			Subsystem: "kanban",
			Name:      "sessions",
			Help:      "Number of connected board sessions.",
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "kanban",
			Name:      "commands_total",
			Help:      "Board commands handled, by action and outcome.",
		}, []string{"action", "outcome"}),
		broadcastFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "kanban",
			Name:      "broadcast_failures_total",
			Help:      "Broadcast deliveries that failed and evicted the recipient.",
		}),
	}
}

func (m *Metrics) setSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

func (m *Metrics) command(action, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) broadcastFailure() {
	if m == nil {
		return
	}
	m.broadcastFailures.Inc()
}
