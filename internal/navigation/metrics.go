package navigation

import "github.com/prometheus/client_golang/prometheus"

// Metrics метрики машины состояний.
type Metrics struct {
	transitions *prometheus.CounterVec
	stale       prometheus.Counter
	draws       *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarot_navigation_transitions_total",
			Help: "Screen transitions by target screen.",
		}, []string{"screen"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tarot_navigation_stale_responses_total",
			Help: "Backend responses discarded because a newer screen was entered.",
		}),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tarot_draws_total",
			Help: "Billable draws by flow.",
		}, []string{"flow"}),
	}
	reg.MustRegister(m.transitions, m.stale, m.draws)
	return m
}

func (m *Metrics) transition(k Kind) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(k)).Inc()
}

func (m *Metrics) staleResponse() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

func (m *Metrics) draw(flow string) {
	if m == nil {
		return
	}
	m.draws.WithLabelValues(flow).Inc()
}
