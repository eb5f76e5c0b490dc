package coach

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Route labels for the turns counter.
const (
	RouteLocal   = "local"
	RoutePreempt = "preempt"
)

// Metrics are the Prometheus collectors the coach updates.
type Metrics struct {
	Turns        *prometheus.CounterVec
	Actions      *prometheus.CounterVec
	MealsLogged  prometheus.Counter
	TurnDuration prometheus.Histogram
}

// NewMetrics registers the coach collectors on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Turns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sehacoach",
			Name:      "turns_total",
			Help:      "Conversation turns by the path that produced the reply.",
		}, []string{"route"}),
		Actions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sehacoach",
			Name:      "actions_total",
			Help:      "UI actions emitted with replies.",
		}, []string{"action"}),
		MealsLogged: f.NewCounter(prometheus.CounterOpts{
			Namespace: "sehacoach",
			Name:      "meals_logged_total",
			Help:      "Meals added to user logs.",
		}),
		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sehacoach",
			Name:      "turn_duration_seconds",
			Help:      "Time to produce and persist one reply.",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2, 4, 8, 10},
		}),
	}
}
