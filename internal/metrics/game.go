package metrics

import "github.com/prometheus/client_golang/prometheus"

// GameMetrics holds the counters reported by games served from the root
type GameMetrics struct {
	starts      prometheus.Counter
	completions prometheus.Counter
	scores      prometheus.Histogram
}

func newGameMetrics(reg prometheus.Registerer) *GameMetrics {
	g := &GameMetrics{
		starts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_starts_total",
			Help: "Total game sessions started",
		}),
		completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "game_completions_total",
			Help: "Total game sessions completed",
		}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "game_score",
			Help:    "Distribution of final scores",
			Buckets: prometheus.LinearBuckets(0, 100, 11),
		}),
	}
	reg.MustRegister(g.starts, g.completions, g.scores)
	return g
}

// IncrementStarts counts a started game
func (g *GameMetrics) IncrementStarts() {
	g.starts.Inc()
}

// RecordCompletion counts a finished game and observes its score
func (g *GameMetrics) RecordCompletion(score int) {
	g.completions.Inc()
	g.scores.Observe(float64(score))
}
