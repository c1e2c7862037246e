package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SessionMetrics counts trivia session lifecycle events.
type SessionMetrics struct {
	Started       prometheus.Counter
	Finished      prometheus.Counter
	Aborted       prometheus.Counter
	Answers       *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
}

// NewSessionMetrics registers the session counters on reg. Tests pass a
// fresh registry per instance.
func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	factory := promauto.With(reg)
	return &SessionMetrics{
		Started: factory.NewCounter(prometheus.CounterOpts{
			Name: "trivia_sessions_started_total",
			Help: "Sessions admitted and spawned.",
		}),
		Finished: factory.NewCounter(prometheus.CounterOpts{
			Name: "trivia_sessions_finished_total",
			Help: "Sessions that reached the final summary.",
		}),
		Aborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "trivia_sessions_aborted_total",
			Help: "Sessions ended by exit, cancellation or channel failure.",
		}),
		Answers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_answers_total",
			Help: "Graded answers by result.",
		}, []string{"result"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_fetch_failures_total",
			Help: "Question batch requests that produced no playable batch.",
		}, []string{"status"}),
	}
}
