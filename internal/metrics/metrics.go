package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the session coordinator.
type Metrics struct {
	SessionsCreated   prometheus.Counter
	SessionsStarted   prometheus.Counter
	SessionsCompleted *prometheus.CounterVec
	SessionsCancelled prometheus.Counter
	AnswersRecorded   prometheus.Counter
	DuplicateAnswers  prometheus.Counter
	StatusPolls       prometheus.Counter
	WriteConflicts    prometheus.Counter
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the collectors with the given registerer. Tests pass a
// fresh registry to avoid duplicate registration.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "sessions_created_total",
			Help:      "Sessions created by a first partner's join",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "sessions_started_total",
			Help:      "Sessions activated by the second partner joining",
		}),
		SessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "sessions_completed_total",
			Help:      "Completed sessions by cause",
		}, []string{"cause"}), // cause: answers, timeout
		SessionsCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "sessions_cancelled_total",
			Help:      "Cancelled sessions",
		}),
		AnswersRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "answers_recorded_total",
			Help:      "Accepted answer submissions",
		}),
		DuplicateAnswers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "answers_duplicate_total",
			Help:      "Rejected duplicate answer submissions",
		}),
		StatusPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "status_polls_total",
			Help:      "Status snapshot reads",
		}),
		WriteConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "couplegame",
			Name:      "session_write_conflicts_total",
			Help:      "Optimistic-concurrency conflicts on session writes",
		}),
	}
}
