package autosave

import "github.com/prometheus/client_golang/prometheus"

var (
	// savesTotal counts finished saves.
	// Labels:
	//   - outcome: "success", "failure" or "discarded" (finished after teardown)
	//   - trigger: "debounce" or "explicit"
	savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chedit_autosave_saves_total",
			Help: "Total number of finished editor saves",
		},
		[]string{"outcome", "trigger"},
	)

	// saveDuration records how long the persistence call took.
	saveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chedit_autosave_save_duration_seconds",
			Help:    "Duration of editor save calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"trigger"},
	)

	// debounceResets counts edits that pushed back an already pending save.
	debounceResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chedit_autosave_debounce_resets_total",
			Help: "Total number of edits that reset a pending autosave timer",
		},
	)
)

func init() {
	prometheus.MustRegister(savesTotal)
	prometheus.MustRegister(saveDuration)
	prometheus.MustRegister(debounceResets)
}

func recordSave(outcome, trigger string, seconds float64) {
	savesTotal.WithLabelValues(outcome, trigger).Inc()
	saveDuration.WithLabelValues(trigger).Observe(seconds)
}
