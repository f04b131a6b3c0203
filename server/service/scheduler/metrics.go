package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calbot",
		Name:      "turns_total",
		Help:      "Processed conversation turns by outcome.",
	}, []string{"outcome"})

	commitCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "calbot",
		Name:      "commits_total",
		Help:      "Events committed to the calendar provider.",
	})

	conflictCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calbot",
		Name:      "conflicts_total",
		Help:      "Conflict classifications by status.",
	}, []string{"status"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "calbot",
		Name:      "turn_duration_seconds",
		Help:      "Wall time spent processing one turn.",
		Buckets:   prometheus.DefBuckets,
	})
)
