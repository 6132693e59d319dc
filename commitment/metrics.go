package commitment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noolix",
		Subsystem: "commitment",
		Name:      "transitions_total",
		Help:      "Committed commitment transitions, by audit event.",
	}, []string{"event"})

	guardRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noolix",
		Subsystem: "commitment",
		Name:      "rejections_total",
		Help:      "Commitment operations refused, by error kind.",
	}, []string{"kind"})
)
