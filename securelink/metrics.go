package securelink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linksIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noolix",
		Subsystem: "securelink",
		Name:      "issued_total",
		Help:      "Secure links issued, by purpose.",
	}, []string{"purpose"})

	linkConsumptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "noolix",
		Subsystem: "securelink",
		Name:      "consumptions_total",
		Help:      "Secure link consumption attempts, by purpose and result.",
	}, []string{"purpose", "result"})
)
