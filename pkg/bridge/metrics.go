package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricPublished = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "relay",
	Name:      "rover_publishes_total",
	Help:      "Messages handed to the rover sink.",
})
