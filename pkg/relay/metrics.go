package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "quest_viewers",
		Help:      "Number of connected quest viewers.",
	})
	metricProxySessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "relay",
		Name:      "proxy_sessions",
		Help:      "Number of active MJPEG proxy sessions.",
	})
	metricMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relay",
		Name:      "messages_total",
		Help:      "Handled websocket messages by type.",
	}, []string{"type"})
)
