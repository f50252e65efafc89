package availability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "availability_query_seconds",
		Help:    "Time spent computing the available-driver set for a window.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	busyDrivers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "availability_busy_drivers",
		Help: "Size of the busy set computed by the most recent availability query.",
	})
)
