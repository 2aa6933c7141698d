package parser

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	tgmetrics "github.com/tgwatch/tgwatch/metrics"
)

type Metrics struct {
	FetchDuration metrics.Histogram
}

func NewMetrics() Metrics {
	return Metrics{
		FetchDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "parser",
			Name:      "fetch_duration_seconds",
			Help:      "Channel fetch duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelSuccess}),
	}
}
