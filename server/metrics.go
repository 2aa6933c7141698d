package server

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	tgmetrics "github.com/tgwatch/tgwatch/metrics"
)

type Metrics struct {
	ChannelInfoDuration metrics.Histogram
	StatisticsDuration  metrics.Histogram
}

func NewMetrics() Metrics {
	return Metrics{
		ChannelInfoDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "server",
			Name:      "channel_info_duration_seconds",
			Help:      "ChannelInfo method duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelSuccess}),
		StatisticsDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "server",
			Name:      "statistics_duration_seconds",
			Help:      "Statistics method duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelSuccess}),
	}
}
