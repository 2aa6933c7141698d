package store

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/tgwatch/tgwatch"
	tgmetrics "github.com/tgwatch/tgwatch/metrics"
)

type instrumentedStore struct {
	s               Store
	RequestDuration metrics.Histogram
}

func Instrumented(s Store) Store {
	return &instrumentedStore{
		s: s,
		RequestDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "store",
			Name:      "request_duration_seconds",
			Help:      "Store request duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelMethod, tgmetrics.LabelSuccess}),
	}
}

func (i *instrumentedStore) UpsertChannel(c tgwatch.Channel) (created bool, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "UpsertChannel",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.UpsertChannel(c)
}

func (i *instrumentedStore) Channel(id int64) (info tgwatch.ChannelInfo, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "Channel",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.Channel(id)
}

func (i *instrumentedStore) ChannelByLink(link string) (info tgwatch.ChannelInfo, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "ChannelByLink",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.ChannelByLink(link)
}

func (i *instrumentedStore) ChannelIDs() (ids []int64, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "ChannelIDs",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.ChannelIDs()
}

func (i *instrumentedStore) Statistics(id int64, sort tgwatch.StatsSort) (items []tgwatch.StatsItem, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "Statistics",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.s.Statistics(id, sort)
}
