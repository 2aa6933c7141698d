package cache

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	tgmetrics "github.com/tgwatch/tgwatch/metrics"
)

var (
	memcacheRequestDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "tgwatch",
		Subsystem: "memcache",
		Name:      "request_duration_seconds",
		Help:      "Duration of memcache requests, in seconds.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{tgmetrics.LabelMethod, tgmetrics.LabelSuccess})
)

type instrumentedMemcacheClient struct {
	next Client
}

func InstrumentMemcacheClient(c Client) Client {
	return &instrumentedMemcacheClient{
		next: c,
	}
}

func (i *instrumentedMemcacheClient) GetKey(k Keyer) (_ []byte, _ time.Time, err error) {
	defer func(begin time.Time) {
		memcacheRequestDuration.With(
			tgmetrics.LabelMethod, "GetKey",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.GetKey(k)
}

func (i *instrumentedMemcacheClient) SetKey(k Keyer, v []byte) (err error) {
	defer func(begin time.Time) {
		memcacheRequestDuration.With(
			tgmetrics.LabelMethod, "SetKey",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.next.SetKey(k, v)
}

func (i *instrumentedMemcacheClient) Stop() {
	defer func(begin time.Time) {
		memcacheRequestDuration.With(
			tgmetrics.LabelMethod, "Stop",
			tgmetrics.LabelSuccess, "true",
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	i.next.Stop()
}
