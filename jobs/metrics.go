package jobs

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	tgmetrics "github.com/tgwatch/tgwatch/metrics"
)

type instrumentedJobStore struct {
	js              JobStore
	RequestDuration metrics.Histogram
}

func InstrumentedJobStore(js JobStore) JobStore {
	return &instrumentedJobStore{
		js: js,
		RequestDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "jobs",
			Name:      "request_duration_seconds",
			Help:      "Job store request duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelMethod, tgmetrics.LabelSuccess}),
	}
}

func (i *instrumentedJobStore) GetJob(jobID JobID) (j Job, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "GetJob",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.GetJob(jobID)
}

func (i *instrumentedJobStore) PutJob(j Job) (jobID JobID, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "PutJob",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.PutJob(j)
}

func (i *instrumentedJobStore) PutJobIgnoringDuplicates(j Job) (jobID JobID, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "PutJobIgnoringDuplicates",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.PutJobIgnoringDuplicates(j)
}

func (i *instrumentedJobStore) UpdateJob(j Job) (err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "UpdateJob",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.UpdateJob(j)
}

func (i *instrumentedJobStore) Heartbeat(jobID JobID) (err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "Heartbeat",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.Heartbeat(jobID)
}

func (i *instrumentedJobStore) NextJob(queues []string) (j Job, err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "NextJob",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.NextJob(queues)
}

func (i *instrumentedJobStore) GC() (err error) {
	defer func(begin time.Time) {
		i.RequestDuration.With(
			tgmetrics.LabelMethod, "GC",
			tgmetrics.LabelSuccess, fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())
	return i.js.GC()
}

type WorkerMetrics struct {
	JobDuration metrics.Histogram
}

func NewWorkerMetrics() WorkerMetrics {
	return WorkerMetrics{
		JobDuration: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: "tgwatch",
			Subsystem: "jobs",
			Name:      "job_duration_seconds",
			Help:      "Job duration in seconds.",
			Buckets:   stdprometheus.DefBuckets,
		}, []string{tgmetrics.LabelMethod, tgmetrics.LabelSuccess}),
	}
}
