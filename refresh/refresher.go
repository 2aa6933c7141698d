// Package refresh periodically queues a refresh_channels job, which in
// turn fans out background parses for every tracked channel.
package refresh

import (
	"time"

	"github.com/go-kit/kit/log"

	"github.com/tgwatch/tgwatch/jobs"
)

// refreshKey keeps at most one refresh job pending at a time.
const refreshKey = "refresh"

type Refresher struct {
	jobs   jobs.JobReadPusher
	logger log.Logger
}

func New(jobStore jobs.JobReadPusher, logger log.Logger) *Refresher {
	return &Refresher{
		jobs:   jobStore,
		logger: logger,
	}
}

// Run enqueues a refresh job on every tick. A refresh already queued or
// running is not an error; the tick is simply skipped.
func (r *Refresher) Run(tick <-chan time.Time) {
	for range tick {
		id, err := r.jobs.PutJob(jobs.Job{
			Queue:    jobs.DefaultQueue,
			Method:   jobs.RefreshChannelsJob,
			Params:   jobs.RefreshChannelsParams{},
			Key:      refreshKey,
			Priority: jobs.PriorityBackground,
		})
		switch err {
		case nil:
			r.logger.Log("refresh_job", id)
		case jobs.ErrJobAlreadyQueued:
			// normal; the previous refresh has not finished
		default:
			r.logger.Log("err", err)
		}
	}
}
