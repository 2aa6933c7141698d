// Package api defines the service interface served by tgwatchd and
// consumed by tgwatchctl.
package api

import (
	"context"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/jobs"
)

// Service is everything the HTTP API exposes.
type Service interface {
	// ChannelInfo parses a channel right now, records a statistics
	// snapshot, and returns the fresh info. Recently parsed channels
	// may be answered from cache.
	ChannelInfo(ctx context.Context, link string, withLogo bool) (ChannelInfoResponse, error)

	// EnqueueParse queues a background parse of the channel and
	// returns the job ID to poll.
	EnqueueParse(ctx context.Context, link string, withLogo bool) (jobs.JobID, error)

	// JobStatus returns the state of a queued or finished job.
	JobStatus(ctx context.Context, id jobs.JobID) (jobs.Job, error)

	Channel(ctx context.Context, id int64) (tgwatch.ChannelInfo, error)
	ChannelByLink(ctx context.Context, link string) (tgwatch.ChannelInfo, error)
	ChannelIDs(ctx context.Context) ([]int64, error)

	// Statistics returns the recorded snapshots for a channel, sorted
	// by recording time.
	Statistics(ctx context.Context, id int64, sort tgwatch.StatsSort) (StatisticsResponse, error)

	Ping(ctx context.Context) error
	Version(ctx context.Context) (string, error)
}

type ChannelInfoResponse struct {
	Channel tgwatch.Channel `json:"channel"`
	Logo    []byte          `json:"logo,omitempty"`
}

type StatisticsResponse struct {
	Sort tgwatch.StatsSort   `json:"sort"`
	Data []tgwatch.StatsItem `json:"data"`
}
