// Package server implements the API service on top of the parser, the
// channel store and the job queue.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/api"
	"github.com/tgwatch/tgwatch/cache"
	"github.com/tgwatch/tgwatch/jobs"
	"github.com/tgwatch/tgwatch/store"
)

// ChannelParser parses a live channel. Satisfied by *parser.Parser.
type ChannelParser interface {
	ChannelInfo(ctx context.Context, link string, withLogo bool) (tgwatch.Channel, []byte, error)
}

type server struct {
	parser  ChannelParser
	store   store.Store
	jobs    jobs.JobReadPusher
	cache   cache.Client // may be nil
	logger  log.Logger
	metrics Metrics
	version string
}

func New(
	parser ChannelParser,
	s store.Store,
	jobStore jobs.JobReadPusher,
	c cache.Client,
	logger log.Logger,
	metrics Metrics,
	version string,
) api.Service {
	return &server{
		parser:  parser,
		store:   s,
		jobs:    jobStore,
		cache:   c,
		logger:  logger,
		metrics: metrics,
		version: version,
	}
}

func (s *server) ChannelInfo(ctx context.Context, link string, withLogo bool) (res api.ChannelInfoResponse, err error) {
	defer func(begin time.Time) {
		s.metrics.ChannelInfoDuration.With(
			"success", fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	// Logo requests always go to the source; the cache only holds the
	// channel record.
	if s.cache != nil && !withLogo {
		if channel, ok := s.cachedChannel(link); ok {
			return api.ChannelInfoResponse{Channel: channel}, nil
		}
	}

	channel, logo, err := s.parser.ChannelInfo(ctx, link, withLogo)
	if err != nil {
		return api.ChannelInfoResponse{}, err
	}

	if _, err := s.store.UpsertChannel(channel); err != nil {
		return api.ChannelInfoResponse{}, errors.Wrapf(err, "storing channel %s", channel.Link)
	}

	if s.cache != nil {
		s.cacheChannel(channel)
	}

	return api.ChannelInfoResponse{Channel: channel, Logo: logo}, nil
}

func (s *server) cachedChannel(link string) (tgwatch.Channel, bool) {
	bytes, _, err := s.cache.GetKey(cache.NewChannelInfoKey(link))
	if err != nil {
		if err != cache.ErrNotCached {
			s.logger.Log("err", errors.Wrap(err, "reading channel cache"))
		}
		return tgwatch.Channel{}, false
	}
	var channel tgwatch.Channel
	if err := json.Unmarshal(bytes, &channel); err != nil {
		s.logger.Log("err", errors.Wrap(err, "decoding cached channel"))
		return tgwatch.Channel{}, false
	}
	return channel, true
}

func (s *server) cacheChannel(channel tgwatch.Channel) {
	bytes, err := json.Marshal(channel)
	if err != nil {
		s.logger.Log("err", errors.Wrap(err, "encoding channel for cache"))
		return
	}
	if err := s.cache.SetKey(cache.NewChannelInfoKey(channel.Link), bytes); err != nil {
		s.logger.Log("err", errors.Wrap(err, "writing channel cache"))
	}
}

func (s *server) EnqueueParse(ctx context.Context, link string, withLogo bool) (jobs.JobID, error) {
	link = tgwatch.NormalizeLink(link)
	if link == "" {
		return "", tgwatch.ErrInvalidChannelLink(link, "empty link")
	}
	return s.jobs.PutJob(jobs.Job{
		Queue:  jobs.DefaultQueue,
		Method: jobs.ParseChannelJob,
		Params: jobs.ParseChannelParams{
			Link:     link,
			WithLogo: withLogo,
		},
		Key:      link,
		Priority: jobs.PriorityInteractive,
	})
}

func (s *server) JobStatus(ctx context.Context, id jobs.JobID) (jobs.Job, error) {
	return s.jobs.GetJob(id)
}

func (s *server) Channel(ctx context.Context, id int64) (tgwatch.ChannelInfo, error) {
	return s.store.Channel(id)
}

func (s *server) ChannelByLink(ctx context.Context, link string) (tgwatch.ChannelInfo, error) {
	return s.store.ChannelByLink(link)
}

func (s *server) ChannelIDs(ctx context.Context) ([]int64, error) {
	return s.store.ChannelIDs()
}

func (s *server) Statistics(ctx context.Context, id int64, sort tgwatch.StatsSort) (res api.StatisticsResponse, err error) {
	defer func(begin time.Time) {
		s.metrics.StatisticsDuration.With(
			"success", fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	data, err := s.store.Statistics(id, sort)
	if err != nil {
		return api.StatisticsResponse{}, err
	}
	return api.StatisticsResponse{Sort: sort, Data: data}, nil
}

func (s *server) Ping(ctx context.Context) error {
	return nil
}

func (s *server) Version(ctx context.Context) (string, error) {
	return s.version, nil
}
