package server

import (
	"context"
	"fmt"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/tgwatch/tgwatch/jobs"
	"github.com/tgwatch/tgwatch/store"
)

// ParseJobHandler executes parse_channel jobs: it parses the channel,
// stores the result, and records the channel on the job for pollers.
type ParseJobHandler struct {
	Parser ChannelParser
	Store  store.Store
	Logger log.Logger
}

func (h *ParseJobHandler) Handle(j *jobs.Job, updater jobs.JobUpdater) ([]jobs.Job, error) {
	params, ok := j.Params.(jobs.ParseChannelParams)
	if !ok {
		return nil, jobs.ErrUnknownJobMethod
	}

	j.Status = fmt.Sprintf("Parsing %s...", params.Link)
	if err := updater.UpdateJob(*j); err != nil {
		h.Logger.Log("err", errors.Wrapf(err, "updating job %s", j.ID))
	}

	channel, logo, err := h.Parser.ChannelInfo(context.Background(), params.Link, params.WithLogo)
	if err != nil {
		return nil, err
	}
	if _, err := h.Store.UpsertChannel(channel); err != nil {
		return nil, errors.Wrapf(err, "storing channel %s", channel.Link)
	}

	j.Result = jobs.ParseChannelResult{Channel: channel, Logo: logo}
	return nil, nil
}

// RefreshJobHandler executes refresh_channels jobs: it lists every
// tracked channel and returns a background parse job for each one.
// Jobs are keyed by link, so channels already queued are skipped.
type RefreshJobHandler struct {
	Store  store.Store
	Logger log.Logger
}

func (h *RefreshJobHandler) Handle(j *jobs.Job, updater jobs.JobUpdater) ([]jobs.Job, error) {
	ids, err := h.Store.ChannelIDs()
	if err != nil {
		return nil, errors.Wrap(err, "listing channels for refresh")
	}

	var followUps []jobs.Job
	for _, id := range ids {
		info, err := h.Store.Channel(id)
		if err != nil {
			h.Logger.Log("err", errors.Wrapf(err, "reading channel %d for refresh", id))
			continue
		}
		followUps = append(followUps, jobs.Job{
			Queue:  jobs.DefaultQueue,
			Method: jobs.ParseChannelJob,
			Params: jobs.ParseChannelParams{
				Link: info.Channel.Link,
			},
			Key:      info.Channel.Link,
			Priority: jobs.PriorityBackground,
		})
	}
	j.Status = fmt.Sprintf("Scheduled %d channel parses.", len(followUps))
	return followUps, nil
}
