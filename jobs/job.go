package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/guid"
)

const (
	// DefaultQueue is the queue to use if none is set.
	DefaultQueue = "default"

	// ParseChannelJob is the method for a channel parse job
	ParseChannelJob = "parse_channel"

	// RefreshChannelsJob is the method for a job that re-enqueues a
	// parse for every tracked channel
	RefreshChannelsJob = "refresh_channels"

	// PriorityBackground is priority for background jobs
	PriorityBackground = 100

	// PriorityInteractive is priority for interactive jobs
	PriorityInteractive = 200
)

var (
	// This is a user-facing error
	ErrNoSuchJob = &tgwatch.Error{
		Type: tgwatch.Missing,
		Help: `The job you requested does not exist.

This may mean that it has expired, or that you have mistyped the
job ID.`,
		Err: errors.New("no such job found"),
	}

	ErrNoJobAvailable   = errors.New("no job available")
	ErrUnknownJobMethod = errors.New("unknown job method")
	ErrJobAlreadyQueued = errors.New("job is already queued")
	ErrNoResultExpected = errors.New("no result expected")
)

type JobStore interface {
	JobReadPusher
	JobWritePopper
	GC() error
}

type JobReadPusher interface {
	GetJob(JobID) (Job, error)
	PutJob(Job) (JobID, error)
	PutJobIgnoringDuplicates(Job) (JobID, error)
}

type JobWritePopper interface {
	JobUpdater
	JobPopper
}

type JobUpdater interface {
	UpdateJob(Job) error
	Heartbeat(JobID) error
}

type JobPopper interface {
	NextJob(queues []string) (Job, error)
}

type JobID string

func NewJobID() JobID {
	return JobID(guid.New())
}

// Job describes a worker job
type Job struct {
	ID JobID `json:"id"`

	// To be set when scheduling the job
	Queue       string      `json:"queue"`
	Method      string      `json:"method"`
	Params      interface{} `json:"params"`
	ScheduledAt time.Time   `json:"scheduled_at"`
	Priority    int         `json:"priority"`

	// Key is an optional field, and can be used to create jobs iff a
	// pending job with the same key doesn't exist.
	Key string `json:"key,omitempty"`

	// To be used by the worker
	Submitted time.Time      `json:"submitted"`
	Claimed   time.Time      `json:"claimed,omitempty"`
	Heartbeat time.Time      `json:"heartbeat,omitempty"`
	Finished  time.Time      `json:"finished,omitempty"`
	Log       []string       `json:"log,omitempty"`
	Result    interface{}    `json:"result"` // may be updated to reflect progress
	Status    string         `json:"status"`
	Done      bool           `json:"done"`
	Success   bool           `json:"success"` // only makes sense after done is true
	Error     *tgwatch.Error `json:"error,omitempty"`
}

func (j *Job) UnmarshalJSON(data []byte) error {
	type JobAlias Job
	var wireJob struct {
		*JobAlias
		Params json.RawMessage `json:"params"`
		Result json.RawMessage `json:"result"`
	}
	wireJob.JobAlias = (*JobAlias)(j)
	if err := json.Unmarshal(data, &wireJob); err != nil {
		return err
	}

	switch j.Method {
	case ParseChannelJob:
		var p ParseChannelParams
		if wireJob.Params != nil {
			if err := json.Unmarshal(wireJob.Params, &p); err != nil {
				return err
			}
		}
		j.Params = p
		if wireJob.Result != nil && string(wireJob.Result) != "null" {
			var r ParseChannelResult
			if err := json.Unmarshal(wireJob.Result, &r); err != nil {
				return err
			}
			j.Result = r
		}
	case RefreshChannelsJob:
		j.Params = RefreshChannelsParams{}
	}
	return nil
}

// ParseChannelParams are the params for a parse_channel job
type ParseChannelParams struct {
	Link     string `json:"link"`
	WithLogo bool   `json:"with_logo,omitempty"`
}

// ParseChannelResult is the result of a parse_channel job. Logo is only
// set when the job was queued with WithLogo.
type ParseChannelResult struct {
	Channel tgwatch.Channel `json:"channel"`
	Logo    []byte          `json:"logo,omitempty"`
}

// RefreshChannelsParams are the params for a refresh_channels job
type RefreshChannelsParams struct{}
