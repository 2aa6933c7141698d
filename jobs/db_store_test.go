package jobs

import (
	"fmt"
	"testing"
	"time"

	"github.com/tgwatch/tgwatch/db"
)

var jobsCounter int

func setup(t *testing.T) *DatabaseStore {
	jobsCounter++
	source := fmt.Sprintf("memory://jobs-test-%d.db", jobsCounter)
	if _, err := db.Migrate(source, "../db/migrations"); err != nil {
		t.Fatal(err)
	}
	s, err := NewDatabaseStore("ql-mem", source, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func bailIfErr(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

func TestDatabaseStore(t *testing.T) {
	s := setup(t)

	// Get a job when there are none
	_, err := s.NextJob(nil)
	if err != ErrNoJobAvailable {
		t.Fatalf("Expected ErrNoJobAvailable, got %q", err)
	}

	// Put some jobs
	backgroundID, err := s.PutJob(Job{
		Method:   ParseChannelJob,
		Params:   ParseChannelParams{Link: "t.me/background"},
		Priority: PriorityBackground,
	})
	bailIfErr(t, err)
	interactiveID, err := s.PutJob(Job{
		Key:      "t.me/somechannel",
		Method:   ParseChannelJob,
		Params:   ParseChannelParams{Link: "t.me/somechannel"},
		Priority: PriorityInteractive,
	})
	bailIfErr(t, err)

	// Put a duplicate
	duplicateID, err := s.PutJob(Job{
		Key:      "t.me/somechannel",
		Method:   ParseChannelJob,
		Params:   ParseChannelParams{Link: "t.me/somechannel"},
		Priority: PriorityInteractive,
	})
	if err != ErrJobAlreadyQueued {
		t.Errorf("Expected duplicate job to return ErrJobAlreadyQueued, got: %q", err)
	}
	if string(duplicateID) != "" {
		t.Errorf("Expected no id for duplicate job, got: %q", duplicateID)
	}

	// Take one; the higher priority job should come out first
	interactiveJob, err := s.NextJob(nil)
	bailIfErr(t, err)
	if interactiveJob.ID != interactiveID {
		t.Errorf("Expected interactive job first, got %q", interactiveJob.ID)
	}
	params, ok := interactiveJob.Params.(ParseChannelParams)
	if !ok {
		t.Fatalf("Expected ParseChannelParams, got %T", interactiveJob.Params)
	}
	if params.Link != "t.me/somechannel" {
		t.Errorf("Expected link to round-trip, got %q", params.Link)
	}

	// A queue only hands out one job at a time
	if _, err := s.NextJob(nil); err != ErrNoJobAvailable {
		t.Errorf("Expected no job while one is claimed, got %q", err)
	}

	// Finish the claimed job; the background one becomes available
	interactiveJob.Done = true
	interactiveJob.Success = true
	interactiveJob.Status = "Complete."
	bailIfErr(t, s.UpdateJob(interactiveJob))

	backgroundJob, err := s.NextJob(nil)
	bailIfErr(t, err)
	if backgroundJob.ID != backgroundID {
		t.Errorf("Expected background job next, got %q", backgroundJob.ID)
	}

	// Heartbeats update the claimed job
	bailIfErr(t, s.Heartbeat(backgroundJob.ID))

	// Reading a finished job back reflects its state
	finished, err := s.GetJob(interactiveID)
	bailIfErr(t, err)
	if !finished.Done || !finished.Success {
		t.Errorf("Expected finished job to be done and successful: %+v", finished)
	}

	// Unknown IDs are a typed missing error
	if _, err := s.GetJob(JobID("no-such-id")); err != ErrNoSuchJob {
		t.Errorf("Expected ErrNoSuchJob, got %q", err)
	}
}

func TestDatabaseStoreExpiry(t *testing.T) {
	s := setup(t)
	s.oldest = 0 // everything is expired immediately

	id, err := s.PutJob(Job{
		Method:   ParseChannelJob,
		Params:   ParseChannelParams{Link: "t.me/somechannel"},
		Priority: PriorityInteractive,
	})
	bailIfErr(t, err)

	job, err := s.NextJob(nil)
	bailIfErr(t, err)
	job.Done = true
	job.Success = true
	bailIfErr(t, s.UpdateJob(job))

	bailIfErr(t, s.GC())
	if _, err := s.GetJob(id); err != ErrNoSuchJob {
		t.Errorf("Expected job to be GCed, got %q", err)
	}
}
